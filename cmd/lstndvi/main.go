package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forest-guardian/lst-ndvi/internal/ee"
	"github.com/forest-guardian/lst-ndvi/internal/ledger"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/properties"
)

var (
	configPath string
	verbose    bool
	noBanner   bool

	cfg       *properties.Config
	logger    *zap.Logger
	startTime time.Time
)

var rootCmd = &cobra.Command{
	Use:   "lstndvi",
	Short: "MODIS land surface temperature and NDVI over a region of interest",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		var err error
		if logger, err = newLogger(verbose); err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		required := configPath != ""
		if !required {
			configPath = filepath.Join(properties.RootPath(), properties.DefaultConfigFile)
		}
		if cfg, err = properties.Load(configPath, required); err != nil {
			return err
		}
		logger.Debug("configuration loaded", zap.String("path", configPath), zap.String("project", cfg.Project))

		godal.RegisterAll()
		if !noBanner {
			printBanner()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		logger.Debug("command finished", zap.String("command", cmd.Name()), zap.Duration("took", time.Since(startTime)))
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "run configuration file (default $ROOT_PATH/"+properties.DefaultConfigFile+")")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "do not print the banner")
	rootCmd.AddCommand(graphCmd, chartCmd, mapCmd, exportCmd, statusCmd, downloadCmd, qaCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		bannercolor.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printBanner() {
	figure1 := figure.NewFigure("LST", "isometric1", true)
	figure2 := figure.NewFigure("NDVI", "isometric1", true)
	bannercolor.Cyan("%s", figure1.String())
	bannercolor.Cyan("%s", figure2.String())
	fmt.Println()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// newClient authenticates with the configured credentials.
func newClient(ctx context.Context) (*ee.Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("no Earth Engine project configured (set project or EE_PROJECT)")
	}
	return ee.NewFromCredentials(ctx, cfg.Project, cfg.Credentials,
		ee.WithRetry(cfg.Retries, cfg.RetryDelay),
		ee.WithLogger(logger))
}

func openLedger() (*ledger.Ledger, error) {
	path := properties.DataPath("ledger.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return ledger.Open(path)
}

// selectProducts resolves the requested names; none means every
// configured product, or both presets when the file lists none.
func selectProducts(c *properties.Config, names []string) ([]products.Product, error) {
	if len(names) == 0 {
		if len(c.Products) > 0 {
			return c.Products, nil
		}
		names = products.Names()
	}
	selected := make([]products.Product, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		p, err := c.Product(name)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		selected = append(selected, p)
	}
	return selected, nil
}

func outputDir(flag string, elem ...string) (string, error) {
	dir := flag
	if dir == "" {
		dir = properties.DataPath(elem...)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return dir, nil
}
