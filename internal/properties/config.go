package properties

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forest-guardian/lst-ndvi/internal/chart"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/region"
)

// DefaultConfigFile is read from ROOT_PATH when no --config is given.
const DefaultConfigFile = "lstndvi.yaml"

// Config holds the parameters of a run. Environment variables override
// the credentials and project read from the file.
type Config struct {
	Project     string             `yaml:"project"`
	Credentials string             `yaml:"credentials"`
	Region      RegionConfig       `yaml:"region"`
	Start       string             `yaml:"start"`
	End         string             `yaml:"end"`
	Scale       float64            `yaml:"scale"`
	Retries     int                `yaml:"retries"`
	RetryDelay  time.Duration      `yaml:"retry_delay"`
	Products    []products.Product `yaml:"products"`
	Export      ExportConfig       `yaml:"export"`
	Chart       chart.Options      `yaml:"chart"`
}

// RegionConfig names the region by asset id or GeoJSON file. Property
// and Value narrow a GeoJSON file to the matching features.
type RegionConfig struct {
	Asset    string `yaml:"asset"`
	GeoJSON  string `yaml:"geojson"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
}

type ExportConfig struct {
	Bucket       string        `yaml:"bucket"`
	Folder       string        `yaml:"folder"`
	Scale        float64       `yaml:"scale"`
	CRS          string        `yaml:"crs"`
	MaxPixels    int64         `yaml:"max_pixels"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workers      int           `yaml:"workers"`
}

func Default() *Config {
	return &Config{
		Scale:      1000,
		Retries:    10,
		RetryDelay: 5 * time.Second,
		Export: ExportConfig{
			Folder:       "lst-ndvi",
			Scale:        1000,
			CRS:          "EPSG:4326",
			MaxPixels:    1e13,
			PollInterval: 10 * time.Second,
			Workers:      4,
		},
		Chart: chart.DefaultOptions(),
	}
}

// Load reads path over the defaults. A missing file is only an error when
// required is set, so a run can be configured from flags and environment.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if project := EEProject(); project != "" {
		cfg.Project = project
	}
	if creds := CredentialsFile(); creds != "" {
		cfg.Credentials = creds
	}
	return cfg, nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.Region.Asset == "" && c.Region.GeoJSON == "" {
		return errors.New("config: region.asset or region.geojson is required")
	}
	if c.Region.Property != "" && c.Region.Asset != "" {
		return errors.New("config: region.property selects features of region.geojson and cannot be used with region.asset")
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	if c.Scale <= 0 {
		return fmt.Errorf("config: scale must be positive, got %v", c.Scale)
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("config: export.scale must be positive, got %v", c.Export.Scale)
	}
	if c.Export.PollInterval <= 0 {
		return fmt.Errorf("config: export.poll_interval must be positive, got %v", c.Export.PollInterval)
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("config: export.workers must be at least 1, got %d", c.Export.Workers)
	}
	for _, p := range c.Products {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func (c *Config) Window() (region.Window, error) {
	return region.ParseWindow(c.Start, c.End)
}

func (c *Config) ROI() (*region.ROI, error) {
	if c.Region.Property != "" && c.Region.Asset == "" {
		return region.LoadFeature(c.Region.GeoJSON, c.Region.Property, c.Region.Value)
	}
	return region.Load(c.Region.Asset, c.Region.GeoJSON)
}

// Product resolves name against the configured products first, then the
// built-in presets.
func (c *Config) Product(name string) (products.Product, error) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, nil
		}
	}
	return products.Lookup(name)
}
