package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/forest-guardian/lst-ndvi/internal/ee"
	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
	"github.com/forest-guardian/lst-ndvi/internal/ledger"
	"github.com/forest-guardian/lst-ndvi/internal/notification"
	"github.com/forest-guardian/lst-ndvi/internal/products"
	"github.com/forest-guardian/lst-ndvi/internal/region"
)

// Platform is the part of the Earth Engine client used by exports.
type Platform interface {
	ExportImage(ctx context.Context, req ee.ExportRequest) (*ee.Operation, error)
	GetOperation(ctx context.Context, name string) (*ee.Operation, error)
	WaitOperation(ctx context.Context, name string, interval time.Duration, onPoll func(*ee.Operation)) (*ee.Operation, error)
	ComputePixels(ctx context.Context, req ee.PixelsRequest) ([]byte, error)
}

type Service struct {
	platform     Platform
	ledger       *ledger.Ledger
	logger       *zap.Logger
	pollInterval time.Duration
	workers      int
	progress     io.Writer
}

type ServiceOption func(*Service)

func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *Service) { s.pollInterval = d }
}

func WithWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// WithProgress redirects the progress bars, os.Stderr by default.
func WithProgress(w io.Writer) ServiceOption {
	return func(s *Service) { s.progress = w }
}

func NewService(platform Platform, l *ledger.Ledger, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		platform:     platform,
		ledger:       l,
		logger:       logger,
		pollInterval: 10 * time.Second,
		workers:      4,
		progress:     os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Submit starts the export and records its operation in the ledger.
func (s *Service) Submit(ctx context.Context, r Request) (ledger.Record, error) {
	body, err := r.Build()
	if err != nil {
		return ledger.Record{}, err
	}
	body.RequestID = uuid.NewString()
	op, err := s.platform.ExportImage(ctx, body)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to submit export %s: %w", body.Description, err)
	}
	state := op.Metadata.State
	if state == "" {
		state = ee.StatePending
	}
	rec, err := s.ledger.Add(ctx, ledger.Record{
		Operation:   op.Name,
		Description: body.Description,
		Product:     r.Product.Name,
		Composite:   string(r.Composite),
		Bucket:      r.Bucket,
		Prefix:      r.Prefix(),
		State:       state,
	})
	if err != nil {
		return ledger.Record{}, err
	}
	s.logger.Info("export submitted",
		zap.String("id", rec.ID),
		zap.String("operation", op.Name),
		zap.String("destination", "gs://"+r.Bucket+"/"+r.Prefix()))
	return rec, nil
}

// Wait polls the export until it finishes, keeping the ledger current and
// notifying the configured webhooks of the outcome.
func (s *Service) Wait(ctx context.Context, rec ledger.Record) (ledger.Record, error) {
	bar := s.newBar(100, "Exporting "+rec.Description)
	lastState := rec.State

	op, err := s.platform.WaitOperation(ctx, rec.Operation, s.pollInterval, func(op *ee.Operation) {
		_ = bar.Set(int(op.Metadata.Progress * 100))
		if op.Metadata.State != "" && op.Metadata.State != lastState {
			lastState = op.Metadata.State
			if err := s.ledger.UpdateState(ctx, rec.ID, lastState, ""); err != nil {
				s.logger.Warn("failed to update ledger", zap.String("id", rec.ID), zap.Error(err))
			}
		}
	})
	if op == nil {
		return rec, err
	}
	if !op.Done {
		// Context cancelled while the export keeps running remotely.
		return rec, err
	}
	_ = bar.Finish()

	state, errMsg := finalState(op)
	if uerr := s.ledger.UpdateState(ctx, rec.ID, state, errMsg); uerr != nil {
		return rec, uerr
	}
	rec.State, rec.Error = state, errMsg
	s.notify(ctx, rec)

	if err != nil {
		return rec, fmt.Errorf("export %s failed: %w", rec.Description, err)
	}
	s.logger.Info("export finished", zap.String("id", rec.ID), zap.Strings("uris", op.Metadata.DestinationURIs))
	return rec, nil
}

// Refresh asks the platform for the current state of an unfinished export.
func (s *Service) Refresh(ctx context.Context, idOrOperation string) (ledger.Record, error) {
	rec, err := s.ledger.Get(ctx, idOrOperation)
	if err != nil {
		return rec, err
	}
	if rec.Finished() {
		return rec, nil
	}
	op, err := s.platform.GetOperation(ctx, rec.Operation)
	if err != nil {
		return rec, err
	}
	state, errMsg := rec.State, ""
	if op.Done {
		state, errMsg = finalState(op)
	} else if op.Metadata.State != "" {
		state = op.Metadata.State
	}
	if state == rec.State && errMsg == rec.Error {
		return rec, nil
	}
	if err := s.ledger.UpdateState(ctx, rec.ID, state, errMsg); err != nil {
		return rec, err
	}
	rec.State, rec.Error = state, errMsg
	return rec, nil
}

func finalState(op *ee.Operation) (string, string) {
	if err := op.Err(); err != nil {
		state := op.Metadata.State
		if state == "" || state == ee.StateSucceeded {
			state = ee.StateFailed
		}
		return state, err.Error()
	}
	if op.Metadata.State == "" {
		return ee.StateSucceeded, ""
	}
	return op.Metadata.State, ""
}

func (s *Service) notify(ctx context.Context, rec ledger.Record) {
	var err error
	if rec.State == ee.StateSucceeded {
		err = notification.SendDiscordSuccessNotification(ctx,
			fmt.Sprintf("Export %s finished: gs://%s/%s", rec.Description, rec.Bucket, rec.Prefix))
	} else {
		err = notification.SendDiscordErrorNotification(ctx,
			fmt.Sprintf("Export %s ended %s: %s", rec.Description, rec.State, rec.Error))
	}
	if err != nil {
		s.logger.Warn("failed to send notification", zap.Error(err))
	}
}

// Job is one raster fetched directly with computePixels.
type Job struct {
	Name  string
	Image *graph.Node
}

// MonthlyJobs prepares one download per month of w, each clipped to the
// region's bounds at scale metres.
func MonthlyJobs(p products.Product, roi *region.ROI, w region.Window, scale float64) ([]Job, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("download scale must be positive, got %v", scale)
	}
	images, months, err := p.MonthlyComposites(roi, w)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, len(images))
	for i, img := range images {
		jobs[i] = Job{
			Name: fmt.Sprintf("%s_%s.tif", p.Name, months[i].Start.Format("2006-01")),
			Image: graph.Invoke("Image.clipToBoundsAndScale", graph.Args{
				"input":    img,
				"geometry": roi.Node(),
				"scale":    graph.Constant(scale),
			}),
		}
	}
	return jobs, nil
}

// Download runs the jobs on the worker pool and writes each GeoTIFF into
// dir. It returns the written paths in job order; the first failure is
// returned after every job has run.
func (s *Service) Download(ctx context.Context, jobs []Job, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	var (
		paths    = make([]string, len(jobs))
		mu       sync.Mutex
		firstErr error
		bar      = s.newBar(len(jobs), "Downloading composites")
	)
	wp := workerpool.New(s.workers)
	for i, job := range jobs {
		i, job := i, job
		wp.Submit(func() {
			defer func() {
				mu.Lock()
				_ = bar.Add(1)
				mu.Unlock()
			}()
			path, err := s.download(ctx, job, dir)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("download failed", zap.String("name", job.Name), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			paths[i] = path
		})
	}
	wp.StopWait()
	return paths, firstErr
}

func (s *Service) download(ctx context.Context, job Job, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	expr, err := graph.Encode(job.Image)
	if err != nil {
		return "", err
	}
	data, err := s.platform.ComputePixels(ctx, ee.PixelsRequest{Expression: expr, FileFormat: ee.FormatGeoTIFF})
	if err != nil {
		return "", fmt.Errorf("failed to compute %s: %w", job.Name, err)
	}
	path := filepath.Join(dir, job.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (s *Service) newBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(s.progress),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	)
}
