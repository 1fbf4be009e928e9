package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// objectStore is the part of Cloud Storage read by the Fetcher.
type objectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Close() error
}

type gcsStore struct {
	client *storage.Client
}

func (s gcsStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
}

func (s gcsStore) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return s.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (s gcsStore) Close() error {
	return s.client.Close()
}

// Fetcher copies finished exports out of Cloud Storage.
type Fetcher struct {
	store  objectStore
	logger *zap.Logger
}

// NewFetcher uses credentialsFile when set, application default
// credentials otherwise.
func NewFetcher(ctx context.Context, credentialsFile string, logger *zap.Logger) (*Fetcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.newclient: %w", err)
	}
	return &Fetcher{store: gcsStore{client: client}, logger: logger}, nil
}

func (f *Fetcher) Close() error {
	return f.store.Close()
}

// Fetch downloads the GeoTIFFs of the export written at gs://bucket/prefix
// into dir and returns the local paths. Tiled exports produce several.
func (f *Fetcher) Fetch(ctx context.Context, bucket, prefix, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	names, err := f.store.List(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
	}
	var paths []string
	for _, name := range names {
		if !exportObject(prefix, name) {
			continue
		}
		dst := filepath.Join(dir, path.Base(name))
		if err := f.copy(ctx, bucket, name, dst); err != nil {
			return paths, err
		}
		f.logger.Info("fetched export", zap.String("object", "gs://"+bucket+"/"+name), zap.String("path", dst))
		paths = append(paths, dst)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no GeoTIFF found under gs://%s/%s", bucket, prefix)
	}
	return paths, nil
}

func (f *Fetcher) copy(ctx context.Context, bucket, object, dst string) error {
	r, err := f.store.Open(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to download gs://%s/%s: %w", bucket, object, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// exportObject matches prefix.tif and the tiles prefix-<row>-<col>.tif,
// not other exports whose name merely starts with prefix.
func exportObject(prefix, name string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" || (rest[0] != '.' && rest[0] != '-') {
		return false
	}
	return isGeoTIFF(name)
}

func isGeoTIFF(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}
