package ee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/forest-guardian/lst-ndvi/internal/ee/graph"
)

const (
	FormatGeoTIFF = "GEO_TIFF"
	FormatPNG     = "PNG"
)

// PixelGrid places output pixels. An empty grid lets the platform use the
// image's native projection.
type PixelGrid struct {
	CRSCode         string           `json:"crsCode,omitempty"`
	AffineTransform *AffineTransform `json:"affineTransform,omitempty"`
	Dimensions      *GridDimensions  `json:"dimensions,omitempty"`
}

type AffineTransform struct {
	ScaleX     float64 `json:"scaleX"`
	ShearX     float64 `json:"shearX"`
	TranslateX float64 `json:"translateX"`
	ShearY     float64 `json:"shearY"`
	ScaleY     float64 `json:"scaleY"`
	TranslateY float64 `json:"translateY"`
}

type GridDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type PixelsRequest struct {
	Expression *graph.Expression `json:"expression"`
	FileFormat string            `json:"fileFormat"`
	BandIDs    []string          `json:"bandIds,omitempty"`
	Grid       *PixelGrid        `json:"grid,omitempty"`
}

type MapRequest struct {
	Expression *graph.Expression `json:"expression"`
	FileFormat string            `json:"fileFormat"`
	BandIDs    []string          `json:"bandIds,omitempty"`
}

// Map is a server-side tile source.
type Map struct {
	Name    string `json:"name"`
	baseURL string
}

// TileURL is an XYZ template usable by web map viewers.
func (m *Map) TileURL() string {
	return fmt.Sprintf("%s/v1/%s/tiles/{z}/{x}/{y}", m.baseURL, m.Name)
}

type CloudStorageDestination struct {
	Bucket         string `json:"bucket"`
	FilenamePrefix string `json:"filenamePrefix"`
}

type FileExportOptions struct {
	FileFormat              string                   `json:"fileFormat"`
	CloudStorageDestination *CloudStorageDestination `json:"cloudStorageDestination"`
}

type ExportRequest struct {
	Expression        *graph.Expression  `json:"expression"`
	Description       string             `json:"description,omitempty"`
	RequestID         string             `json:"requestId,omitempty"`
	FileExportOptions *FileExportOptions `json:"fileExportOptions"`
	Grid              *PixelGrid         `json:"grid,omitempty"`
	MaxPixels         int64              `json:"maxPixels,omitempty,string"`
}

// Operation is a long-running task such as an export.
type Operation struct {
	Name     string            `json:"name"`
	Done     bool              `json:"done"`
	Metadata OperationMetadata `json:"metadata"`
	Error    *OperationError   `json:"error,omitempty"`
}

type OperationMetadata struct {
	State           string    `json:"state"`
	Description     string    `json:"description"`
	Progress        float64   `json:"progress"`
	DestinationURIs []string  `json:"destinationUris"`
	CreateTime      time.Time `json:"createTime"`
	UpdateTime      time.Time `json:"updateTime"`
}

type OperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Operation states reported in metadata.
const (
	StatePending    = "PENDING"
	StateRunning    = "RUNNING"
	StateCancelling = "CANCELLING"
	StateSucceeded  = "SUCCEEDED"
	StateCancelled  = "CANCELLED"
	StateFailed     = "FAILED"
)

// Err converts a failed operation into an error.
func (o *Operation) Err() error {
	if o.Error == nil {
		return nil
	}
	return &APIError{Code: o.Error.Code, Message: o.Error.Message}
}

// ComputeValue evaluates a graph and returns its JSON result.
func (c *Client) ComputeValue(ctx context.Context, expr *graph.Expression) (json.RawMessage, error) {
	data, err := c.call(ctx, http.MethodPost, c.projectPath()+"/value:compute", map[string]interface{}{
		"expression": expr,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode compute response: %w", err)
	}
	return resp.Result, nil
}

// ComputePixels returns the encoded raster, e.g. GeoTIFF bytes.
func (c *Client) ComputePixels(ctx context.Context, req PixelsRequest) ([]byte, error) {
	if req.FileFormat == "" {
		req.FileFormat = FormatGeoTIFF
	}
	return c.call(ctx, http.MethodPost, c.projectPath()+"/image:computePixels", req)
}

func (c *Client) CreateMap(ctx context.Context, req MapRequest) (*Map, error) {
	if req.FileFormat == "" {
		req.FileFormat = FormatPNG
	}
	data, err := c.call(ctx, http.MethodPost, c.projectPath()+"/maps", req)
	if err != nil {
		return nil, err
	}
	m := &Map{baseURL: c.baseURL}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode map: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("earth engine returned a map without name")
	}
	return m, nil
}

func (c *Client) ExportImage(ctx context.Context, req ExportRequest) (*Operation, error) {
	data, err := c.call(ctx, http.MethodPost, c.projectPath()+"/image:export", req)
	if err != nil {
		return nil, err
	}
	return decodeOperation(data)
}

func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	data, err := c.call(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, err
	}
	return decodeOperation(data)
}

// WaitOperation polls name until it is done. onPoll, if set, sees every
// intermediate state.
func (c *Client) WaitOperation(ctx context.Context, name string, interval time.Duration, onPoll func(*Operation)) (*Operation, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		op, err := c.GetOperation(ctx, name)
		if err != nil {
			return nil, err
		}
		if onPoll != nil {
			onPoll(op)
		}
		if op.Done {
			return op, op.Err()
		}
		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-ticker.C:
		}
	}
}

func decodeOperation(data []byte) (*Operation, error) {
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to decode operation: %w", err)
	}
	if op.Name == "" {
		return nil, errors.New("earth engine returned an operation without name")
	}
	return &op, nil
}
