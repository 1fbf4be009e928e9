// Package ee is a small client for the Earth Engine REST API. It submits
// encoded computation graphs and returns whatever the platform computed.
package ee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DefaultBaseURL = "https://earthengine.googleapis.com"
	Scope          = "https://www.googleapis.com/auth/earthengine"
	// CloudPlatformScope is also needed for exports to Cloud Storage.
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	defaultRetries    = 10
	defaultRetryDelay = 5 * time.Second
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	project    string
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRetry sets how many attempts a transient failure gets and the delay
// between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(cl *Client) {
		if attempts > 0 {
			cl.retries = attempts
		}
		cl.retryDelay = delay
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client for the given cloud project. Without WithHTTPClient
// requests are sent unauthenticated, which only suits tests and proxies.
func New(project string, opts ...Option) (*Client, error) {
	if project == "" {
		return nil, errors.New("ee: missing cloud project")
	}
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		project:    project,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromCredentials authenticates with a service-account key file, or
// with application default credentials when credentialsFile is empty.
func NewFromCredentials(ctx context.Context, project, credentialsFile string, opts ...Option) (*Client, error) {
	var creds *google.Credentials
	var err error
	if credentialsFile != "" {
		data, rerr := os.ReadFile(credentialsFile)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", rerr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, Scope, CloudPlatformScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, Scope, CloudPlatformScope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if project == "" {
		project = creds.ProjectID
	}
	httpClient := oauth2.NewClient(ctx, creds.TokenSource)
	return New(project, append([]Option{WithHTTPClient(httpClient)}, opts...)...)
}

func (c *Client) Project() string {
	return c.project
}

func (c *Client) projectPath() string {
	return "projects/" + c.project
}

// call sends one JSON request, retrying transient failures, and returns
// the raw response body.
func (c *Client) call(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
	}
	url := c.baseURL + "/v1/" + strings.TrimPrefix(path, "/")

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		data, err := c.send(ctx, method, url, payload)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("earth engine request failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("attempts", c.retries),
			zap.Error(err))

		if attempt < c.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("request %s failed after %d attempts: %w", path, c.retries, lastErr)
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}
