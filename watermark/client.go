package watermark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where the service listens when run locally
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout of zero leaves requests unbounded; they run until the transport resolves
	DefaultTimeout time.Duration = 0
)

// Client is the watermark service API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https, got %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("server URL has no host: %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromEnv creates a client using the BLINDMARK_SERVER_URL environment variable,
// falling back to DefaultBaseURL
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	baseURL := os.Getenv("BLINDMARK_SERVER_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewClient(baseURL, opts...)
}

// BaseURL returns the server root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Embed uploads an image with watermark text and returns the resulting bit-length and processed image locator
func (c *Client) Embed(ctx context.Context, req *EmbedRequest) (*EmbedResponse, error) {
	up := &UploadRequest{
		File:   req.File,
		Fields: map[string]string{FieldWatermarkText: req.Text},
	}

	var body embedBody
	if err := c.upload(ctx, PathEmbed, up, &body); err != nil {
		return nil, err
	}
	return &EmbedResponse{Length: *body.Length, ProcessedImageURL: *body.ProcessedImageURL}, nil
}

// Extract uploads a watermarked image with the bit-length and returns the recovered text
func (c *Client) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	up := &UploadRequest{
		File:   req.File,
		Fields: map[string]string{FieldWatermarkLen: req.Length},
	}

	var body extractBody
	if err := c.upload(ctx, PathExtract, up, &body); err != nil {
		return nil, err
	}
	return &ExtractResponse{ExtractedText: *body.ExtractedText}, nil
}

// ResolveURL turns a locator returned by the service into an absolute URL
func (c *Client) ResolveURL(ref string) string {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(target).String()
}

// Download saves the resource at ref into dir under its suggested filename
func (c *Client) Download(ctx context.Context, ref, dir string, overwrite bool) (*DownloadResult, error) {
	name := DownloadName(ref)
	if name == "" || name == "." || name == ".." {
		return nil, fmt.Errorf("no file name in %q", ref)
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("file exists: %s", path)
		}
	}

	target := c.ResolveURL(ref)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("download", "url", target)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	// Stream into a temp file so a failed transfer never leaves a partial file at path.
	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, &TransportError{Op: "download", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to save %s: %w", path, err)
	}

	c.logger.Debug("download complete", "path", path, "bytes", n)

	return &DownloadResult{Path: path, Bytes: n}, nil
}

// successBody is a decoded 2xx body that can check its required fields
type successBody interface {
	validate() error
}

// upload posts a multipart request and decodes the success body into out
func (c *Client) upload(ctx context.Context, path string, up *UploadRequest, out successBody) error {
	body, contentType, err := BuildUpload(up)
	if err != nil {
		return err
	}

	endpoint := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("request", "method", http.MethodPost, "url", endpoint, "file", up.File.Name, "bytes", len(up.File.Data))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", "url", endpoint, "error", err)
		return &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}

	c.logger.Debug("response",
		"url", endpoint,
		"status", resp.StatusCode,
		"latency", time.Since(start),
		"body", truncate(string(respBody), 2000),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		// An unparseable error body leaves Message empty; callers fall back to a generic message.
		_ = json.Unmarshal(respBody, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	if err := out.validate(); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
