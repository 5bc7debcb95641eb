// Package invoiceapi provides a client for the invoice parsing service.
package invoiceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-cli/internal/model"
)

// DefaultBaseURL is where the parsing service listens in local setups.
const DefaultBaseURL = "http://localhost:8000"

// Client defines the invoice parsing service operations. Every call honours
// ctx: cancelling it aborts the request and yields ErrCancelled. Non-2xx
// responses yield *RequestError.
type Client interface {
	// ParseText parses one invoice text. The caller ensures content is not blank.
	ParseText(ctx context.Context, content string) (*ParseResponse, error)
	// ParseTexts parses several texts; results carry one group per input.
	ParseTexts(ctx context.Context, contents []string) (*ParseResponse, error)
	// ParseImage uploads an invoice image for OCR and parsing.
	ParseImage(ctx context.Context, img Image) (*ParseImageResponse, error)
	// ExportSpreadsheet returns an xlsx document built from results.
	ExportSpreadsheet(ctx context.Context, results []model.ResultGroup) ([]byte, error)
	// Health checks service liveness.
	Health(ctx context.Context) error
}

// ParseResponse is the response from POST /parse.
type ParseResponse struct {
	RequestID string              `json:"request_id"`
	Results   []model.ResultGroup `json:"results"`
}

// ParseImageResponse is the response from POST /parse-image.
type ParseImageResponse struct {
	RequestID     string              `json:"request_id"`
	Results       []model.ResultGroup `json:"results"`
	ExtractedText string              `json:"extracted_text"`
	Filename      string              `json:"filename"`
}

type parseRequest struct {
	Content  *string  `json:"content,omitempty"`
	Contents []string `json:"contents,omitempty"`
}

type exportRequest struct {
	Results []model.ResultGroup `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets the service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.timeout = d
	}
}

// WithRateLimit spaces requests to at most perMinute per minute. Zero or a
// negative value disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(c *httpClient) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient creates a new invoice service client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ParseText(ctx context.Context, content string) (*ParseResponse, error) {
	var resp ParseResponse
	if err := c.postJSON(ctx, "/parse", parseRequest{Content: &content}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) ParseTexts(ctx context.Context, contents []string) (*ParseResponse, error) {
	if len(contents) == 0 {
		return nil, eris.New("invoiceapi: at least one content is required")
	}
	var resp ParseResponse
	if err := c.postJSON(ctx, "/parse", parseRequest{Contents: contents}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) ParseImage(ctx context.Context, img Image) (*ParseImageResponse, error) {
	body, contentType, err := img.multipart("file")
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse-image", body)
	if err != nil {
		return nil, eris.Wrap(err, "invoiceapi: create parse-image request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	data, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp ParseImageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "invoiceapi: unmarshal parse-image response")
	}
	return &resp, nil
}

func (c *httpClient) ExportSpreadsheet(ctx context.Context, results []model.ResultGroup) ([]byte, error) {
	if results == nil {
		results = []model.ResultGroup{}
	}
	buf, err := json.Marshal(exportRequest{Results: results})
	if err != nil {
		return nil, eris.Wrap(err, "invoiceapi: marshal export request")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/export/xlsx", bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "invoiceapi: create export request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req)
}

func (c *httpClient) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "invoiceapi: create health request")
	}

	data, err := c.do(ctx, req)
	if err != nil {
		return err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return eris.Wrap(err, "invoiceapi: unmarshal health response")
	}
	if status.Status != "ok" {
		return eris.Errorf("invoiceapi: service status %q", status.Status)
	}
	return nil
}

func (c *httpClient) postJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "invoiceapi: marshal request")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "invoiceapi: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	data, err := c.do(ctx, req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "invoiceapi: unmarshal %s response", path)
	}
	return nil
}

// do sends req and returns the body of a 2xx response. Failures are already
// normalized to ErrCancelled or *RequestError.
func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(ctx, err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

func (c *httpClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
