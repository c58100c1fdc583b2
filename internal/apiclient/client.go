// Package apiclient is a typed HTTP client for the learning support API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learnapp/internal/cachepolicy"
	"learnapp/internal/config"
	"learnapp/internal/models"
	contextutils "learnapp/internal/utils"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 16 << 20

// File is one image to upload.
type File struct {
	Name string
	Data []byte
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Uptime      int64     `json:"uptime"`
	Environment string    `json:"environment"`
	Memory      struct {
		Alloc      uint64 `json:"alloc"`
		Sys        uint64 `json:"sys"`
		AllocHuman string `json:"allocHuman"`
	} `json:"memory"`
}

type sampleResponse struct {
	Subject   models.Subject    `json:"subject"`
	Questions []models.Question `json:"questions"`
}

type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Error    string `json:"error"`
	Details  string `json:"details"`
	Severity string `json:"severity"`
}

// Client talks to one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cachepolicy.ResponseCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache enables cached GETs following the server's cache policy.
func WithCache(rc *cachepolicy.ResponseCache) Option {
	return func(c *Client) { c.cache = rc }
}

// New creates a client for baseURL, e.g. "http://localhost:3001".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   config.AIRequestTimeout + config.DefaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadImage sends one image to POST /api/upload.
func (c *Client) UploadImage(ctx context.Context, file File) (*models.OCRResult, error) {
	var out models.OCRResult
	if err := c.upload(ctx, "/api/upload", "image", []File{file}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadMultiple sends images to POST /api/upload/multiple for one combined
// recognition.
func (c *Client) UploadMultiple(ctx context.Context, files []File) (*models.OCRResult, error) {
	var out models.OCRResult
	if err := c.upload(ctx, "/api/upload/multiple", "images", files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadBatch sends images to POST /api/upload/batch.
func (c *Client) UploadBatch(ctx context.Context, files []File) (*models.BatchOutcome, error) {
	var out models.BatchOutcome
	if err := c.upload(ctx, "/api/upload/batch", "images", files, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate asks the server for questions about req.Text.
func (c *Client) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to encode request: %v", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/api/questions/generate", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	var out models.GenerationResult
	if err := decode(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuestionConfig fetches the subject, difficulty and question type catalogs.
func (c *Client) QuestionConfig(ctx context.Context) (*models.QuestionConfig, error) {
	var out models.QuestionConfig
	if err := c.getJSON(ctx, "/api/questions/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sample fetches the fixed sample questions for subject.
func (c *Client) Sample(ctx context.Context, subject models.Subject, difficulty models.Difficulty) ([]models.Question, error) {
	query := url.Values{}
	if difficulty != "" {
		query.Set("difficulty", string(difficulty))
	}
	var out sampleResponse
	if err := c.getJSON(ctx, "/api/questions/sample/"+url.PathEscape(string(subject)), query, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// Health pings GET /health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.getJSON(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	fetch := func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, http.MethodGet, target, "", nil)
	}

	var body []byte
	var err error
	if c.cache != nil {
		body, err = c.cache.Fetch(ctx, cachepolicy.Select(http.MethodGet, path), target, fetch)
	} else {
		body, err = fetch(ctx)
	}
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *Client) upload(ctx context.Context, path, field string, files []File, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(field, f.Name)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to add %s: %v", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to add %s: %v", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to finish upload body: %v", err)
	}

	body, err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// do sends one request and returns the body of a 2xx response. Failures to
// reach the server are ErrServiceUnavailable; error responses become the
// AppError the server described.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid request %s %s: %v", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if id := contextutils.GetRequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, contextutils.WrapErrorf(contextutils.ErrTimeout, "%s %s: %v", method, path, err)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to read response of %s %s: %v", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp.StatusCode, data)
	}
	return data, nil
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "unexpected response from server: %v", err)
	}
	return nil
}

// responseError turns an error response into an AppError, keeping the
// server's code when it sent one.
func responseError(status int, data []byte) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)

	code := contextutils.ErrorCode(eb.Code)
	if code == "" {
		code = codeForStatus(status)
	}
	severity := contextutils.SeverityLevel(eb.Severity)
	if severity == "" {
		severity = contextutils.SeverityError
	}
	message := eb.Error
	if message == "" {
		message = eb.Message
	}
	if message == "" {
		message = fmt.Sprintf("server returned %d %s", status, http.StatusText(status))
	}
	return contextutils.NewAppError(code, severity, message, eb.Details)
}

func codeForStatus(status int) contextutils.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return contextutils.ErrorCodeInvalidInput
	case http.StatusNotFound:
		return contextutils.ErrorCodeRecordNotFound
	case http.StatusRequestEntityTooLarge:
		return contextutils.ErrorCodePayloadTooLarge
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return contextutils.ErrorCodeServiceUnavailable
	default:
		return contextutils.ErrorCodeInternalError
	}
}
