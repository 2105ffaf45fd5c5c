package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/pappacorleone/speaking-meeting-bot-sub000/internal/events"
)

const (
	getCacheTTL  = 5 * time.Second
	maxErrorBody = 4 << 10
)

// APIError is a non-2xx response from the session API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// IsNotFound reports whether err is a 404 from the session API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// HTTPClient makes REST calls to the session API. GET responses are cached
// briefly so that repeated view refreshes do not hit the server; any
// mutation of a session evicts its cached entries.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.Cache
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:7014").
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache.New(getCacheTTL, time.Minute),
	}
}

// GetSession fetches GET /sessions/{id}.
func (c *HTTPClient) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := c.get(ctx, sessionPath(id, ""), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSummary fetches GET /sessions/{id}/summary.
func (c *HTTPClient) GetSummary(ctx context.Context, id string) (*Summary, error) {
	var s Summary
	if err := c.get(ctx, sessionPath(id, "summary"), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PauseSession sends POST /sessions/{id}/pause.
func (c *HTTPClient) PauseSession(ctx context.Context, id string) (*PauseResumeResponse, error) {
	var out PauseResumeResponse
	if err := c.post(ctx, id, "pause", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResumeSession sends POST /sessions/{id}/resume.
func (c *HTTPClient) ResumeSession(ctx context.Context, id string) (*PauseResumeResponse, error) {
	var out PauseResumeResponse
	if err := c.post(ctx, id, "resume", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession sends POST /sessions/{id}/end.
func (c *HTTPClient) EndSession(ctx context.Context, id string) (*EndSessionResponse, error) {
	var out EndSessionResponse
	if err := c.post(ctx, id, "end", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func sessionPath(id, action string) string {
	p := "/sessions/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	if body, ok := c.cache.Get(path); ok {
		return events.UnmarshalLoose(body.([]byte), out)
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := events.UnmarshalLoose(body, out); err != nil {
		return errors.Wrapf(err, "decode GET %s", path)
	}
	c.cache.SetDefault(path, body)
	return nil
}

func (c *HTTPClient) post(ctx context.Context, id, action string, out any) error {
	path := sessionPath(id, action)
	body, err := c.do(ctx, http.MethodPost, path, []byte("{}"))
	c.evict(id)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := events.UnmarshalLoose(body, out); err != nil {
		return errors.Wrapf(err, "decode POST %s", path)
	}
	return nil
}

func (c *HTTPClient) evict(id string) {
	prefix := sessionPath(id, "")
	for key := range c.cache.Items() {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			c.cache.Delete(key)
		}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: detail(body)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", method, path)
	}
	return body, nil
}

// detail extracts the "detail" field error responses carry, falling back to
// the raw body.
func detail(body []byte) string {
	var v struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &v) == nil && v.Detail != "" {
		return v.Detail
	}
	return string(body)
}
