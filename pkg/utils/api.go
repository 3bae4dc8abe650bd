package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNotFound = errors.New("not found")

// APIError is an API failure. Detail carries the backend's "detail" message
// when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// API is the authenticated JSON client for the Digiman REST API. A 401 is
// answered with one token refresh and a replay of the request.
type API struct {
	client      *resty.Client
	refreshPath string

	mu    sync.RWMutex
	token string
}

type APIOption func(*API)

func WithAccessToken(token string) APIOption {
	return func(a *API) { a.token = token }
}

func WithRefreshPath(path string) APIOption {
	return func(a *API) { a.refreshPath = path }
}

func WithTimeout(d time.Duration) APIOption {
	return func(a *API) {
		if d > 0 {
			a.client.SetTimeout(d)
		}
	}
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetLogger(discardLogger{})
	a := &API{client: client, refreshPath: "auth/refresh/"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetAccessToken replaces the bearer token used for later requests.
func (a *API) SetAccessToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Get fetches path and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	resp, err := a.get(ctx, path, params)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusUnauthorized && a.refreshPath != "" {
		if err := a.refresh(ctx); err != nil {
			return fmt.Errorf("failed to refresh access token: %w", err)
		}
		resp, err = a.get(ctx, path, params)
		if err != nil {
			return err
		}
	}

	body := resp.Body()
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Detail: detail(body)}
	}
	if d := detail(body); d != "" {
		return &APIError{StatusCode: resp.StatusCode(), Detail: d}
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (a *API) get(ctx context.Context, path string, params url.Values) (*resty.Response, error) {
	req := a.client.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	if token := a.AccessToken(); token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	return resp, nil
}

func (a *API) refresh(ctx context.Context) error {
	var out struct {
		Access string `json:"access"`
	}
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post(a.refreshPath)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Detail: detail(resp.Body())}
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if out.Access == "" {
		return errors.New("refresh response carried no access token")
	}
	a.SetAccessToken(out.Access)
	return nil
}

// detail extracts the "detail" field of a JSON object body.
func detail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return ""
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

type discardLogger struct{}

func (discardLogger) Errorf(string, ...interface{}) {}
func (discardLogger) Warnf(string, ...interface{})  {}
func (discardLogger) Debugf(string, ...interface{}) {}
