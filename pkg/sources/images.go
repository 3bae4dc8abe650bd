package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is a non-2xx answer to an image request.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPImageFetcher downloads page images with a plain GET. It is separate
// from the authenticated API client and sends no extra headers. Transport
// errors and 5xx answers are retried by the resty client.
type HTTPImageFetcher struct {
	client *resty.Client
}

const (
	defaultImageAttempts = 3
	maxRetryWait         = time.Minute
)

type ImageFetcherOption func(*resty.Client)

// WithRetry makes up to attempts requests per image. delay returns the wait
// before the given attempt (2, 3, ...); nil or a zero result retries at once.
func WithRetry(attempts int, delay func(attempt int) time.Duration) ImageFetcherOption {
	return func(client *resty.Client) {
		if attempts < 1 {
			attempts = 1
		}
		client.SetRetryCount(attempts - 1)
		if delay == nil {
			client.SetRetryAfter(nil)
			return
		}
		client.SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			next := 2
			if resp != nil && resp.Request != nil {
				next = resp.Request.Attempt + 1
			}
			return delay(next), nil
		})
	}
}

// NewImageFetcher returns a fetcher; timeout <= 0 disables the per-request
// timeout. Without options each image gets three attempts.
func NewImageFetcher(timeout time.Duration, opts ...ImageFetcherOption) *HTTPImageFetcher {
	client := resty.New().
		SetLogger(silentLogger{}).
		SetRetryCount(defaultImageAttempts - 1).
		SetRetryWaitTime(0).
		SetRetryMaxWaitTime(maxRetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	for _, opt := range opts {
		opt(client)
	}
	return &HTTPImageFetcher{client: client}
}

func (f *HTTPImageFetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

type silentLogger struct{}

func (silentLogger) Errorf(string, ...interface{}) {}
func (silentLogger) Warnf(string, ...interface{})  {}
func (silentLogger) Debugf(string, ...interface{}) {}
