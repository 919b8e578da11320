package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultRateLimitPause = 10 * time.Second
	DefaultTimeout        = 60 * time.Second

	maxErrorBody = 512
)

// Option configures a source client.
type Option func(*clientOptions) error

type clientOptions struct {
	baseURL        string
	httpClient     *http.Client
	rateLimitPause time.Duration
	pagePause      time.Duration
	pageSize       int
	logger         *slog.Logger
}

// WithBaseURL overrides the service endpoint.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) error {
		if url == "" {
			return errors.New("base URL must not be empty")
		}
		o.baseURL = url
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) error {
		if c == nil {
			return errors.New("http client must not be nil")
		}
		o.httpClient = c
		return nil
	}
}

// WithRateLimitPause sets how long to wait after an HTTP 429 before
// retrying the same request.
func WithRateLimitPause(d time.Duration) Option {
	return func(o *clientOptions) error {
		if d < 0 {
			return errors.New("rate limit pause must not be negative")
		}
		o.rateLimitPause = d
		return nil
	}
}

// WithPagePause sets the pause between listing pages.
func WithPagePause(d time.Duration) Option {
	return func(o *clientOptions) error {
		if d < 0 {
			return errors.New("page pause must not be negative")
		}
		o.pagePause = d
		return nil
	}
}

// WithPageSize sets the number of transcripts requested per listing page.
func WithPageSize(n int) Option {
	return func(o *clientOptions) error {
		if n <= 0 {
			return errors.New("page size must be positive")
		}
		o.pageSize = n
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) error {
		o.logger = logger
		return nil
	}
}

func buildOptions(baseURL string, pageSize int, opts []Option) (*clientOptions, error) {
	o := &clientOptions{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		rateLimitPause: DefaultRateLimitPause,
		pageSize:       pageSize,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// jsonClient sends authenticated JSON requests to the service.
type jsonClient struct {
	apiKey         string
	httpClient     *http.Client
	rateLimitPause time.Duration
	logger         *slog.Logger
}

// doJSON sends a request and decodes a 2xx JSON body into out.
//
// A 429 response waits rateLimitPause and resends the same request, for as
// long as ctx allows. A 404 returns errNotFound. Any other failure is
// reported as ErrSourceUnavailable.
func (c *jsonClient) doJSON(ctx context.Context, method, url string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	for {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %s %s: %w", ErrSourceUnavailable, method, url, err)
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: read response: %w", ErrSourceUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited, pausing", "url", url, "pause", c.rateLimitPause)
			if err := sleep(ctx, c.rateLimitPause); err != nil {
				return err
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return errNotFound
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return fmt.Errorf("%w: %s %s: status %d: %s", ErrSourceUnavailable, method, url, resp.StatusCode, truncate(data))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response from %s: %w", ErrSourceUnavailable, url, err)
		}
		return nil
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
