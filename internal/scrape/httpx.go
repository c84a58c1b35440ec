package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; mootlib/1.0)"

// HTTPClient wraps net/http with the retry and decode behavior all the JSON
// scrapers share. Each scraper owns its own client; nothing is shared
// between platforms.
type HTTPClient struct {
	Platform string
	Client   *http.Client
	Headers  map[string]string
}

// NewHTTPClient builds a client with a per-call timeout.
func NewHTTPClient(platform string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		Platform: platform,
		Client:   &http.Client{Timeout: timeout},
	}
}

// GetJSON fetches url and decodes the response body into dst, retrying
// transient failures with exponential backoff.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{Platform: c.Platform, URL: url, Err: err}
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &FetchError{Platform: c.Platform, URL: url, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// GetText fetches url and returns the body as a string.
func (c *HTTPClient) GetText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{Platform: c.Platform, URL: url, Err: err}
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	var attempt int
	for {
		attempt++
		resp, err := c.Client.Do(req)
		if err != nil {
			if shouldRetry(attempt, 0) && sleepBackoff(ctx, attempt) == nil {
				continue
			}
			return nil, &FetchError{Platform: c.Platform, URL: req.URL.String(), Err: err}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, &FetchError{Platform: c.Platform, URL: req.URL.String(), Err: err}
			}
			return body, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) && sleepBackoff(ctx, attempt) == nil {
			continue
		}
		return nil, &FetchError{
			Platform: c.Platform,
			URL:      req.URL.String(),
			Err:      fmt.Errorf("%s: %s", resp.Status, string(snippet)),
		}
	}
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= 4 {
		return false
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt-1)) * time.Second
	if backoff > 15*time.Second {
		backoff = 15 * time.Second
	}
	return Pause(ctx, backoff)
}

// Pause blocks for d or until ctx is done. Scrapers use it as the fixed
// cool-down between page and item fetches; the pacing is part of the
// protocol contract with the platforms, not an optimization.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
