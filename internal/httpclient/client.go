// Package httpclient is the outbound HTTP client every stage fetcher
// shares: retry with backoff plus a circuit breaker wrapping net/http,
// honoring HTTPS_PROXY/HTTP_PROXY via the stdlib's own proxy resolution.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asksbj/jpstamp-pipeline/clients"
	"github.com/asksbj/jpstamp-pipeline/l3"
)

var logger = l3.Get()

var _ clients.Client[*http.Request, []byte] = (*Client)(nil)

// Client wraps http.Client with RetryInfo-governed retries guarded by a
// CircuitBreaker, implementing clients.Client[*http.Request, []byte].
type Client struct {
	httpClient *http.Client
	retry      *clients.RetryInfo
	breaker    *clients.CircuitBreaker
}

// Options configures a new Client.
type Options struct {
	Timeout time.Duration
	Retry   *clients.RetryInfo
	Breaker *clients.BreakerInfo
}

// New builds a Client whose underlying http.Transport resolves proxies
// from the environment (HTTPS_PROXY/HTTP_PROXY and lowercase variants),
// matching stdlib's default behavior.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	retry := opts.Retry
	if retry == nil {
		retry = &clients.RetryInfo{MaxRetries: 3, Wait: 500, Exponential: true, Jitter: true}
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		retry:      retry,
		breaker:    clients.NewCircuitBreaker(opts.Breaker),
	}
}

// SetOptions satisfies clients.Client[RQ, RS] by swapping in the retry
// policy and the circuit breaker when options carries them; the
// transport is left untouched.
func (c *Client) SetOptions(options *clients.ClientOptions) {
	if options == nil {
		return
	}
	if options.RetryInfo != nil {
		c.retry = options.RetryInfo
	}
	if options.CircuitBreaker != nil {
		c.breaker = options.CircuitBreaker
	}
}

// Execute performs req, retrying on transport errors and 5xx responses up
// to retry.MaxRetries times, and refuses to attempt the call at all while
// the circuit breaker is open.
func (c *Client) Execute(req *http.Request) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err := c.breaker.CanExecute(); err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}

		if attempt > 0 {
			time.Sleep(c.retry.WaitTime(attempt - 1))
		}

		body, status, err := c.do(req)
		if err == nil && status < 500 {
			c.breaker.OnExecution(true)
			if status >= 400 {
				return body, fmt.Errorf("httpclient: unexpected status %d", status)
			}
			return body, nil
		}

		c.breaker.OnExecution(false)
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("httpclient: server error status %d", status)
		}
		logger.WarnF("httpclient: attempt %d/%d for %s failed: %v", attempt+1, c.retry.MaxRetries+1, req.URL, lastErr)
	}

	return nil, lastErr
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Get is a convenience wrapper building a GET request against ctx.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Execute(req)
}
