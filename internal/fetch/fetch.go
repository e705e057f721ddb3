// Package fetch wraps the HTTP transport used by every registrar adapter:
// bounded retries with exponential backoff, context cancellation, and a
// uniform error for non-2xx responses.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options controls the retry budget and timeouts of a Client.
type Options struct {
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// Client performs GET/POST requests with retries. Transient failures
// (transport errors, 5xx, 429) are retried; 4xx responses are not.
type Client struct {
	r *resty.Client
}

func New(opts Options) *Client {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "registrar-pricelist"
	}

	r := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("User-Agent", opts.UserAgent)

	r.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500 || res.StatusCode() == 429
	})

	return &Client{r: r}
}

// HTTPError is returned for non-2xx responses after the retry budget is
// exhausted. Body is truncated for diagnostics.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

const maxErrBody = 512

// GetText performs a GET and returns the response body as text.
func (c *Client) GetText(ctx context.Context, rawURL string) (string, error) {
	res, err := c.r.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", rawURL, err)
	}
	if res.IsError() {
		return "", &HTTPError{
			StatusCode: res.StatusCode(),
			URL:        rawURL,
			Body:       truncate(res.String(), maxErrBody),
		}
	}
	return res.String(), nil
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	res, err := c.r.R().SetContext(ctx).SetResult(out).Get(rawURL)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	if res.IsError() {
		return &HTTPError{
			StatusCode: res.StatusCode(),
			URL:        rawURL,
			Body:       truncate(res.String(), maxErrBody),
		}
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RedactValue partially masks a credential, keeping a few leading and
// trailing characters so operators can still tell keys apart in logs.
func RedactValue(s string) string {
	if len(s) <= 6 {
		return "..."
	}
	return s[:3] + "..." + s[len(s)-2:]
}

// MaskURL rewrites query parameters for logging: values of secretParams are
// partially redacted and values of ipParams are replaced outright. The URL is
// returned unchanged when it does not parse.
func MaskURL(rawURL string, secretParams, ipParams []string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for _, p := range secretParams {
		if v := q.Get(p); v != "" {
			q.Set(p, RedactValue(v))
		}
	}
	for _, p := range ipParams {
		if q.Get(p) != "" {
			q.Set(p, "x.x.x.x")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
