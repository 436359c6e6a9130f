package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"pricetracker/pkg/market"
)

// Doer describes an HTTP client.
//
//go:generate mockgen -package=httpxmock -destination=httpxmock/mock_doer.go -source=httpx.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New returns a Client whose transport is tuned for a handful of upstream
// hosts. The per-call deadline comes from the request context, timeout is
// only a hard upper bound.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "pricetracker/1.0"}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}

// GetJSON issues a GET against endpoint and decodes the JSON body into out.
// Failures are returned as *market.FetchError classified by kind.
func GetJSON(ctx context.Context, doer Doer, provider, endpoint string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return market.NewFetchError(provider, market.ErrNetwork, fmt.Errorf("creating request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return Classify(ctx, provider, fmt.Errorf("GET %s: %w", redact(endpoint), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return market.NewFetchError(provider, market.ErrNetwork,
			fmt.Errorf("GET %s -> %d: %s", redact(endpoint), resp.StatusCode, body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return Classify(ctx, provider, err)
		}
		return market.NewFetchError(provider, market.ErrMalformedResponse, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Classify maps a transport error onto the timeout or network kind.
func Classify(ctx context.Context, provider string, err error) *market.FetchError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return market.NewFetchError(provider, market.ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return market.NewFetchError(provider, market.ErrTimeout, err)
	default:
		return market.NewFetchError(provider, market.ErrNetwork, err)
	}
}

// redact drops the query string so api keys never reach the logs.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.RawQuery = ""
	return u.String()
}
