package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxManifestSize is the largest manifest accepted. Larger bodies are an error.
const maxManifestSize = 1 << 20

const userAgent = "extupdate"

// Response is the outcome of one manifest fetch.
type Response struct {
	// Body is the full manifest body.
	Body []byte

	// StatusCode is zero when no response was received.
	StatusCode int

	// Latency covers the whole fetch, including reading the body.
	Latency time.Duration

	// Error is a transport, read or size error. A non-2xx status is not
	// an error here; the caller judges StatusCode.
	Error error
}

// Client fetches release manifests. Each fetch carries its own timeout,
// so extensions with different release hosts do not share one deadline.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client with its own copy of the default transport.
func NewClient() *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &Client{httpClient: &http.Client{Transport: transport}}
}

// Fetch GETs url with the given headers and returns the manifest.
// Failures are reported in [Response.Error].
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	fail := func(code int, err error) Response {
		return Response{StatusCode: code, Latency: time.Since(start), Error: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	switch {
	case err != nil:
		return fail(resp.StatusCode, fmt.Errorf("failed to read manifest: %w", err))
	case len(body) > maxManifestSize:
		return fail(resp.StatusCode, fmt.Errorf("manifest larger than %d bytes", maxManifestSize))
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close drops idle connections. It is safe on a nil Client and may be
// called more than once.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
