// Package httpkit provides shared HTTP client construction and utilities
// for outbound calls to MCP servers. It sets connection-level timeouts
// and pool limits, injects the User-Agent and any configured static
// headers, and leaves request deadlines to the caller's context so that
// long-lived event streams are not cut off mid-response.
package httpkit

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nugget/thane-mcpbridge/internal/buildinfo"
)

// Default connection-level timeouts and pool limits for the shared transport.
const (
	// DefaultDialTimeout is the maximum time to establish a TCP connection.
	DefaultDialTimeout = 10 * time.Second

	// DefaultKeepAlive is the interval between TCP keep-alive probes.
	DefaultKeepAlive = 30 * time.Second

	// DefaultTLSHandshakeTimeout is the maximum time for the TLS handshake.
	DefaultTLSHandshakeTimeout = 10 * time.Second

	// DefaultIdleConnTimeout is how long idle connections stay in the pool.
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultMaxIdleConns is the total number of idle connections across all hosts.
	DefaultMaxIdleConns = 20

	// DefaultMaxIdleConnsPerHost is the per-host idle connection limit.
	DefaultMaxIdleConnsPerHost = 5
)

// ClientOption configures a Client built by NewClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout       time.Duration
	userAgent     string
	skipUserAgent bool
	headers       map[string]string
	transport     http.RoundTripper
	logger        *slog.Logger
}

// WithTimeout sets the overall request timeout on the http.Client.
// The default is zero: requests are bounded only by their context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithoutUserAgent disables the automatic User-Agent roundtripper.
func WithoutUserAgent() ClientOption {
	return func(c *clientConfig) { c.skipUserAgent = true }
}

// WithHeaders sets static headers (e.g. Authorization) added to every
// request that does not already carry them.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *clientConfig) { c.headers = h }
}

// WithTransport overrides the default shared transport. Tests use this
// to route requests through an httptest server's client transport.
func WithTransport(t http.RoundTripper) ClientOption {
	return func(c *clientConfig) { c.transport = t }
}

// WithLogger sets a logger for request diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

// NewTransport creates an http.Transport with sensible connection-level
// defaults. No response header timeout is set: streaming servers may
// legitimately hold a response open before the first byte.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}
}

// NewClient builds an *http.Client with the shared transport and
// good-citizen defaults (User-Agent, connection limits).
func NewClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{
		userAgent: buildinfo.UserAgent(),
	}
	for _, o := range opts {
		o(cfg)
	}

	var rt http.RoundTripper = cfg.transport
	if rt == nil {
		rt = NewTransport()
	}

	if len(cfg.headers) > 0 {
		rt = &headerTransport{base: rt, headers: cfg.headers}
	}

	if !cfg.skipUserAgent {
		rt = &userAgentTransport{
			base: rt,
			ua:   cfg.userAgent,
		}
	}

	if cfg.logger != nil {
		rt = &logTransport{base: rt, logger: cfg.logger}
	}

	return &http.Client{
		Timeout:   cfg.timeout,
		Transport: rt,
	}
}

// userAgentTransport injects the User-Agent header on every request
// unless one is already set.
type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// Clone the request to avoid mutating the original, per RoundTripper contract.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

// headerTransport adds static headers that the request does not set itself.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := false
	for k, v := range t.headers {
		if req.Header.Get(k) != "" {
			continue
		}
		if !cloned {
			req = req.Clone(req.Context())
			cloned = true
		}
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// logTransport records one debug line per round trip.
type logTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("http request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"elapsed", time.Since(start),
			"error", err,
		)
		return resp, err
	}
	t.logger.Debug("http request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// DrainAndClose reads up to limit bytes from rc and closes it.
// Use to ensure HTTP connections are returned to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody reads up to limit bytes from rc for error messages,
// then drains and closes the remainder to allow connection reuse.
// Returns an empty string if rc is nil.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	// Drain remainder so the connection can be reused, then close.
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}
