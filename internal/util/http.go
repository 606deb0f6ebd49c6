package util

import (
	"net/http"
	"time"
)

const DefaultUserAgent = "mangapdf/1.0 (+https://github.com/brogergvhs/mangapdf)"

type HTTPClientOptions struct {
	Timeout     time.Duration
	UserAgent   string
	MaxConns    int
	Transport   http.RoundTripper
	DebugLogger interface {
		Debugf(string, ...any)
	}
}

func NewHTTPClient(opts HTTPClientOptions) *http.Client {
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 100
	}

	var baseTransport http.RoundTripper
	if opts.Transport != nil {
		baseTransport = opts.Transport
	} else {
		baseTransport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxConns,
			MaxConnsPerHost:     maxConns,
			MaxIdleConnsPerHost: maxConns,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		Transport: roundTripper{
			base: baseTransport,
			ua:   PickUserAgent(opts.UserAgent),
			log:  opts.DebugLogger,
		},
	}

	if opts.DebugLogger != nil {
		opts.DebugLogger.Debugf("HTTP client initialized (timeout=%s, ua=%q, maxConns=%d)",
			opts.Timeout, PickUserAgent(opts.UserAgent), maxConns)
	}

	return client
}

type roundTripper struct {
	base http.RoundTripper
	ua   string
	log  interface{ Debugf(string, ...any) }
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.ua != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", rt.ua)
	}

	if rt.log != nil {
		rt.log.Debugf("HTTP %s %s", req.Method, req.URL.String())
	}

	return rt.base.RoundTrip(req)
}

// PickUserAgent returns override when set. MangaDex rejects spoofed browser agents,
// so the default identifies the tool.
func PickUserAgent(override string) string {
	if override != "" {
		return override
	}

	return DefaultUserAgent
}
