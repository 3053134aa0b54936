// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/echodl/internal/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultDialTimeout           = 10 * time.Second
	defaultTLSHandshakeTimeout   = 10 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 64
	defaultMaxIdleConnsPerHost   = 16

	// UserAgent is sent on every request. Some portal pages serve a reduced
	// layout without the launch form to unknown agents.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) echodl"
)

// Options configures NewClient.
type Options struct {
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
	// Jar holds the session cookies. Nil disables cookies.
	Jar http.CookieJar
	// Limiter paces requests per host. Nil disables pacing.
	Limiter *ratelimit.Limiter
	// Tracing wraps the transport with OpenTelemetry spans.
	Tracing bool
	// Transport overrides the base transport (tests).
	Transport http.RoundTripper
}

// NewClient returns the client used for all portal and lecture-capture
// traffic. Redirects are followed and cookies set along the way land in Jar.
func NewClient(opts Options) *http.Client {
	base := opts.Transport
	if base == nil {
		base = newTransport()
	}

	var rt http.RoundTripper = &decodingTransport{next: base}
	rt = &instrumentedTransport{next: rt, limiter: opts.Limiter}
	if opts.Tracing {
		rt = otelhttp.NewTransport(rt,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "HTTP " + r.Method + " " + r.URL.Host
			}),
		)
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       opts.Jar,
		Transport: rt,
	}
}

// WithJar returns a shallow copy of c that stores cookies in jar. The
// transport (and its connection pool) is shared.
func WithJar(c *http.Client, jar http.CookieJar) *http.Client {
	cp := *c
	cp.Jar = jar
	return &cp
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}
