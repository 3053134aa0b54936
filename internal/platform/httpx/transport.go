// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/ManuGH/echodl/internal/ratelimit"
	"github.com/andybalholm/brotli"
)

// decodingTransport negotiates brotli and gzip and transparently decodes the
// response body. Setting Accept-Encoding ourselves turns off the stdlib's
// implicit gzip handling, so both codings are handled here.
type decodingTransport struct {
	next http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	if req.Header.Get("Accept-Encoding") != "" || req.Method == http.MethodHead {
		return t.next.RoundTrip(req)
	}
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if !hasBody(resp) {
		return resp, nil
	}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		resp.Body = &decodedBody{raw: resp.Body, open: func(r io.Reader) (io.Reader, error) {
			return brotli.NewReader(r), nil
		}}
	case "gzip":
		resp.Body = &decodedBody{raw: resp.Body, open: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// hasBody reports whether resp can carry an entity. Redirects and
// 204/304 responses often repeat Content-Encoding without a body.
func hasBody(resp *http.Response) bool {
	switch {
	case resp.ContentLength == 0:
		return false
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotModified:
		return false
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false
	}
	return true
}

// decodedBody opens its decoder on the first Read, so an empty body reads
// as EOF instead of failing the request.
type decodedBody struct {
	raw  io.ReadCloser
	open func(io.Reader) (io.Reader, error)
	zr   io.Reader
	err  error
}

func (b *decodedBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.zr == nil {
		zr, err := b.open(b.raw)
		if err != nil {
			b.err = err
			return 0, err
		}
		b.zr = zr
	}
	return b.zr.Read(p)
}

func (b *decodedBody) Close() error {
	if c, ok := b.zr.(io.Closer); ok {
		_ = c.Close()
	}
	return b.raw.Close()
}

// instrumentedTransport paces requests per host and counts outcomes.
type instrumentedTransport struct {
	next    http.RoundTripper
	limiter *ratelimit.Limiter
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context(), req.URL.Host); err != nil {
		return nil, err
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		metrics.RecordUpstream(req.URL.Host, 0)
		return nil, err
	}
	metrics.RecordUpstream(req.URL.Host, resp.StatusCode)
	return resp, nil
}
