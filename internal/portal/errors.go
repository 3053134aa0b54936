// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ManuGH/echodl/internal/platform/httpx"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotAuthenticated    = errors.New("upstream: not authenticated")
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamStatus      = errors.New("upstream: unexpected status")
	ErrBadResponse         = errors.New("upstream: invalid response format or malformed data")
)

// UpstreamError wraps a sentinel with the failing operation and, when
// available, the HTTP status and a body snippet.
type UpstreamError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // lower-level cause (net.Error, json.SyntaxError, ...)
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("portal: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Classify maps a transport or decoding failure to an *UpstreamError.
// Context cancellation is passed through untouched.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}

	out := &UpstreamError{Operation: operation, Err: err, Sentinel: ErrBadResponse}

	var herr *httpx.HTTPError
	var nerr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &herr):
		out.Status = herr.StatusCode
		out.Body = httpx.Snippet(herr.Body, 200)
		out.Err = nil
		if herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden {
			out.Sentinel = ErrNotAuthenticated
		} else {
			out.Sentinel = ErrUpstreamStatus
		}
	case errors.As(err, &nerr):
		out.Sentinel = ErrUpstreamUnavailable
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		out.Sentinel = ErrBadResponse
	}
	return out
}
