package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestIDHeader carries the per-call request id to the provider.
const RequestIDHeader = "X-Request-ID"

// RoundTripper logs every outbound request with the logger found in the request
// context and stamps the request id header when the context carries one.
type RoundTripper struct {
	next     http.RoundTripper
	fallback *slog.Logger
}

// NewRoundTripper wraps next (http.DefaultTransport when nil).
func NewRoundTripper(next http.RoundTripper, fallback *slog.Logger) *RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if fallback == nil {
		fallback = slog.Default()
	}
	return &RoundTripper{next: next, fallback: fallback}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	logger := FromContextOr(ctx, rt.fallback)

	if id := RequestIDFromContext(ctx); id != "" && req.Header.Get(RequestIDHeader) == "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(ctx)
		req.Header.Set(RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		logger.DebugContext(ctx, "http_request",
			"method", req.Method,
			"host", req.URL.Host,
			"path", req.URL.Path,
			"duration_ms", duration,
			"error", err.Error(),
		)
		return nil, err
	}

	logger.DebugContext(ctx, "http_request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
