package yammersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/cryptox"
	"github.com/aussiebroadwan/yammer/pkg/idx"
	"github.com/aussiebroadwan/yammer/pkg/slogx"
)

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 10 << 20

// Request describes one call to the provider.
type Request struct {
	// Method defaults to GET.
	Method string

	// Resource is the path relative to the base URL, e.g. "api/v1/users.json".
	Resource string

	// Payload is query-encoded for GET and DELETE and JSON-encoded for POST, PUT and
	// PATCH. GET payloads may be url.Values, map[string]string or any value that
	// marshals to a flat JSON object.
	Payload any

	// SkipAuth sends the request without acquiring or attaching a token.
	SkipAuth bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Execute sends req and decodes the JSON response into T, acquiring a token first
// when needed. Failures follow the client's DecodeMode: in lenient mode they are
// logged and the zero value of T is returned with a nil error.
func Execute[T any](ctx context.Context, c *Client, req Request) (T, error) {
	ctx = c.withRequestID(ctx)

	v, err := do[T](ctx, c, req)
	if err != nil {
		var zero T
		return zero, c.settle(ctx, req.Resource, err)
	}
	return v, nil
}

// ExecuteAsync runs Execute on its own goroutine. The request runs under ctx; the
// Future only reports the outcome.
func ExecuteAsync[T any](ctx context.Context, c *Client, req Request) *Future[T] {
	return goFuture(func() (T, error) {
		return Execute[T](ctx, c, req)
	})
}

func (c *Client) withRequestID(ctx context.Context) context.Context {
	if slogx.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return slogx.WithRequestID(ctx, c.logger, idx.New().String())
}

// do is the strict pipeline shared by Execute and the token exchange.
func do[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T

	if strings.TrimSpace(req.Resource) == "" {
		return zero, fmt.Errorf("%w: empty resource", ErrInvalidRequest)
	}
	method := req.method()

	var token string
	if !req.SkipAuth {
		// The exchange must complete before the main request is built.
		t, err := c.ensureToken(ctx)
		if err != nil {
			return zero, err
		}
		token = t
	}

	if err := c.limiter.wait(ctx, req.Resource); err != nil {
		return zero, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newHTTPRequest(ctx, method, req.Resource, req.Payload)
	if err != nil {
		return zero, err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	logger := slogx.FromContextOr(ctx, c.logger)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observeRequest(req.Resource, 0, time.Since(start))
		return zero, fmt.Errorf("yammer: %s %s: %w", method, req.Resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	duration := time.Since(start)
	c.metrics.observeRequest(req.Resource, resp.StatusCode, duration)
	if err != nil {
		return zero, fmt.Errorf("yammer: read %s response: %w", req.Resource, err)
	}

	logger.DebugContext(ctx, "yammer_request",
		"method", method,
		"resource", req.Resource,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"token_fp", cryptox.LogFingerprint(token),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, parseAPIError(req.Resource, resp.StatusCode, body)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return zero, nil
	}

	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return zero, &DecodeError{Resource: req.Resource, Body: truncateBody(body), Err: err}
	}
	return v, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, method, resource string, payload any) (*http.Request, error) {
	u := c.resourceURL(resource)

	var body io.Reader
	if payload != nil {
		switch method {
		case http.MethodGet, http.MethodDelete, http.MethodHead:
			q, err := encodeQuery(payload)
			if err != nil {
				return nil, err
			}
			u.RawQuery = q.Encode()
		default:
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: encode %s payload: %v", ErrInvalidRequest, resource, err)
			}
			body = bytes.NewReader(b)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := slogx.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(slogx.RequestIDHeader, id)
	}

	return req, nil
}

// encodeQuery flattens a payload into query parameters. Structs and maps are
// round-tripped through JSON so their json tags name the parameters; null values
// are skipped and nested values are rejected.
func encodeQuery(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case url.Values:
		return p, nil
	case map[string]string:
		q := url.Values{}
		for k, v := range p {
			q.Set(k, v)
		}
		return q, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrInvalidRequest, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: query payload must be a JSON object: %v", ErrInvalidRequest, err)
	}

	q := url.Values{}
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
		case string:
			q.Set(k, val)
		case json.Number:
			q.Set(k, val.String())
		case bool:
			q.Set(k, strconv.FormatBool(val))
		default:
			return nil, fmt.Errorf("%w: query parameter %q is not a scalar", ErrInvalidRequest, k)
		}
	}
	return q, nil
}

// settle applies the failure policy to an error from do.
func (c *Client) settle(ctx context.Context, resource string, err error) error {
	if errors.Is(err, ErrInvalidRequest) {
		return err
	}

	reason := failureReason(err)
	c.metrics.observeFailure(reason)

	if c.mode == DecodeStrict {
		return err
	}

	attrs := []any{
		"resource", resource,
		"reason", reason,
		"error", err.Error(),
	}
	if body := failureBody(err); body != "" {
		attrs = append(attrs, "body", body)
	}
	slogx.FromContextOr(ctx, c.logger).WarnContext(ctx, "yammer_request_failed", attrs...)
	return nil
}

func failureReason(err error) string {
	var apiErr *APIError
	var decErr *DecodeError
	switch {
	case errors.As(err, &apiErr):
		return "status"
	case errors.As(err, &decErr):
		return "decode"
	case errors.Is(err, ErrNoAuthorizationCode), errors.Is(err, ErrNoAccessToken):
		return "token"
	case errors.Is(err, ErrGrantUnavailable):
		return "grant"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}

func failureBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Body
	}
	return ""
}
