package yammersdk

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
	"github.com/stretchr/testify/require"
)

/*
 * In-process stand-in for the provider. Handlers are keyed by "METHOD /path";
 * every request is counted and its body kept for assertions.
 */

const (
	testClientID     = "cid"
	testClientSecret = "csec"
	testRedirectURI  = "https://app/callback"
)

type recordedRequest struct {
	Header http.Header
	Query  map[string][]string
	Body   []byte
}

type fakeYammer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int
	requests map[string][]recordedRequest
}

func newFakeYammer(t *testing.T) *fakeYammer {
	t.Helper()

	f := &fakeYammer{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
		requests: make(map[string][]recordedRequest),
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.counts[key]++
		f.requests[key] = append(f.requests[key], recordedRequest{
			Header: r.Header.Clone(),
			Query:  r.URL.Query(),
			Body:   body,
		})
		h, ok := f.handlers[key]
		f.mu.Unlock()

		if !ok {
			http.Error(w, `{"response":{"message":"not found"}}`, http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeYammer) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
}

// handleJSON answers method+path with a fixed status and body.
func (f *fakeYammer) handleJSON(method, path string, status int, body string) {
	f.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

// handleToken answers the token exchange with a token derived from the code.
func (f *fakeYammer) handleToken() {
	f.handle(http.MethodPost, "/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":{"token":"tok-`+req["code"]+`","user_id":1},`+
			`"user":{"id":1,"name":"alice","email":"alice@example.com"},"network":{"id":99,"name":"Example"}}`)
	})
}

func (f *fakeYammer) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[method+" "+path]
}

func (f *fakeYammer) lastRequest(method, path string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[method+" "+path]
	require.NotEmpty(f.t, reqs, "no request recorded for %s %s", method, path)
	return reqs[len(reqs)-1]
}

func (f *fakeYammer) config(code string) Config {
	return Config{
		ClientID:          testClientID,
		ClientSecret:      testClientSecret,
		RedirectURI:       testRedirectURI,
		AuthorizationCode: code,
		BaseURL:           f.srv.URL,
	}
}

// newClient returns a client for the authorization-code flow with the given code.
func (f *fakeYammer) newClient(code string, mode DecodeMode, opts ...Option) *Client {
	f.t.Helper()
	cfg := f.config(code)
	cfg.DecodeMode = mode
	c, err := NewClient(cfg, append([]Option{WithLogger(slogx.Discard())}, opts...)...)
	require.NoError(f.t, err)
	return c
}

// newTokenClient returns a client holding a supplied token.
func (f *fakeYammer) newTokenClient(mode DecodeMode, opts ...Option) *Client {
	f.t.Helper()
	base := []Option{WithLogger(slogx.Discard()), WithBaseURL(f.srv.URL), WithDecodeMode(mode)}
	c, err := NewClientWithToken("supplied-token", append(base, opts...)...)
	require.NoError(f.t, err)
	return c
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

// syncBuffer is a goroutine safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
