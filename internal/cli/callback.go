package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/oauthstate"
	"github.com/aussiebroadwan/yammer/pkg/yammersdk"
)

var errStateReused = errors.New("state check failed: state already used")

// RedirectResult is what the local callback server received from the provider.
type RedirectResult struct {
	Code string
	Err  error
}

// callbackServer receives the provider's redirect on a local port and hands the
// authorization code back once the state checks out.
type callbackServer struct {
	path     string
	verifier *oauthstate.Signer
	logger   *slog.Logger
	results  chan RedirectResult

	mu   sync.Mutex
	seen map[string]struct{}
}

func newCallbackServer(path string, verifier *oauthstate.Signer, logger *slog.Logger) *callbackServer {
	if path == "" {
		path = "/"
	}
	return &callbackServer{
		path:     path,
		verifier: verifier,
		logger:   logger,
		results:  make(chan RedirectResult, 1),
		seen:     make(map[string]struct{}),
	}
}

func (s *callbackServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}

	res := s.parse(r)
	if res.Err != nil {
		s.logger.Warn("login callback rejected", "error", res.Err)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Login failed. You can close this window.\n")
	} else {
		_, _ = io.WriteString(w, "Login successful. You can close this window.\n")
	}

	// Only the first callback counts.
	select {
	case s.results <- res:
	default:
	}
}

// claim records a state id and reports whether it was unused.
func (s *callbackServer) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *callbackServer) parse(r *http.Request) RedirectResult {
	code, state, err := yammersdk.ParseAuthorizationCallback(r.URL.String())
	if err != nil {
		return RedirectResult{Err: err}
	}
	claims, err := s.verifier.Verify(state)
	if err != nil {
		return RedirectResult{Err: fmt.Errorf("state check failed: %w", err)}
	}
	if !s.claim(claims.ID) {
		return RedirectResult{Err: errStateReused}
	}
	return RedirectResult{Code: code}
}

// wait serves on ln until a callback arrives, ctx is done or timeout passes.
func (s *callbackServer) wait(ctx context.Context, ln net.Listener, timeout time.Duration) RedirectResult {
	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer server.Close()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server failed", "error", err)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-s.results:
		return res
	case <-timer.C:
		return RedirectResult{Err: fmt.Errorf("no login callback within %v", timeout)}
	case <-ctx.Done():
		return RedirectResult{Err: ctx.Err()}
	}
}
