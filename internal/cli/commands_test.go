package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
	"github.com/aussiebroadwan/yammer/pkg/yammersdk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const usersJSON = `[{"id":1,"name":"alice","email":"alice@example.com"},` +
	`{"id":2,"name":"bob","contact":{"email_addresses":[{"type":"primary","address":"bob@example.com"}]}}]`

func newTestProvider(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, body string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}

	mux.HandleFunc("POST /oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, `{"access_token":{"token":"tok-`+req["code"]+`","user_id":1},`+
			`"user":{"id":1,"name":"alice","email":"alice@example.com"},"network":{"id":99,"name":"Example"}}`)
	})
	mux.HandleFunc("GET /api/v1/users.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, usersJSON)
	})
	mux.HandleFunc("GET /api/v1/users/by_email.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") != "alice@example.com" {
			writeJSON(w, `[]`)
			return
		}
		writeJSON(w, `[{"id":1,"name":"alice","email":"alice@example.com"}]`)
	})
	mux.HandleFunc("GET /api/v1/users/current.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":7,"name":"token-owner","email":"owner@example.com"}`)
	})
	mux.HandleFunc("POST /api/v1/messages.json", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["topic2"]; ok {
			writeJSON(w, `{"messages":[{"id":11,"body":{"plain":"many topics"}}]}`)
			return
		}
		writeJSON(w, `{"messages":[{"id":10,"body":{"plain":"hi"}}]}`)
	})
	mux.HandleFunc("POST /api/v1/invitations.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"status":"ok"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, cfg Config) (*App, *bytes.Buffer) {
	t.Helper()

	if cfg.ClientID == "" {
		cfg.ClientID = "cid"
		cfg.ClientSecret = "csec"
		cfg.RedirectURI = "http://localhost:8765/callback"
	}
	cfg.DecodeMode = "strict"
	cfg.RequestTimeout = 5 * time.Second
	cfg.RateLimit = yammersdk.DefaultLimit

	out := &bytes.Buffer{}
	reg := prometheus.NewRegistry()
	return &App{
		cfg:     cfg,
		logger:  slogx.Discard(),
		out:     out,
		metrics: yammersdk.NewMetrics(reg),
		reg:     reg,
	}, out
}

func runCommand(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()

	stderr := &bytes.Buffer{}
	root := NewRootCommand(app, "v-test")
	root.SetArgs(args)
	root.SetOut(app.out)
	root.SetErr(stderr)
	err := root.ExecuteContext(context.Background())
	return stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	app, out := newTestApp(t, Config{})
	_, err := runCommand(t, app, "version")
	require.NoError(t, err)
	require.Equal(t, "v-test\n", out.String())
}

func TestCommandsRequireCredentials(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t, Config{})
	_, err := runCommand(t, app, "users")
	require.ErrorIs(t, err, errNoCredentials)
}

func TestUsersCommandWithCode(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)
	app, out := newTestApp(t, Config{BaseURL: srv.URL})

	_, err := runCommand(t, app, "users", "--code", "abc123")
	require.NoError(t, err)

	var users []yammersdk.User
	require.NoError(t, json.Unmarshal(out.Bytes(), &users))
	require.Len(t, users, 2)
	require.Equal(t, "bob@example.com", users[1].Email)
}

func TestUserCommand(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		app, out := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})
		_, err := runCommand(t, app, "user", "alice@example.com")
		require.NoError(t, err)
		require.Contains(t, out.String(), `"name": "alice"`)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		app, _ := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})
		_, err := runCommand(t, app, "user", "nobody@example.com")
		require.ErrorContains(t, err, "no user with email")
	})

	t.Run("missing argument", func(t *testing.T) {
		t.Parallel()

		app, _ := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})
		_, err := runCommand(t, app, "user")
		require.Error(t, err)
	})
}

func TestWhoamiUsesSuppliedToken(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)
	app, out := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})

	_, err := runCommand(t, app, "whoami")
	require.NoError(t, err)
	require.Contains(t, out.String(), "token-owner")
}

func TestPostCommand(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr error
	}{
		{"single topic", []string{"post", "hi", "--group", "5", "--topic", "news"}, `"id": 10`, nil},
		{"many topics", []string{"post", "hi", "--topic", "a", "--topic", "b", "--topic", "c"}, `"id": 11`, nil},
		{"two topics", []string{"post", "hi", "--topic", "a", "--topic", "b"}, "", yammersdk.ErrTooFewTopics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, out := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})
			_, err := runCommand(t, app, tt.args...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.want)
		})
	}
}

func TestDMCommandRejectsBadUserID(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t, Config{AccessToken: "tok"})
	_, err := runCommand(t, app, "dm", "bob", "hello")
	require.ErrorContains(t, err, "invalid user id")
}

func TestInviteCommand(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)
	app, out := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})

	_, err := runCommand(t, app, "invite", "new@example.com")
	require.NoError(t, err)
	require.Contains(t, out.String(), `"status": "ok"`)
}

func TestLoginURLCommand(t *testing.T) {
	t.Parallel()

	app, out := newTestApp(t, Config{BaseURL: "https://yammer.test"})
	_, err := runCommand(t, app, "login-url")
	require.NoError(t, err)

	got := out.String()
	require.Contains(t, got, "https://yammer.test/dialog/oauth?")
	require.Contains(t, got, "client_id=cid")
	require.Contains(t, got, "state=")
}

func TestCompleteLogin(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)
	app, out := newTestApp(t, Config{BaseURL: srv.URL})

	c, err := app.codeClient("")
	require.NoError(t, err)
	require.NoError(t, app.completeLogin(context.Background(), c, "abc123"))

	var res loginResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Equal(t, "tok-abc123", res.AccessToken)
	require.NotEmpty(t, res.Fingerprint)
	require.NotNil(t, res.User)
	require.Equal(t, "alice", res.User.Name)
}

func TestMetricsFlag(t *testing.T) {
	t.Parallel()

	srv := newTestProvider(t)
	app, _ := newTestApp(t, Config{BaseURL: srv.URL, AccessToken: "tok"})

	stderr, err := runCommand(t, app, "users", "--metrics")
	require.NoError(t, err)
	require.Contains(t, stderr, "yammer_requests_total")
}
