package yammersdk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/idx"
	"github.com/stretchr/testify/require"
)

type testGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"full_name"`
}

func TestExecuteDecoding(t *testing.T) {
	t.Parallel()

	t.Run("decodes into T", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handleJSON(http.MethodGet, "/api/v1/groups.json", http.StatusOK, `[{"id":1,"full_name":"Engineering"}]`)
		c := f.newTokenClient(DecodeStrict)

		groups, err := Execute[[]testGroup](context.Background(), c, Request{Resource: "api/v1/groups.json"})
		require.NoError(t, err)
		require.Equal(t, []testGroup{{ID: 1, Name: "Engineering"}}, groups)

		h := f.lastRequest(http.MethodGet, "/api/v1/groups.json").Header
		require.Equal(t, "application/json", h.Get("Accept"))
		require.NotEmpty(t, h.Get("User-Agent"))
	})

	t.Run("empty body is zero value", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handle(http.MethodDelete, "/api/v1/messages/1", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		c := f.newTokenClient(DecodeStrict)

		g, err := Execute[*testGroup](context.Background(), c, Request{Method: http.MethodDelete, Resource: "api/v1/messages/1"})
		require.NoError(t, err)
		require.Nil(t, g)
	})
}

func TestExecuteFailurePolicy(t *testing.T) {
	t.Parallel()

	endpoints := map[string]string{
		"users":       "/api/v1/users.json",
		"current":     "/api/v1/users/current.json",
		"by_email":    "/api/v1/users/by_email.json",
		"grants":      "/api/v1/oauth/tokens.json",
		"direct":      "/api/v1/messages/private.json",
		"messages":    "/api/v1/messages.json",
		"invitations": "/api/v1/invitations.json",
	}

	malformed := func(t *testing.T, mode DecodeMode) (*fakeYammer, *Client) {
		f := newFakeYammer(t)
		for _, path := range endpoints {
			f.handleJSON(http.MethodGet, path, http.StatusOK, `{"id": 1,`)
			f.handleJSON(http.MethodPost, path, http.StatusOK, `[not json`)
		}
		return f, f.newTokenClient(mode)
	}

	t.Run("malformed JSON is absent in lenient mode", func(t *testing.T) {
		_, c := malformed(t, DecodeLenient)
		ctx := context.Background()

		users, err := c.Users(ctx)
		require.NoError(t, err)
		require.Nil(t, users)

		u, err := c.CurrentUser(ctx)
		require.NoError(t, err)
		require.Nil(t, u)

		u, err = c.UserByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		require.Nil(t, u)

		grants, err := c.ImpersonationGrants(ctx)
		require.NoError(t, err)
		require.Nil(t, grants)

		dms, err := c.DirectMessagesSince(ctx, time.Time{})
		require.NoError(t, err)
		require.Nil(t, dms)

		thread, err := c.PostMessage(ctx, "hello", 42, "general")
		require.NoError(t, err)
		require.Nil(t, thread)

		inv, err := c.SendInvitation(ctx, "b@example.com")
		require.NoError(t, err)
		require.Nil(t, inv)

		token, err := c.ResolveImpersonationToken(ctx, "a@example.com", true)
		require.NoError(t, err)
		require.Empty(t, token)
	})

	t.Run("malformed JSON is a DecodeError in strict mode", func(t *testing.T) {
		_, c := malformed(t, DecodeStrict)

		_, err := c.CurrentUser(context.Background())
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)
		require.Equal(t, currentUserService, decErr.Resource)
		require.Equal(t, `{"id": 1,`, decErr.Body)
	})

	t.Run("lenient failure is logged with body and reason", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusOK, `{"id": "x"}`)
		logger, buf := captureLogger()
		c := f.newTokenClient(DecodeLenient, WithLogger(logger))

		u, err := c.CurrentUser(context.Background())
		require.NoError(t, err)
		require.Nil(t, u)

		out := buf.String()
		require.True(t, containsAll(out, `"msg":"yammer_request_failed"`, `"reason":"decode"`, `"req_id":"`, `\"id\": \"x\"`), out)
		require.NotContains(t, out, "supplied-token")
	})

	t.Run("non-2xx status", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusUnauthorized,
			`{"response":{"message":"Token not found.","code":16,"stat":"fail"}}`)

		strict := f.newTokenClient(DecodeStrict)
		_, err := strict.CurrentUser(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "Token not found.", apiErr.Message)

		lenient := f.newTokenClient(DecodeLenient)
		u, err := lenient.CurrentUser(context.Background())
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handle(http.MethodGet, "/api/v1/users/current.json", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		strict := f.newTokenClient(DecodeStrict, WithRequestTimeout(50*time.Millisecond))

		_, err := strict.CurrentUser(context.Background())
		require.ErrorIs(t, err, context.DeadlineExceeded)

		lenient := f.newTokenClient(DecodeLenient, WithRequestTimeout(50*time.Millisecond))

		u, err := lenient.CurrentUser(context.Background())
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("validation errors are returned in lenient mode", func(t *testing.T) {
		f := newFakeYammer(t)
		c := f.newTokenClient(DecodeLenient)

		_, err := Execute[map[string]any](context.Background(), c, Request{})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = Execute[map[string]any](context.Background(), c, Request{
			Resource: "api/v1/users.json",
			Payload:  map[string]any{"nested": map[string]int{"a": 1}},
		})
		require.ErrorIs(t, err, ErrInvalidRequest)
		require.Zero(t, f.count(http.MethodGet, "/api/v1/users.json"))
	})
}

func TestExecutePayloadEncoding(t *testing.T) {
	t.Parallel()

	type lookup struct {
		Email string  `json:"email"`
		Page  int     `json:"page"`
		Ghost *string `json:"ghost"`
		Admin bool    `json:"admin"`
	}

	f := newFakeYammer(t)
	f.handleJSON(http.MethodGet, "/api/v1/users.json", http.StatusOK, `[]`)
	f.handleJSON(http.MethodPost, "/api/v1/invitations.json", http.StatusOK, `{"status":"ok"}`)
	c := f.newTokenClient(DecodeStrict)
	ctx := context.Background()

	t.Run("GET struct payload becomes query", func(t *testing.T) {
		_, err := Execute[[]User](ctx, c, Request{
			Resource: usersService,
			Payload:  lookup{Email: "a@example.com", Page: 2, Admin: true},
		})
		require.NoError(t, err)

		q := url.Values(f.lastRequest(http.MethodGet, "/api/v1/users.json").Query)
		require.Equal(t, "a@example.com", q.Get("email"))
		require.Equal(t, "2", q.Get("page"))
		require.Equal(t, "true", q.Get("admin"))
		require.False(t, q.Has("ghost"))
	})

	t.Run("GET url.Values payload", func(t *testing.T) {
		_, err := Execute[[]User](ctx, c, Request{
			Resource: usersService,
			Payload:  url.Values{"letter": {"a"}},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, f.lastRequest(http.MethodGet, "/api/v1/users.json").Query["letter"])
	})

	t.Run("POST payload becomes JSON body", func(t *testing.T) {
		_, err := Execute[*InvitationResult](ctx, c, Request{
			Method:   http.MethodPost,
			Resource: invitationsService,
			Payload:  map[string]any{"email": "b@example.com", "nested": map[string]int{"a": 1}},
		})
		require.NoError(t, err)

		req := f.lastRequest(http.MethodPost, "/api/v1/invitations.json")
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))
		require.Empty(t, req.Query)
		body := decodeBody(t, req.Body)
		require.Equal(t, "b@example.com", body["email"])
		require.Equal(t, map[string]any{"a": float64(1)}, body["nested"])
	})
}

func TestExecuteRequestID(t *testing.T) {
	t.Parallel()

	f := newFakeYammer(t)
	f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusOK, `{"id":1}`)
	c := f.newTokenClient(DecodeStrict)

	_, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	first := f.lastRequest(http.MethodGet, "/api/v1/users/current.json").Header.Get("X-Request-ID")
	_, err = idx.Parse(first)
	require.NoError(t, err)

	_, err = c.CurrentUser(context.Background())
	require.NoError(t, err)
	second := f.lastRequest(http.MethodGet, "/api/v1/users/current.json").Header.Get("X-Request-ID")
	require.NotEqual(t, first, second)
}

func TestExecuteAsync(t *testing.T) {
	t.Parallel()

	t.Run("same policy as the blocking path", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusOK, `not json`)
		ctx := context.Background()

		strict := f.newTokenClient(DecodeStrict)
		_, err := ExecuteAsync[*User](ctx, strict, Request{Resource: currentUserService}).Await(ctx)
		var decErr *DecodeError
		require.ErrorAs(t, err, &decErr)

		lenient := f.newTokenClient(DecodeLenient)
		u, err := ExecuteAsync[*User](ctx, lenient, Request{Resource: currentUserService}).Await(ctx)
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("result and Done", func(t *testing.T) {
		f := newFakeYammer(t)
		f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusOK, `{"id":9,"name":"zed"}`)
		c := f.newTokenClient(DecodeStrict)

		fut := ExecuteAsync[*User](context.Background(), c, Request{Resource: currentUserService})
		select {
		case <-fut.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("future did not complete")
		}
		u, err := fut.Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, "zed", u.Name)
	})

	t.Run("await gives up on its own context", func(t *testing.T) {
		f := newFakeYammer(t)
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })
		f.handle(http.MethodGet, "/api/v1/users/current.json", func(w http.ResponseWriter, _ *http.Request) {
			<-release
		})
		c := f.newTokenClient(DecodeStrict)

		fut := ExecuteAsync[*User](context.Background(), c, Request{Resource: currentUserService})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := fut.Await(ctx)
		require.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	f := newFakeYammer(t)
	f.handleJSON(http.MethodGet, "/api/v1/users/current.json", http.StatusOK, `{"id":1}`)
	f.handleJSON(http.MethodGet, "/api/v1/messages/private.json", http.StatusOK, `{"messages":[]}`)
	c := f.newTokenClient(DecodeStrict, WithRateLimit(BucketDefault, RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Burst:             1,
	}))

	_, err := c.CurrentUser(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.CurrentUser(ctx)
	require.Error(t, err)
	require.Equal(t, 1, f.count(http.MethodGet, "/api/v1/users/current.json"))

	// The messages bucket is not configured, so it is not throttled.
	_, err = c.DirectMessages(context.Background())
	require.NoError(t, err)
}

func TestBucketFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, BucketMessages, bucketFor(messagesService))
	require.Equal(t, BucketMessages, bucketFor("/"+privateMessagesService))
	require.Equal(t, BucketDefault, bucketFor(usersService))
	require.Equal(t, BucketDefault, bucketFor(accessTokenService))
}

func TestRateLimitConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultLimit.Validate())
	require.NoError(t, MessagesLimit.Validate())
	require.Error(t, RateLimitConfig{Window: time.Second, Burst: 1}.Validate())
	require.Error(t, RateLimitConfig{RequestsPerWindow: 1, Burst: 1}.Validate())
	require.Error(t, RateLimitConfig{RequestsPerWindow: 1, Window: time.Second}.Validate())
}
