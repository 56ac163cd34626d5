/*
Package yammersdk provides a client SDK for the Yammer REST API.

# Overview

The yammersdk package implements the OAuth2 authorization-code flow against Yammer and a
small set of API operations on top of it: the user directory, impersonation tokens,
messages and invitations. A single Client owns the access token for one application and
one signed-in user.

# Authorization-Code Flow

Send the user to the login URL, receive the code on your redirect URI, then hand the code
to the client:

	client, err := yammersdk.NewClient(yammersdk.Config{
		ClientID:     "my-client-id",
		ClientSecret: "my-client-secret",
		RedirectURI:  "https://app.example.com/callback",
	})

	// Redirect the browser here
	loginURL := client.LoginRedirectURI(state)

	// In the callback handler
	code, state, err := yammersdk.ParseAuthorizationCallback(r.URL.String())
	err = client.SetAuthorizationCode(ctx, code)

SetAuthorizationCode is idempotent for an unchanged code. A different code discards the
current token and exchanges the new code.

If a token was obtained elsewhere, skip the flow entirely:

	client, err := yammersdk.NewClientWithToken(os.Getenv("YAMMER_ACCESS_TOKEN"))

# Token Acquisition

Any authenticated operation invoked while no token is held exchanges the configured code
first, inline, before its own request is sent. Concurrent callers share a single exchange.
A failed exchange fails the operation that triggered it; a later operation may try again.
Tokens are never refreshed: the provider's tokens do not expire in practice and the expiry
field is not interpreted.

# Failure Policy

Every operation follows the client's DecodeMode, on both the blocking and the Future
based surfaces:

  - DecodeLenient (default): transport errors, non-2xx statuses, malformed JSON and
    timeouts are logged and the operation returns an absent result (nil, empty) with a
    nil error.
  - DecodeStrict: the same failures are returned as *APIError, *DecodeError or a wrapped
    transport error.

Input validation errors such as ErrTooFewTopics are returned in both modes.

# Generic Requests

Endpoints the SDK does not wrap can be called through Execute:

	type group struct {
		ID   int64  `json:"id"`
		Name string `json:"full_name"`
	}

	groups, err := yammersdk.Execute[[]group](ctx, client, yammersdk.Request{
		Method:   http.MethodGet,
		Resource: "api/v1/groups.json",
		Payload:  map[string]string{"mine": "1"},
	})

GET and DELETE payloads become query parameters; POST, PUT and PATCH payloads are sent
as JSON.

# Concurrency

A Client is safe for concurrent use. The user directory returned by Users is fetched once
per client and never invalidated.
*/
package yammersdk

// Provider endpoints, relative to the base URL.
const (
	authorizeService           = "/dialog/oauth"
	accessTokenService         = "/oauth2/access_token"
	usersService               = "api/v1/users.json"
	userByEmailService         = "api/v1/users/by_email.json"
	currentUserService         = "api/v1/users/current.json"
	impersonationTokensService = "/api/v1/oauth/tokens.json"
	impersonationGrantService  = "/api/v1/oauth.json"
	invitationsService         = "api/v1/invitations.json"
	messagesService            = "api/v1/messages.json"
	privateMessagesService     = "api/v1/messages/private.json"
)
