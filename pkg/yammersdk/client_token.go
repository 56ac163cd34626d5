package yammersdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/yammer/pkg/cryptox"
	"github.com/aussiebroadwan/yammer/pkg/slogx"
)

var errCodeSuperseded = errors.New("yammer: authorization code changed during exchange")

// Token returns the current access token without touching the network. The zero
// value means no token is held.
func (c *Client) Token() AccessToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// TokenState reports where the client is in its token lifecycle.
func (c *Client) TokenState() TokenState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Network returns the network reported by the last token exchange, or nil.
func (c *Client) Network() *Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.Network == nil {
		return nil
	}
	n := *c.session.Network
	return &n
}

// AccessToken returns the access token, exchanging the configured authorization
// code first if none is held. In lenient mode a failed exchange yields "" and a
// nil error.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	ctx = c.withRequestID(ctx)

	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", c.settle(ctx, accessTokenService, err)
	}
	return token, nil
}

// SetAuthorizationCode records the code returned by the provider's redirect and
// exchanges it for a token. Supplying the code that is already held (or being
// exchanged) does nothing; a different code discards the current token first.
func (c *Client) SetAuthorizationCode(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty authorization code", ErrInvalidRequest)
	}

	c.mu.Lock()
	if c.code == code && c.state != TokenStateNone {
		c.mu.Unlock()
		return nil
	}
	c.code = code
	c.token = AccessToken{}
	c.state = TokenStateNone
	c.session = nil
	c.mu.Unlock()

	ctx = c.withRequestID(ctx)
	if _, err := c.exchange(ctx, code); err != nil {
		return c.settle(ctx, accessTokenService, err)
	}
	return nil
}

// ensureToken returns the held token or exchanges the configured code for one. If
// the code is replaced while waiting, the wait moves to the new code once.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	var err error
	for range 2 {
		c.mu.RLock()
		if c.state == TokenStateHeld {
			token := c.token.Value
			c.mu.RUnlock()
			return token, nil
		}
		code := c.code
		c.mu.RUnlock()

		if code == "" {
			return "", ErrNoAuthorizationCode
		}

		var token string
		token, err = c.exchange(ctx, code)
		if !errors.Is(err, errCodeSuperseded) {
			return token, err
		}
	}
	return "", err
}

// exchange performs one exchange per code no matter how many callers ask for it
// concurrently. The shared exchange is detached from the first caller's
// cancellation; each caller still stops waiting when its own ctx is done.
func (c *Client) exchange(ctx context.Context, code string) (string, error) {
	exchangeCtx := context.WithoutCancel(ctx)

	ch := c.flight.DoChan("token:"+code, func() (any, error) {
		return c.exchangeCode(exchangeCtx, code)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("yammer: waiting for token exchange: %w", ctx.Err())
	}
}

func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	c.mu.Lock()
	if c.code != code {
		c.mu.Unlock()
		return "", errCodeSuperseded
	}
	if c.state == TokenStateHeld {
		token := c.token.Value
		c.mu.Unlock()
		return token, nil
	}
	c.state = TokenStateAcquiring
	c.mu.Unlock()

	logger := slogx.FromContextOr(ctx, c.logger)

	env, err := do[*tokenEnvelope](ctx, c, Request{
		Method:   c.tokenMethod,
		Resource: accessTokenService,
		Payload: tokenExchangeRequest{
			Code:         code,
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			RedirectURI:  c.redirectURI,
			GrantType:    "authorization_code",
		},
		SkipAuth: true,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer code owns the state now; this result is stale.
	if c.code != code {
		c.metrics.observeTokenExchange("superseded")
		return "", errCodeSuperseded
	}

	if err != nil {
		c.state = TokenStateNone
		c.metrics.observeTokenExchange("error")
		logger.WarnContext(ctx, "token exchange failed", "error", err.Error())
		return "", fmt.Errorf("yammer: token exchange: %w", err)
	}

	if env == nil || env.AccessToken == nil || env.AccessToken.Token == "" {
		c.state = TokenStateNone
		c.metrics.observeTokenExchange("no_token")
		logger.WarnContext(ctx, "token exchange returned no token")
		return "", ErrNoAccessToken
	}

	c.token = AccessToken{Value: env.AccessToken.Token, Source: TokenExchanged}
	c.state = TokenStateHeld
	c.session = env
	c.metrics.observeTokenExchange("success")

	attrs := []any{"token_fp", cryptox.LogFingerprint(c.token.Value)}
	if env.User != nil {
		attrs = append(attrs, "user_id", env.User.ID)
	}
	logger.InfoContext(ctx, "token acquired", attrs...)

	return c.token.Value, nil
}
