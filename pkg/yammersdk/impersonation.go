package yammersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
)

// ImpersonationGrants lists the tokens the application holds on behalf of users.
func (c *Client) ImpersonationGrants(ctx context.Context) ([]ImpersonationGrant, error) {
	return Execute[[]ImpersonationGrant](ctx, c, Request{
		Method:   http.MethodGet,
		Resource: impersonationTokensService,
	})
}

type grantRequest struct {
	UserID      int64  `json:"user_id"`
	ConsumerKey string `json:"consumer_key"`
}

// RequestImpersonationGrant asks the provider to issue a token for userID. Only
// verified admins may do this, so refusal is common: any failure is reported as
// ErrGrantUnavailable in strict mode and as a nil grant in lenient mode.
func (c *Client) RequestImpersonationGrant(ctx context.Context, userID int64) (*ImpersonationGrant, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidRequest)
	}
	ctx = c.withRequestID(ctx)

	grant, err := c.requestGrant(ctx, userID)
	if err != nil {
		return nil, c.settle(ctx, impersonationGrantService, fmt.Errorf("%w: %w", ErrGrantUnavailable, err))
	}
	return grant, nil
}

func (c *Client) requestGrant(ctx context.Context, userID int64) (*ImpersonationGrant, error) {
	raw, err := do[json.RawMessage](ctx, c, Request{
		Method:   http.MethodPost,
		Resource: impersonationGrantService,
		Payload:  grantRequest{UserID: userID, ConsumerKey: c.clientID},
	})
	if err != nil {
		return nil, err
	}

	// The endpoint reports refusals in a 2xx body.
	if bytes.Contains(bytes.ToLower(raw), []byte("fail")) {
		return nil, fmt.Errorf("provider refused grant: %s", truncateBody(raw))
	}

	grant := pickGrant(raw, userID)
	if grant == nil {
		return nil, fmt.Errorf("no token for user %d in response", userID)
	}
	return grant, nil
}

// pickGrant accepts either a list of grants or a single grant object. It returns
// the grant for userID; an entry without a user id is taken as that user's only
// when nothing matches. Grants for other users are never returned.
func pickGrant(raw json.RawMessage, userID int64) *ImpersonationGrant {
	var list []ImpersonationGrant
	if err := json.Unmarshal(raw, &list); err != nil {
		var one ImpersonationGrant
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil
		}
		list = []ImpersonationGrant{one}
	}

	var unowned *ImpersonationGrant
	for i := range list {
		if list[i].Token == "" {
			continue
		}
		switch list[i].UserID {
		case userID:
			return &list[i]
		case 0:
			if unowned == nil {
				unowned = &list[i]
			}
		}
	}
	return unowned
}

// ResolveImpersonationToken finds a token that acts as the user with the given
// email. It looks the user up, then searches the existing grants, and only when
// allowRequestNew is set asks the provider for a new grant. An empty token with a
// nil error means no grant is available (lenient mode); strict mode reports
// ErrGrantUnavailable for that case.
func (c *Client) ResolveImpersonationToken(ctx context.Context, email string, allowRequestNew bool) (string, error) {
	ctx = c.withRequestID(ctx)
	logger := slogx.FromContextOr(ctx, c.logger)

	user, err := c.UserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		logger.DebugContext(ctx, "impersonation: user not found")
		return "", c.absent(ErrGrantUnavailable)
	}

	grants, err := c.ImpersonationGrants(ctx)
	if err != nil {
		return "", err
	}
	for _, g := range grants {
		if g.UserID == user.ID && g.Token != "" {
			return g.Token, nil
		}
	}

	if !allowRequestNew {
		return "", c.absent(ErrGrantUnavailable)
	}

	logger.InfoContext(ctx, "impersonation: requesting new grant", "user_id", user.ID)
	grant, err := c.RequestImpersonationGrant(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if grant == nil {
		return "", nil
	}
	return grant.Token, nil
}

// absent returns err in strict mode and nil in lenient mode, for outcomes that are
// a legitimate "nothing found" rather than a failed request.
func (c *Client) absent(err error) error {
	if c.mode == DecodeStrict {
		return err
	}
	return nil
}
