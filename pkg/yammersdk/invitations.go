package yammersdk

import (
	"context"
	"net/http"
	"strings"
)

// SendInvitation invites email to the signed-in user's network.
func (c *Client) SendInvitation(ctx context.Context, email string) (*InvitationResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmptyEmail
	}

	return Execute[*InvitationResult](ctx, c, Request{
		Method:   http.MethodPost,
		Resource: invitationsService,
		Payload:  map[string]string{"email": email},
	})
}
