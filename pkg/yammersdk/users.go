package yammersdk

import (
	"context"
	"net/http"
	"strings"
)

// Users returns the network's user directory. The first successful call fetches
// it; every later call returns the same snapshot without a request. A failed or
// empty fetch is not remembered.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	c.usersMu.RLock()
	if c.usersLoaded {
		users := c.users
		c.usersMu.RUnlock()
		return users, nil
	}
	c.usersMu.RUnlock()

	// The fill outlives any single caller; each one still returns on its own ctx.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan("users", func() (any, error) {
		c.usersMu.RLock()
		loaded, cached := c.usersLoaded, c.users
		c.usersMu.RUnlock()
		if loaded {
			return cached, nil
		}

		users, err := Execute[[]User](fillCtx, c, Request{
			Method:   http.MethodGet,
			Resource: usersService,
		})
		if err != nil || users == nil {
			return users, err
		}

		c.usersMu.Lock()
		c.users = users
		c.usersLoaded = true
		c.usersMu.Unlock()
		return users, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		users, _ := res.Val.([]User)
		return users, nil
	case <-ctx.Done():
		return nil, c.settle(ctx, usersService, ctx.Err())
	}
}

// UserByEmail looks a user up by email address. It returns nil when no user
// matches.
func (c *Client) UserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmptyEmail
	}

	users, err := Execute[[]User](ctx, c, Request{
		Method:   http.MethodGet,
		Resource: userByEmailService,
		Payload:  map[string]string{"email": email},
	})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	return Execute[*User](ctx, c, Request{
		Method:   http.MethodGet,
		Resource: currentUserService,
	})
}

// CurrentUserOrAuthenticate returns the user reported by the token exchange,
// exchanging the configured code first if no token is held. Clients whose token
// was supplied directly fall back to CurrentUser.
func (c *Client) CurrentUserOrAuthenticate(ctx context.Context) (*User, error) {
	if u := c.sessionUser(); u != nil {
		return u, nil
	}

	token, err := c.AccessToken(ctx)
	if err != nil || token == "" {
		return nil, err
	}

	if u := c.sessionUser(); u != nil {
		return u, nil
	}
	return c.CurrentUser(ctx)
}

func (c *Client) sessionUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.User == nil {
		return nil
	}
	u := *c.session.User
	return &u
}
