package yammersdk

import (
	"fmt"
	"net/url"
)

// LoginRedirectURI builds the provider's authorization URL the end user is sent to
// at the start of the authorization-code flow. The query carries exactly client_id,
// redirect_uri and, when non-empty, state. No token is required and no request is
// made.
//
// Example:
//
//	state, _ := signer.Issue("/")
//	http.Redirect(w, r, client.LoginRedirectURI(state), http.StatusFound)
func (c *Client) LoginRedirectURI(state string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)

	if state != "" {
		params.Set("state", state)
	}

	u := c.resourceURL(authorizeService)
	u.RawQuery = params.Encode()
	return u.String()
}

// ParseAuthorizationCallback parses the URL the provider redirected back to.
// It returns the authorization code and the state, or an error if the callback
// carries an error response (for example when the user denied access).
//
// Example:
//
//	code, state, err := yammersdk.ParseAuthorizationCallback(r.URL.String())
//	if err != nil {
//	    // user denied authorization
//	}
//	// verify state, then client.SetAuthorizationCode(ctx, code)
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback URL: %w", err)
	}

	query := u.Query()

	if errorCode := query.Get("error"); errorCode != "" {
		errorDesc := query.Get("error_description")
		return "", "", fmt.Errorf("authorization error: %s - %s", errorCode, errorDesc)
	}

	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback missing authorization code")
	}

	state = query.Get("state")

	return code, state, nil
}
