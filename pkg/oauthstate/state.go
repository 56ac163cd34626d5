// Package oauthstate issues and verifies the opaque "state" value carried through
// the Yammer authorization redirect. States are short-lived HS256 JWTs keyed off the
// application's client secret, so the callback handler can reject forged or expired
// redirects without keeping server-side session storage. Verify is stateless: a
// handler that must also refuse replays records Claims.ID.
package oauthstate

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// DefaultTTL bounds how long a user may sit on the provider's consent screen.
const DefaultTTL = 10 * time.Minute

const (
	keyInfo = "yammer-oauth-state"
	keySize = 32
	leeway  = 5 * time.Second
)

var (
	ErrEmptySecret = errors.New("oauthstate: empty secret")
	ErrInvalid     = errors.New("oauthstate: invalid state")
	ErrExpired     = errors.New("oauthstate: state expired")
)

// Claims are the contents of a state token.
type Claims struct {
	jwt.RegisteredClaims

	// RedirectTo is where the application wants to send the user after login.
	RedirectTo string `json:"rt,omitempty"`
}

// Signer issues and verifies state values for one client id.
type Signer struct {
	key      []byte
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSigner derives an HMAC key from secret with HKDF-SHA256. audience is normally
// the Yammer client id; a zero ttl means DefaultTTL.
func NewSigner(secret, audience string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("oauthstate: derive key: %w", err)
	}

	return &Signer{
		key:      key,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue returns a new signed state value.
func (s *Signer) Issue(redirectTo string) (string, error) {
	jti, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		RedirectTo: redirectTo,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks signature, algorithm, audience and expiry of a state value.
func (s *Signer) Verify(state string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.NewParser(opts...).ParseWithClaims(state, &Claims{}, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
