package yammersdk

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the provider's public endpoint.
	DefaultBaseURL = "https://www.yammer.com"

	// DefaultRequestTimeout bounds a single round trip, including the token exchange
	// triggered inline by an operation.
	DefaultRequestTimeout = 30 * time.Second

	defaultUserAgent = "aussiebroadwan-yammer-sdk/1.0"
)

// DecodeMode selects how communication and decoding failures reach callers. The same
// mode applies to the blocking and non-blocking surfaces.
type DecodeMode int

const (
	// DecodeLenient logs the failure and returns an absent result (nil pointer, nil
	// slice or empty string) with a nil error.
	DecodeLenient DecodeMode = iota

	// DecodeStrict returns the failure as an error (*APIError, *DecodeError,
	// ErrNoAccessToken, ...).
	DecodeStrict
)

func (m DecodeMode) String() string {
	switch m {
	case DecodeLenient:
		return "lenient"
	case DecodeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseDecodeMode maps "lenient" / "strict" to a DecodeMode.
func ParseDecodeMode(s string) (DecodeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return DecodeLenient, nil
	case "strict":
		return DecodeStrict, nil
	default:
		return DecodeLenient, fmt.Errorf("yammer: unknown decode mode %q", s)
	}
}

// Config holds the application's registration with the provider plus transport
// settings. ClientID and ClientSecret are copied into the Client at construction
// and never change afterwards.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthorizationCode is optional at construction; it normally arrives later via
	// SetAuthorizationCode once the user comes back from the login redirect.
	AuthorizationCode string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// TokenExchangeMethod is POST unless set to GET for legacy deployments.
	TokenExchangeMethod string

	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration

	DecodeMode DecodeMode

	// UserAgent overrides the User-Agent header.
	UserAgent string
}

// Validate checks the fields needed for the authorization-code flow.
func (c Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "ClientID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "ClientSecret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "RedirectURI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("yammer: missing required config: %s", strings.Join(missing, ", "))
	}

	switch strings.ToUpper(c.TokenExchangeMethod) {
	case "", http.MethodPost, http.MethodGet:
	default:
		return fmt.Errorf("yammer: TokenExchangeMethod must be GET or POST, got %q", c.TokenExchangeMethod)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("yammer: RequestTimeout must not be negative, got %v", c.RequestTimeout)
	}
	if c.DecodeMode != DecodeLenient && c.DecodeMode != DecodeStrict {
		return fmt.Errorf("yammer: invalid DecodeMode %d", c.DecodeMode)
	}
	return nil
}

// Option customises a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *Metrics
	rateLimits map[string]RateLimitConfig
	baseURL    string
	mode       *DecodeMode
	timeout    time.Duration
}

// WithHTTPClient sets the HTTP client used for all calls. The client is copied and
// its transport wrapped for request logging; the caller's value is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records request metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimit throttles requests in the given bucket (BucketDefault or
// BucketMessages) on the client side.
func WithRateLimit(bucket string, cfg RateLimitConfig) Option {
	return func(o *options) {
		if o.rateLimits == nil {
			o.rateLimits = make(map[string]RateLimitConfig)
		}
		o.rateLimits[bucket] = cfg
	}
}

// WithBaseURL points the client at another host, typically a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithDecodeMode overrides Config.DecodeMode.
func WithDecodeMode(m DecodeMode) Option {
	return func(o *options) { o.mode = &m }
}

// WithRequestTimeout overrides Config.RequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Client is a Yammer REST client. It owns the OAuth2 token lifecycle for one
// application/user pair and is safe for concurrent use.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string

	baseURL     *url.URL
	tokenMethod string
	timeout     time.Duration
	mode        DecodeMode
	userAgent   string

	httpClient *http.Client
	logger     *slog.Logger
	limiter    *limiter
	metrics    *Metrics

	mu      sync.RWMutex
	code    string
	token   AccessToken
	state   TokenState
	session *tokenEnvelope

	usersMu     sync.RWMutex
	users       []User
	usersLoaded bool

	flight singleflight.Group
}

// NewClient creates a client for the authorization-code flow.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := newClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.code = cfg.AuthorizationCode
	return c, nil
}

// NewClientWithToken creates a client around an access token obtained elsewhere.
// No token exchange is ever performed by such a client.
func NewClientWithToken(token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("yammer: empty access token")
	}

	c, err := newClient(Config{}, opts...)
	if err != nil {
		return nil, err
	}
	c.token = AccessToken{Value: token, Source: TokenSupplied}
	c.state = TokenStateHeld
	return c, nil
}

func newClient(cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	rawBase := cfg.BaseURL
	if o.baseURL != "" {
		rawBase = o.baseURL
	}
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("yammer: invalid base URL: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("yammer: base URL must be absolute, got %q", rawBase)
	}

	method := strings.ToUpper(cfg.TokenExchangeMethod)
	if method == "" {
		method = http.MethodPost
	}

	timeout := cfg.RequestTimeout
	if o.timeout > 0 {
		timeout = o.timeout
	}
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	mode := cfg.DecodeMode
	if o.mode != nil {
		mode = *o.mode
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	hc.Transport = slogx.NewRoundTripper(hc.Transport, logger)

	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		baseURL:      base,
		tokenMethod:  method,
		timeout:      timeout,
		mode:         mode,
		userAgent:    userAgent,
		httpClient:   hc,
		logger:       logger,
		limiter:      newLimiter(o.rateLimits),
		metrics:      o.metrics,
		state:        TokenStateNone,
	}, nil
}

// ClientID returns the application's client id.
func (c *Client) ClientID() string { return c.clientID }

// DecodeMode reports the failure policy in effect.
func (c *Client) DecodeMode() DecodeMode { return c.mode }

// resourceURL joins a provider path onto the base URL with exactly one slash. The
// provider's own paths are inconsistent about the leading slash.
func (c *Client) resourceURL(resource string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(c.baseURL.Path, "/") + "/" + strings.TrimPrefix(resource, "/")
	u.RawQuery = ""
	return &u
}
