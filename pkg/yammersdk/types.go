package yammersdk

// TokenSource records where a client's access token came from.
type TokenSource int

const (
	TokenSourceNone TokenSource = iota
	// TokenSupplied tokens were handed to NewClientWithToken.
	TokenSupplied
	// TokenExchanged tokens were obtained by exchanging an authorization code.
	TokenExchanged
)

func (s TokenSource) String() string {
	switch s {
	case TokenSupplied:
		return "supplied"
	case TokenExchanged:
		return "exchanged"
	default:
		return "none"
	}
}

// AccessToken is an opaque bearer token plus its provenance.
type AccessToken struct {
	Value  string
	Source TokenSource
}

// IsZero reports whether no token is held.
func (t AccessToken) IsZero() bool { return t.Value == "" }

// TokenState is the state of a client's token lifecycle.
type TokenState int

const (
	TokenStateNone TokenState = iota
	TokenStateAcquiring
	TokenStateHeld
)

func (s TokenState) String() string {
	switch s {
	case TokenStateAcquiring:
		return "acquiring"
	case TokenStateHeld:
		return "held"
	default:
		return "none"
	}
}

// ImpersonationGrant is a token record as returned by the token listing endpoint.
// The token exchange returns the same record for the signed-in user.
type ImpersonationGrant struct {
	UserID           int64  `json:"user_id"`
	NetworkID        int64  `json:"network_id"`
	NetworkName      string `json:"network_name,omitempty"`
	NetworkPermalink string `json:"network_permalink,omitempty"`
	Token            string `json:"token"`
	Secret           string `json:"secret,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	AuthorizedAt     string `json:"authorized_at,omitempty"`
	ExpiresAt        any    `json:"expires_at,omitempty"`

	ViewMessages        bool `json:"view_messages"`
	ViewMembers         bool `json:"view_members"`
	ViewGroups          bool `json:"view_groups"`
	ViewSubscriptions   bool `json:"view_subscriptions"`
	ViewTags            bool `json:"view_tags"`
	ModifyMessages      bool `json:"modify_messages"`
	ModifySubscriptions bool `json:"modify_subscriptions"`
}

// Network is the Yammer network a user belongs to.
type Network struct {
	ID                        int64               `json:"id"`
	Name                      string              `json:"name"`
	Permalink                 string              `json:"permalink,omitempty"`
	WebURL                    string              `json:"web_url,omitempty"`
	Type                      string              `json:"type,omitempty"`
	CreatedAt                 string              `json:"created_at,omitempty"`
	Moderated                 bool                `json:"moderated"`
	Paid                      bool                `json:"paid"`
	Community                 bool                `json:"community"`
	IsChatEnabled             bool                `json:"is_chat_enabled"`
	IsGroupEnabled            bool                `json:"is_group_enabled"`
	IsOrgChartEnabled         bool                `json:"is_org_chart_enabled"`
	ShowUpgradeBanner         bool                `json:"show_upgrade_banner"`
	HeaderBackgroundColor     string              `json:"header_background_color,omitempty"`
	HeaderTextColor           string              `json:"header_text_color,omitempty"`
	NavigationBackgroundColor string              `json:"navigation_background_color,omitempty"`
	NavigationTextColor       string              `json:"navigation_text_color,omitempty"`
	ProfileFieldsConfig       ProfileFieldsConfig `json:"profile_fields_config"`
}

type ProfileFieldsConfig struct {
	EnableWorkPhone   bool `json:"enable_work_phone"`
	EnableMobilePhone bool `json:"enable_mobile_phone"`
	EnableJobTitle    bool `json:"enable_job_title"`
}

// InvitationResult is the provider's answer to an invitation.
type InvitationResult struct {
	Status string `json:"status"`
}

// tokenEnvelope is the token exchange response.
type tokenEnvelope struct {
	AccessToken *ImpersonationGrant `json:"access_token"`
	User        *User               `json:"user"`
	Network     *Network            `json:"network"`
}

// tokenExchangeRequest carries the authorization-code grant.
type tokenExchangeRequest struct {
	Code         string `json:"code"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
	GrantType    string `json:"grant_type"`
}
