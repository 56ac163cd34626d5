package yammersdk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// User is a member of a Yammer network. The provider returns users in two shapes
// depending on the endpoint (directory listings vs. token exchange and message
// references); UnmarshalJSON accepts both and normalises them into this type.
type User struct {
	ID        int64  `json:"id"`
	Type      string `json:"type,omitempty"`
	State     string `json:"state,omitempty"`
	Name      string `json:"name"`
	FullName  string `json:"full_name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	// Email is the primary address: the top-level email field when present,
	// otherwise the primary (or first) entry of the contact address list.
	Email string `json:"email,omitempty"`

	JobTitle         string `json:"job_title,omitempty"`
	Department       string `json:"department,omitempty"`
	Location         string `json:"location,omitempty"`
	Summary          string `json:"summary,omitempty"`
	Interests        string `json:"interests,omitempty"`
	Expertise        string `json:"expertise,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	BirthDate        string `json:"birth_date,omitempty"`
	HireDate         string `json:"hire_date,omitempty"`
	KidsNames        string `json:"kids_names,omitempty"`
	SignificantOther string `json:"significant_other,omitempty"`
	GUID             string `json:"guid,omitempty"`
	ActivatedAt      string `json:"activated_at,omitempty"`

	NetworkID      int64    `json:"network_id"`
	NetworkName    string   `json:"network_name,omitempty"`
	NetworkDomains []string `json:"network_domains,omitempty"`

	URL                string   `json:"url,omitempty"`
	WebURL             string   `json:"web_url,omitempty"`
	MugshotURL         string   `json:"mugshot_url,omitempty"`
	MugshotURLTemplate string   `json:"mugshot_url_template,omitempty"`
	ExternalURLs       []string `json:"external_urls,omitempty"`

	Admin           bool `json:"admin"`
	VerifiedAdmin   bool `json:"verified_admin"`
	CanBroadcast    bool `json:"can_broadcast"`
	ShowAskForPhoto bool `json:"show_ask_for_photo"`

	Contact           Contact           `json:"contact"`
	Schools           []School          `json:"schools,omitempty"`
	PreviousCompanies []PreviousCompany `json:"previous_companies,omitempty"`
	Stats             UserStats         `json:"stats"`
	Settings          UserSettings      `json:"settings"`
}

// Contact holds a user's contact details.
type Contact struct {
	IM             InstantMessenger `json:"im"`
	PhoneNumbers   []PhoneNumber    `json:"phone_numbers,omitempty"`
	EmailAddresses []EmailAddress   `json:"email_addresses,omitempty"`
	HasFakeEmail   bool             `json:"has_fake_email"`
}

type InstantMessenger struct {
	Provider string `json:"provider,omitempty"`
	Username string `json:"username,omitempty"`
}

type PhoneNumber struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type EmailAddress struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// School is an education entry. Every field is free text; years arrive as
// numbers or strings.
type School struct {
	School      string `json:"school,omitempty"`
	Degree      string `json:"degree,omitempty"`
	Description string `json:"description,omitempty"`
	StartYear   string `json:"start_year,omitempty"`
	EndYear     string `json:"end_year,omitempty"`
}

// PreviousCompany is an employment history entry.
type PreviousCompany struct {
	Employer    string `json:"employer,omitempty"`
	Position    string `json:"position,omitempty"`
	Description string `json:"description,omitempty"`
	StartYear   string `json:"start_year,omitempty"`
	EndYear     string `json:"end_year,omitempty"`
}

// UserStats merges the directory counters with the message-style counters some
// endpoints return in their place.
type UserStats struct {
	Updates   int `json:"updates"`
	Followers int `json:"followers"`
	Following int `json:"following"`
	Shares    int `json:"shares,omitempty"`

	FirstReplyAt  string `json:"first_reply_at,omitempty"`
	LatestReplyAt string `json:"latest_reply_at,omitempty"`
}

type UserSettings struct {
	XDRProxy string `json:"xdr_proxy,omitempty"`
}

// wireUser is the union of both provider shapes.
type wireUser struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	State     string `json:"state"`
	Name      string `json:"name"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`

	JobTitle         string     `json:"job_title"`
	Department       string     `json:"department"`
	Location         string     `json:"location"`
	Summary          string     `json:"summary"`
	Interests        string     `json:"interests"`
	Expertise        string     `json:"expertise"`
	Timezone         string     `json:"timezone"`
	BirthDate        string     `json:"birth_date"`
	HireDate         flexString `json:"hire_date"`
	KidsNames        string     `json:"kids_names"`
	SignificantOther string     `json:"significant_other"`
	GUID             flexString `json:"guid"`
	ActivatedAt      string     `json:"activated_at"`

	NetworkID      int64    `json:"network_id"`
	NetworkName    string   `json:"network_name"`
	NetworkDomains []string `json:"network_domains"`

	URL                string   `json:"url"`
	WebURL             string   `json:"web_url"`
	MugshotURL         string   `json:"mugshot_url"`
	MugshotURLTemplate string   `json:"mugshot_url_template"`
	ExternalURLs       []string `json:"external_urls"`

	Admin           flexBool `json:"admin"`
	VerifiedAdmin   flexBool `json:"verified_admin"`
	CanBroadcast    flexBool `json:"can_broadcast"`
	ShowAskForPhoto flexBool `json:"show_ask_for_photo"`

	Contact           Contact               `json:"contact"`
	Schools           []wireSchool          `json:"schools"`
	PreviousCompanies []wirePreviousCompany `json:"previous_companies"`
	Stats             wireStats             `json:"stats"`
	Settings          UserSettings          `json:"settings"`
}

type wireSchool struct {
	School      flexString `json:"school"`
	Degree      flexString `json:"degree"`
	Description flexString `json:"description"`
	StartYear   flexString `json:"start_year"`
	EndYear     flexString `json:"end_year"`
}

type wirePreviousCompany struct {
	Employer    flexString `json:"employer"`
	Position    flexString `json:"position"`
	Description flexString `json:"description"`
	StartYear   flexString `json:"start_year"`
	EndYear     flexString `json:"end_year"`
}

type wireStats struct {
	Updates       int        `json:"updates"`
	Followers     *int       `json:"followers"`
	Following     *int       `json:"following"`
	Shares        int        `json:"shares"`
	FirstReplyAt  flexString `json:"first_reply_at"`
	LatestReplyAt flexString `json:"latest_reply_at"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*u = User{
		ID:                 w.ID,
		Type:               w.Type,
		State:              w.State,
		Name:               w.Name,
		FullName:           w.FullName,
		FirstName:          w.FirstName,
		LastName:           w.LastName,
		Email:              primaryEmail(w.Email, w.Contact.EmailAddresses),
		JobTitle:           w.JobTitle,
		Department:         w.Department,
		Location:           w.Location,
		Summary:            w.Summary,
		Interests:          w.Interests,
		Expertise:          w.Expertise,
		Timezone:           w.Timezone,
		BirthDate:          w.BirthDate,
		HireDate:           string(w.HireDate),
		KidsNames:          w.KidsNames,
		SignificantOther:   w.SignificantOther,
		GUID:               string(w.GUID),
		ActivatedAt:        w.ActivatedAt,
		NetworkID:          w.NetworkID,
		NetworkName:        w.NetworkName,
		NetworkDomains:     w.NetworkDomains,
		URL:                w.URL,
		WebURL:             w.WebURL,
		MugshotURL:         w.MugshotURL,
		MugshotURLTemplate: w.MugshotURLTemplate,
		ExternalURLs:       w.ExternalURLs,
		Admin:              bool(w.Admin),
		VerifiedAdmin:      bool(w.VerifiedAdmin),
		CanBroadcast:       bool(w.CanBroadcast),
		ShowAskForPhoto:    bool(w.ShowAskForPhoto),
		Contact:            w.Contact,
		Settings:           w.Settings,
		Stats: UserStats{
			Updates:       w.Stats.Updates,
			Shares:        w.Stats.Shares,
			FirstReplyAt:  string(w.Stats.FirstReplyAt),
			LatestReplyAt: string(w.Stats.LatestReplyAt),
		},
	}
	if w.Stats.Followers != nil {
		u.Stats.Followers = *w.Stats.Followers
	}
	if w.Stats.Following != nil {
		u.Stats.Following = *w.Stats.Following
	}

	for _, s := range w.Schools {
		u.Schools = append(u.Schools, School{
			School:      string(s.School),
			Degree:      string(s.Degree),
			Description: string(s.Description),
			StartYear:   string(s.StartYear),
			EndYear:     string(s.EndYear),
		})
	}
	for _, p := range w.PreviousCompanies {
		u.PreviousCompanies = append(u.PreviousCompanies, PreviousCompany{
			Employer:    string(p.Employer),
			Position:    string(p.Position),
			Description: string(p.Description),
			StartYear:   string(p.StartYear),
			EndYear:     string(p.EndYear),
		})
	}

	return nil
}

func primaryEmail(top string, addrs []EmailAddress) string {
	if top != "" {
		return top
	}
	for _, a := range addrs {
		if a.Type == "primary" && a.Address != "" {
			return a.Address
		}
	}
	for _, a := range addrs {
		if a.Address != "" {
			return a.Address
		}
	}
	return ""
}

// flexBool accepts true/false as JSON booleans or strings. Anything else,
// including null, is false.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(s))
	*b = flexBool(err == nil && parsed)
	return nil
}

// flexString accepts strings, numbers, booleans and null.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}

	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("yammer: expected a scalar, got %.20s", data)
	}
	*s = flexString(data)
	return nil
}
