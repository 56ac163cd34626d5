package yammersdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Topic limits for NewTopicsMessage.
const (
	MinTopicsMessageTopics = 3
	MaxMessageTopics       = 20
)

// OpenGraph attaches an Open Graph object to a posted message.
type OpenGraph struct {
	// URL is the canonical URL of the object and is required by the provider.
	URL         string
	Title       string
	Image       string
	Description string
	ObjectType  string
	SiteName    string
	Meta        string

	// Fetch asks the provider to fetch the Open Graph attributes itself.
	Fetch bool
}

// MessagePayload is the body of a message post. Zero GroupID and DirectToID are
// omitted from the wire form, topics are numbered topic1..topicN, and the og_*
// attributes are flattened in only when OpenGraph is set.
type MessagePayload struct {
	Body       string
	GroupID    int64
	DirectToID int64
	Topics     []string
	OpenGraph  *OpenGraph
}

// NewTopicsMessage builds a group post carrying at least MinTopicsMessageTopics
// topics. It fails before anything is sent when too few or too many are given.
func NewTopicsMessage(body string, groupID int64, topics []string, og *OpenGraph) (MessagePayload, error) {
	if len(topics) < MinTopicsMessageTopics {
		return MessagePayload{}, fmt.Errorf("%w: got %d", ErrTooFewTopics, len(topics))
	}
	if len(topics) > MaxMessageTopics {
		return MessagePayload{}, fmt.Errorf("%w: got %d, max %d", ErrTooManyTopics, len(topics), MaxMessageTopics)
	}
	return MessagePayload{
		Body:      body,
		GroupID:   groupID,
		Topics:    append([]string(nil), topics...),
		OpenGraph: og,
	}, nil
}

func (p MessagePayload) validate() error {
	if len(p.Topics) > MaxMessageTopics {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyTopics, len(p.Topics), MaxMessageTopics)
	}
	if p.OpenGraph != nil && p.OpenGraph.URL == "" {
		return fmt.Errorf("%w: open graph object needs a URL", ErrInvalidRequest)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p MessagePayload) MarshalJSON() ([]byte, error) {
	m := map[string]any{"body": p.Body}

	if p.GroupID != 0 {
		m["group_id"] = p.GroupID
	}
	if p.DirectToID != 0 {
		m["direct_to_id"] = p.DirectToID
	}

	n := 0
	for _, t := range p.Topics {
		if t == "" {
			continue
		}
		n++
		m["topic"+strconv.Itoa(n)] = t
	}

	if og := p.OpenGraph; og != nil {
		m["og_url"] = og.URL
		setIfNotEmpty(m, "og_title", og.Title)
		setIfNotEmpty(m, "og_image", og.Image)
		setIfNotEmpty(m, "og_description", og.Description)
		setIfNotEmpty(m, "og_object_type", og.ObjectType)
		setIfNotEmpty(m, "og_site_name", og.SiteName)
		setIfNotEmpty(m, "og_meta", og.Meta)
		if og.Fetch {
			m["og_fetch"] = true
		}
	}

	return json.Marshal(m)
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// MessageThread is the provider's response to message posts and listings.
type MessageThread struct {
	Messages         []Message            `json:"messages"`
	References       []Reference          `json:"references,omitempty"`
	ThreadedExtended map[string][]Message `json:"threaded_extended,omitempty"`
	Meta             MessageMeta          `json:"meta"`
}

type Message struct {
	ID            int64           `json:"id"`
	NetworkID     int64           `json:"network_id"`
	ThreadID      int64           `json:"thread_id"`
	SenderID      int64           `json:"sender_id"`
	SenderType    string          `json:"sender_type,omitempty"`
	RepliedToID   *int64          `json:"replied_to_id,omitempty"`
	MessageType   string          `json:"message_type,omitempty"`
	CreatedAt     string          `json:"created_at"`
	Body          MessageBody     `json:"body"`
	URL           string          `json:"url,omitempty"`
	WebURL        string          `json:"web_url,omitempty"`
	ClientType    string          `json:"client_type,omitempty"`
	ClientURL     string          `json:"client_url,omitempty"`
	Privacy       string          `json:"privacy,omitempty"`
	DirectMessage bool            `json:"direct_message"`
	SystemMessage bool            `json:"system_message"`
	LikedBy       LikedBy         `json:"liked_by"`
	Attachments   json.RawMessage `json:"attachments,omitempty"`
}

type MessageBody struct {
	Plain  string   `json:"plain"`
	Rich   string   `json:"rich,omitempty"`
	Parsed string   `json:"parsed,omitempty"`
	URLs   []string `json:"urls,omitempty"`
}

type LikedBy struct {
	Count int             `json:"count"`
	Names json.RawMessage `json:"names,omitempty"`
}

// Reference is an entity (user, group, thread, topic) mentioned by the messages
// in a MessageThread.
type Reference struct {
	ID                 int64          `json:"id"`
	Type               string         `json:"type"`
	Name               string         `json:"name,omitempty"`
	FullName           string         `json:"full_name,omitempty"`
	NormalizedName     string         `json:"normalized_name,omitempty"`
	URL                string         `json:"url,omitempty"`
	WebURL             string         `json:"web_url,omitempty"`
	Permalink          string         `json:"permalink,omitempty"`
	Privacy            string         `json:"privacy,omitempty"`
	State              string         `json:"state,omitempty"`
	JobTitle           string         `json:"job_title,omitempty"`
	MugshotURL         string         `json:"mugshot_url,omitempty"`
	MugshotURLTemplate string         `json:"mugshot_url_template,omitempty"`
	ActivatedAt        string         `json:"activated_at,omitempty"`
	ThreadStarterID    *int64         `json:"thread_starter_id,omitempty"`
	HasAttachments     *bool          `json:"has_attachments,omitempty"`
	DirectMessage      *bool          `json:"direct_message,omitempty"`
	Stats              ReferenceStats `json:"stats"`
}

type ReferenceStats struct {
	Updates       int    `json:"updates"`
	Shares        int    `json:"shares"`
	FirstReplyID  *int64 `json:"first_reply_id,omitempty"`
	FirstReplyAt  string `json:"first_reply_at,omitempty"`
	LatestReplyID int64  `json:"latest_reply_id,omitempty"`
	LatestReplyAt string `json:"latest_reply_at,omitempty"`
	Followers     *int   `json:"followers,omitempty"`
	Following     *int   `json:"following,omitempty"`
}

type MessageMeta struct {
	CurrentUserID         int64               `json:"current_user_id"`
	FeedName              string              `json:"feed_name,omitempty"`
	FeedDesc              string              `json:"feed_desc,omitempty"`
	OlderAvailable        bool                `json:"older_available"`
	RequestedPollInterval int                 `json:"requested_poll_interval,omitempty"`
	DirectFromBody        bool                `json:"direct_from_body"`
	FollowedUserIDs       []int64             `json:"followed_user_ids,omitempty"`
	FollowedReferences    []FollowedReference `json:"followed_references,omitempty"`
	Realtime              *Realtime           `json:"realtime,omitempty"`
}

type FollowedReference struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// Realtime describes the provider's push channel. The SDK does not subscribe to it.
type Realtime struct {
	AuthenticationToken string `json:"authentication_token"`
	ChannelID           string `json:"channel_id"`
	URI                 string `json:"uri"`
}

// yammerTimeLayout is the provider's created_at format.
const yammerTimeLayout = "2006/01/02 15:04:05 -0700"

var errNoTimestamp = errors.New("yammer: message has no created_at")

// CreatedTime parses CreatedAt in either the provider's native layout or RFC 3339.
func (m Message) CreatedTime() (time.Time, error) {
	s := strings.TrimSpace(m.CreatedAt)
	if s == "" {
		return time.Time{}, errNoTimestamp
	}
	if t, err := time.Parse(yammerTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("yammer: parse created_at %q: %w", s, err)
	}
	return t.UTC(), nil
}
