package yammersdk

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/yammer/pkg/slogx"
)

// PostMessage posts body to a group under a single topic. An empty topic is left
// out.
func (c *Client) PostMessage(ctx context.Context, body string, groupID int64, topic string) (*MessageThread, error) {
	return c.Post(ctx, MessagePayload{Body: body, GroupID: groupID, Topics: single(topic)})
}

// PostMessageWithOpenGraph posts body with an Open Graph object attached.
func (c *Client) PostMessageWithOpenGraph(ctx context.Context, body string, groupID int64, topic string, og OpenGraph) (*MessageThread, error) {
	return c.Post(ctx, MessagePayload{Body: body, GroupID: groupID, Topics: single(topic), OpenGraph: &og})
}

// PostMessageWithTopics posts body under at least three topics. Fewer topics fail
// with ErrTooFewTopics before anything is sent.
func (c *Client) PostMessageWithTopics(ctx context.Context, body string, groupID int64, topics []string, og *OpenGraph) (*MessageThread, error) {
	p, err := NewTopicsMessage(body, groupID, topics, og)
	if err != nil {
		return nil, err
	}
	return c.Post(ctx, p)
}

// PostDirectMessage sends a private message to a single user.
func (c *Client) PostDirectMessage(ctx context.Context, body string, userID int64, topic string) (*MessageThread, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: recipient id must be positive", ErrInvalidRequest)
	}
	return c.Post(ctx, MessagePayload{Body: body, DirectToID: userID, Topics: single(topic)})
}

// Post sends an arbitrary message payload.
func (c *Client) Post(ctx context.Context, p MessagePayload) (*MessageThread, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return Execute[*MessageThread](ctx, c, Request{
		Method:   http.MethodPost,
		Resource: messagesService,
		Payload:  p,
	})
}

// PostAsync is the non-blocking form of Post. Validation failures complete the
// Future immediately.
func (c *Client) PostAsync(ctx context.Context, p MessagePayload) *Future[*MessageThread] {
	if err := p.validate(); err != nil {
		return failedFuture[*MessageThread](err)
	}
	return ExecuteAsync[*MessageThread](ctx, c, Request{
		Method:   http.MethodPost,
		Resource: messagesService,
		Payload:  p,
	})
}

// PostMessageAsync is the non-blocking form of PostMessage.
func (c *Client) PostMessageAsync(ctx context.Context, body string, groupID int64, topic string) *Future[*MessageThread] {
	return c.PostAsync(ctx, MessagePayload{Body: body, GroupID: groupID, Topics: single(topic)})
}

// PostDirectMessageAsync is the non-blocking form of PostDirectMessage.
func (c *Client) PostDirectMessageAsync(ctx context.Context, body string, userID int64, topic string) *Future[*MessageThread] {
	if userID <= 0 {
		return failedFuture[*MessageThread](fmt.Errorf("%w: recipient id must be positive", ErrInvalidRequest))
	}
	return c.PostAsync(ctx, MessagePayload{Body: body, DirectToID: userID, Topics: single(topic)})
}

// DirectMessages lists the signed-in user's private messages.
func (c *Client) DirectMessages(ctx context.Context) (*MessageThread, error) {
	return Execute[*MessageThread](ctx, c, Request{
		Method:   http.MethodGet,
		Resource: privateMessagesService,
	})
}

// DirectMessagesSince returns the private messages created at or after newerThan.
// Messages whose timestamp cannot be parsed are left out.
func (c *Client) DirectMessagesSince(ctx context.Context, newerThan time.Time) ([]Message, error) {
	ctx = c.withRequestID(ctx)

	thread, err := c.DirectMessages(ctx)
	if err != nil || thread == nil {
		return nil, err
	}

	cutoff := newerThan.UTC()
	logger := slogx.FromContextOr(ctx, c.logger)

	out := make([]Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		created, err := m.CreatedTime()
		if err != nil {
			logger.DebugContext(ctx, "skipping message with bad timestamp", "message_id", m.ID, "error", err.Error())
			continue
		}
		if !created.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

// DirectMessagesSinceAsync is the non-blocking form of DirectMessagesSince.
func (c *Client) DirectMessagesSinceAsync(ctx context.Context, newerThan time.Time) *Future[[]Message] {
	return goFuture(func() ([]Message, error) {
		return c.DirectMessagesSince(ctx, newerThan)
	})
}

func single(topic string) []string {
	if topic == "" {
		return nil
	}
	return []string{topic}
}
