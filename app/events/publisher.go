// Package events publishes post lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memories/app/models"

	"github.com/nats-io/nats.go"
)

// Event types, also used as the last subject token.
const (
	PostCreated   = "created"
	PostUpdated   = "updated"
	PostDeleted   = "deleted"
	PostLiked     = "liked"
	PostCommented = "commented"
)

// SubjectPrefix is prepended to the event type to form the NATS subject.
const SubjectPrefix = "posts."

// PostEvent is the payload published for every post mutation.
type PostEvent struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	Creator string    `json:"creator,omitempty"`
	Title   string    `json:"title,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	At      time.Time `json:"at"`
}

// NewPostEvent builds an event of kind eventType for post. actor is the
// caller that triggered it and may be empty.
func NewPostEvent(eventType string, post *models.Post, actor string) PostEvent {
	return PostEvent{
		Type:    eventType,
		ID:      post.ID.Hex(),
		Creator: post.Creator,
		Title:   post.Title,
		Actor:   actor,
		At:      time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on.
func (e PostEvent) Subject() string {
	return SubjectPrefix + e.Type
}

// Publisher delivers post events.
type Publisher interface {
	Publish(ctx context.Context, event PostEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PostEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

// NatsPublisher publishes events as JSON on a NATS connection.
type NatsPublisher struct {
	nc *nats.Conn
}

// ConnectNats dials url and returns a publisher on that connection.
func ConnectNats(url string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("memories"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNatsPublisher(nc), nil
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(ctx context.Context, event PostEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}
	return p.nc.PublishMsg(&nats.Msg{
		Subject: event.Subject(),
		Data:    data,
		Header:  nats.Header{"Content-Type": []string{"application/json"}},
	})
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	Events []PostEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event PostEvent) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	types := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}
