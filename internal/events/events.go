// Package events announces user lifecycle changes (registration, RSVP,
// Google account linking) to other services over NATS.
//
// Publishing is fire-and-forget from the caller's point of view: the
// database write is the source of truth, and a failed publish is logged by
// the caller, never turned into an HTTP error.
package events

import (
	"context"
	"time"

	"github.com/sakif/event-rsvp/internal/model"
)

// Event types. The NATS subject is SubjectPrefix + type, e.g.
// "rsvp.user.created".
const (
	UserCreated     = "user.created"
	UserUpdated     = "user.updated"
	UserDeleted     = "user.deleted"
	UserRSVPChanged = "user.rsvp_changed"
	UserLinked      = "user.linked"

	SubjectPrefix = "rsvp."
)

// Event is the JSON payload published for each change.
type Event struct {
	Type       string         `json:"type"`
	UserID     string         `json:"userId"`
	OccurredAt time.Time      `json:"occurredAt"`
	User       *model.Display `json:"user,omitempty"`
	HasRSVPd   *bool          `json:"hasRSVPd,omitempty"`
}

// Subject returns the NATS subject the event is published on.
func (e Event) Subject() string {
	return SubjectPrefix + e.Type
}

// NewUserEvent builds an event for user. For RSVP changes the new flag is
// carried explicitly so consumers don't have to diff.
func NewUserEvent(eventType string, user *model.User) Event {
	e := Event{
		Type:       eventType,
		UserID:     user.ID,
		OccurredAt: time.Now().UTC(),
	}
	if eventType != UserDeleted {
		d := user.Display()
		e.User = &d
	}
	if eventType == UserRSVPChanged {
		rsvp := user.HasRSVPd
		e.HasRSVPd = &rsvp
	}
	return e
}

// Publisher sends events somewhere. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards every event. It is used when NATS_URL is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
