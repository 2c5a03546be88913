// Package transport is the core's view of the relay client: a small
// interface the dispatcher, subscriber, and supervisor program against,
// with two concrete adapters (wsrelay, p2pmesh) and an in-memory fake used
// by tests.
package transport

import "context"

// EventKind distinguishes the trade-listing custom kinds from everything
// else a relay might carry.
type EventKind struct {
	Custom uint16
	Other  bool
}

// SignedEvent is the wire-level unit the transport hands to subscribers and
// accepts for publishing.
type SignedEvent struct {
	ID           string
	AuthorPubkey string
	CreatedAt    uint64
	Kind         EventKind
	Content      string
	Tags         [][]string
	Sig          string
}

// TagValue returns the first value of the first tag whose key equals name,
// and whether it was found.
func (e SignedEvent) TagValue(name string) (string, bool) {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

// Filter selects events by kind set, optional author/identifier tags, and a
// lower bound on created_at.
type Filter struct {
	Kinds      []uint16
	Authors    []string
	Identifier string
	Since      uint64
	Limit      int
}

// Notification is what a subscription channel carries.
type Notification struct {
	Event  *SignedEvent
	Closed bool
	Err    error
}

// JobFeedbackStatus mirrors the NIP-90-style DVM status vocabulary used for
// feedback events.
type JobFeedbackStatus string

const (
	JobFeedbackError     JobFeedbackStatus = "error"
	JobFeedbackProcessed JobFeedbackStatus = "success"
)

// EventBuilder is an unsigned, not-yet-published event under construction.
type EventBuilder struct {
	Kind    uint16
	Content string
	Tags    [][]string
}

// Subscription is a handle returned by Subscribe, used to later Unsubscribe.
type Subscription struct {
	ID     string
	Notify <-chan Notification
}

// Transport is the relay-client contract. Implementations must be safe for
// concurrent use — the dispatcher calls SendEventBuilder from many detached
// handler tasks at once.
type Transport interface {
	AddRelay(url string) error
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	UnsubscribeAll()

	WaitForConnection(ctx context.Context) error

	Subscribe(ctx context.Context, filter Filter, subID string) (*Subscription, error)
	Unsubscribe(subID string)

	FetchEvents(ctx context.Context, filter Filter) ([]SignedEvent, error)
	FetchEventByID(ctx context.Context, id string) (*SignedEvent, error)

	BuildEvent(kind uint16, content string, tags [][]string) EventBuilder
	BuildJobFeedback(ref SignedEvent, status JobFeedbackStatus, info string) EventBuilder
	SendEventBuilder(ctx context.Context, b EventBuilder) (string, error)
}
