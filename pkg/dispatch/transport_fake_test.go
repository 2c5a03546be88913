package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// fakeTransport is an in-memory Transport used only by this package's
// tests: Connect/WaitForConnection/Subscribe are no-ops, SendEventBuilder
// records every outbound builder, and FetchEvents/FetchEventByID serve
// from a fixed, test-supplied event list (S6).
type fakeTransport struct {
	mu          sync.Mutex
	sent        []transport.EventBuilder
	fetchEvents []transport.SignedEvent
	nextID      int64
}

func newFakeTransport() *fakeTransport { return &fakeTransport{} }

func (f *fakeTransport) AddRelay(url string) error                  { return nil }
func (f *fakeTransport) Connect(ctx context.Context) error           { return nil }
func (f *fakeTransport) Disconnect(ctx context.Context) error        { return nil }
func (f *fakeTransport) UnsubscribeAll()                             {}
func (f *fakeTransport) WaitForConnection(ctx context.Context) error { return nil }
func (f *fakeTransport) Unsubscribe(subID string)                    {}

func (f *fakeTransport) Subscribe(ctx context.Context, filter transport.Filter, subID string) (*transport.Subscription, error) {
	return &transport.Subscription{ID: subID, Notify: make(chan transport.Notification)}, nil
}

func (f *fakeTransport) FetchEvents(ctx context.Context, filter transport.Filter) ([]transport.SignedEvent, error) {
	var out []transport.SignedEvent
	for _, ev := range f.fetchEvents {
		if len(filter.Kinds) > 0 && filter.Kinds[0] != ev.Kind.Custom {
			continue
		}
		if len(filter.Authors) > 0 && filter.Authors[0] != ev.AuthorPubkey {
			continue
		}
		if filter.Identifier != "" {
			d, ok := ev.TagValue("d")
			if !ok || d != filter.Identifier {
				continue
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeTransport) FetchEventByID(ctx context.Context, id string) (*transport.SignedEvent, error) {
	for _, ev := range f.fetchEvents {
		if ev.ID == id {
			evCopy := ev
			return &evCopy, nil
		}
	}
	return nil, nil
}

func (f *fakeTransport) BuildEvent(kind uint16, content string, tags [][]string) transport.EventBuilder {
	return transport.EventBuilder{Kind: kind, Content: content, Tags: tags}
}

func (f *fakeTransport) BuildJobFeedback(ref transport.SignedEvent, status transport.JobFeedbackStatus, info string) transport.EventBuilder {
	return transport.EventBuilder{Kind: 7000, Content: info, Tags: [][]string{{"e", ref.ID}, {"status", string(status)}}}
}

func (f *fakeTransport) SendEventBuilder(ctx context.Context, b transport.EventBuilder) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, b)
	f.nextID++
	id := fmt.Sprintf("sent-%d", f.nextID)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeTransport) sentTo(recipient string) []transport.EventBuilder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []transport.EventBuilder
	for _, b := range f.sent {
		for _, t := range b.Tags {
			if len(t) >= 2 && t[0] == "p" && t[1] == recipient {
				out = append(out, b)
			}
		}
	}
	return out
}

var _ transport.Transport = (*fakeTransport)(nil)
