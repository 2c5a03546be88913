// Package subscriber multiplexes a transport notification stream into
// per-event dispatcher tasks: it installs a kinds filter, runs a select
// loop honoring a stop signal, and classifies handler errors into
// silent-drop vs job-feedback.
package subscriber

import (
	"context"
	"errors"
	"time"

	"github.com/rad-roots-labs/rhi/pkg/dispatch"
	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/tagcipher"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// ErrNotificationsClosed is returned when the transport's notification
// channel closes before a stop was requested — a restartable condition the
// supervisor treats as subscriber-loop failure.
var ErrNotificationsClosed = errors.New("subscriber: notification channel closed")

// debugHandlerDelay is a fixed delay, useful only for manually observing
// race conditions between concurrently dispatched handlers during
// development; it is zero in a release build since it is only ever set by
// the rhi_debug_delay build tag (see delay_debug.go).
var debugHandlerDelay time.Duration

// Run installs the trade-listing kinds filter and services notifications
// until ctx is done or the transport's notification channel closes.
func Run(ctx context.Context, deps dispatch.Deps) error {
	kinds := make([]uint16, 0, len(protocol.AllMessageTypes))
	for _, mt := range protocol.AllMessageTypes {
		kinds = append(kinds, mt.Kind())
	}

	select {
	case <-ctx.Done():
		return nil
	default:
	}

	filter := transport.Filter{Kinds: kinds, Since: nowUnix()}
	sub, err := deps.Transport.Subscribe(ctx, filter, "")
	if err != nil {
		return err
	}
	defer deps.Transport.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case note, ok := <-sub.Notify:
			if !ok {
				return ErrNotificationsClosed
			}
			if note.Closed {
				return ErrNotificationsClosed
			}
			if note.Err != nil {
				return note.Err
			}
			if note.Event != nil {
				ev := *note.Event
				go handleOne(ctx, deps, ev)
			}
		}
	}
}

func handleOne(ctx context.Context, deps dispatch.Deps, ev transport.SignedEvent) {
	if debugHandlerDelay > 0 {
		time.Sleep(debugHandlerDelay)
	}

	tags, isRecipient, err := tagcipher.Resolve(deps.Identity, ev)
	if err != nil {
		var notRecipient *tagcipher.NotRecipient
		if errors.As(err, &notRecipient) {
			return // an encrypted event addressed to someone else: silently drop, not an error
		}
		if deps.Log != nil {
			deps.Log.Debugw("tag_resolve_failed", "event", ev.ID, "err", err)
		}
		return
	}
	if !isRecipient {
		return
	}

	if err := dispatch.HandleEvent(ctx, deps, ev, tags); err != nil {
		if rhierr.Silent(err) {
			return
		}
		dispatch.EmitFeedback(ctx, deps, ev, err)
	}
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}
