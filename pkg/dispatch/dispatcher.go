// Package dispatch classifies inbound signed events by message kind,
// validates them against the envelope/tag/addressing schema, mutates order
// state under the aggregate's lock, and publishes the outbound reply.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
	"github.com/rad-roots-labs/rhi/pkg/validator"
)

// Deps are the external collaborators a handler needs. One Deps value is
// shared across every detached handler task; Transport and State are both
// safe for concurrent use.
type Deps struct {
	State        *state.TradeListingState
	Transport    transport.Transport
	Validator    validator.Validator
	Identity     *identity.KeyPair
	FetchTimeout time.Duration
	Log          *zap.SugaredLogger
}

func (d Deps) logf(template string, args ...any) {
	if d.Log != nil {
		d.Log.Debugf(template, args...)
	}
}

// HandleEvent is the dispatcher entry point invoked once per resolved event
// by the subscriber; an event authored by the daemon itself is a no-op here.
// tags are the already-resolved tag list (tagcipher has already run, if
// needed).
func HandleEvent(ctx context.Context, deps Deps, ev transport.SignedEvent, tags [][]string) error {
	if ev.Kind.Other {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.UnsupportedKind, "event kind is not a custom trade-listing kind")
	}
	mt, ok := protocol.MessageTypeFromKind(ev.Kind.Custom)
	if !ok {
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.UnsupportedKind, "kind %d is not a recognized trade-listing kind", ev.Kind.Custom)
	}

	if ev.AuthorPubkey == deps.Identity.PublicKeyHex {
		return nil // self-authored: no-op, not an error
	}

	recipient, ok := tagValue(tags, "p")
	if !ok {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.MissingRecipient, "event carries no p tag")
	}
	if recipient != deps.Identity.PublicKeyHex {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.MissingRecipient, "p tag does not name this daemon")
	}

	env, err := protocol.ParseEnvelope(ev.Content)
	if err != nil {
		return err
	}
	if err := env.CheckKind(ev.Kind.Custom); err != nil {
		return err
	}

	aTag, ok := tagValue(tags, "a")
	if !ok {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.MissingTag, "event carries no a tag")
	}
	if aTag != env.ListingAddr {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.TagMismatch, "a tag does not match envelope listing_addr")
	}

	if mt.RequiresOrderID() {
		dTag, ok := tagValue(tags, "d")
		if !ok {
			return rhierr.New(rhierr.FamilyProtocol, rhierr.MissingTag, "event carries no d tag")
		}
		if env.OrderID == nil || dTag != *env.OrderID {
			return rhierr.New(rhierr.FamilyProtocol, rhierr.TagMismatch, "d tag does not match envelope order_id")
		}
	}

	listingAddr, err := protocol.ParseListingAddress(env.ListingAddr)
	if err != nil {
		return err
	}

	switch mt {
	case protocol.MessageOrderRequest:
		return handleOrderRequest(ctx, deps, ev, env, listingAddr)
	case protocol.MessageOrderResponse:
		return handleOrderResponse(ctx, deps, ev, env, listingAddr)
	case protocol.MessageOrderRevision:
		return handleOrderRevision(ctx, deps, ev, env, listingAddr)
	case protocol.MessageOrderRevisionAccept:
		return handleOrderRevisionAccept(ctx, deps, ev, env, listingAddr)
	case protocol.MessageOrderRevisionDecline:
		return handleOrderRevisionDecline(ctx, deps, ev, env, listingAddr)
	case protocol.MessageQuestion:
		return handleQuestion(ctx, deps, ev, env, listingAddr)
	case protocol.MessageAnswer:
		return handleAnswer(ctx, deps, ev, env, listingAddr)
	case protocol.MessageDiscountRequest:
		return handleDiscountRequest(ctx, deps, ev, env, listingAddr)
	case protocol.MessageDiscountOffer:
		return handleDiscountOffer(ctx, deps, ev, env, listingAddr)
	case protocol.MessageDiscountAccept:
		return handleDiscountAccept(ctx, deps, ev, env, listingAddr)
	case protocol.MessageDiscountDecline:
		return handleDiscountDecline(ctx, deps, ev, env, listingAddr)
	case protocol.MessageCancel:
		return handleCancel(ctx, deps, ev, env, listingAddr)
	case protocol.MessageFulfillmentUpdate:
		return handleFulfillmentUpdate(ctx, deps, ev, env, listingAddr)
	case protocol.MessageReceipt:
		return handleReceipt(ctx, deps, ev, env, listingAddr)
	case protocol.MessageListingValidateRequest:
		return handleListingValidateRequest(ctx, deps, ev, env, listingAddr)
	case protocol.MessageListingValidateResult:
		// Reply-only kind; receiving one inbound is not an error, but there
		// is nothing for the daemon (itself the issuer of requests only in
		// the operator role, never the requester) to do with it.
		return nil
	default:
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.UnsupportedKind, "message_type %q has no handler", mt)
	}
}

func tagValue(tags [][]string, name string) (string, bool) {
	for _, t := range tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

// send builds and publishes an outbound envelope under the same
// listing_addr/order_id as the inbound one, after the state lock has
// already been released by the caller.
func send(ctx context.Context, deps Deps, mt protocol.MessageType, listingAddr string, orderID *string, recipient string, payload any) error {
	kind, content, tags, err := protocol.BuildOutbound(mt, listingAddr, orderID, recipient, payload)
	if err != nil {
		return err
	}
	builder := deps.Transport.BuildEvent(kind, content, tags)
	_, err = deps.Transport.SendEventBuilder(ctx, builder)
	return err
}
