package dispatch

import (
	"context"
	"time"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/transport"
	"github.com/rad-roots-labs/rhi/pkg/validator"
)

const defaultFetchTimeout = 10 * time.Second

// handleListingValidateRequest has no order_id and no existing-order
// concurrency concerns; it resolves a listing event (by explicit pointer or
// by filter), runs the external validator, and always replies to the
// sender — success or failure — rather than silently dropping on fetch
// error.
func handleListingValidateRequest(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, listingAddr protocol.ListingAddress) error {
	var payload protocol.ListingValidateRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	fetchCtx, cancel := withFetchTimeout(ctx, deps)
	defer cancel()

	var (
		listingEvent *transport.SignedEvent
		valid        bool
		errs         []string
	)

	if payload.ListingEvent != nil {
		resolved, err := deps.Transport.FetchEventByID(fetchCtx, *payload.ListingEvent)
		if err != nil {
			errs = append(errs, validator.FetchFailed(env.ListingAddr, err).Error())
		} else if resolved == nil {
			errs = append(errs, validator.NotFound(env.ListingAddr).Error())
		} else if mismatch := crossCheckListingEvent(*resolved, listingAddr); mismatch != nil {
			// An explicit pointer is authoritative for fetch routing, but its
			// (kind, author, identifier) must still agree with the parsed
			// address.
			errs = append(errs, mismatch.Error())
		} else {
			listingEvent = resolved
		}
	} else {
		resolved, err := fetchListingByAddr(fetchCtx, deps, listingAddr)
		if err != nil {
			errs = append(errs, validator.FetchFailed(env.ListingAddr, err).Error())
		} else if resolved == nil {
			errs = append(errs, validator.NotFound(env.ListingAddr).Error())
		} else {
			listingEvent = resolved
		}
	}

	if listingEvent != nil {
		if err := deps.Validator.ValidateListingEvent(*listingEvent, env.ListingAddr); err != nil {
			errs = append(errs, err.Error())
		} else {
			valid = true
		}
	}

	if valid {
		deps.State.Lock()
		deps.State.MarkListingValidatedLocked(env.ListingAddr)
		deps.State.Unlock()
	}
	if errs == nil {
		errs = []string{}
	}

	result := protocol.ListingValidateResultPayload{Valid: valid, Errors: errs}
	return send(ctx, deps, protocol.MessageListingValidateResult, env.ListingAddr, nil, ev.AuthorPubkey, result)
}

func withFetchTimeout(ctx context.Context, deps Deps) (context.Context, context.CancelFunc) {
	timeout := deps.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// fetchListingByAddr resolves a listing by filtering on (kind, author,
// identifier) and picking the event with the greatest created_at, the
// replaceable-event rule.
func fetchListingByAddr(ctx context.Context, deps Deps, addr protocol.ListingAddress) (*transport.SignedEvent, error) {
	filter := transport.Filter{
		Kinds:      []uint16{protocol.ListingKind},
		Authors:    []string{addr.SellerPubkey},
		Identifier: addr.ListingID,
	}
	events, err := deps.Transport.FetchEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	var best *transport.SignedEvent
	for i := range events {
		e := events[i]
		if e.Kind.Other || e.Kind.Custom != protocol.ListingKind {
			continue
		}
		if best == nil || e.CreatedAt > best.CreatedAt {
			evCopy := e
			best = &evCopy
		}
	}
	return best, nil
}

func crossCheckListingEvent(ev transport.SignedEvent, addr protocol.ListingAddress) error {
	if ev.Kind.Other || ev.Kind.Custom != addr.Kind {
		return listingEventMismatch("kind")
	}
	if ev.AuthorPubkey != addr.SellerPubkey {
		return listingEventMismatch("author")
	}
	identifier, ok := ev.TagValue("d")
	if !ok || identifier != addr.ListingID {
		return listingEventMismatch("identifier")
	}
	return nil
}

func listingEventMismatch(field string) error {
	return rhierr.Newf(rhierr.FamilyProtocol, rhierr.ListingEventMismatch, "pointer listing_event does not match listing_addr (%s)", field)
}
