package dispatch

import (
	"errors"

	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/state"
)

// errAlreadySeen is a sentinel, never returned to the subscriber: it tells
// withOrder's caller that the (order_id, event_id) pair was a replay, which
// the handler turns into a plain nil (no side effects).
var errAlreadySeen = errors.New("dispatch: event already seen for this order")

// authorizeFn inspects the current order (still under lock) and returns the
// next status to transition to plus the outbound recipient, or an error
// that aborts the mutation entirely (Unauthorized, InvalidOrder, ...).
type authorizeFn func(order *state.OrderState) (next state.OrderStatus, recipient string, err error)

// withOrder is the shared preamble for every handler operating on an
// existing order: replay-check, load-or-MissingOrder, authorize+compute
// next status, ensure_transition, commit status + seen_event_ids, all under
// one critical section; the lock is released before this returns so the
// caller's outbound send happens outside it.
func withOrder(deps Deps, orderID, eventID string, fn authorizeFn) (recipient string, err error) {
	deps.State.Lock()
	defer deps.State.Unlock()

	if deps.State.IsEventSeenLocked(orderID, eventID) {
		return "", errAlreadySeen
	}
	order, ok := deps.State.GetOrderLocked(orderID)
	if !ok {
		return "", rhierr.New(rhierr.FamilyState, rhierr.MissingOrder, "no order with this id")
	}

	next, recipient, err := fn(order)
	if err != nil {
		return "", err
	}
	if err := state.EnsureTransition(order.Status, next); err != nil {
		return "", err
	}

	order.Status = next
	deps.State.MarkEventSeenLocked(orderID, eventID)
	return recipient, nil
}

// withOrderNoTransition is withOrder's counterpart for handlers that do not
// change order status (DiscountRequest): replay-check, load, authorize,
// commit seen_event_ids only.
func withOrderNoTransition(deps Deps, orderID, eventID string, authorize func(order *state.OrderState) (recipient string, err error)) (recipient string, err error) {
	deps.State.Lock()
	defer deps.State.Unlock()

	if deps.State.IsEventSeenLocked(orderID, eventID) {
		return "", errAlreadySeen
	}
	order, ok := deps.State.GetOrderLocked(orderID)
	if !ok {
		return "", rhierr.New(rhierr.FamilyState, rhierr.MissingOrder, "no order with this id")
	}

	recipient, err = authorize(order)
	if err != nil {
		return "", err
	}
	deps.State.MarkEventSeenLocked(orderID, eventID)
	return recipient, nil
}

func unauthorized(msg string) error {
	return rhierr.New(rhierr.FamilyAuthorization, rhierr.Unauthorized, msg)
}

func invalidOrder(msg string) error {
	return rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidOrder, msg)
}
