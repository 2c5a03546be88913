package state

import "github.com/rad-roots-labs/rhi/pkg/rhierr"

// OrderStatus is the tagged variant of OrderState.status.
type OrderStatus string

const (
	StatusDraft      OrderStatus = "draft"
	StatusValidated  OrderStatus = "validated"
	StatusRequested  OrderStatus = "requested"
	StatusQuestioned OrderStatus = "questioned"
	StatusRevised    OrderStatus = "revised"
	StatusAccepted   OrderStatus = "accepted"
	StatusDeclined   OrderStatus = "declined"
	StatusCancelled  OrderStatus = "cancelled"
	StatusFulfilled  OrderStatus = "fulfilled"
	StatusCompleted  OrderStatus = "completed"
)

// Terminal reports whether no further transition out of status is allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusDraft:     {StatusRequested: true},
	StatusValidated: {StatusRequested: true},
	StatusRequested: {
		StatusAccepted:   true,
		StatusDeclined:   true,
		StatusQuestioned: true,
		StatusRevised:    true,
		StatusCancelled:  true,
		StatusRequested:  true, // self-edge
	},
	StatusQuestioned: {
		StatusRequested: true,
		StatusRevised:   true,
		StatusCancelled: true,
	},
	StatusRevised: {
		StatusAccepted:  true,
		StatusDeclined:  true,
		StatusCancelled: true,
		StatusRequested: true,
	},
	StatusAccepted: {
		StatusFulfilled: true,
		StatusCancelled: true,
	},
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusFulfilled: {
		StatusCompleted: true,
		StatusFulfilled: true, // self-edge
		StatusCancelled: true,
	},
	StatusCompleted: {},
}

// EnsureTransition is the pure table lookup: from == to is always a
// permitted no-op, otherwise the destination must be one of the allowed set.
func EnsureTransition(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	if allowedTransitions[from][to] {
		return nil
	}
	return rhierr.Newf(rhierr.FamilyState, rhierr.InvalidTransition, "%s -> %s is not a permitted transition", from, to)
}
