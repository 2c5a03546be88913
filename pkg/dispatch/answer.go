package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// handleAnswer asserts its precondition explicitly: a transition straight
// to Requested would otherwise be masked by the Requested->Requested
// self-edge even when the order was never Questioned in the first place.
// An Answer sent against a non-Questioned order is rejected rather than
// silently accepted.
func handleAnswer(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.AnswerPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	orderID := *env.OrderID
	if payload.OrderID != nil && *payload.OrderID != orderID {
		return invalidOrder("answer payload.order_id does not match envelope order_id")
	}

	recipient, err := withOrder(deps, orderID, ev.ID, func(order *state.OrderState) (state.OrderStatus, string, error) {
		if order.SellerPubkey != ev.AuthorPubkey {
			return "", "", unauthorized("sender is not the order's seller")
		}
		if order.Status != state.StatusQuestioned {
			return "", "", rhierr.Newf(rhierr.FamilyState, rhierr.InvalidTransition, "answer requires status questioned, got %s", order.Status)
		}
		return state.StatusRequested, order.BuyerPubkey, nil
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, protocol.MessageAnswer, env.ListingAddr, env.OrderID, recipient, payload)
}
