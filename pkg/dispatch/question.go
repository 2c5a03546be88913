package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleQuestion(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.QuestionPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	orderID := *env.OrderID
	if payload.OrderID != nil && *payload.OrderID != orderID {
		return invalidOrder("question payload.order_id does not match envelope order_id")
	}

	recipient, err := withOrder(deps, orderID, ev.ID, func(order *state.OrderState) (state.OrderStatus, string, error) {
		if order.BuyerPubkey != ev.AuthorPubkey {
			return "", "", unauthorized("sender is not the order's buyer")
		}
		return state.StatusQuestioned, order.SellerPubkey, nil
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, protocol.MessageQuestion, env.ListingAddr, env.OrderID, recipient, payload)
}
