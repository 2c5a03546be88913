package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleCancel(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.CancelPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	orderID := *env.OrderID
	if payload.OrderID != orderID {
		return invalidOrder("cancel payload.order_id does not match envelope order_id")
	}

	recipient, err := withOrder(deps, orderID, ev.ID, func(order *state.OrderState) (state.OrderStatus, string, error) {
		switch ev.AuthorPubkey {
		case order.BuyerPubkey:
			return state.StatusCancelled, order.SellerPubkey, nil
		case order.SellerPubkey:
			return state.StatusCancelled, order.BuyerPubkey, nil
		default:
			return "", "", unauthorized("sender is neither the order's buyer nor seller")
		}
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, protocol.MessageCancel, env.ListingAddr, env.OrderID, recipient, payload)
}
