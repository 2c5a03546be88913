package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleDiscountAccept(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.DiscountAcceptPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	return dispatchDiscountDecision(ctx, deps, ev, env, protocol.MessageDiscountAccept, payload.OrderID, state.StatusAccepted, payload)
}

func handleDiscountDecline(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.DiscountDeclinePayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	return dispatchDiscountDecision(ctx, deps, ev, env, protocol.MessageDiscountDecline, payload.OrderID, state.StatusRequested, payload)
}

func dispatchDiscountDecision(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, mt protocol.MessageType, payloadOrderID string, next state.OrderStatus, payload any) error {
	orderID := *env.OrderID
	if payloadOrderID != orderID {
		return invalidOrder("discount decision payload.order_id does not match envelope order_id")
	}

	recipient, err := withOrder(deps, orderID, ev.ID, func(order *state.OrderState) (state.OrderStatus, string, error) {
		if order.BuyerPubkey != ev.AuthorPubkey {
			return "", "", unauthorized("sender is not the order's buyer")
		}
		return next, order.SellerPubkey, nil
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, mt, env.ListingAddr, env.OrderID, recipient, payload)
}
