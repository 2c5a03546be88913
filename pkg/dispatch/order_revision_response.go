package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleOrderRevisionAccept(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, listingAddr protocol.ListingAddress) error {
	var payload protocol.OrderRevisionAcceptPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if !payload.Accepted {
		return invalidOrder("order_revision_accept payload.accepted must be true")
	}
	return dispatchOrderRevisionResponse(ctx, deps, ev, env, listingAddr, protocol.MessageOrderRevisionAccept, state.StatusAccepted, payload)
}

func handleOrderRevisionDecline(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, listingAddr protocol.ListingAddress) error {
	var payload protocol.OrderRevisionDeclinePayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.Accepted {
		return invalidOrder("order_revision_decline payload.accepted must be false")
	}
	return dispatchOrderRevisionResponse(ctx, deps, ev, env, listingAddr, protocol.MessageOrderRevisionDecline, state.StatusDeclined, payload)
}

func dispatchOrderRevisionResponse(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress, mt protocol.MessageType, next state.OrderStatus, payload any) error {
	orderID := *env.OrderID

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
