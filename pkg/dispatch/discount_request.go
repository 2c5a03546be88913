package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// handleDiscountRequest intentionally skips the transition table: it is a
// handshake message with no status effect on its own. Replay suppression
// still applies via withOrderNoTransition, so a duplicate request after the
// first is a silent no-op rather than a repeated send.
func handleDiscountRequest(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, _ protocol.ListingAddress) error {
	var payload protocol.DiscountRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	orderID := *env.OrderID
	if payload.OrderID != orderID {
		return invalidOrder("discount_request payload.order_id does not match envelope order_id")
	}

	recipient, err := withOrderNoTransition(deps, orderID, ev.ID, func(order *state.OrderState) (string, error) {
		if order.BuyerPubkey != ev.AuthorPubkey {
			return "", unauthorized("sender is not the order's buyer")
		}
		return order.SellerPubkey, nil
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, protocol.MessageDiscountRequest, env.ListingAddr, env.OrderID, recipient, payload)
}
