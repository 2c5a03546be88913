package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleOrderRevision(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, listingAddr protocol.ListingAddress) error {
	var payload protocol.OrderRevisionPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	orderID := *env.OrderID

	recipient, err := withOrder(deps, orderID, ev.ID, func(order *state.OrderState) (state.OrderStatus, string, error) {
		if order.SellerPubkey != ev.AuthorPubkey || order.SellerPubkey != listingAddr.SellerPubkey {
			return "", "", unauthorized("sender is not the order's (and listing's) seller")
		}
		return state.StatusRevised, order.BuyerPubkey, nil
	})
	if err == errAlreadySeen {
		return nil
	}
	if err != nil {
		return err
	}

	return send(ctx, deps, protocol.MessageOrderRevision, env.ListingAddr, env.OrderID, recipient, payload)
}
