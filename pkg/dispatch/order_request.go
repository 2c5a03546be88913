package dispatch

import (
	"context"

	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
)

func handleOrderRequest(ctx context.Context, deps Deps, ev transport.SignedEvent, env *protocol.Envelope, listingAddr protocol.ListingAddress) error {
	var payload protocol.OrderRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	orderID := *env.OrderID
	if payload.OrderID != orderID || payload.ListingAddr != env.ListingAddr {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidOrder, "payload order_id/listing_addr does not match envelope")
	}

	deps.State.Lock()

	if !deps.State.IsListingValidatedLocked(env.ListingAddr) {
		deps.State.Unlock()
		return rhierr.New(rhierr.FamilyPrecondition, rhierr.ListingNotValidated, "listing is not in validated_listings")
	}

	if deps.State.OrderExistsLocked(orderID) {
		// Idempotent silent success, checked before authorization.
		deps.State.Unlock()
		return nil
	}

	if payload.BuyerPubkey != ev.AuthorPubkey || payload.SellerPubkey != listingAddr.SellerPubkey {
		deps.State.Unlock()
		return rhierr.New(rhierr.FamilyAuthorization, rhierr.Unauthorized, "buyer/seller pubkey mismatch")
	}

	order := state.NewOrderState(orderID, env.ListingAddr, payload.BuyerPubkey, payload.SellerPubkey)
	order.MarkSeen(ev.ID)
	deps.State.InsertOrderLocked(order)

	deps.State.Unlock()

	return send(ctx, deps, protocol.MessageOrderRequest, env.ListingAddr, env.OrderID, payload.SellerPubkey, payload)
}
