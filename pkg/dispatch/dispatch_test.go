package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rad-roots-labs/rhi/pkg/identity"
	"github.com/rad-roots-labs/rhi/pkg/protocol"
	"github.com/rad-roots-labs/rhi/pkg/rhierr"
	"github.com/rad-roots-labs/rhi/pkg/state"
	"github.com/rad-roots-labs/rhi/pkg/transport"
	"github.com/rad-roots-labs/rhi/pkg/validator"
)

const (
	sellerPub = "hex32_S"
	buyerPub  = "hex32_B"
)

var eventCounter int

func nextEventID() string {
	eventCounter++
	return fmt.Sprintf("ev-%d", eventCounter)
}

func newTestDeps(t *testing.T, ft *fakeTransport) (Deps, string) {
	t.Helper()
	daemon, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	return Deps{
		State:        state.NewTradeListingState(),
		Transport:    ft,
		Validator:    validator.ReferenceValidator{},
		Identity:     daemon,
		FetchTimeout: time.Second,
	}, daemon.PublicKeyHex
}

func buildInboundEvent(t *testing.T, mt protocol.MessageType, listingAddr string, orderID *string, author, daemonPub string, payload any) (transport.SignedEvent, [][]string) {
	t.Helper()
	kind, content, tags, err := protocol.BuildOutbound(mt, listingAddr, orderID, daemonPub, payload)
	if err != nil {
		t.Fatalf("BuildOutbound: %v", err)
	}
	ev := transport.SignedEvent{
		ID:           nextEventID(),
		AuthorPubkey: author,
		CreatedAt:    uint64(time.Now().Unix()),
		Kind:         transport.EventKind{Custom: kind},
		Content:      content,
		Tags:         tags,
	}
	return ev, tags
}

func listingAddrFor(seller string) string {
	return protocol.ListingAddress{Kind: protocol.ListingKind, SellerPubkey: seller, ListingID: "listing-1"}.String()
}

func getOrder(t *testing.T, deps Deps, orderID string) *state.OrderState {
	t.Helper()
	deps.State.Lock()
	defer deps.State.Unlock()
	order, ok := deps.State.GetOrderLocked(orderID)
	if !ok {
		t.Fatalf("order %s not found", orderID)
	}
	return order
}

// S1: happy-path buyer flow.
func TestDispatchS1OrderRequestHappyPath(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)

	deps.State.Lock()
	deps.State.MarkListingValidatedLocked(addr)
	deps.State.Unlock()

	orderID := "ord-1"
	payload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
	ev, tags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, payload)

	if err := HandleEvent(context.Background(), deps, ev, tags); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	order := getOrder(t, deps, orderID)
	if order.Status != state.StatusRequested {
		t.Fatalf("status = %s, want %s", order.Status, state.StatusRequested)
	}
	if ft.count() != 1 {
		t.Fatalf("sent count = %d, want 1", ft.count())
	}
	if len(ft.sentTo(sellerPub)) != 1 {
		t.Fatalf("expected exactly one outbound envelope addressed to the seller")
	}
}

// S2: replay of the exact same event is a silent no-op.
func TestDispatchS2Replay(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)
	deps.State.Lock()
	deps.State.MarkListingValidatedLocked(addr)
	deps.State.Unlock()

	orderID := "ord-1"
	payload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
	ev, tags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, payload)

	if err := HandleEvent(context.Background(), deps, ev, tags); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	if err := HandleEvent(context.Background(), deps, ev, tags); err != nil {
		t.Fatalf("replay dispatch: %v", err)
	}

	if ft.count() != 1 {
		t.Fatalf("sent count = %d, want 1 (replay must not re-send)", ft.count())
	}
	order := getOrder(t, deps, orderID)
	if len(order.SeenEventIDs) != 1 {
		t.Fatalf("seen_event_ids size = %d, want 1", len(order.SeenEventIDs))
	}
}

// S3: a terminal-state transition attempt is rejected and leaves state intact.
func TestDispatchS3TransitionRejection(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)
	deps.State.Lock()
	deps.State.MarkListingValidatedLocked(addr)
	deps.State.Unlock()

	orderID := "ord-1"
	reqPayload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
	reqEv, reqTags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, reqPayload)
	if err := HandleEvent(context.Background(), deps, reqEv, reqTags); err != nil {
		t.Fatalf("order_request: %v", err)
	}

	respPayload := protocol.OrderResponsePayload{Accepted: false}
	respEv, respTags := buildInboundEvent(t, protocol.MessageOrderResponse, addr, &orderID, sellerPub, daemonPub, respPayload)
	if err := HandleEvent(context.Background(), deps, respEv, respTags); err != nil {
		t.Fatalf("order_response(decline): %v", err)
	}
	order := getOrder(t, deps, orderID)
	if order.Status != state.StatusDeclined {
		t.Fatalf("status = %s, want %s", order.Status, state.StatusDeclined)
	}

	fulfillPayload := protocol.FulfillmentUpdatePayload{OrderID: orderID, Status: "shipped"}
	fulfillEv, fulfillTags := buildInboundEvent(t, protocol.MessageFulfillmentUpdate, addr, &orderID, sellerPub, daemonPub, fulfillPayload)
	err := HandleEvent(context.Background(), deps, fulfillEv, fulfillTags)
	if err == nil {
		t.Fatal("expected InvalidTransition error from a Declined order")
	}
	if rhierr.CodeOf(err) != rhierr.InvalidTransition {
		t.Fatalf("error code = %s, want %s", rhierr.CodeOf(err), rhierr.InvalidTransition)
	}

	order = getOrder(t, deps, orderID)
	if order.Status != state.StatusDeclined {
		t.Fatalf("status changed to %s after rejected transition", order.Status)
	}
}

// S4: a non-seller cannot answer an order_request with order_response.
func TestDispatchS4Authorization(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)
	deps.State.Lock()
	deps.State.MarkListingValidatedLocked(addr)
	deps.State.Unlock()

	orderID := "ord-1"
	reqPayload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
	reqEv, reqTags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, reqPayload)
	if err := HandleEvent(context.Background(), deps, reqEv, reqTags); err != nil {
		t.Fatalf("order_request: %v", err)
	}

	respPayload := protocol.OrderResponsePayload{Accepted: true}
	respEv, respTags := buildInboundEvent(t, protocol.MessageOrderResponse, addr, &orderID, buyerPub, daemonPub, respPayload)
	err := HandleEvent(context.Background(), deps, respEv, respTags)
	if err == nil {
		t.Fatal("expected Unauthorized error when the buyer answers its own request")
	}
	if rhierr.CodeOf(err) != rhierr.Unauthorized {
		t.Fatalf("error code = %s, want %s", rhierr.CodeOf(err), rhierr.Unauthorized)
	}

	order := getOrder(t, deps, orderID)
	if order.Status != state.StatusRequested {
		t.Fatalf("status changed to %s after rejected authorization", order.Status)
	}
}

// S5: cancel from either side routes to the other party.
func TestDispatchS5CancelEitherSide(t *testing.T) {
	for _, tc := range []struct {
		name      string
		author    string
		recipient string
	}{
		{"buyer_cancels", buyerPub, sellerPub},
		{"seller_cancels", sellerPub, buyerPub},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ft := newFakeTransport()
			deps, daemonPub := newTestDeps(t, ft)
			addr := listingAddrFor(sellerPub)
			deps.State.Lock()
			deps.State.MarkListingValidatedLocked(addr)
			deps.State.Unlock()

			orderID := "ord-1"
			reqPayload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
			reqEv, reqTags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, reqPayload)
			if err := HandleEvent(context.Background(), deps, reqEv, reqTags); err != nil {
				t.Fatalf("order_request: %v", err)
			}

			cancelPayload := protocol.CancelPayload{OrderID: orderID, Reason: "changed my mind"}
			cancelEv, cancelTags := buildInboundEvent(t, protocol.MessageCancel, addr, &orderID, tc.author, daemonPub, cancelPayload)
			if err := HandleEvent(context.Background(), deps, cancelEv, cancelTags); err != nil {
				t.Fatalf("cancel: %v", err)
			}

			order := getOrder(t, deps, orderID)
			if order.Status != state.StatusCancelled {
				t.Fatalf("status = %s, want %s", order.Status, state.StatusCancelled)
			}
			cancels := 0
			for _, b := range ft.sentTo(tc.recipient) {
				if b.Kind == protocol.MessageCancel.Kind() {
					cancels++
				}
			}
			if cancels != 1 {
				t.Fatalf("expected the cancel notice addressed to %s", tc.recipient)
			}
		})
	}
}

// S6: listing validation resolves by filter and marks the listing validated.
func TestDispatchS6ListingValidation(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)

	ft.fetchEvents = []transport.SignedEvent{
		{
			ID:           "listing-ev-1",
			AuthorPubkey: sellerPub,
			Kind:         transport.EventKind{Custom: protocol.ListingKind},
			Content:      `{"title":"a real listing"}`,
			Tags:         [][]string{{"d", "listing-1"}},
			CreatedAt:    1,
		},
	}

	payload := protocol.ListingValidateRequestPayload{}
	ev, tags := buildInboundEvent(t, protocol.MessageListingValidateRequest, addr, nil, buyerPub, daemonPub, payload)

	if err := HandleEvent(context.Background(), deps, ev, tags); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if !deps.State.IsListingValidated(addr) {
		t.Fatal("expected listing to be marked validated")
	}
	sent := ft.sentTo(buyerPub)
	if len(sent) != 1 {
		t.Fatalf("expected exactly one ListingValidateResult addressed to the requester, got %d", len(sent))
	}
	env, err := protocol.ParseEnvelope(sent[0].Content)
	if err != nil {
		t.Fatalf("ParseEnvelope(result): %v", err)
	}
	var result protocol.ListingValidateResultPayload
	if err := env.DecodePayload(&result); err != nil {
		t.Fatalf("DecodePayload(result): %v", err)
	}
	if !result.Valid {
		t.Fatalf("result.Valid = false, errors = %v", result.Errors)
	}
}

// S7: two concurrent handler tasks for the same event must agree on exactly
// one winner.
func TestDispatchS7ConcurrentDuplicateDispatch(t *testing.T) {
	ft := newFakeTransport()
	deps, daemonPub := newTestDeps(t, ft)
	addr := listingAddrFor(sellerPub)
	deps.State.Lock()
	deps.State.MarkListingValidatedLocked(addr)
	deps.State.Unlock()

	orderID := "ord-1"
	reqPayload := protocol.OrderRequestPayload{OrderID: orderID, ListingAddr: addr, BuyerPubkey: buyerPub, SellerPubkey: sellerPub}
	reqEv, reqTags := buildInboundEvent(t, protocol.MessageOrderRequest, addr, &orderID, buyerPub, daemonPub, reqPayload)
	if err := HandleEvent(context.Background(), deps, reqEv, reqTags); err != nil {
		t.Fatalf("order_request: %v", err)
	}

	respPayload := protocol.OrderResponsePayload{Accepted: true}
	respEv, respTags := buildInboundEvent(t, protocol.MessageOrderResponse, addr, &orderID, sellerPub, daemonPub, respPayload)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = HandleEvent(context.Background(), deps, respEv, respTags)
		}(i)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("both concurrent dispatches should return nil (one wins, one replays): %v / %v", errs[0], errs[1])
	}

	order := getOrder(t, deps, orderID)
	if order.Status != state.StatusAccepted {
		t.Fatalf("status = %s, want %s", order.Status, state.StatusAccepted)
	}
	if len(order.SeenEventIDs) != 2 {
		t.Fatalf("seen_event_ids size = %d, want 2 (order_request + order_response)", len(order.SeenEventIDs))
	}
	if len(ft.sentTo(buyerPub)) != 1 {
		t.Fatalf("expected exactly one outbound envelope to the buyer, got %d", len(ft.sentTo(buyerPub)))
	}
}
