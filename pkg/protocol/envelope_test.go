package protocol

import "testing"

func TestParseEnvelopeRequiresKnownMessageType(t *testing.T) {
	_, err := ParseEnvelope(`{"message_type":"nonsense","listing_addr":"30402:s:l","order_id":"o1","payload":{}}`)
	if err == nil {
		t.Fatal("expected error for unknown message_type")
	}
}

func TestParseEnvelopeRequiresListingAddr(t *testing.T) {
	_, err := ParseEnvelope(`{"message_type":"cancel","order_id":"o1","payload":{"order_id":"o1"}}`)
	if err == nil {
		t.Fatal("expected error for missing listing_addr")
	}
}

func TestParseEnvelopeRequiresOrderIDWhenApplicable(t *testing.T) {
	_, err := ParseEnvelope(`{"message_type":"cancel","listing_addr":"30402:s:l","payload":{"order_id":"o1"}}`)
	if err == nil {
		t.Fatal("expected error: cancel requires order_id")
	}
}

func TestParseEnvelopeAllowsMissingOrderIDForListingValidate(t *testing.T) {
	env, err := ParseEnvelope(`{"message_type":"listing_validate_request","listing_addr":"30402:s:l","payload":{}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.OrderID != nil {
		t.Fatalf("expected nil order_id, got %v", *env.OrderID)
	}
}

func TestParseEnvelopeRequiresPayload(t *testing.T) {
	_, err := ParseEnvelope(`{"message_type":"listing_validate_request","listing_addr":"30402:s:l"}`)
	if err == nil {
		t.Fatal("expected error for missing payload")
	}
}

func TestCheckKindMismatch(t *testing.T) {
	env, err := ParseEnvelope(`{"message_type":"cancel","listing_addr":"30402:s:l","order_id":"o1","payload":{"order_id":"o1"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.CheckKind(MessageCancel.Kind()); err != nil {
		t.Fatalf("expected matching kind to pass: %v", err)
	}
	if err := env.CheckKind(1); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestBuildOutboundTagOrder(t *testing.T) {
	orderID := "o1"
	kind, _, tags, err := BuildOutbound(MessageCancel, "30402:s:l", &orderID, "recipient-hex", CancelPayload{OrderID: orderID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != MessageCancel.Kind() {
		t.Fatalf("kind = %d, want %d", kind, MessageCancel.Kind())
	}
	want := [][]string{{"p", "recipient-hex"}, {"a", "30402:s:l"}, {"d", "o1"}}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i][0] != want[i][0] || tags[i][1] != want[i][1] {
			t.Fatalf("tags[%d] = %v, want %v", i, tags[i], want[i])
		}
	}
}

func TestBuildOutboundOmitsDTagWhenOrderIDNil(t *testing.T) {
	_, _, tags, err := BuildOutbound(MessageListingValidateRequest, "30402:s:l", nil, "recipient-hex", ListingValidateRequestPayload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tag := range tags {
		if tag[0] == "d" {
			t.Fatalf("unexpected d tag: %v", tags)
		}
	}
}
