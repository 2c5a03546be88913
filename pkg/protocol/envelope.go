package protocol

import (
	"encoding/json"

	"github.com/rad-roots-labs/rhi/pkg/rhierr"
)

// Envelope is the JSON document carried in a signed event's content field.
// Payload is decoded twice: once here as raw JSON, a second time into the
// concrete variant once MessageType is known (DecodePayload).
type Envelope struct {
	MessageType MessageType     `json:"message_type"`
	ListingAddr string          `json:"listing_addr"`
	OrderID     *string         `json:"order_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes content into an Envelope. Any JSON error collapses
// to InvalidEnvelope, matching the serialization-error policy.
func ParseEnvelope(content string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, rhierr.Wrap(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "content is not valid envelope JSON", err)
	}
	if err := env.validateStructure(); err != nil {
		return nil, err
	}
	return &env, nil
}

// validateStructure enforces the required/forbidden field rules of the
// envelope invariant, independent of any enclosing event.
func (e *Envelope) validateStructure() error {
	if !e.MessageType.Valid() {
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "unknown message_type %q", e.MessageType)
	}
	if e.ListingAddr == "" {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "missing listing_addr")
	}
	if e.MessageType.RequiresOrderID() && (e.OrderID == nil || *e.OrderID == "") {
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "message_type %q requires order_id", e.MessageType)
	}
	if !e.MessageType.RequiresOrderID() && e.OrderID != nil {
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "message_type %q does not take order_id", e.MessageType)
	}
	if len(e.Payload) == 0 {
		return rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "missing payload")
	}
	return nil
}

// CheckKind cross-checks the envelope's message_type against the enclosing
// event's custom kind.
func (e *Envelope) CheckKind(eventKind uint16) error {
	if e.MessageType.Kind() != eventKind {
		return rhierr.Newf(rhierr.FamilyProtocol, rhierr.TagMismatch, "kind mismatch: envelope wants %d, event carries %d", e.MessageType.Kind(), eventKind)
	}
	return nil
}

// DecodePayload unmarshals e.Payload into dst, the concrete variant expected
// for e.MessageType. Failure is InvalidPayload, not InvalidEnvelope.
func (e *Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return rhierr.Wrap(rhierr.FamilyProtocol, rhierr.InvalidPayload, "payload does not match message_type", err)
	}
	return nil
}

// Build serializes an Envelope for outbound content.
func Build(mt MessageType, listingAddr string, orderID *string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", rhierr.Wrap(rhierr.FamilyProtocol, rhierr.InvalidPayload, "failed to marshal outbound payload", err)
	}
	env := Envelope{
		MessageType: mt,
		ListingAddr: listingAddr,
		OrderID:     orderID,
		Payload:     raw,
	}
	out, err := json.Marshal(env)
	if err != nil {
		return "", rhierr.Wrap(rhierr.FamilyProtocol, rhierr.InvalidEnvelope, "failed to marshal outbound envelope", err)
	}
	return string(out), nil
}
