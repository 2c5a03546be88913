package protocol

// Payload shapes, one per MessageType. Each is obtained by a second
// unmarshal of the envelope's untyped payload JSON once message_type is
// known (see envelope.go DecodePayload).

type OrderRequestPayload struct {
	OrderID      string `json:"order_id"`
	ListingAddr  string `json:"listing_addr"`
	BuyerPubkey  string `json:"buyer_pubkey"`
	SellerPubkey string `json:"seller_pubkey"`
}

type OrderResponsePayload struct {
	Accepted bool   `json:"accepted"`
	Note     string `json:"note,omitempty"`
}

type OrderRevisionPayload struct {
	Terms string `json:"terms"`
	Note  string `json:"note,omitempty"`
}

type OrderRevisionAcceptPayload struct {
	Accepted bool `json:"accepted"`
}

type OrderRevisionDeclinePayload struct {
	Accepted bool `json:"accepted"`
}

type QuestionPayload struct {
	OrderID *string `json:"order_id,omitempty"`
	Text    string  `json:"text"`
}

type AnswerPayload struct {
	OrderID *string `json:"order_id,omitempty"`
	Text    string  `json:"text"`
}

type DiscountRequestPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type DiscountOfferPayload struct {
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

// DiscountAcceptPayload and DiscountDeclinePayload are structurally
// identical; the envelope's message_type (and thus the event kind) is the
// only discriminant between accept and decline, so handlers dispatch on
// kind rather than on any field inside the payload itself.
type DiscountAcceptPayload struct {
	OrderID string `json:"order_id"`
}

type DiscountDeclinePayload struct {
	OrderID string `json:"order_id"`
}

type CancelPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

type FulfillmentUpdatePayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ReceiptPayload struct {
	OrderID string `json:"order_id"`
	Note    string `json:"note,omitempty"`
}

// ListingValidateRequestPayload carries an optional explicit event pointer;
// when absent the handler resolves the listing by filter instead.
type ListingValidateRequestPayload struct {
	ListingEvent *string `json:"listing_event,omitempty"`
}

type ListingValidateResultPayload struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
