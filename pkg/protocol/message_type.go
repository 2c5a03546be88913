package protocol

// MessageType is the closed set of trade-listing envelope kinds. Kind() is a
// lookup in kindByMessageType, one distinct kind per value; RequiresOrderID()
// is false only for the two listing-validation kinds. A value added to the
// const block without a kindByMessageType entry is not a compile error:
// Kind() returns zero for it and Valid() reports false.
type MessageType string

const (
	MessageListingValidateRequest MessageType = "listing_validate_request"
	MessageListingValidateResult  MessageType = "listing_validate_result"
	MessageOrderRequest           MessageType = "order_request"
	MessageOrderResponse          MessageType = "order_response"
	MessageOrderRevision          MessageType = "order_revision"
	MessageOrderRevisionAccept    MessageType = "order_revision_accept"
	MessageOrderRevisionDecline   MessageType = "order_revision_decline"
	MessageQuestion               MessageType = "question"
	MessageAnswer                 MessageType = "answer"
	MessageDiscountRequest        MessageType = "discount_request"
	MessageDiscountOffer          MessageType = "discount_offer"
	MessageDiscountAccept         MessageType = "discount_accept"
	MessageDiscountDecline        MessageType = "discount_decline"
	MessageCancel                 MessageType = "cancel"
	MessageFulfillmentUpdate      MessageType = "fulfillment_update"
	MessageReceipt                MessageType = "receipt"
)

// AllMessageTypes is the fixed set the subscriber filters the transport on.
var AllMessageTypes = []MessageType{
	MessageListingValidateRequest,
	MessageListingValidateResult,
	MessageOrderRequest,
	MessageOrderResponse,
	MessageOrderRevision,
	MessageOrderRevisionAccept,
	MessageOrderRevisionDecline,
	MessageQuestion,
	MessageAnswer,
	MessageDiscountRequest,
	MessageDiscountOffer,
	MessageDiscountAccept,
	MessageDiscountDecline,
	MessageCancel,
	MessageFulfillmentUpdate,
	MessageReceipt,
}

var kindByMessageType = map[MessageType]uint16{
	MessageListingValidateRequest: 31700,
	MessageListingValidateResult:  31701,
	MessageOrderRequest:           31702,
	MessageOrderResponse:          31703,
	MessageOrderRevision:          31704,
	MessageOrderRevisionAccept:    31705,
	MessageOrderRevisionDecline:   31706,
	MessageQuestion:               31707,
	MessageAnswer:                 31708,
	MessageDiscountRequest:        31709,
	MessageDiscountOffer:          31710,
	MessageDiscountAccept:         31711,
	MessageDiscountDecline:        31712,
	MessageCancel:                 31713,
	MessageFulfillmentUpdate:      31714,
	MessageReceipt:                31715,
}

var messageTypeByKind = func() map[uint16]MessageType {
	m := make(map[uint16]MessageType, len(kindByMessageType))
	for mt, k := range kindByMessageType {
		m[k] = mt
	}
	return m
}()

// Kind returns the enclosing signed event's custom kind for mt. Zero if mt
// is not one of AllMessageTypes.
func (mt MessageType) Kind() uint16 {
	return kindByMessageType[mt]
}

// MessageTypeFromKind is the inverse of Kind, used by the dispatcher to
// classify an inbound signed event before it has parsed the envelope.
func MessageTypeFromKind(kind uint16) (MessageType, bool) {
	mt, ok := messageTypeByKind[kind]
	return mt, ok
}

// RequiresOrderID is true for every MessageType except the two
// listing-validation kinds, which operate on a listing rather than an order.
func (mt MessageType) RequiresOrderID() bool {
	switch mt {
	case MessageListingValidateRequest, MessageListingValidateResult:
		return false
	default:
		return true
	}
}

func (mt MessageType) Valid() bool {
	_, ok := kindByMessageType[mt]
	return ok
}
