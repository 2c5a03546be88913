package protocol

// BuildOutbound assembles the (kind, content, tags) triple for an outbound
// event: content is the serialized Envelope, tags are ["p", recipient],
// ["a", listing_addr], and, when orderID is non-nil, ["d", *orderID] — in
// that fixed order, so every handler produces tag ordering identically
// rather than re-deriving it ad hoc.
func BuildOutbound(mt MessageType, listingAddr string, orderID *string, recipient string, payload any) (kind uint16, content string, tags [][]string, err error) {
	content, err = Build(mt, listingAddr, orderID, payload)
	if err != nil {
		return 0, "", nil, err
	}

	tags = [][]string{
		{"p", recipient},
		{"a", listingAddr},
	}
	if orderID != nil {
		tags = append(tags, []string{"d", *orderID})
	}

	return mt.Kind(), content, tags, nil
}
