package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rad-roots-labs/rhi/pkg/rhierr"
)

// ListingKind is the only custom event kind a ListingAddress may name.
const ListingKind uint16 = 30402

// ListingAddress is the canonical `kind:seller_pubkey:listing_id` naming a
// replaceable listing event.
type ListingAddress struct {
	Kind         uint16
	SellerPubkey string
	ListingID    string
}

// ParseListingAddress splits on the first two ':' characters, as required by
// the canonical address form (the listing_id itself may legally contain ':').
func ParseListingAddress(s string) (ListingAddress, error) {
	first := strings.IndexByte(s, ':')
	if first < 0 {
		return ListingAddress{}, rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidListingAddr, "missing ':' separators")
	}
	rest := s[first+1:]
	second := strings.IndexByte(rest, ':')
	if second < 0 {
		return ListingAddress{}, rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidListingAddr, "fewer than three segments")
	}

	kindStr := s[:first]
	sellerPubkey := rest[:second]
	listingID := rest[second+1:]

	kind, err := strconv.ParseUint(kindStr, 10, 16)
	if err != nil {
		return ListingAddress{}, rhierr.Wrap(rhierr.FamilyProtocol, rhierr.InvalidListingAddr, "kind is not a decimal u16", err)
	}
	if uint16(kind) != ListingKind {
		return ListingAddress{}, rhierr.Newf(rhierr.FamilyProtocol, rhierr.InvalidListingAddr, "kind %d is not %d", kind, ListingKind)
	}
	if sellerPubkey == "" || listingID == "" {
		return ListingAddress{}, rhierr.New(rhierr.FamilyProtocol, rhierr.InvalidListingAddr, "empty seller_pubkey or listing_id")
	}

	return ListingAddress{Kind: uint16(kind), SellerPubkey: sellerPubkey, ListingID: listingID}, nil
}

// Format is the inverse of ParseListingAddress for well-formed values.
func (a ListingAddress) Format() string {
	return fmt.Sprintf("%d:%s:%s", a.Kind, a.SellerPubkey, a.ListingID)
}

func (a ListingAddress) String() string { return a.Format() }
