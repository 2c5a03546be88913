package protocol

import "testing"

func TestParseListingAddressRoundTrip(t *testing.T) {
	addr := ListingAddress{Kind: ListingKind, SellerPubkey: "abc123", ListingID: "listing-1"}
	s := addr.String()

	parsed, err := ParseListingAddress(s)
	if err != nil {
		t.Fatalf("ParseListingAddress(%q): %v", s, err)
	}
	if parsed != addr {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, addr)
	}
}

func TestParseListingAddressAllowsColonInListingID(t *testing.T) {
	parsed, err := ParseListingAddress("30402:seller:listing:with:colons")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ListingID != "listing:with:colons" {
		t.Fatalf("listing id = %q", parsed.ListingID)
	}
}

func TestParseListingAddressRejectsWrongKind(t *testing.T) {
	if _, err := ParseListingAddress("1:seller:listing-1"); err == nil {
		t.Fatal("expected error for non-30402 kind")
	}
}

func TestParseListingAddressRejectsMissingSeparators(t *testing.T) {
	cases := []string{"", "30402", "30402:seller"}
	for _, c := range cases {
		if _, err := ParseListingAddress(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestParseListingAddressRejectsEmptySegments(t *testing.T) {
	cases := []string{"30402::listing-1", "30402:seller:"}
	for _, c := range cases {
		if _, err := ParseListingAddress(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}
