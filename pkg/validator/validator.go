// Package validator is the external listing-validation contract: the core
// treats it as an opaque predicate with a typed error set and never
// inspects listing-domain fields itself.
package validator

import (
	"fmt"

	"github.com/rad-roots-labs/rhi/pkg/transport"
)

// ValidationError is the typed error set a Validator may return. The core
// treats any non-nil error as "listing not valid" regardless of variant.
type ValidationError struct {
	Kind        string
	ListingAddr string
	Detail      string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.ListingAddr)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.ListingAddr, e.Detail)
}

func NotFound(listingAddr string) *ValidationError {
	return &ValidationError{Kind: "listing_event_not_found", ListingAddr: listingAddr}
}

func FetchFailed(listingAddr string, cause error) *ValidationError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &ValidationError{Kind: "listing_event_fetch_failed", ListingAddr: listingAddr, Detail: detail}
}

func Structural(listingAddr, detail string) *ValidationError {
	return &ValidationError{Kind: "listing_event_structurally_invalid", ListingAddr: listingAddr, Detail: detail}
}

// Validator validates a resolved listing event before the daemon admits it
// into validated_listings.
type Validator interface {
	ValidateListingEvent(ev transport.SignedEvent, listingAddr string) error
}

// ReferenceValidator is a minimal structural reference implementation: it
// checks the event carries the listing kind and a non-empty content body.
// Real deployments are expected to supply their own domain-specific
// Validator; this one exists so the daemon is runnable out of the box.
type ReferenceValidator struct{}

func (ReferenceValidator) ValidateListingEvent(ev transport.SignedEvent, listingAddr string) error {
	if ev.Kind.Custom != 30402 {
		return Structural(listingAddr, "listing event kind is not 30402")
	}
	if ev.Content == "" {
		return Structural(listingAddr, "listing event content is empty")
	}
	return nil
}
