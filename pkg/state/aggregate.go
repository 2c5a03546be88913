package state

import "sync"

// TradeListingState is the single mutex-guarded aggregate: a validated-
// listing set plus the order map. The lock is fair and non-reentrant; every
// dispatcher handler acquires it once per preamble and releases it before
// any outbound I/O.
type TradeListingState struct {
	mu                sync.Mutex
	validatedListings map[string]struct{}
	orders            map[string]*OrderState
}

func NewTradeListingState() *TradeListingState {
	return &TradeListingState{
		validatedListings: make(map[string]struct{}),
		orders:            make(map[string]*OrderState),
	}
}

// Lock/Unlock expose the single critical section a handler's preamble runs
// inside; every method with the Locked suffix assumes the caller already
// holds the lock — the locking discipline lives at the call site (the
// dispatcher), not inside each accessor. The unsuffixed read-only wrappers
// further down take the lock themselves.
func (s *TradeListingState) Lock()   { s.mu.Lock() }
func (s *TradeListingState) Unlock() { s.mu.Unlock() }

// MarkListingValidatedLocked is an idempotent insert.
func (s *TradeListingState) MarkListingValidatedLocked(addr string) {
	s.validatedListings[addr] = struct{}{}
}

func (s *TradeListingState) IsListingValidatedLocked(addr string) bool {
	_, ok := s.validatedListings[addr]
	return ok
}

func (s *TradeListingState) OrderExistsLocked(orderID string) bool {
	_, ok := s.orders[orderID]
	return ok
}

func (s *TradeListingState) GetOrderLocked(orderID string) (*OrderState, bool) {
	o, ok := s.orders[orderID]
	return o, ok
}

// InsertOrderLocked must only be called when OrderExistsLocked(order.OrderID)
// is false.
func (s *TradeListingState) InsertOrderLocked(order *OrderState) {
	s.orders[order.OrderID] = order
}

// IsEventSeenLocked is false if the order is absent.
func (s *TradeListingState) IsEventSeenLocked(orderID, eventID string) bool {
	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	return o.IsSeen(eventID)
}

// MarkEventSeenLocked returns true iff eventID was freshly recorded. No-op
// (returns false) if the order is absent.
func (s *TradeListingState) MarkEventSeenLocked(orderID, eventID string) bool {
	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	return o.MarkSeen(eventID)
}

// IsListingValidated and IsEventSeen are convenience read-only wrappers for
// callers outside a handler's critical section (tests, diagnostics).
func (s *TradeListingState) IsListingValidated(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsListingValidatedLocked(addr)
}

func (s *TradeListingState) IsEventSeen(orderID, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsEventSeenLocked(orderID, eventID)
}

// OrderSnapshot returns a shallow copy of current order statuses, used by
// pkg/diag's read-only state endpoint.
func (s *TradeListingState) OrderSnapshot() map[string]OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]OrderStatus, len(s.orders))
	for id, o := range s.orders {
		out[id] = o.Status
	}
	return out
}

func (s *TradeListingState) ValidatedListingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.validatedListings)
}
