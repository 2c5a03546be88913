package state

import "testing"

func TestTradeListingStateOrderLifecycle(t *testing.T) {
	st := NewTradeListingState()
	st.Lock()
	if st.OrderExistsLocked("o1") {
		t.Fatal("fresh state should have no orders")
	}
	st.InsertOrderLocked(NewOrderState("o1", "30402:s:l", "buyer", "seller"))
	st.Unlock()

	order, ok := func() (*OrderState, bool) {
		st.Lock()
		defer st.Unlock()
		return st.GetOrderLocked("o1")
	}()
	if !ok || order.Status != StatusRequested {
		t.Fatalf("expected order in StatusRequested, got %+v ok=%v", order, ok)
	}

	if st.IsEventSeen("o1", "ev1") {
		t.Fatal("ev1 should not be seen yet")
	}
	st.Lock()
	fresh := st.MarkEventSeenLocked("o1", "ev1")
	st.Unlock()
	if !fresh {
		t.Fatal("first MarkEventSeenLocked should report fresh=true")
	}
	if !st.IsEventSeen("o1", "ev1") {
		t.Fatal("ev1 should now be seen")
	}
}

func TestTradeListingStateValidatedListings(t *testing.T) {
	st := NewTradeListingState()
	addr := "30402:s:l"
	if st.IsListingValidated(addr) {
		t.Fatal("fresh state should have no validated listings")
	}
	st.Lock()
	st.MarkListingValidatedLocked(addr)
	st.Unlock()
	if !st.IsListingValidated(addr) {
		t.Fatal("expected listing to be validated")
	}
	if st.ValidatedListingCount() != 1 {
		t.Fatalf("ValidatedListingCount() = %d, want 1", st.ValidatedListingCount())
	}
}

func TestOrderSnapshot(t *testing.T) {
	st := NewTradeListingState()
	st.Lock()
	st.InsertOrderLocked(NewOrderState("o1", "30402:s:l", "buyer", "seller"))
	st.Unlock()

	snap := st.OrderSnapshot()
	if snap["o1"] != StatusRequested {
		t.Fatalf("snapshot[o1] = %s, want %s", snap["o1"], StatusRequested)
	}
}
