package usecase

import "sync"

// Tracker remembers which riders were offered which order, so a settled
// assignment can report whether it was contended. Transient in-memory
// bookkeeping; losing it on restart is safe because the order store stays
// authoritative.
type Tracker struct {
	mu sync.Mutex
	m  map[string]map[string]struct{} // order id -> rider ids notified
}

func NewTracker() *Tracker {
	return &Tracker{m: make(map[string]map[string]struct{})}
}

func (t *Tracker) Offered(orderID string, riderIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.m[orderID]
	if !ok {
		set = make(map[string]struct{})
		t.m[orderID] = set
	}
	for _, id := range riderIDs {
		set[id] = struct{}{}
	}
}

// Settle removes the order and reports whether anyone besides the winner had
// been offered it.
func (t *Tracker) Settle(orderID, winnerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.m[orderID]
	if !ok {
		return false
	}
	delete(t.m, orderID)
	delete(set, winnerID)
	return len(set) > 0
}

// Drop forgets an order without reporting (cancellations).
func (t *Tracker) Drop(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, orderID)
}
