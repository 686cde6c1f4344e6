package notify

import (
	"sync"

	"github.com/tabletap/tabletap/pkg/event"
)

// seqTracker remembers the highest sequence applied per order so duplicate
// and out-of-order redeliveries become no-ops. At-least-once consumption
// makes duplicates routine, not exceptional.
type seqTracker struct {
	mu   sync.Mutex
	last map[string]int64
}

func newSeqTracker() *seqTracker {
	return &seqTracker{last: make(map[string]int64)}
}

// fresh records the event's sequence and reports whether it advances the
// order. Events at or below the last applied sequence are stale.
func (t *seqTracker) fresh(evt *event.OrderEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if evt.Sequence <= t.last[evt.OrderID] {
		return false
	}
	t.last[evt.OrderID] = evt.Sequence
	return true
}
