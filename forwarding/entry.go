package forwarding

import "time"

// Forever is the sentinel lifetime for an entry that should be
// refreshed indefinitely (the node's own DHT port, and any announce
// with a negative minute count).
var Forever = time.Unix(1<<62, 0)

// entry mirrors the original's {port, lifetime, refreshed} record.
// Invariant: port > 1; refreshed <= the now value last observed by
// the loop.
type entry struct {
	port      int
	lifetime  time.Time
	refreshed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.lifetime.Equal(Forever) && e.lifetime.Before(now)
}
