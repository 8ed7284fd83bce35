// Package announce implements the announcement registry (spec
// component B): the set of local (id, port, lifetime) bindings that
// must periodically re-publish themselves into the DHT.
package announce

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadnode/kadnode/kadid"
)

// Forever marks an entry that republishes for the lifetime of the
// process.
var Forever = time.Unix(1<<62, 0)

// Once marks an entry that publishes exactly once, then is dropped.
var Once = time.Time{}

// Entry is a single (id, port, lifetime) binding. Entries are owned
// exclusively by the Registry; other components only see them
// transiently during a tick.
type Entry struct {
	ID       kadid.ID
	Port     int
	Lifetime time.Time
}

// Publisher is the DHT collaborator's announce operation, invoked
// once per entry per tick. The real DHT internals are out of scope;
// the registry only calls through this narrow interface (spec §6.4).
type Publisher interface {
	Announce(id kadid.ID, port int, lifetime time.Time) error
}

// Registry is the in-memory, insertion-ordered sequence of
// announcement entries.
type Registry struct {
	entries []*Entry
	log     *logrus.Entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{log: logrus.WithField("component", "announce")}
}

// Add appends a new entry. No deduplication by id is performed.
func (r *Registry) Add(id kadid.ID, port int, lifetime time.Time) {
	r.entries = append(r.entries, &Entry{ID: id, Port: port, Lifetime: lifetime})
}

// Get returns the current entries in stable insertion order. The
// returned slice must not be mutated by the caller.
func (r *Registry) Get() []*Entry {
	return r.entries
}

// Tick republishes and expires entries per spec.md §4.B:
//   - lifetime == Once (zero value): publish, then remove.
//   - lifetime == Forever: publish every tick forever.
//   - otherwise: publish while lifetime >= now; remove without
//     publishing once lifetime < now.
//
// Returns the number of entries successfully published; the engine
// logs it. The bare "announce" command does not call Tick.
func (r *Registry) Tick(now time.Time, pub Publisher) int {
	published := 0
	kept := r.entries[:0]

	for _, e := range r.entries {
		switch {
		case e.Lifetime.Equal(Once):
			if err := pub.Announce(e.ID, e.Port, e.Lifetime); err != nil {
				r.log.WithError(err).WithField("id", e.ID).Warn("announce: one-shot publish failed")
			} else {
				published++
			}
			// dropped regardless: one-shot entries are removed after
			// their single attempt.
		case e.Lifetime.Equal(Forever), !e.Lifetime.Before(now):
			if err := pub.Announce(e.ID, e.Port, e.Lifetime); err != nil {
				r.log.WithError(err).WithField("id", e.ID).Warn("announce: publish failed")
			} else {
				published++
			}
			kept = append(kept, e)
		default:
			// lifetime < now: expired, drop without publishing.
		}
	}

	r.entries = kept
	return published
}

// Debug writes a human-readable dump of the registry to w.
func (r *Registry) Debug(w io.Writer) {
	for _, e := range r.entries {
		fmt.Fprintf(w, "%s port=%d lifetime=%s\n", e.ID, e.Port, formatLifetime(e.Lifetime))
	}
}

func formatLifetime(t time.Time) string {
	switch {
	case t.Equal(Once):
		return "once"
	case t.Equal(Forever):
		return "forever"
	default:
		return t.Format(time.RFC3339)
	}
}
