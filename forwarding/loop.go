// Package forwarding implements the port-forwarding control loop: a
// single round-robin state machine that drives NAT-PMP-style and
// UPnP-style router-control back-ends to keep external port mappings
// alive for announced ports.
package forwarding

import (
	"container/list"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	scanInterval  = 60 * time.Second
	staleAfter    = 30 * time.Minute
	leaseDuration = 32 * time.Minute
)

// backendSlot tracks one adapter's attach/detach state the way the
// original's `natpmp`/`upnp` globals do: a nil handle means the
// backend is currently disabled (after an ERROR) and due for re-init
// before it is tried again.
type backendSlot struct {
	backend Backend
	active  bool
}

func (s *backendSlot) enable(log *logrus.Entry, name string) {
	if s.backend == nil || s.active {
		return
	}
	if err := s.backend.Init(); err != nil {
		log.WithError(err).WithField("backend", name).Debug("forwarding: init failed, will retry next tick")
		return
	}
	s.active = true
}

func (s *backendSlot) disable(log *logrus.Entry, name string) {
	if s.backend == nil || !s.active {
		return
	}
	if err := s.backend.Uninit(); err != nil {
		log.WithError(err).WithField("backend", name).Warn("forwarding: uninit failed")
	}
	s.active = false
}

// Loop is the forwarding state machine (spec component C). It owns no
// locks: it is driven exclusively from the single-threaded event
// loop's periodic tick.
type Loop struct {
	entries *list.List // of *entry
	cur     *list.Element
	retryAt time.Time

	natpmp backendSlot
	upnp   backendSlot

	log *logrus.Entry
}

// NewLoop builds a forwarding loop. Either backend may be nil to
// disable that router-control mechanism entirely.
func NewLoop(natpmp, upnp Backend) *Loop {
	return &Loop{
		entries: list.New(),
		natpmp:  backendSlot{backend: natpmp},
		upnp:    backendSlot{backend: upnp},
		log:     logrus.WithField("component", "forwarding"),
	}
}

// Add registers port for forwarding with the given lifetime (Forever
// for a permanent mapping, a concrete deadline otherwise). Ports <= 1
// are never forwarded (0 means "no port published"; 1 is reserved)
// and are silently ignored. If an entry for this port already exists
// its lifetime is updated in place; otherwise a new entry is
// prepended with refreshed = zero value so the next tick picks it up
// immediately regardless of the 60-second scan gate.
func (l *Loop) Add(port int, lifetime time.Time) {
	if port <= 1 {
		return
	}
	for e := l.entries.Front(); e != nil; e = e.Next() {
		ent := e.Value.(*entry)
		if ent.port == port {
			ent.lifetime = lifetime
			l.retryAt = time.Time{}
			return
		}
	}
	l.entries.PushFront(&entry{port: port, lifetime: lifetime})
	l.retryAt = time.Time{}
}

// Remove drops the entry for port, if any, and clears cur if it was
// pointing at the removed entry.
func (l *Loop) Remove(port int) bool {
	for e := l.entries.Front(); e != nil; e = e.Next() {
		if e.Value.(*entry).port == port {
			l.removeElement(e)
			return true
		}
	}
	return false
}

func (l *Loop) removeElement(e *list.Element) {
	if l.cur == e {
		l.cur = nil
	}
	l.entries.Remove(e)
}

// Entries returns a snapshot of forwarded ports, for the "list
// forwardings" debug command.
func (l *Loop) Entries() []int {
	ports := make([]int, 0, l.entries.Len())
	for e := l.entries.Front(); e != nil; e = e.Next() {
		ports = append(ports, e.Value.(*entry).port)
	}
	return ports
}

// Tick drives one forwarding entry through the back-ends, per spec.md
// §4.C. NAT-PMP is tried first; UPnP is reached in the same tick only
// when NAT-PMP did not end the tick with DONE or RETRY (it was just
// enabled, is absent, or returned ERROR).
func (l *Loop) Tick(now time.Time) {
	if l.cur == nil {
		if l.retryAt.After(now) {
			return
		}
		l.cur = l.entries.Front()
		l.retryAt = now.Add(scanInterval)
	}

	e := l.cur
	for e != nil {
		ent := e.Value.(*entry)
		if ent.refreshed.Add(staleAfter).Before(now) {
			break
		}
		e = e.Next()
	}
	if e == nil {
		l.cur = nil
		return
	}
	l.cur = e

	ent := e.Value.(*entry)
	lifespan := leaseDuration
	if ent.expired(now) {
		lifespan = 0
	}

	if l.handle(&l.natpmp, "natpmp", ent, e, lifespan, now) {
		return
	}
	l.handle(&l.upnp, "upnp", ent, e, lifespan, now)
}

// handle drives a single backend slot for one entry, per the
// DONE/RETRY/ERROR contract. Returns true if the tick should stop
// here (DONE or RETRY); ERROR falls through so the other back-end
// gets a chance the same tick.
func (l *Loop) handle(slot *backendSlot, name string, ent *entry, e *list.Element, lifespan time.Duration, now time.Time) bool {
	if !slot.active {
		slot.enable(l.log, name)
		return false
	}

	switch slot.backend.Handle(ent.port, lifespan, now) {
	case Done:
		if lifespan == 0 {
			l.log.WithFields(logrus.Fields{"backend": name, "port": ent.port}).Debug("forwarding: removing mapping")
			l.removeElement(e)
		} else {
			l.log.WithFields(logrus.Fields{"backend": name, "port": ent.port}).Debug("forwarding: refreshed mapping")
			ent.refreshed = now
		}
		return true
	case Retry:
		// cur already points at e; next tick resumes here. Unlike the
		// original (which falls through to the other back-end on
		// retry), this stops the tick: an in-flight handshake with one
		// back-end must not overlap a fresh exchange with the other
		// for the same entry.
		return true
	case Error:
		l.log.WithField("backend", name).Info("forwarding: disabling backend, not available")
		slot.disable(l.log, name)
		return false
	default:
		l.log.WithField("backend", name).Error("forwarding: unhandled backend reply")
		return false
	}
}
