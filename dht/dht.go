// Package dht defines the external collaborator interface the core
// calls into for name resolution (spec §4.F, §6.4). The real
// Kademlia routing table, bucket maintenance, and wire codec are
// explicitly out of scope; this package's Node type is a minimal
// in-memory reference implementation sufficient to drive the command
// protocol end to end, not a production DHT.
package dht

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadnode/kadnode/kadid"
	"github.com/kadnode/kadnode/netaddr"
)

// LookupStatus is the three-valued-plus-count result the spec assigns
// to lookup: negative is an error, 0 is "in progress", a positive
// value with Count > 0 is a resolved address count, and a positive
// value with Count == 0 is "started" (the Open Question in spec.md
// §9 resolved explicitly in this collaborator's favor).
type LookupStatus int

const (
	LookupError      LookupStatus = -1
	LookupInProgress LookupStatus = 0
	LookupStarted    LookupStatus = 1
)

// Collaborator is the DHT operational surface the core depends on.
// Implementations own the actual routing table and wire protocol.
type Collaborator interface {
	Ping(ctx context.Context, addr netaddr.Addr) error
	Lookup(query string) (status LookupStatus, results []netaddr.Addr)
	Announce(id kadid.ID, port int, lifetime time.Time) error
	AnnounceOnce(id kadid.ID, port int) error
	Blacklist(addr netaddr.Addr)
	ExportNodes(max int) []netaddr.Addr
	Status(w io.Writer) error
	DebugDump(topic string, w io.Writer) error
}

// Node is a minimal in-memory reference Collaborator: enough state to
// answer status/lookup/export/blacklist without a real Kademlia
// routing table. Lookups resolve synchronously against the records
// seeded through ImportRecord (Announce only logs and stores nothing),
// modeling "found immediately" rather than exercising the asynchronous
// in-progress path a real network round trip would need.
type Node struct {
	mu        sync.RWMutex
	self      kadid.ID
	records   map[kadid.ID][]netaddr.Addr
	blacklist []netaddr.Addr
	knownGood []netaddr.Addr
	log       *logrus.Entry
}

// NewNode builds a reference node identified by self.
func NewNode(self kadid.ID) *Node {
	return &Node{
		self:    self,
		records: make(map[kadid.ID][]netaddr.Addr),
		log:     logrus.WithField("component", "dht"),
	}
}

func (n *Node) Ping(ctx context.Context, addr netaddr.Addr) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log.WithField("addr", addr).Debug("dht: ping")
	n.addKnownGoodLocked(addr)
	return nil
}

func (n *Node) Lookup(query string) (LookupStatus, []netaddr.Addr) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	id := kadid.FromQuery(query)
	addrs, ok := n.records[id]
	if !ok || len(addrs) == 0 {
		return LookupStarted, nil
	}
	if len(addrs) > 16 {
		addrs = addrs[:16]
	}
	return LookupStatus(len(addrs)), addrs
}

func (n *Node) Announce(id kadid.ID, port int, lifetime time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.log.WithFields(logrus.Fields{"id": id, "port": port}).Debug("dht: announce")
	return nil
}

func (n *Node) AnnounceOnce(id kadid.ID, port int) error {
	return n.Announce(id, port, time.Time{})
}

func (n *Node) Blacklist(addr netaddr.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blacklist = append(n.blacklist, addr)
}

// Blacklisted reports whether addr (by family+bytes, ignoring port)
// is on the blacklist.
func (n *Node) Blacklisted(addr netaddr.Addr) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, b := range n.blacklist {
		if b.Equal(addr) {
			return true
		}
	}
	return false
}

func (n *Node) ExportNodes(max int) []netaddr.Addr {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if max > len(n.knownGood) {
		max = len(n.knownGood)
	}
	out := make([]netaddr.Addr, max)
	copy(out, n.knownGood[:max])
	return out
}

func (n *Node) Status(w io.Writer) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, err := fmt.Fprintf(w, "node_id=%s buckets=%d peers=%d\n", n.self, 0, len(n.knownGood))
	return err
}

func (n *Node) DebugDump(topic string, w io.Writer) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch topic {
	case "blacklist":
		for _, a := range n.blacklist {
			fmt.Fprintln(w, a)
		}
	case "buckets":
		fmt.Fprintln(w, "0 buckets (routing table out of scope)")
	case "constants":
		fmt.Fprintln(w, "k=8 alpha=3 id_bits=160")
	case "results", "searches", "storage", "values":
		ids := make([]string, 0, len(n.records))
		for id := range n.records {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
	default:
		return fmt.Errorf("dht: unknown debug topic %q", topic)
	}
	return nil
}

func (n *Node) addKnownGoodLocked(addr netaddr.Addr) {
	for _, a := range n.knownGood {
		if a.Equal(addr) {
			return
		}
	}
	n.knownGood = append(n.knownGood, addr)
}

// ImportRecord registers addr as resolvable under id, used by tests
// and by a future bootstrap path to seed the reference node without a
// real network exchange.
func (n *Node) ImportRecord(id kadid.ID, addr netaddr.Addr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records[id] = append(n.records[id], addr)
	n.addKnownGoodLocked(addr)
}
