package command

import (
	"strings"
	"testing"
	"time"

	"github.com/kadnode/kadnode/announce"
	"github.com/kadnode/kadnode/dht"
	"github.com/kadnode/kadnode/forwarding"
	"github.com/kadnode/kadnode/kadid"
	"github.com/kadnode/kadnode/netaddr"
)

func newTestDispatcher() *Dispatcher {
	reg := announce.NewRegistry()
	fwd := forwarding.NewLoop(nil, nil)
	node := dht.NewNode(kadid.FromQuery("self"))
	return NewDispatcher(reg, fwd, node, nil, netaddr.FamilyAny, ".p2p", 6881, false)
}

func TestBlacklistScenario(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"blacklist", "10.0.0.1"}, reply, time.Now())

	if reply.Failed() {
		t.Fatalf("blacklist should not fail: %s", reply.Body())
	}
	want := "Added to blacklist: 10.0.0.1:0\n"
	if reply.Body() != want {
		t.Fatalf("body = %q, want %q", reply.Body(), want)
	}
}

func TestAnnounceWithMinutesScenario(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	now := time.Now()
	d.Handle([]string{"announce", "foo.p2p:5000", "45"}, reply, now)

	if reply.Failed() {
		t.Fatalf("announce should not fail: %s", reply.Body())
	}
	if !strings.Contains(reply.Body(), "Start regular announcements for 60 minutes (port 5000).") {
		t.Fatalf("unexpected body: %q", reply.Body())
	}

	entries := d.Registry.Get()
	if len(entries) != 1 || entries[0].Port != 5000 {
		t.Fatalf("expected one registry entry for port 5000, got %v", entries)
	}
	if d.Forwarding.Entries()[0] != 5000 {
		t.Fatalf("expected forwarding entry for port 5000")
	}
}

func TestAnnounceSingleShotScenario(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"announce", "foo.p2p:0"}, reply, time.Now())

	if reply.Failed() {
		t.Fatalf("announce should not fail: %s", reply.Body())
	}
	if !strings.Contains(reply.Body(), "Start single announcement now.") {
		t.Fatalf("unexpected body: %q", reply.Body())
	}
	if len(d.Forwarding.Entries()) != 0 {
		t.Fatalf("port 0 must not add a forwarding entry")
	}
}

func TestAnnounceExplicitZeroMinutesIsSingleShot(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"announce", "foo.p2p:10", "0"}, reply, time.Now())

	if !strings.Contains(reply.Body(), "Start single announcement now.") {
		t.Fatalf("unexpected body: %q", reply.Body())
	}
}

func TestBareAnnounceReAnnouncesWithoutMutatingRegistry(t *testing.T) {
	d := newTestDispatcher()
	now := time.Now()

	d.Handle([]string{"announce", "foo.p2p:10"}, NewReply(false), now)          // single-shot
	d.Handle([]string{"announce", "bar.p2p:20", "-1"}, NewReply(false), now)    // forever
	if len(d.Registry.Get()) != 2 {
		t.Fatalf("expected 2 registry entries before bare announce, got %d", len(d.Registry.Get()))
	}

	reply := NewReply(false)
	d.Handle([]string{"announce"}, reply, now)

	if reply.Failed() {
		t.Fatalf("bare announce should never fail: %s", reply.Body())
	}
	if reply.Body() != "2 announcements started.\n" {
		t.Fatalf("body = %q, want entry count of 2", reply.Body())
	}
	if len(d.Registry.Get()) != 2 {
		t.Fatalf("bare announce must not mutate the registry, got %d entries", len(d.Registry.Get()))
	}
}

func TestAnnounceNegativeMinutesIsForever(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"announce", "foo.p2p:10", "-1"}, reply, time.Now())

	if !strings.Contains(reply.Body(), "entire run time") {
		t.Fatalf("unexpected body: %q", reply.Body())
	}
}

func TestListRefusedOverUDP(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false) // UDP: allow_debug = false
	d.Handle([]string{"list", "skeys"}, reply, time.Now())

	if !reply.Failed() {
		t.Fatalf("expected list to fail over UDP")
	}
}

func TestListRefusedInDaemonMode(t *testing.T) {
	d := newTestDispatcher()
	d.Daemon = true
	reply := NewReply(true)
	d.Handle([]string{"list", "blacklist"}, reply, time.Now())

	if !reply.Failed() {
		t.Fatalf("expected list to be refused in daemon mode")
	}
}

func TestUnknownCommandRepliesUsage(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"bogus"}, reply, time.Now())

	if !reply.Failed() {
		t.Fatalf("expected failure for unknown command")
	}
	if !strings.Contains(reply.Body(), "Usage:") {
		t.Fatalf("expected usage text, got %q", reply.Body())
	}
}

func TestStatusNeverFails(t *testing.T) {
	d := newTestDispatcher()
	reply := NewReply(false)
	d.Handle([]string{"status"}, reply, time.Now())

	if reply.Failed() {
		t.Fatalf("status should never fail: %s", reply.Body())
	}
}
