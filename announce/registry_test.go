package announce

import (
	"testing"
	"time"

	"github.com/kadnode/kadnode/kadid"
)

type fakePublisher struct {
	calls int
	fail  bool
}

func (f *fakePublisher) Announce(id kadid.ID, port int, lifetime time.Time) error {
	f.calls++
	if f.fail {
		return errFake
	}
	return nil
}

var errFake = fakeErr("fake publish failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestTickOnceRemovesAfterPublish(t *testing.T) {
	r := NewRegistry()
	r.Add(kadid.FromQuery("foo"), 1234, Once)

	pub := &fakePublisher{}
	n := r.Tick(time.Now(), pub)

	if n != 1 {
		t.Fatalf("published = %d, want 1", n)
	}
	if len(r.Get()) != 0 {
		t.Fatalf("expected entry removed after one-shot tick, got %d remaining", len(r.Get()))
	}
}

func TestTickForeverNeverRemoved(t *testing.T) {
	r := NewRegistry()
	r.Add(kadid.FromQuery("foo"), 1234, Forever)

	pub := &fakePublisher{}
	for i := 0; i < 3; i++ {
		r.Tick(time.Now(), pub)
	}
	if len(r.Get()) != 1 {
		t.Fatalf("expected entry to survive, got %d remaining", len(r.Get()))
	}
	if pub.calls != 3 {
		t.Fatalf("expected 3 publishes, got %d", pub.calls)
	}
}

func TestTickExpiredRemovedWithoutPublish(t *testing.T) {
	r := NewRegistry()
	past := time.Now().Add(-time.Minute)
	r.Add(kadid.FromQuery("foo"), 1234, past)

	pub := &fakePublisher{}
	r.Tick(time.Now(), pub)

	if pub.calls != 0 {
		t.Fatalf("expired entry should not be published, got %d calls", pub.calls)
	}
	if len(r.Get()) != 0 {
		t.Fatalf("expired entry should be removed")
	}
}

func TestTickFutureLifetimeKeepsPublishing(t *testing.T) {
	r := NewRegistry()
	future := time.Now().Add(time.Hour)
	r.Add(kadid.FromQuery("foo"), 1234, future)

	pub := &fakePublisher{}
	r.Tick(time.Now(), pub)

	if pub.calls != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.calls)
	}
	if len(r.Get()) != 1 {
		t.Fatalf("entry with future lifetime should be kept")
	}
}
