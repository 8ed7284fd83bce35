package clock

import (
	"testing"
	"time"
)

func TestSystemCachesBetweenAdvances(t *testing.T) {
	t0 := time.Now()
	c := NewSystem()
	c.Advance(t0)

	if !c.Now().Equal(t0) {
		t.Fatalf("Now() = %v, want %v", c.Now(), t0)
	}

	t1 := t0.Add(time.Minute)
	if c.Now().Equal(t1) {
		t.Fatal("Now() should not change until Advance is called")
	}
	c.Advance(t1)
	if !c.Now().Equal(t1) {
		t.Fatalf("Now() = %v, want %v after Advance", c.Now(), t1)
	}
}

func TestFixedNeverAdvances(t *testing.T) {
	at := time.Now()
	f := NewFixed(at)
	if !f.Now().Equal(at) {
		t.Fatalf("Now() = %v, want %v", f.Now(), at)
	}
}
