package main

import (
	"testing"

	"github.com/kadnode/kadnode/config"
)

func TestBuildForwardingLoopWithoutGateway(t *testing.T) {
	cfg := &config.Config{Gateway: "", UPnPInternalIP: "192.168.1.50"}
	loop := buildForwardingLoop(cfg)
	if loop == nil {
		t.Fatal("expected a non-nil loop even without a NAT-PMP gateway")
	}
}

func TestBuildForwardingLoopInvalidGateway(t *testing.T) {
	cfg := &config.Config{Gateway: "not-an-ip"}
	loop := buildForwardingLoop(cfg)
	if loop == nil {
		t.Fatal("an invalid gateway should fall back to UPnP-only, not a nil loop")
	}
}

func TestRandomIDIsNotDeterministic(t *testing.T) {
	a := randomID()
	b := randomID()
	if a == b {
		t.Fatal("two calls to randomID should not collide")
	}
}
