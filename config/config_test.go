package config

import (
	"flag"
	"os"
	"testing"

	"github.com/kadnode/kadnode/netaddr"
)

func TestParseFlagsDefaults(t *testing.T) {
	originalArgs := os.Args
	originalCommandLine := flag.CommandLine
	defer func() {
		os.Args = originalArgs
		flag.CommandLine = originalCommandLine
	}()

	os.Args = []string{"kadnoded"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseFlags()

	if cfg.DHTPort != 6881 {
		t.Errorf("DHTPort = %d, want 6881", cfg.DHTPort)
	}
	if cfg.Family != netaddr.FamilyAny {
		t.Errorf("Family = %v, want FamilyAny", cfg.Family)
	}
	if cfg.QuerySuffix != ".p2p" {
		t.Errorf("QuerySuffix = %q, want \".p2p\"", cfg.QuerySuffix)
	}
	if !cfg.EnableForwarding {
		t.Error("EnableForwarding should default to true")
	}
	if cfg.EnableAuth {
		t.Error("EnableAuth should default to false")
	}
}

func TestParseFlagsFamilyOverride(t *testing.T) {
	originalArgs := os.Args
	originalCommandLine := flag.CommandLine
	defer func() {
		os.Args = originalArgs
		flag.CommandLine = originalCommandLine
	}()

	os.Args = []string{"kadnoded", "-family", "ipv6", "-port", "9999"}
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseFlags()

	if cfg.Family != netaddr.FamilyIPv6 {
		t.Errorf("Family = %v, want FamilyIPv6", cfg.Family)
	}
	if cfg.DHTPort != 9999 {
		t.Errorf("DHTPort = %d, want 9999", cfg.DHTPort)
	}
}
