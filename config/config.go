// Package config defines the immutable configuration surface
// consumed by the rest of the core (spec §6). A Config is built once
// at startup from CLI flags and never mutated afterward; the
// executable hands each component the values it needs at construction
// time, so no component reads flags or the environment directly.
package config

import (
	"flag"
	"time"

	"github.com/kadnode/kadnode/netaddr"
)

// Config is the read-only, process-wide configuration value.
type Config struct {
	// DHTPort is the local UDP port the DHT collaborator listens on.
	DHTPort int
	// Family filters address resolution (AF_INET, AF_INET6, or
	// unspecified).
	Family netaddr.Family
	// QuerySuffix is the configured TLD suffix stripped during query
	// sanitization (e.g. ".p2p").
	QuerySuffix string
	// CommandPort is the port the loopback command UDP socket binds
	// to. An empty string disables the UDP command socket.
	CommandPort string
	// Daemon disables the console transport's interactive behavior
	// (and refuses "list" on it) when true.
	Daemon bool
	// DisableStdin disables the console transport entirely.
	DisableStdin bool
	// AnnounceInterval is how often the announcement registry's Tick
	// is invoked by the engine.
	AnnounceInterval time.Duration
	// EnableForwarding turns on the port-forwarding control loop.
	EnableForwarding bool
	// Gateway is the router address the NAT-PMP backend targets. An
	// empty value disables NAT-PMP, leaving UPnP as the only
	// forwarding backend.
	Gateway string
	// UPnPInternalIP is the LAN address the UPnP backend advertises
	// as the mapping target. It is sent as given; an empty value is
	// not replaced by a detected address.
	UPnPInternalIP string
	// EnableAuth turns on the signed-query authentication extension.
	EnableAuth bool
	// LogLevel and LogFile configure the ambient logrus logger.
	LogLevel string
	LogFile  string
}

// ParseFlags builds a Config from the process's command-line flags,
// in the style of the testnet harness's parseCLIFlags: one
// flag.XxxVar call per field, defaults set inline, flag.Parse called
// once at the end.
func ParseFlags() *Config {
	c := &Config{}

	var family string
	flag.IntVar(&c.DHTPort, "port", 6881, "DHT UDP port")
	flag.StringVar(&family, "family", "any", "address family filter: ipv4, ipv6, or any")
	flag.StringVar(&c.QuerySuffix, "query-tld", ".p2p", "query suffix stripped during sanitization")
	flag.StringVar(&c.CommandPort, "cmd-port", "6880", "loopback command UDP port; empty disables it")
	flag.BoolVar(&c.Daemon, "daemon", false, "run without an interactive console")
	flag.BoolVar(&c.DisableStdin, "no-stdin", false, "disable the console command transport")
	flag.DurationVar(&c.AnnounceInterval, "announce-interval", 20*time.Minute, "announcement republish cadence")
	flag.BoolVar(&c.EnableForwarding, "forwarding", true, "enable the NAT-PMP/UPnP forwarding loop")
	flag.StringVar(&c.Gateway, "gateway", "", "router address for the NAT-PMP backend; empty disables NAT-PMP")
	flag.StringVar(&c.UPnPInternalIP, "upnp-internal-ip", "", "LAN address advertised to the UPnP backend; not auto-detected")
	flag.BoolVar(&c.EnableAuth, "auth", false, "enable the signed-query authentication extension")
	flag.StringVar(&c.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&c.LogFile, "log-file", "", "log file path (default: stderr)")

	flag.Parse()

	switch family {
	case "ipv4":
		c.Family = netaddr.FamilyIPv4
	case "ipv6":
		c.Family = netaddr.FamilyIPv6
	default:
		c.Family = netaddr.FamilyAny
	}

	return c
}
