// Command kadnoded runs the name-resolver core as a standalone
// process: it wires the value layer, announcement registry,
// forwarding loop, DHT collaborator and command protocol into the
// single cooperative event loop and runs it until interrupted.
package main

import (
	"crypto/rand"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/kadnode/kadnode/announce"
	"github.com/kadnode/kadnode/authext"
	"github.com/kadnode/kadnode/command"
	"github.com/kadnode/kadnode/config"
	"github.com/kadnode/kadnode/dht"
	"github.com/kadnode/kadnode/engine"
	"github.com/kadnode/kadnode/forwarding"
	"github.com/kadnode/kadnode/kadid"
)

func main() {
	cfg := config.ParseFlags()
	configureLogging(cfg)

	self := randomID()
	logrus.WithField("id", self).Info("kadnoded: starting")

	node := dht.NewNode(self)
	registry := announce.NewRegistry()

	var fwd *forwarding.Loop
	if cfg.EnableForwarding {
		fwd = buildForwardingLoop(cfg)
		// The node's own DHT port is forwarded permanently, independent
		// of any announcement (spec.md's forwardings_setup behavior).
		fwd.Add(cfg.DHTPort, forwarding.Forever)
	}

	var auth *authext.Registry
	if cfg.EnableAuth {
		keys, err := authext.GenerateKeyPair()
		if err != nil {
			logrus.WithError(err).Fatal("kadnoded: generating auth key pair")
		}
		auth = authext.NewRegistry(keys)
	}

	dispatcher := command.NewDispatcher(registry, fwd, node, auth, cfg.Family, cfg.QuerySuffix, cfg.DHTPort, cfg.Daemon)

	udp, err := command.NewUDPTransport(cfg.CommandPort)
	if err != nil {
		logrus.WithError(err).Fatal("kadnoded: binding command socket")
	}

	var console *command.ConsoleTransport
	if !cfg.Daemon && !cfg.DisableStdin {
		console = command.NewConsoleTransport(true)
	}

	loop := engine.New(engine.Config{
		Dispatcher:       dispatcher,
		Registry:         registry,
		Node:             node,
		UDP:              udp,
		Console:          console,
		AnnounceInterval: cfg.AnnounceInterval,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logrus.WithField("signal", sig).Info("kadnoded: shutting down")
		loop.Stop()
	}()

	loop.Run()

	if udp != nil {
		_ = udp.Close()
	}
}

func configureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFile == "" {
		return
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.WithError(err).Fatal("kadnoded: opening log file")
	}
	logrus.SetOutput(f)
}

// buildForwardingLoop wires the NAT-PMP and UPnP backends named in
// SPEC_FULL.md's DOMAIN STACK. NAT-PMP requires a gateway address;
// when none is configured that backend is left nil and only UPnP's
// SSDP discovery drives the loop.
func buildForwardingLoop(cfg *config.Config) *forwarding.Loop {
	var natpmpBackend *forwarding.NATPMPBackend
	if cfg.Gateway != "" {
		gw := net.ParseIP(cfg.Gateway)
		if gw == nil {
			logrus.WithField("gateway", cfg.Gateway).Warn("kadnoded: invalid -gateway, disabling NAT-PMP")
		} else {
			natpmpBackend = forwarding.NewNATPMPBackend(gw)
		}
	}

	upnpBackend := forwarding.NewUPnPBackend(cfg.UPnPInternalIP)

	if natpmpBackend == nil {
		return forwarding.NewLoop(nil, upnpBackend)
	}
	return forwarding.NewLoop(natpmpBackend, upnpBackend)
}

// randomID generates this process's 160-bit DHT identity. The
// routing table that would normally persist and stabilize this value
// across restarts is out of scope; a fresh random identity each run
// is the documented placeholder.
func randomID() kadid.ID {
	var id kadid.ID
	if _, err := rand.Read(id[:]); err != nil {
		logrus.WithError(err).Fatal("kadnoded: generating node id")
	}
	return id
}
