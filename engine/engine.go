// Package engine wires the value layer, announcement registry,
// forwarding loop, DHT collaborator and command protocol together
// into the single cooperative event loop described in spec.md §5.
//
// The original is a single-threaded process selecting over a set of
// readiness descriptors plus a periodic tick. Go has no idiomatic
// equivalent of raw select/poll over heterogeneous file descriptors,
// so this translates the same single-writer discipline into a
// select over channels fed by small reader goroutines (the command
// transports) and a time.Ticker, with exactly one goroutine — this
// one — ever touching the registries, the forwarding loop or the DHT
// node.
package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadnode/kadnode/announce"
	"github.com/kadnode/kadnode/clock"
	"github.com/kadnode/kadnode/command"
	"github.com/kadnode/kadnode/dht"
	"github.com/kadnode/kadnode/kadid"
)

const tickInterval = time.Second

// Loop is the single-threaded cooperative event loop (spec §5).
type Loop struct {
	dispatcher       *command.Dispatcher
	registry         *announce.Registry
	node             *dht.Node
	udp              *command.UDPTransport
	console          *command.ConsoleTransport
	announceInterval time.Duration
	clock            *clock.System

	log *logrus.Entry

	stop chan struct{}
}

// Config bundles the collaborators Loop drives. Forwarding is driven
// indirectly through dispatcher.Forwarding (nil if disabled).
type Config struct {
	Dispatcher       *command.Dispatcher
	Registry         *announce.Registry
	Node             *dht.Node
	UDP              *command.UDPTransport
	Console          *command.ConsoleTransport
	AnnounceInterval time.Duration
}

// New builds a Loop from cfg. UDP and Console may be nil if their
// transports are disabled.
func New(cfg Config) *Loop {
	return &Loop{
		dispatcher:       cfg.Dispatcher,
		registry:         cfg.Registry,
		node:             cfg.Node,
		udp:              cfg.UDP,
		console:          cfg.Console,
		announceInterval: cfg.AnnounceInterval,
		clock:            clock.NewSystem(),
		log:              logrus.WithField("component", "engine"),
		stop:             make(chan struct{}),
	}
}

// Stop asks Run to return after its current iteration.
func (l *Loop) Stop() {
	close(l.stop)
}

// Run drives the loop until Stop is called. It fires a tick (driving
// the forwarding loop and, at announceInterval granularity, the
// announcement registry) roughly once per second, and dispatches
// whichever transport has a request ready.
func (l *Loop) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var lastAnnounce time.Time
	var udpCh <-chan command.UDPRequest
	var consoleCh <-chan string

	if l.udp != nil {
		udpCh = l.udp.Requests()
	}
	if l.console != nil {
		consoleCh = l.console.Lines()
	}

	for {
		select {
		case <-l.stop:
			return

		case now := <-ticker.C:
			l.tick(now, &lastAnnounce)

		case req, ok := <-udpCh:
			if !ok {
				udpCh = nil
				continue
			}
			l.handleUDP(req)

		case line, ok := <-consoleCh:
			if !ok {
				consoleCh = nil
				continue
			}
			l.handleConsole(line)
		}
	}
}

func (l *Loop) tick(now time.Time, lastAnnounce *time.Time) {
	l.clock.Advance(now)
	if l.dispatcher.Forwarding != nil {
		l.dispatcher.Forwarding.Tick(now)
	}
	if now.Sub(*lastAnnounce) >= l.announceInterval {
		*lastAnnounce = now
		published := l.registry.Tick(now, announcePublisher{l.node})
		if published > 0 {
			l.log.WithField("count", published).Debug("engine: announced entries")
		}
	}
}

func (l *Loop) handleUDP(req command.UDPRequest) {
	argv := command.ParseArgv(req.Data)
	reply := command.NewReply(false)
	l.dispatcher.Handle(argv, reply, l.clock.Now())
	l.udp.Reply(req.From, reply)
}

func (l *Loop) handleConsole(line string) {
	argv := command.ParseArgv([]byte(line))
	reply := command.NewReply(true)
	l.dispatcher.Handle(argv, reply, l.clock.Now())
	l.console.Reply(reply)
}

type announcePublisher struct {
	node *dht.Node
}

func (p announcePublisher) Announce(id kadid.ID, port int, lifetime time.Time) error {
	return p.node.Announce(id, port, lifetime)
}
