package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadnode/kadnode/announce"
	"github.com/kadnode/kadnode/authext"
	"github.com/kadnode/kadnode/dht"
	"github.com/kadnode/kadnode/forwarding"
	"github.com/kadnode/kadnode/kadid"
	"github.com/kadnode/kadnode/netaddr"
	"github.com/kadnode/kadnode/query"
)

const usage = "Usage:\n" +
	"\tstatus\n" +
	"\tlookup <query>\n" +
	"\tannounce [<query>[:<port>] [<minutes>]]\n" +
	"\timport <addr>\n" +
	"\texport\n" +
	"\tblacklist <addr>\n"

const usageDebug = "\tlist [blacklist|buckets|constants|forwardings|skeys|pkeys|results|searches|storage|values]\n"

// debugTopics are the topics cmd_exec's "list" branch understands.
// Topics for modules this build does not compile in (forwarding,
// auth) are still listed here since the core is built with both
// enabled; a build lacking them would need to shrink this set per
// spec.md §9's conditional-feature-compilation note.
var debugTopics = map[string]bool{
	"blacklist": true, "buckets": true, "constants": true,
	"forwardings": true, "skeys": true, "pkeys": true,
	"results": true, "searches": true, "storage": true, "values": true,
}

// Dispatcher executes parsed command lines against the registry,
// forwarding loop and DHT collaborator. It holds no transport state;
// Handle is safe to call repeatedly from the single-threaded event
// loop.
type Dispatcher struct {
	Registry    *announce.Registry
	Forwarding  *forwarding.Loop
	Node        *dht.Node
	Auth        *authext.Registry
	Family      netaddr.Family
	QuerySuffix string
	DHTPort     int
	Daemon      bool

	log *logrus.Entry
}

// NewDispatcher builds a dispatcher wired to the given collaborators.
func NewDispatcher(reg *announce.Registry, fwd *forwarding.Loop, node *dht.Node, auth *authext.Registry, family netaddr.Family, querySuffix string, dhtPort int, daemon bool) *Dispatcher {
	return &Dispatcher{
		Registry:    reg,
		Forwarding:  fwd,
		Node:        node,
		Auth:        auth,
		Family:      family,
		QuerySuffix: querySuffix,
		DHTPort:     dhtPort,
		Daemon:      daemon,
		log:         logrus.WithField("component", "command"),
	}
}

// Handle dispatches one already-split command line, writing the
// result into reply. now is the cached tick instant shared by the
// rest of the core.
func (d *Dispatcher) Handle(argv []string, reply *Reply, now time.Time) {
	if len(argv) == 0 {
		reply.Printf("%s", usage)
		if reply.AllowDebug() {
			reply.Printf("%s", usageDebug)
		}
		reply.Fail()
		return
	}

	switch argv[0] {
	case "status":
		d.handleStatus(argv, reply)
	case "lookup":
		d.handleLookup(argv, reply)
	case "announce":
		d.handleAnnounce(argv, reply, now)
	case "import":
		d.handleImport(argv, reply)
	case "export":
		d.handleExport(argv, reply)
	case "blacklist":
		d.handleBlacklist(argv, reply)
	case "list":
		d.handleList(argv, reply)
	default:
		reply.Printf("%s", usage)
		if reply.AllowDebug() {
			reply.Printf("%s", usageDebug)
		}
		reply.Fail()
	}
}

func (d *Dispatcher) handleStatus(argv []string, reply *Reply) {
	if len(argv) != 1 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}
	if err := d.Node.Status(replyWriter{reply}); err != nil {
		d.log.WithError(err).Warn("command: status failed")
	}
}

func (d *Dispatcher) handleLookup(argv []string, reply *Reply) {
	if len(argv) != 2 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}

	sanitized, err := query.Sanitize(argv[1], d.QuerySuffix)
	if err != nil || !query.Valid(sanitized) {
		reply.Printf("Invalid query.\n")
		reply.Fail()
		return
	}

	status, results := d.Node.Lookup(sanitized)
	switch {
	case status > 0 && len(results) > 0:
		for _, a := range results {
			reply.Printf("%s\n", a)
		}
	case status < 0:
		reply.Printf("Some error occured.\n")
		reply.Fail()
	case status == dht.LookupInProgress:
		reply.Printf("Search in progress.\n")
		reply.Fail()
	default:
		// status > 0 with no results: "started", per the resolved
		// Open Question in spec.md §9.
		reply.Printf("Search started.\n")
		reply.Fail()
	}
}

func (d *Dispatcher) handleAnnounce(argv []string, reply *Reply, now time.Time) {
	if len(argv) == 1 {
		entries := d.Registry.Get()
		for _, e := range entries {
			if err := d.Node.AnnounceOnce(e.ID, e.Port); err != nil {
				d.log.WithError(err).WithField("id", e.ID).Warn("command: announce-once failed")
			}
		}
		reply.Printf("%d announcements started.\n", len(entries))
		return
	}
	if len(argv) != 2 && len(argv) != 3 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}

	var minutes int
	var lifetime time.Time
	if len(argv) == 3 {
		m, err := strconv.Atoi(argv[2])
		if err != nil {
			reply.Printf("Invalid port or query too long.\n")
			reply.Fail()
			return
		}
		switch {
		case m < 0:
			lifetime = announce.Forever
		case m == 0:
			// Explicit "0" minutes is single-shot, not 30 minutes
			// rounded up: spec.md §8 groups minutes==0 or absent under
			// the same single-announcement behavior.
			lifetime = announce.Once
		default:
			minutes = 30 * (m/30 + 1)
			lifetime = now.Add(time.Duration(minutes) * time.Minute)
		}
	} else {
		lifetime = announce.Once
	}

	host, port, err := splitHostPort(argv[1])
	if err != nil {
		reply.Printf("Invalid port or query too long.\n")
		reply.Fail()
		return
	}

	sanitized, err := query.Sanitize(host, d.QuerySuffix)
	if err != nil || !query.Valid(sanitized) {
		reply.Printf("Invalid port or query too long.\n")
		reply.Fail()
		return
	}

	id := kadid.FromQuery(sanitized)
	if err := d.Node.Announce(id, port, lifetime); err != nil {
		reply.Printf("Invalid port or query too long.\n")
		reply.Fail()
		return
	}
	d.Registry.Add(id, port, lifetime)

	if port != 0 && d.Forwarding != nil {
		d.Forwarding.Add(port, lifetime)
	}

	switch {
	case lifetime.Equal(announce.Once):
		reply.Printf("Start single announcement now.\n")
	case lifetime.Equal(announce.Forever):
		reply.Printf("Start regular announcements for the entire run time (port %d).\n", port)
	default:
		reply.Printf("Start regular announcements for %d minutes (port %d).\n", minutes, port)
	}
}

// splitHostPort implements the "%255[^:]:%d%4s" scanf grammar: host
// consumes up to 255 non-colon bytes; an optional ":<port>" may
// follow; any trailing garbage is a parse error. Port 0 (or absent)
// means "no port published".
func splitHostPort(s string) (host string, port int, err error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return s, 0, validateHostLen(s)
	}
	host = s[:idx]
	if err := validateHostLen(host); err != nil {
		return "", 0, err
	}
	p, convErr := strconv.Atoi(s[idx+1:])
	if convErr != nil {
		return "", 0, convErr
	}
	return host, p, nil
}

func validateHostLen(host string) error {
	if len(host) > 255 {
		return errHostTooLong
	}
	return nil
}

var errHostTooLong = errors.New("command: host too long")

func (d *Dispatcher) handleImport(argv []string, reply *Reply) {
	if len(argv) != 2 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}

	addr, err := netaddr.ParseFull(argv[1], strconv.Itoa(d.DHTPort), d.Family)
	if err != nil {
		if err == netaddr.ErrSyntax {
			reply.Printf("Failed to parse address.\n")
		} else {
			reply.Printf("Failed to resolve address.\n")
		}
		reply.Fail()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Node.Ping(ctx, addr); err != nil {
		reply.Printf("Failed to send ping.\n")
		reply.Fail()
		return
	}
	reply.Printf("Send ping to: %s\n", addr)
}

func (d *Dispatcher) handleExport(argv []string, reply *Reply) {
	if len(argv) != 1 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}

	addrs := d.Node.ExportNodes(32)
	for _, a := range addrs {
		reply.Printf("%s\n", a)
	}
	if len(addrs) == 0 {
		reply.Printf("No good nodes found.\n")
		reply.Fail()
	}
}

func (d *Dispatcher) handleBlacklist(argv []string, reply *Reply) {
	if len(argv) != 2 {
		reply.Printf("%s", usage)
		reply.Fail()
		return
	}
	addr, err := netaddr.ParseFull(argv[1], "0", d.Family)
	if err != nil {
		reply.Printf("Invalid address.\n")
		reply.Fail()
		return
	}
	d.Node.Blacklist(addr)
	reply.Printf("Added to blacklist: %s\n", addr)
}

func (d *Dispatcher) handleList(argv []string, reply *Reply) {
	if len(argv) != 2 || !reply.AllowDebug() {
		reply.Printf("%s", usage)
		if reply.AllowDebug() {
			reply.Printf("%s", usageDebug)
		}
		reply.Fail()
		return
	}
	if d.Daemon {
		reply.Printf("The 'list' command is not available while the node runs as a daemon.\n")
		reply.Fail()
		return
	}

	topic := argv[1]
	if !debugTopics[topic] {
		reply.Printf("Unknown argument.\n")
		reply.Fail()
		return
	}

	if err := d.dumpTopic(topic); err != nil {
		reply.Printf("Unknown argument.\n")
		reply.Fail()
		return
	}
	reply.Printf("\nOutput sent to console.\n")
}

func (d *Dispatcher) dumpTopic(topic string) error {
	switch topic {
	case "forwardings":
		if d.Forwarding == nil {
			return errModuleDisabled
		}
		for _, port := range d.Forwarding.Entries() {
			consolePrintln(port)
		}
		return nil
	case "pkeys":
		if d.Auth == nil {
			return errModuleDisabled
		}
		for _, line := range d.Auth.DebugPKeys() {
			consolePrintlnString(line)
		}
		return nil
	case "skeys":
		if d.Auth == nil {
			return errModuleDisabled
		}
		for _, line := range d.Auth.DebugSKeys() {
			consolePrintlnString(line)
		}
		return nil
	default:
		return d.Node.DebugDump(topic, consoleWriter{})
	}
}

var errModuleDisabled = errors.New("command: module not built in")

// replyWriter adapts *Reply to io.Writer for handlers that format
// through fmt.Fprintf.
type replyWriter struct {
	reply *Reply
}

func (w replyWriter) Write(p []byte) (int, error) {
	w.reply.Printf("%s", string(p))
	return len(p), nil
}
