package forwarding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// NAT-PMP (RFC 6886) opcodes this client uses.
const (
	natpmpVersion          = 0
	natpmpOpMapUDP         = 1
	natpmpResultBaseMapUDP = 128 + natpmpOpMapUDP
	natpmpGatewayPort      = 5351
)

var errNATPMPUnsupported = errors.New("natpmp: gateway did not understand request")

// NATPMPClient speaks just enough of RFC 6886 to request and release
// a single UDP port mapping at a time.
type NATPMPClient struct {
	gateway net.IP
	timeout time.Duration
	conn    *net.UDPConn
}

// NewNATPMPClient builds a client targeting the given gateway address
// (typically the default route's first hop).
func NewNATPMPClient(gateway net.IP) *NATPMPClient {
	return &NATPMPClient{gateway: gateway, timeout: 250 * time.Millisecond}
}

func (c *NATPMPClient) open() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: c.gateway, Port: natpmpGatewayPort})
	if err != nil {
		return fmt.Errorf("natpmp: dial gateway: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *NATPMPClient) close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// RequestMapping asks the gateway to map internalPort to the same
// external port over UDP for the given lease (0 to release the
// mapping). Returns the granted lease duration.
func (c *NATPMPClient) RequestMapping(internalPort int, lease time.Duration) (time.Duration, error) {
	if err := c.open(); err != nil {
		return 0, err
	}

	req := make([]byte, 12)
	req[0] = natpmpVersion
	req[1] = natpmpOpMapUDP
	binary.BigEndian.PutUint16(req[4:6], uint16(internalPort))
	binary.BigEndian.PutUint16(req[6:8], uint16(internalPort))
	binary.BigEndian.PutUint32(req[8:12], uint32(lease.Seconds()))

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write(req); err != nil {
		return 0, fmt.Errorf("natpmp: send request: %w", err)
	}

	resp := make([]byte, 16)
	n, err := c.conn.Read(resp)
	if err != nil {
		return 0, err // timeout or gateway unreachable; caller maps to RETRY
	}
	if n < 16 || resp[1] != natpmpResultBaseMapUDP {
		return 0, errNATPMPUnsupported
	}
	resultCode := binary.BigEndian.Uint16(resp[2:4])
	if resultCode != 0 {
		return 0, fmt.Errorf("natpmp: gateway returned error code %d", resultCode)
	}
	grantedLease := binary.BigEndian.Uint32(resp[12:16])
	return time.Duration(grantedLease) * time.Second, nil
}

// NATPMPBackend adapts NATPMPClient to the Backend contract (spec
// component D). Every Init reopens the UDP socket to the configured
// gateway, so a disabled backend can recover once the router comes
// back; no gateway discovery is performed.
type NATPMPBackend struct {
	client *NATPMPClient
	log    *logrus.Entry
}

// NewNATPMPBackend builds a backend targeting the given gateway IP.
func NewNATPMPBackend(gateway net.IP) *NATPMPBackend {
	return &NATPMPBackend{
		client: NewNATPMPClient(gateway),
		log:    logrus.WithField("backend", "natpmp"),
	}
}

func (b *NATPMPBackend) Init() error {
	return b.client.open()
}

func (b *NATPMPBackend) Uninit() error {
	return b.client.close()
}

func (b *NATPMPBackend) Handle(port int, lifespan time.Duration, now time.Time) Result {
	_, err := b.client.RequestMapping(port, lifespan)
	if err != nil {
		if errors.Is(err, errNATPMPUnsupported) {
			b.log.WithError(err).Debug("natpmp: gateway does not support NAT-PMP")
			return Error
		}
		b.log.WithError(err).Debug("natpmp: request timed out, retrying next tick")
		return Retry
	}
	return Done
}
