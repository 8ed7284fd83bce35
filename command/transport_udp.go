package command

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// maxRequestSize is the maximum request datagram size the UDP
// transport reads (spec §4.E: "up to 1499 bytes").
const maxRequestSize = 1499

// UDPRequest is one parsed-ready datagram handed from the reader
// goroutine to the event loop.
type UDPRequest struct {
	Data []byte
	From net.Addr
}

// UDPTransport binds the command protocol to the IPv6 loopback
// address, per spec §6: IPv4 clients are never served. A background
// goroutine reads datagrams into a channel the event loop drains on
// its own schedule, mirroring ToxPacketConn's reader-goroutine /
// buffered-channel split so the single-threaded loop never blocks in
// a socket read.
type UDPTransport struct {
	conn     *net.UDPConn
	incoming chan UDPRequest
	log      *logrus.Entry
}

// NewUDPTransport binds port on ::1. An empty port disables the
// transport and NewUDPTransport returns (nil, nil).
func NewUDPTransport(port string) (*UDPTransport, error) {
	if port == "" || port == "0" {
		return nil, nil
	}

	lc := net.ListenConfig{Control: v6OnlyControl}
	pc, err := lc.ListenPacket(context.Background(), "udp6", "[::1]:"+port)
	if err != nil {
		return nil, err
	}

	t := &UDPTransport{
		conn:     pc.(*net.UDPConn),
		incoming: make(chan UDPRequest, 16),
		log:      logrus.WithField("transport", "udp"),
	}
	go t.readLoop()
	return t, nil
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, maxRequestSize)
	for {
		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			t.log.WithError(err).Debug("command/udp: read loop exiting")
			close(t.incoming)
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		t.incoming <- UDPRequest{Data: data, From: addr}
	}
}

// Requests exposes the channel the event loop selects on.
func (t *UDPTransport) Requests() <-chan UDPRequest {
	return t.incoming
}

// Reply sends reply's wire bytes back to the request's source,
// unicast, with no retry on a truncated send.
func (t *UDPTransport) Reply(to net.Addr, reply *Reply) {
	t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = t.conn.WriteTo(reply.Bytes(), to)
}

// Close releases the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
