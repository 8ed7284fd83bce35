// Package netaddr implements the shared address value type and its
// parsing grammar: a tagged union of IPv4/IPv6 endpoints plus the
// bracketed/unbracketed address+port syntax accepted throughout the
// command protocol.
package netaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Family selects which address family a parse/resolve call accepts.
type Family int

const (
	// FamilyAny accepts either IPv4 or IPv6.
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

// ParseError distinguishes the three failure modes addr_parse_full
// reports: syntax, resolution, and family mismatch.
type ParseError int

const (
	// ErrSyntax is returned for a malformed address string.
	ErrSyntax ParseError = -1
	// ErrResolve is returned when the system resolver fails outright.
	ErrResolve ParseError = -2
	// ErrNoFamily is returned when resolution succeeds but no result
	// matches the requested family.
	ErrNoFamily ParseError = -3
)

func (e ParseError) Error() string {
	switch e {
	case ErrSyntax:
		return "netaddr: malformed address"
	case ErrResolve:
		return "netaddr: resolution failed"
	case ErrNoFamily:
		return "netaddr: no address in requested family"
	default:
		return "netaddr: parse error"
	}
}

// Addr is a tagged union of an IPv4 or IPv6 endpoint. Equality
// (Equal) ignores the port; the zero value is not a valid address.
type Addr struct {
	v6   bool
	ip   net.IP // 4 or 16 raw bytes, family-appropriate
	port int
}

// IsIPv6 reports whether the address is in the IPv6 family.
func (a Addr) IsIPv6() bool { return a.v6 }

// Port returns the address's port.
func (a Addr) Port() int { return a.port }

// IP returns the raw address bytes.
func (a Addr) IP() net.IP { return a.ip }

// Equal reports whether two addresses share a family and raw bytes;
// ports are ignored.
func (a Addr) Equal(b Addr) bool {
	return a.v6 == b.v6 && a.ip.Equal(b.ip)
}

// String renders the canonical text form: "A.B.C.D:P" for IPv4,
// "[x:x::x]:P" for IPv6.
func (a Addr) String() string {
	if a.ip == nil {
		return "<invalid address>"
	}
	if a.v6 {
		return fmt.Sprintf("[%s]:%d", a.ip.String(), a.port)
	}
	return fmt.Sprintf("%s:%d", a.ip.String(), a.port)
}

// New builds an Addr from a resolved net.IP and port.
func New(ip net.IP, port int) Addr {
	if v4 := ip.To4(); v4 != nil {
		return Addr{v6: false, ip: v4, port: port}
	}
	return Addr{v6: true, ip: ip.To16(), port: port}
}

// ParseFull accepts the grammar:
//
//	ADDR          -- bare address/hostname, uses defaultPort
//	ADDR:PORT     -- only when ADDR contains no colon
//	[ADDR]        -- bracketed, uses defaultPort
//	[ADDR]:PORT   -- bracketed with explicit port
//
// and resolves the result through the system resolver, filtered to
// family. The first resolved endpoint matching family wins.
func ParseFull(full, defaultPort string, family Family) (Addr, error) {
	if len(full) >= 256 {
		return Addr{}, ErrSyntax
	}

	addrStr, portStr, err := splitAddrPort(full, defaultPort)
	if err != nil {
		return Addr{}, err
	}
	return resolve(addrStr, portStr, family)
}

func splitAddrPort(full, defaultPort string) (addrStr, portStr string, err error) {
	if strings.HasPrefix(full, "[") {
		end := strings.LastIndex(full, "]")
		if end == -1 {
			return "", "", ErrSyntax
		}
		addrStr = full[1:end]
		rest := full[end+1:]
		switch {
		case rest == "":
			portStr = defaultPort
		case strings.HasPrefix(rest, ":"):
			portStr = rest[1:]
		default:
			return "", "", ErrSyntax
		}
		return addrStr, portStr, nil
	}

	firstColon := strings.Index(full, ":")
	lastColon := strings.LastIndex(full, ":")
	if firstColon != -1 && firstColon == lastColon {
		// exactly one colon: <non-ipv6-addr>:<port>
		return full[:firstColon], full[firstColon+1:], nil
	}
	// zero colons, or more than one (a bare IPv6 literal): whole
	// string is the address, default port applies.
	return full, defaultPort, nil
}

func resolve(addrStr, portStr string, family Family) (Addr, error) {
	port, err := resolvePort(portStr)
	if err != nil {
		return Addr{}, ErrSyntax
	}

	network := "ip"
	switch family {
	case FamilyIPv4:
		network = "ip4"
	case FamilyIPv6:
		network = "ip6"
	}

	ips, err := net.DefaultResolver.LookupIP(context.Background(), network, addrStr)
	if err != nil {
		return Addr{}, ErrResolve
	}

	for _, ip := range ips {
		if family == FamilyIPv4 && ip.To4() == nil {
			continue
		}
		if family == FamilyIPv6 && ip.To4() != nil {
			continue
		}
		return New(ip, port), nil
	}
	return Addr{}, ErrNoFamily
}

func resolvePort(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	port, err := net.DefaultResolver.LookupPort(context.Background(), "udp", s)
	if err != nil {
		return 0, errors.New("netaddr: unresolvable port or service name")
	}
	return port, nil
}
