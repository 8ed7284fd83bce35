// Package kadid implements the 160-bit binary identifier used to key
// announcements and DHT lookups.
package kadid

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// Size is the identifier length in bytes (160 bits).
const Size = 20

// ErrLength is returned when decoding a hex string of the wrong
// length.
var ErrLength = errors.New("kadid: expected 40 hex characters")

// ID is a fixed-width 160-bit identifier. Equality is byte-equality.
type ID [Size]byte

// FromQuery hashes a sanitized query string into an ID. The core
// treats this as an opaque operation performed by the DHT
// collaborator; this implementation provides the SHA-1 digest the
// spec names as the reference scheme.
func FromQuery(sanitized string) ID {
	return ID(sha1.Sum([]byte(sanitized)))
}

// String returns the canonical 40-character lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Equal reports whether two IDs are byte-equal.
func (id ID) Equal(other ID) bool {
	return id == other
}

// Parse decodes a 40-character hex string into an ID.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != Size*2 {
		return id, ErrLength
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// Distance returns the XOR metric between two IDs, the Kademlia
// distance function. Nothing in the core calls it (the routing table
// is out of scope); it is provided for a DHT collaborator that orders
// nodes by distance.
func Distance(a, b ID) ID {
	var d ID
	for i := range d {
		d[i] = a[i] ^ b[i]
	}
	return d
}
