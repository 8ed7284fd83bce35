// Package authext implements the key material of the optional
// signed-query authentication extension: a static NaCl key pair and a
// store of peer public keys, plus the debug dumpers exposed through
// the command protocol's "list pkeys" / "list skeys" rows. It does not
// sign or verify queries.
package authext

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a NaCl crypto_box key pair identifying this node to peers
// that understand the authentication extension.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random NaCl key pair.
func GenerateKeyPair() (*KeyPair, error) {
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		logrus.WithError(err).Error("authext: key pair generation failed")
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	kp := &KeyPair{Public: *public, Private: *private}
	logrus.WithField("public_key", hex.EncodeToString(kp.Public[:8])).
		Debug("authext: generated key pair")
	return kp, nil
}

// FromSecretKey derives a key pair from an existing private key.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("authext: secret key is all zeros")
	}

	var clamped [32]byte
	copy(clamped[:], secretKey[:])
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	var public [32]byte
	curve25519.ScalarBaseMult(&public, &clamped)
	ZeroBytes(clamped[:])

	return &KeyPair{Public: public, Private: secretKey}, nil
}

func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}

// ZeroBytes overwrites key material in place. Best-effort only; the Go
// runtime may have already copied the backing array elsewhere.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Registry holds the node's own key pair plus any peer public keys
// recorded through AddPeerKey, and backs the
// debug-only "list pkeys" / "list skeys" command rows (allow_debug
// only — see command.Dispatcher).
type Registry struct {
	mu    sync.RWMutex
	self  *KeyPair
	peers map[string][32]byte // hex-encoded id -> public key
}

// NewRegistry builds a registry around a freshly generated or loaded
// key pair.
func NewRegistry(self *KeyPair) *Registry {
	return &Registry{self: self, peers: make(map[string][32]byte)}
}

// AddPeerKey records a peer's public key under its node id.
func (r *Registry) AddPeerKey(id string, pub [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[id] = pub
}

// DebugPKeys returns one line per known public key: the node id and
// the hex-encoded 32-byte key, including this node's own.
func (r *Registry) DebugPKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lines := make([]string, 0, len(r.peers)+1)
	if r.self != nil {
		lines = append(lines, fmt.Sprintf("self %s", hex.EncodeToString(r.self.Public[:])))
	}
	for id, pub := range r.peers {
		lines = append(lines, fmt.Sprintf("%s %s", id, hex.EncodeToString(pub[:])))
	}
	return lines
}

// DebugSKeys returns this node's own secret key, if any, as a single
// line. Callers must only expose this through the debug-only console
// transport (allow_debug), never the UDP transport.
func (r *Registry) DebugSKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.self == nil {
		return nil
	}
	return []string{hex.EncodeToString(r.self.Private[:])}
}
