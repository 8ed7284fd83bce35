package authext

import (
	"testing"
)

func TestGenerateKeyPairProducesNonZeroKeys(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if isZeroKey(kp.Public) || isZeroKey(kp.Private) {
		t.Fatal("generated key pair should not be all zeros")
	}
}

func TestFromSecretKeyRejectsZero(t *testing.T) {
	var zero [32]byte
	if _, err := FromSecretKey(zero); err == nil {
		t.Fatal("expected error for all-zero secret key")
	}
}

func TestFromSecretKeyDeterministic(t *testing.T) {
	var secret [32]byte
	secret[0] = 1

	a, err := FromSecretKey(secret)
	if err != nil {
		t.Fatalf("FromSecretKey: %v", err)
	}
	b, err := FromSecretKey(secret)
	if err != nil {
		t.Fatalf("FromSecretKey: %v", err)
	}
	if a.Public != b.Public {
		t.Fatal("deriving from the same secret should yield the same public key")
	}
}

func TestRegistryDebugDumps(t *testing.T) {
	self, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	reg := NewRegistry(self)

	var peerPub [32]byte
	peerPub[0] = 0x42
	reg.AddPeerKey("peer1", peerPub)

	pkeys := reg.DebugPKeys()
	if len(pkeys) != 2 {
		t.Fatalf("expected 2 pkeys lines (self + peer1), got %d: %v", len(pkeys), pkeys)
	}

	skeys := reg.DebugSKeys()
	if len(skeys) != 1 {
		t.Fatalf("expected 1 skeys line, got %d", len(skeys))
	}
}

func TestRegistryWithoutSelfHasNoSecretKeys(t *testing.T) {
	reg := NewRegistry(nil)
	if skeys := reg.DebugSKeys(); skeys != nil {
		t.Fatalf("expected no secret keys without a self key pair, got %v", skeys)
	}
}
