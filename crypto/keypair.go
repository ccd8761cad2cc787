package crypto

import (
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// EntropySource is the caller-provided randomness source for ephemeral
// key generation. The engine never falls back to a package-level default
// RNG: every call site that needs randomness is handed one explicitly,
// per the Design Notes on global mutable state.
type EntropySource io.Reader

// KeyPair is an X25519 key pair used for ECDHE key exchange in the DTLS
// handshake and for Ed25519-style certificate identities.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random X25519 key pair, drawing all
// randomness from entropy.
func GenerateKeyPair(entropy EntropySource) (*KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(entropy, priv[:]); err != nil {
		return nil, err
	}
	return FromSecretKey(priv)
}

// FromSecretKey derives the public half of a key pair from an existing
// private scalar, clamping it per RFC 7748 before deriving the public
// point.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("invalid secret key: all zeros")
	}

	clamp(&secretKey)

	pub, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], pub)
	return kp, nil
}

// clamp applies the RFC 7748 clamping operation to an X25519 scalar.
func clamp(scalar *[32]byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
