package crypto

import (
	"crypto/ed25519"
	"errors"
)

// SignatureSize is the size of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// Signature is an Ed25519 signature over a handshake transcript. The DTLS
// endpoint signs its key-exchange parameters with its long-term identity
// seed so the peer can tie the ephemeral ECDHE exchange to the fingerprint
// advertised in the session description.
type Signature [SignatureSize]byte

// SignerPublicKey derives the Ed25519 public key for a 32-byte identity
// seed. The seed doubles as the certificate's private key: fingerprints in
// the session description hash the public key this returns.
func SignerPublicKey(seed [32]byte) [32]byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub [32]byte
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return pub
}

// Sign signs message with the identity seed.
func Sign(message []byte, seed [32]byte) (Signature, error) {
	if len(message) == 0 {
		return Signature{}, errors.New("empty message")
	}
	priv := ed25519.NewKeyFromSeed(seed[:])
	var signature Signature
	copy(signature[:], ed25519.Sign(priv, message))
	return signature, nil
}

// Verify reports whether signature is valid for message under publicKey.
func Verify(message []byte, signature Signature, publicKey [32]byte) (bool, error) {
	if len(message) == 0 {
		return false, errors.New("empty message")
	}
	return ed25519.Verify(publicKey[:], message, signature[:]), nil
}
