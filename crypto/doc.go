// Package crypto implements the cryptographic primitives shared by the
// handshake, media, and reliable-stream transports: X25519 ECDHE key
// exchange, Ed25519 certificate signatures, secure memory wiping, replay
// windows, and per-SSRC key-lifetime tracking.
//
// None of the functions here perform I/O or read the wall clock directly;
// every operation that is time-sensitive takes the current time as an
// explicit parameter, so the package composes with the engine's sans-I/O
// design: the host drives the clock, this package never guesses at it.
//
// # Key exchange
//
//	kp, _ := crypto.GenerateKeyPair(entropy)
//	shared, _ := crypto.DeriveSharedSecret(peerPublic, kp.Private)
//	defer crypto.ZeroBytes(shared[:])
//
// # Identity signatures
//
// The DTLS handshake signs its key-exchange transcript with a long-term
// Ed25519 identity whose public key the session description fingerprints:
//
//	sig, _ := crypto.Sign(transcript, identitySeed)
//	ok, _ := crypto.Verify(transcript, sig, crypto.SignerPublicKey(identitySeed))
//
// # Replay protection
//
// [SlidingWindow] implements the width-64 bitmap replay window used by
// both the DTLS record layer (per-epoch sequence numbers) and the media
// transport (per-SSRC packet indices):
//
//	w := crypto.NewSlidingWindow(64)
//	if !w.Accept(index) {
//	    // duplicate or too old, drop
//	}
package crypto
