package crypto

import (
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/opd-ai/rtcengine/rtclog"
)

var sharedSecretLog = rtclog.NewScope("crypto")

// DeriveSharedSecret computes the ECDHE shared secret between a local
// private scalar and a peer's public point, used both by the DTLS
// handshake's ClientKeyExchange/ServerKeyExchange step and by any
// component that needs a raw X25519 agreement.
func DeriveSharedSecret(peerPublicKey, privateKey [32]byte) ([32]byte, error) {
	log := sharedSecretLog.With("peer_key_prefix", rtclog.HexPreview(peerPublicKey[:], 8))
	log.Debug("computing ECDHE shared secret")

	var privateKeyCopy [32]byte
	copy(privateKeyCopy[:], privateKey[:])
	clamp(&privateKeyCopy)

	sharedSecret, err := curve25519.X25519(privateKeyCopy[:], peerPublicKey[:])
	if err != nil {
		ZeroBytes(privateKeyCopy[:])
		log.WithError(err, "x25519").Error("ECDHE computation failed")
		return [32]byte{}, fmt.Errorf("ecdhe: %w", err)
	}

	var result [32]byte
	copy(result[:], sharedSecret)

	ZeroBytes(privateKeyCopy[:])
	ZeroBytes(sharedSecret)

	return result, nil
}
