package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/opd-ai/rtcengine/crypto"
	"github.com/opd-ai/rtcengine/rtclog"
)

var log = rtclog.NewScope("srtp")

// AEADContext performs AEAD-AES-GCM encryption/decryption for one direction
// (inbound or outbound) of one SSRC family, per RFC 7714's AEAD_AES_128_GCM
// parameters. It also owns the replay window and key-lifetime tracker
// for the SSRC state it protects, since both are scoped to "one key" the
// same way the AEAD nonce derivation is.
type AEADContext struct {
	aead    cipher.AEAD
	salt    []byte
	replay  *crypto.SlidingWindow
	lifetime *crypto.KeyLifetimeTracker
}

// NewAEADContext builds an AEAD-AES-GCM context from a session key and salt
// exported by the handshake transport.
func NewAEADContext(key, salt []byte) (*AEADContext, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AEADContext{
		aead:     aead,
		salt:     append([]byte(nil), salt...),
		replay:   crypto.NewSlidingWindow(64),
		lifetime: crypto.NewKeyLifetimeTracker(0),
	}, nil
}

// Wipe erases the context's key-derived material in place and drops the
// cipher, leaving the context unusable. The session calls it whenever the
// keying context retires: on close, on handshake failure, and on restart.
func (c *AEADContext) Wipe() {
	if c.salt != nil {
		crypto.ZeroBytes(c.salt)
		c.salt = nil
	}
	c.aead = nil
}

// nonce derives the per-packet AEAD nonce from the salt and packet index per
// RFC 7714 §8.1: the index is XORed into the low-order bits of the salt.
func (c *AEADContext) nonce(index uint64) []byte {
	nonce := make([]byte, len(c.salt))
	copy(nonce, c.salt)
	idxBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idxBytes, index)
	for i := 0; i < 8 && i < len(nonce); i++ {
		nonce[len(nonce)-1-i] ^= idxBytes[7-i]
	}
	return nonce
}

// SealMedia encrypts and authenticates a media packet's payload, given the
// header bytes as additional authenticated data. It also records the
// emission against the key-lifetime tracker and reports whether a rekey is
// now due.
func (c *AEADContext) SealMedia(header []byte, payload []byte, index uint64) (ciphertext []byte, needsRekey bool) {
	out := c.aead.Seal(nil, c.nonce(index), payload, header)
	c.lifetime.RecordPacket()
	return out, c.lifetime.NeedsRekey()
}

// OpenMedia checks the replay window, then decrypts and authenticates an
// inbound media packet, committing the index to the replay window only
// once the auth tag has verified. A forged packet with a fresh index but
// a bad tag never advances the window: auth failure never advances it.
func (c *AEADContext) OpenMedia(header []byte, ciphertext []byte, index uint64) ([]byte, error) {
	if !c.replay.Check(index) {
		return nil, errors.New("srtp: packet index outside replay window or duplicate")
	}
	plaintext, err := c.aead.Open(nil, c.nonce(index), ciphertext, header)
	if err != nil {
		log.WithError(err, "open_media").Warn("SRTP authentication failed")
		return nil, err
	}
	c.replay.Commit(index)
	return plaintext, nil
}

// SealControl encrypts an RTCP compound packet as a unit, folding the
// explicit 31-bit control index into the AEAD nonce before the auth tag,
// mirroring the media path per RFC 3711 §3.4.
func (c *AEADContext) SealControl(header []byte, payload []byte, index uint32) []byte {
	return c.aead.Seal(nil, c.nonce(uint64(index&0x7fffffff)), payload, header)
}

// OpenControl checks the replay window, then decrypts and authenticates a
// control compound packet, committing the index only once the auth tag
// has verified.
func (c *AEADContext) OpenControl(header []byte, ciphertext []byte, index uint32) ([]byte, error) {
	idx := uint64(index & 0x7fffffff)
	if !c.replay.Check(idx) {
		return nil, errors.New("srtp: control index outside replay window or duplicate")
	}
	plaintext, err := c.aead.Open(nil, c.nonce(idx), ciphertext, header)
	if err != nil {
		return nil, err
	}
	c.replay.Commit(idx)
	return plaintext, nil
}
