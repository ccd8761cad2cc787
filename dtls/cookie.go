package dtls

import (
	"crypto/hmac"
	"crypto/sha256"
	"io"
	"time"
)

// cookieRotationInterval bounds how long a signing key remains active before
// a fresh one is generated, limiting the blast radius of a leaked key.
const cookieRotationInterval = 10 * time.Minute

// CookieSigner produces and verifies the opaque HelloVerifyRequest cookie a
// DTLS server uses to avoid completing a handshake for a spoofed source
// address, per RFC 6347 §4.2.1. The cookie's signing key is internal to this
// layer and rotates on a timer; SDP and handshake state above it never see
// the key.
type CookieSigner struct {
	entropy    io.Reader
	key        []byte
	generated  time.Time
	prevKey    []byte
}

// NewCookieSigner constructs a signer with a freshly generated key.
func NewCookieSigner(entropy io.Reader, now time.Time) (*CookieSigner, error) {
	s := &CookieSigner{entropy: entropy}
	if err := s.rotate(now); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CookieSigner) rotate(now time.Time) error {
	key := make([]byte, 32)
	if _, err := io.ReadFull(s.entropy, key); err != nil {
		return err
	}
	s.prevKey = s.key
	s.key = key
	s.generated = now
	return nil
}

// MaybeRotate regenerates the signing key if the rotation interval has
// elapsed. The previous key stays valid for one more interval so cookies
// issued just before rotation still verify.
func (s *CookieSigner) MaybeRotate(now time.Time) error {
	if now.Sub(s.generated) < cookieRotationInterval {
		return nil
	}
	return s.rotate(now)
}

// Sign produces a cookie binding clientHello to the peer's address.
func (s *CookieSigner) Sign(peerAddr []byte, clientHello []byte) []byte {
	return sign(s.key, peerAddr, clientHello)
}

// Verify checks a cookie against both the current and previous signing key,
// tolerating rotation that happened between HelloVerifyRequest and the
// client's retried ClientHello.
func (s *CookieSigner) Verify(peerAddr, clientHello, cookie []byte) bool {
	if hmac.Equal(sign(s.key, peerAddr, clientHello), cookie) {
		return true
	}
	if s.prevKey != nil && hmac.Equal(sign(s.prevKey, peerAddr, clientHello), cookie) {
		return true
	}
	return false
}

func sign(key, peerAddr, clientHello []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(peerAddr)
	mac.Write(clientHello)
	return mac.Sum(nil)
}
