package dtls

import (
	"crypto/rand"
	"testing"
	"time"
)

func TestCookieSignerVerifiesOwnCookie(t *testing.T) {
	signer, err := NewCookieSigner(rand.Reader, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hello := []byte("client-hello-body")
	cookie := signer.Sign(nil, hello)
	if !signer.Verify(nil, hello, cookie) {
		t.Fatal("expected cookie to verify against its own signer")
	}
}

func TestCookieSignerRejectsTamperedHello(t *testing.T) {
	signer, err := NewCookieSigner(rand.Reader, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cookie := signer.Sign(nil, []byte("original"))
	if signer.Verify(nil, []byte("tampered"), cookie) {
		t.Fatal("expected verification to fail for a different ClientHello")
	}
}

func TestCookieSignerToleratesRecentRotation(t *testing.T) {
	now := time.Now()
	signer, err := NewCookieSigner(rand.Reader, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hello := []byte("client-hello-body")
	cookie := signer.Sign(nil, hello)

	if err := signer.rotate(now.Add(cookieRotationInterval + time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !signer.Verify(nil, hello, cookie) {
		t.Fatal("cookie signed just before rotation should still verify against the previous key")
	}
}
