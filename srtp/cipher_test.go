package srtp

import (
	"testing"
)

func testKeyAndSalt() ([]byte, []byte) {
	key := make([]byte, 16)
	salt := make([]byte, 12)
	for i := range key {
		key[i] = byte(i)
	}
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	return key, salt
}

func TestSealOpenMediaRoundTrip(t *testing.T) {
	key, salt := testKeyAndSalt()
	sender, err := NewAEADContext(key, salt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	receiver, err := NewAEADContext(key, salt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	header := []byte("rtp-header-12b")
	payload := []byte("media payload bytes")
	ct, _ := sender.SealMedia(header, payload, 1000)

	pt, err := receiver.OpenMedia(header, ct, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(pt) != string(payload) {
		t.Fatalf("plaintext = %q, want %q", pt, payload)
	}
}

func TestOpenMediaRejectsReplay(t *testing.T) {
	key, salt := testKeyAndSalt()
	sender, _ := NewAEADContext(key, salt)
	receiver, _ := NewAEADContext(key, salt)

	header := []byte("header")
	ct, _ := sender.SealMedia(header, []byte("payload"), 500)
	if _, err := receiver.OpenMedia(header, ct, 500); err != nil {
		t.Fatalf("unexpected error on first delivery: %v", err)
	}
	if _, err := receiver.OpenMedia(header, ct, 500); err == nil {
		t.Fatal("expected replay to be rejected")
	}
}

func TestOpenMediaRejectsTamperedCiphertext(t *testing.T) {
	key, salt := testKeyAndSalt()
	sender, _ := NewAEADContext(key, salt)
	receiver, _ := NewAEADContext(key, salt)

	header := []byte("header")
	ct, _ := sender.SealMedia(header, []byte("payload"), 1)
	ct[0] ^= 0xFF

	if _, err := receiver.OpenMedia(header, ct, 1); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
	// Auth failure must not advance the replay window: index 1 should still
	// be acceptable if delivered correctly afterward.
	ct2, _ := sender.SealMedia(header, []byte("payload"), 1)
	if _, err := receiver.OpenMedia(header, ct2, 1); err != nil {
		t.Fatalf("expected index 1 to remain acceptable after a failed auth attempt: %v", err)
	}
}
