package ice

import (
	"testing"
)

func TestBuildAndParseBindingRequestRoundTrip(t *testing.T) {
	txID := TransactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	msg := BuildBindingRequest(txID, "frag:ufrag", []byte("password"), true, 12345)

	parsed, err := ParseMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Type != StunBindingRequest {
		t.Fatalf("type = 0x%04x, want binding request", parsed.Type)
	}
	if parsed.TransactionID != txID {
		t.Fatal("transaction id mismatch")
	}
	if !parsed.HasUseCandidate() {
		t.Fatal("expected USE-CANDIDATE attribute")
	}
}

func TestMessageIntegrityRoundTrip(t *testing.T) {
	txID := TransactionID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	key := []byte("shared-secret")
	msg := BuildBindingRequest(txID, "user", key, false, 0)

	if !VerifyMessageIntegrity(msg, key) {
		t.Fatal("expected message integrity to verify with matching key")
	}
	if VerifyMessageIntegrity(msg, []byte("wrong-key")) {
		t.Fatal("expected message integrity to fail with wrong key")
	}
}

func TestBindingResponseCarriesXorMappedAddress(t *testing.T) {
	txID := TransactionID{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	ip := []byte{203, 0, 113, 5}
	resp, err := BuildBindingResponse(txID, ip, 54321, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := ParseMessage(resp)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	gotIP, gotPort, err := parsed.XorMappedAddress()
	if err != nil {
		t.Fatalf("unexpected error reading mapped address: %v", err)
	}
	if gotPort != 54321 {
		t.Fatalf("port = %d, want 54321", gotPort)
	}
	for i := range ip {
		if gotIP[i] != ip[i] {
			t.Fatalf("ip[%d] = %d, want %d", i, gotIP[i], ip[i])
		}
	}
}
