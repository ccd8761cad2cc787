package dtls

import "testing"

func TestNegotiateSuitePicksHighestImplemented(t *testing.T) {
	offered := []CipherSuite{SuiteECDHE_ECDSA_AES256_CBC_SHA, SuiteECDHE_RSA_AES128_GCM_SHA256}
	got, err := NegotiateSuite(offered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != SuiteECDHE_RSA_AES128_GCM_SHA256 {
		t.Fatalf("negotiated %v, want the GCM suite", got)
	}
}

func TestNegotiateSuiteRejectsAllCBC(t *testing.T) {
	offered := []CipherSuite{SuiteECDHE_ECDSA_AES256_CBC_SHA, SuiteECDHE_RSA_AES128_CBC_SHA}
	_, err := NegotiateSuite(offered)
	if err != ErrNoImplementedSuite {
		t.Fatalf("expected ErrNoImplementedSuite, got %v", err)
	}
}

func TestSRTPProfileKeyMaterialSize(t *testing.T) {
	if SRTPAES128CMHMACSHA180.ExportedKeyMaterialSize() != 60 {
		t.Fatal("expected 60 octets for the 128-bit profile")
	}
	if SRTPAEADAES256GCM.ExportedKeyMaterialSize() != 88 {
		t.Fatal("expected 88 octets for the 256-bit profile")
	}
}
