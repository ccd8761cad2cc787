package dtls

import "fmt"

// CipherSuite identifies a negotiable DTLS-SRTP cipher suite by its IANA
// name. This engine offers four suites in priority order; it implements
// AEAD-AES-GCM natively (grounded on the AEAD path the
// media transport already needs) and accepts-but-refuses the two CBC-mode
// suites, since none of the example repos in the corpus implement a CBC+HMAC
// record cipher and inventing one from scratch would not be grounded on
// anything in the pack. A client offering only CBC suites receives a
// policy-refusal fault rather than a silent downgrade.
type CipherSuite uint16

const (
	SuiteECDHE_ECDSA_AES128_GCM_SHA256 CipherSuite = 0xC02B
	SuiteECDHE_RSA_AES128_GCM_SHA256   CipherSuite = 0xC02F
	SuiteECDHE_ECDSA_AES256_CBC_SHA    CipherSuite = 0xC00A
	SuiteECDHE_RSA_AES128_CBC_SHA      CipherSuite = 0xC013
)

func (s CipherSuite) String() string {
	switch s {
	case SuiteECDHE_ECDSA_AES128_GCM_SHA256:
		return "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"
	case SuiteECDHE_RSA_AES128_GCM_SHA256:
		return "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"
	case SuiteECDHE_ECDSA_AES256_CBC_SHA:
		return "TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA"
	case SuiteECDHE_RSA_AES128_CBC_SHA:
		return "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA"
	default:
		return fmt.Sprintf("CipherSuite(0x%04x)", uint16(s))
	}
}

// Implemented reports whether this engine can actually negotiate the suite,
// as opposed to merely recognizing its identifier.
func (s CipherSuite) Implemented() bool {
	switch s {
	case SuiteECDHE_ECDSA_AES128_GCM_SHA256, SuiteECDHE_RSA_AES128_GCM_SHA256:
		return true
	default:
		return false
	}
}

// defaultOfferedSuites is the priority-ordered suite list a ClientHello
// offers absent explicit configuration.
var defaultOfferedSuites = []CipherSuite{
	SuiteECDHE_ECDSA_AES128_GCM_SHA256,
	SuiteECDHE_RSA_AES128_GCM_SHA256,
	SuiteECDHE_ECDSA_AES256_CBC_SHA,
	SuiteECDHE_RSA_AES128_CBC_SHA,
}

// ErrNoImplementedSuite is returned when every suite offered is recognized
// but none is implemented by this engine — a policy refusal, not a protocol
// violation.
var ErrNoImplementedSuite = fmt.Errorf("dtls: no offered cipher suite is implemented")

// NegotiateSuite selects the highest-priority suite from offered that this
// engine implements: the server picks the highest cipher it supports.
func NegotiateSuite(offered []CipherSuite) (CipherSuite, error) {
	for _, s := range offered {
		if s.Implemented() {
			return s, nil
		}
	}
	return 0, ErrNoImplementedSuite
}

// SRTPProfile identifies the use_srtp extension's negotiated profile,
// determining the size of the exported keying material.
type SRTPProfile uint16

const (
	SRTPAES128CMHMACSHA180 SRTPProfile = 0x0001
	SRTPAEADAES256GCM      SRTPProfile = 0x0008
)

// ExportedKeyMaterialSize returns the number of octets the key export step
// must derive for the given profile: 60 for the 128-bit profile, 88 for the
// 256-bit profile.
func (p SRTPProfile) ExportedKeyMaterialSize() int {
	switch p {
	case SRTPAEADAES256GCM:
		return 88
	default:
		return 60
	}
}
