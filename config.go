package rtcengine

import (
	"errors"
	"time"

	"github.com/opd-ai/rtcengine/crypto"
	"github.com/opd-ai/rtcengine/ice"
	"github.com/opd-ai/rtcengine/interceptor"
	"github.com/opd-ai/rtcengine/interfaces"
	"github.com/opd-ai/rtcengine/sdp"
)

// BundlePolicy controls how media sections may share a single transport,
// re-exported from sdp for convenience at the Config boundary.
type BundlePolicy = sdp.BundlePolicy

// RTCPMuxPolicy controls whether media and media-control must share the
// transport.
type RTCPMuxPolicy int

const (
	// RTCPMuxRequire marks every offered section with a=rtcp-mux. Remote
	// descriptions are not checked against it: a remote section without
	// rtcp-mux is accepted.
	RTCPMuxRequire RTCPMuxPolicy = iota
	// RTCPMuxNegotiate also marks every offered section with a=rtcp-mux,
	// and accepts either muxed or unmuxed remote sections.
	RTCPMuxNegotiate
)

// ICETransportPolicy restricts which candidate types the connectivity agent
// is allowed to gather and offer.
type ICETransportPolicy int

const (
	// ICETransportAll gathers host, server-reflexive, and relay candidates.
	ICETransportAll ICETransportPolicy = iota
	// ICETransportRelay skips the STUN servers, so no server-reflexive
	// candidates are gathered; relay candidates come from TurnServers.
	// Host candidates are still gathered and used in connectivity checks.
	ICETransportRelay
)

// Certificate is a long-term keypair used for the DTLS handshake. The
// private key doubles as the Ed25519 identity seed the handshake signs
// with; the advertised fingerprint is derived from it, so PublicKey is
// informational for the host's own bookkeeping.
type Certificate struct {
	PublicKey  [32]byte
	PrivateKey [32]byte
}

// Config is read-only once passed to NewSession: every field a Session
// needs to construct its connectivity, handshake, media, and reliable-
// stream subsystems.
type Config struct {
	// Role selects which side of the ICE/DTLS handshakes this Session
	// plays. The offerer is conventionally the controlling ICE agent and
	// DTLS client.
	Role ice.Role

	// LocalUfrag/LocalPassword are this Session's ICE short-term
	// credentials, generated by the host or left empty for the Session to
	// derive from EntropySource.
	LocalUfrag    string
	LocalPassword string

	// CandidateSource performs the real address enumeration and STUN/TURN
	// transactions the connectivity agent needs; the Session never touches
	// a socket directly.
	CandidateSource interfaces.ICandidateSource

	// CertificateVerifier authenticates the peer's DTLS certificate
	// against the fingerprint carried in the remote session description.
	CertificateVerifier interfaces.ICertificateVerifier

	// ICEServers lists STUN servers tried for server-reflexive candidate
	// gathering, in priority order.
	ICEServers []interfaces.HostAddress

	// TurnServers lists TURN servers tried for relay candidate gathering.
	TurnServers []interfaces.HostAddress

	// TurnCredentials authenticates Allocate/CreatePermission transactions
	// against every server in TurnServers. The long-term credential
	// challenge-response (realm/nonce) is handled inside CandidateSource;
	// the Session only supplies the username/realm/password it was
	// configured with.
	TurnCredentials interfaces.TurnCredentials

	// BundlePolicy controls how media sections may share a transport.
	BundlePolicy BundlePolicy

	// RTCPMuxPolicy controls whether media and media-control must share
	// the transport.
	RTCPMuxPolicy RTCPMuxPolicy

	// ICETransportPolicy restricts candidate types.
	ICETransportPolicy ICETransportPolicy

	// Certificates holds zero or more long-term keypairs for the
	// handshake; if empty, the Session generates an ephemeral one from
	// EntropySource.
	Certificates []Certificate

	// InterceptorRegistry is the ordered list of feedback interceptor
	// builders bound to every local/remote media stream.
	InterceptorRegistry *interceptor.Registry

	// EntropySource supplies all randomness the engine needs: STUN
	// transaction ids, handshake randoms, SSRC/verification-tag
	// generation. There is no thread-local default; a Config without one
	// fails validation.
	EntropySource crypto.EntropySource

	// SenderReportInterval overrides the default 1s RTCP Sender Report
	// cadence. Zero uses the built-in default.
	SenderReportInterval time.Duration

	// MaxNacks caps retransmission requests per lost packet in the
	// built-in NACK generator. Zero uses the built-in default.
	MaxNacks int
}

var (
	errMissingEntropySource     = errors.New("rtcengine: config requires an EntropySource")
	errMissingCandidateSource   = errors.New("rtcengine: config requires a CandidateSource")
	errMissingCertVerifier      = errors.New("rtcengine: config requires a CertificateVerifier")
)

// Validate reports whether the configuration has everything a Session needs
// to construct its subsystems.
func (c *Config) Validate() error {
	if c.EntropySource == nil {
		return errMissingEntropySource
	}
	if c.CandidateSource == nil {
		return errMissingCandidateSource
	}
	if c.CertificateVerifier == nil {
		return errMissingCertVerifier
	}
	return nil
}
