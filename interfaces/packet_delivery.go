package interfaces

import "time"

// ICandidateSource is the abstraction through which the engine discovers
// local addresses and drives STUN/TURN transactions. The engine calls these
// methods synchronously to begin a transaction; the implementer delivers
// the eventual result asynchronously by feeding the response datagram back
// into the engine's handle_read. The Source itself performs no I/O relative
// to the engine: it may enqueue work on a real socket, but it never blocks
// the caller waiting on a network round trip.
type ICandidateSource interface {
	// EnumerateHostAddresses returns the local addresses the host considers
	// eligible for host candidates (one per interface/family the policy
	// allows).
	EnumerateHostAddresses() ([]HostAddress, error)

	// StunRequest begins a STUN binding transaction against server,
	// returning the transaction id the engine should correlate against the
	// eventual response.
	StunRequest(server HostAddress, bindingRequest []byte) (transactionID [12]byte, err error)

	// TurnAllocate begins a TURN Allocate transaction against server using
	// the given long-term credentials.
	TurnAllocate(server HostAddress, credentials TurnCredentials) (transactionID [12]byte, err error)

	// TurnCreatePermission begins a TURN CreatePermission transaction for
	// peer on an existing allocation.
	TurnCreatePermission(peer HostAddress) (transactionID [12]byte, err error)

	// TurnSend relays payload to peer through an existing TURN allocation.
	// TURN Send indications have no response; the call is fire-and-forget
	// from the engine's perspective.
	TurnSend(peer HostAddress, payload []byte) error
}

// IMDNSResolver is an optional capability a Candidate Source may
// additionally implement. Remote candidates advertised with a ".local"
// mDNS hostname (used to keep host-candidate IPs out of the session
// description in privacy-sensitive deployments) are resolved through it
// before pairing; a Source without this capability simply never pairs
// such candidates.
type IMDNSResolver interface {
	// ResolveMDNSHostname resolves a ".local" hostname to a concrete IP
	// address string, from the local resolver's cache or a completed
	// multicast query. It never blocks on the network: a name not yet
	// resolved returns an error and the engine retries when the
	// candidate is re-advertised.
	ResolveMDNSHostname(hostname string) (string, error)
}

// HostAddress is a transport-agnostic local or remote address tuple. It
// deliberately avoids net.UDPAddr/net.TCPAddr so that a Candidate Source can
// be backed by something other than a real socket (a simulated network, a
// recorded fixture) without the engine caring.
type HostAddress struct {
	IP       string
	Port     uint16
	Protocol TransportProtocol
}

// TransportProtocol distinguishes UDP from TCP candidate transports, per the
// candidate tuple's transport field (UDP, or TCP passive/active/simultaneous-open).
type TransportProtocol int

const (
	TransportUDP TransportProtocol = iota
	TransportTCPActive
	TransportTCPPassive
	TransportTCPSimultaneousOpen
)

// TurnCredentials carries the long-term credential mechanism's username,
// realm, and password/key material for a TURN allocation request.
type TurnCredentials struct {
	Username string
	Realm    string
	Password string
}

// ICertificateVerifier authenticates a peer's DTLS certificate against the
// fingerprint negotiated in the session description (RFC 8122). It is
// supplied by the host so that verification policy — exact match, CA chain,
// pinned fingerprint set — stays outside the sans-I/O engine.
type ICertificateVerifier interface {
	// VerifyFingerprint reports whether certDER hashed with the named
	// algorithm (e.g. "sha-256") matches the expected fingerprint carried
	// in the remote session description's a=fingerprint attribute.
	VerifyFingerprint(algorithm string, certDER []byte, expectedFingerprint string) (bool, error)
}

// CandidateSourceConfig holds tunables for a Candidate Source implementation:
// STUN/TURN retry policy and transaction bookkeeping limits.
type CandidateSourceConfig struct {
	// StunServers lists the STUN servers tried for server-reflexive
	// candidates, in priority order.
	StunServers []HostAddress

	// TurnServers lists the TURN servers tried for relay candidates.
	TurnServers []HostAddress

	// TransactionTimeout bounds how long a STUN/TURN transaction id stays
	// in the in-flight table before being reaped.
	TransactionTimeout time.Duration

	// MaxRetransmits caps retransmission attempts per transaction before
	// it is considered failed.
	MaxRetransmits int
}

// Validate reports whether the configuration is internally consistent.
func (c *CandidateSourceConfig) Validate() error {
	if c.TransactionTimeout <= 0 {
		return errInvalidTransactionTimeout
	}
	if c.MaxRetransmits <= 0 {
		return errInvalidMaxRetransmits
	}
	return nil
}
