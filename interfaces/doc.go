// Package interfaces defines the abstractions through which the sans-I/O
// engine reaches the host's network and trust policy without performing any
// I/O itself.
//
// # Core Interfaces
//
// [ICandidateSource] is how the engine gathers local, server-reflexive, and
// relay candidates. The engine calls it synchronously to begin a STUN/TURN
// transaction; the implementer performs the real socket I/O and delivers the
// response back into the engine asynchronously via handle_read:
//
//	source := myNetworkSource{}
//	addrs, err := source.EnumerateHostAddresses()
//	if err != nil {
//	    log.Printf("enumerate failed: %v", err)
//	}
//
// [ICertificateVerifier] authenticates a peer's DTLS certificate against the
// fingerprint carried in the remote session description, keeping trust
// policy (exact match, CA chain, pinned set) outside the engine:
//
//	type pinnedVerifier struct{ pins map[string]bool }
//
//	func (v *pinnedVerifier) VerifyFingerprint(alg string, der []byte, expected string) (bool, error) {
//	    sum := sha256.Sum256(der)
//	    fp := formatFingerprint(sum[:])
//	    return fp == expected && v.pins[fp], nil
//	}
//
// # Configuration
//
// [CandidateSourceConfig] holds STUN/TURN server lists and retry policy for
// a Candidate Source implementation:
//
//	config := &interfaces.CandidateSourceConfig{
//	    StunServers:        []interfaces.HostAddress{{IP: "stun.example.org", Port: 3478}},
//	    TransactionTimeout: 500 * time.Millisecond,
//	    MaxRetransmits:     7,
//	}
//	if err := config.Validate(); err != nil {
//	    log.Fatalf("invalid config: %v", err)
//	}
//
// # Thread Safety
//
// Implementations of these interfaces must be safe for concurrent use; the
// engine itself is single-threaded per session, but a host may share one
// Candidate Source across multiple sessions.
//
// # Error Handling
//
// Methods return errors for transport failure, invalid server addresses, and
// transaction-table exhaustion. A failed transaction surfaces to the engine
// as a timeout once its retransmit budget is spent, not as a returned error.
package interfaces
