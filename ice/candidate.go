package ice

import "fmt"

// CandidateType identifies how a candidate address was discovered.
type CandidateType uint8

const (
	CandidateHost CandidateType = iota
	CandidateServerReflexive
	CandidatePeerReflexive
	CandidateRelay
)

func (t CandidateType) String() string {
	switch t {
	case CandidateHost:
		return "host"
	case CandidateServerReflexive:
		return "srflx"
	case CandidatePeerReflexive:
		return "prflx"
	case CandidateRelay:
		return "relay"
	default:
		return fmt.Sprintf("CandidateType(%d)", uint8(t))
	}
}

// typePreference is the RFC 8445 §5.1.2.2 default type preference
// used to compute a candidate's priority.
func (t CandidateType) typePreference() uint32 {
	switch t {
	case CandidateHost:
		return 126
	case CandidatePeerReflexive:
		return 110
	case CandidateServerReflexive:
		return 100
	case CandidateRelay:
		return 0
	default:
		return 0
	}
}

// TransportKind distinguishes UDP from the three TCP candidate orientations
// a candidate tuple can carry.
type TransportKind uint8

const (
	TransportUDP TransportKind = iota
	TransportTCPActive
	TransportTCPPassive
	TransportTCPSimultaneousOpen
)

// Candidate is the RFC 8445 §5 candidate tuple: foundation, component-id,
// transport, priority, address, port, type, and
// related-address for non-host candidates.
type Candidate struct {
	Foundation      string
	Component       int
	Transport       TransportKind
	Priority        uint32
	Address         string
	Port            uint16
	Type            CandidateType
	RelatedAddress  string
	RelatedPort     uint16
	LocalPreference uint16
}

// ComputePriority derives the candidate priority deterministically from its
// type, local preference, and component, per RFC 8445 §5.1.2.1:
//
//	priority = (2^24)*type_preference + (2^8)*local_preference + (256 - component)
func ComputePriority(candidateType CandidateType, localPreference uint16, component int) uint32 {
	typePref := candidateType.typePreference()
	return typePref<<24 | uint32(localPreference)<<8 | uint32(256-component)
}

// NewHostCandidate builds a host candidate with a computed priority and a
// foundation derived from its address, transport, and type — candidates that
// share those three properties share a foundation per RFC 8445 §5.1.1.3.
func NewHostCandidate(component int, transport TransportKind, address string, port uint16, localPreference uint16) Candidate {
	c := Candidate{
		Foundation:      foundationFor(CandidateHost, transport, address),
		Component:       component,
		Transport:       transport,
		Address:         address,
		Port:            port,
		Type:            CandidateHost,
		LocalPreference: localPreference,
	}
	c.Priority = ComputePriority(c.Type, c.LocalPreference, c.Component)
	return c
}

// NewServerReflexiveCandidate builds a candidate discovered via a STUN
// binding response, carrying the base host address it was derived from.
func NewServerReflexiveCandidate(component int, transport TransportKind, mappedAddr string, mappedPort uint16, relatedAddr string, relatedPort uint16, localPreference uint16) Candidate {
	c := Candidate{
		Foundation:      foundationFor(CandidateServerReflexive, transport, relatedAddr),
		Component:       component,
		Transport:       transport,
		Address:         mappedAddr,
		Port:            mappedPort,
		Type:            CandidateServerReflexive,
		RelatedAddress:  relatedAddr,
		RelatedPort:     relatedPort,
		LocalPreference: localPreference,
	}
	c.Priority = ComputePriority(c.Type, c.LocalPreference, c.Component)
	return c
}

// NewRelayCandidate builds a candidate allocated on a TURN server.
func NewRelayCandidate(component int, transport TransportKind, relayAddr string, relayPort uint16, serverAddr string, serverPort uint16, localPreference uint16) Candidate {
	c := Candidate{
		Foundation:      foundationFor(CandidateRelay, transport, serverAddr),
		Component:       component,
		Transport:       transport,
		Address:         relayAddr,
		Port:            relayPort,
		Type:            CandidateRelay,
		RelatedAddress:  serverAddr,
		RelatedPort:     serverPort,
		LocalPreference: localPreference,
	}
	c.Priority = ComputePriority(c.Type, c.LocalPreference, c.Component)
	return c
}

// NewPeerReflexiveCandidate builds a candidate discovered from the source
// address of an unrecognized inbound connectivity check.
func NewPeerReflexiveCandidate(component int, transport TransportKind, address string, port uint16, localPreference uint16) Candidate {
	c := Candidate{
		Foundation:      foundationFor(CandidatePeerReflexive, transport, address),
		Component:       component,
		Transport:       transport,
		Address:         address,
		Port:            port,
		Type:            CandidatePeerReflexive,
		LocalPreference: localPreference,
	}
	c.Priority = ComputePriority(c.Type, c.LocalPreference, c.Component)
	return c
}

func foundationFor(t CandidateType, transport TransportKind, baseAddress string) string {
	return fmt.Sprintf("%s-%d-%s", t, transport, baseAddress)
}
