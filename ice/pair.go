package ice

// PairState is a candidate pair's position in the connectivity check
// lifecycle.
type PairState int

const (
	PairFrozen PairState = iota
	PairWaiting
	PairInProgress
	PairSucceeded
	PairFailed
)

func (s PairState) String() string {
	switch s {
	case PairFrozen:
		return "frozen"
	case PairWaiting:
		return "waiting"
	case PairInProgress:
		return "in-progress"
	case PairSucceeded:
		return "succeeded"
	case PairFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CandidatePair couples a local and remote candidate with the connectivity
// check bookkeeping RFC 8445 §6 requires.
type CandidatePair struct {
	Local, Remote Candidate
	Priority      uint64
	State         PairState
	Nominated     bool

	RequestsSent      int
	RequestsReceived  int
	ResponsesSent     int
	ResponsesReceived int
	ConsentRequests   int
	ConsentFailures   int
	RTTSamples        []float64

	retransmits int
}

// PairPriority computes the pair priority per RFC 8445 §6.1.2.3:
//
//	priority = 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0)
//
// where G is the controlling agent's candidate priority and D is the
// controlled agent's.
func PairPriority(controllingPriority, controlledPriority uint32) uint64 {
	g, d := uint64(controllingPriority), uint64(controlledPriority)
	min, max := g, d
	if d < g {
		min, max = d, g
	}
	return 1<<32*min + 2*max + boolToUint64(g > d)
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// NewPair builds a candidate pair and computes its priority. isControlling
// selects which candidate's priority plays the role of G in PairPriority.
func NewPair(local, remote Candidate, isControlling bool) *CandidatePair {
	var priority uint64
	if isControlling {
		priority = PairPriority(local.Priority, remote.Priority)
	} else {
		priority = PairPriority(remote.Priority, local.Priority)
	}
	return &CandidatePair{
		Local:    local,
		Remote:   remote,
		Priority: priority,
		State:    PairFrozen,
	}
}

// CanPair reports whether a local and remote candidate may form a pair, per
// RFC 8445 §6.1.2.2's pairing rules: components must match, transport
// families must agree, and TCP orientation must be compatible.
func CanPair(local, remote Candidate) bool {
	if local.Component != remote.Component {
		return false
	}
	localIsTCP := local.Transport != TransportUDP
	remoteIsTCP := remote.Transport != TransportUDP
	if localIsTCP != remoteIsTCP {
		return false
	}
	if !localIsTCP {
		return true
	}
	switch {
	case local.Transport == TransportTCPActive && remote.Transport == TransportTCPActive:
		return false
	case local.Transport == TransportTCPPassive && remote.Transport == TransportTCPPassive:
		return false
	case local.Transport == TransportTCPSimultaneousOpen && remote.Transport == TransportTCPSimultaneousOpen:
		return true
	default:
		return true
	}
}

// IsDialTarget reports whether the pair's remote candidate is a real dial
// target rather than a placeholder. Remote active TCP candidates carry port
// 9 as a placeholder and are never dialed; they probe the local passive
// candidate instead.
func (p *CandidatePair) IsDialTarget() bool {
	return !(p.Remote.Transport == TransportTCPActive && p.Remote.Port == 9)
}
