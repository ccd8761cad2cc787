package ice

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/opd-ai/rtcengine/interfaces"
	"github.com/opd-ai/rtcengine/rtclog"
)

// Role distinguishes the ICE-controlling agent (nominates pairs) from the
// ICE-controlled agent (adopts the first nominated pair it observes).
type Role int

const (
	RoleControlled Role = iota
	RoleControlling
)

const (
	checkInterval     = 20 * time.Millisecond
	initialCheckRTO   = 500 * time.Millisecond
	maxCheckAttempts  = 7
	consentInterval   = 5 * time.Second
	maxConsentFailure = 3
)

// OutboundTransaction is a STUN transaction the host must send.
type OutboundTransaction struct {
	Pair          *CandidatePair
	Message       []byte
	TransactionID TransactionID
}

// Event is a control-plane notification the Agent surfaces to the Session.
type Event struct {
	Kind      EventKind
	Pair      *CandidatePair
	Candidate *Candidate
}

type EventKind int

const (
	EventPairSucceeded EventKind = iota
	EventNominated
	EventConnectionFailed
	// EventConsentExpired fires when the selected pair loses consent
	// freshness: the connection is disconnected but recoverable by an
	// ICE restart, unlike EventConnectionFailed's all-pairs-failed
	// terminal state.
	EventConsentExpired
	// EventCandidateGathered fires when a server-reflexive or relay
	// candidate finishes gathering and has been paired against the
	// remote candidates known so far.
	EventCandidateGathered
)

type pendingCheck struct {
	pair    *CandidatePair
	txID    TransactionID
	sentAt  time.Time
	rto     time.Duration
	attempt int
}

// gatherKind distinguishes the STUN/TURN transaction kinds Gather starts,
// so a response arriving via HandleInbound is routed to the right handler.
type gatherKind int

const (
	gatherServerReflexive gatherKind = iota
	gatherTurnAllocate
	gatherTurnCreatePermission
)

type gatherTransaction struct {
	kind      gatherKind
	server    interfaces.HostAddress
	component int
}

// relayAllocation tracks one TURN allocation's relayed transport address
// and its refresh deadlines, keyed by the server it was allocated from.
// Allocations and permissions both expire server-side; the agent re-issues
// the Allocate and CreatePermission transactions ahead of expiry so the
// relay path never lapses while the candidate is in use.
type relayAllocation struct {
	server      interfaces.HostAddress
	component   int
	relayedIP   string
	relayedPort uint16

	expiresAt            time.Time
	permissionsExpireAt  time.Time
}

// TURN permissions last 5 minutes (RFC 5766 §9); both the allocation and
// its permissions are refreshed one minute ahead of expiry.
const (
	turnPermissionLifetime = 5 * time.Minute
	turnRefreshLead        = time.Minute
)

// Agent is the sans-I/O connectivity agent driving RFC 8445 ICE. It owns
// local/remote candidates and the candidate pairs derived from
// them, drives connectivity checks and consent freshness, and reports
// nomination via events. It performs no socket I/O: candidate gathering is
// delegated to an interfaces.ICandidateSource, and packets are exchanged
// through HandleInbound/PollOutbound against a Candidate Source the host
// owns.
type Agent struct {
	role         Role
	source       interfaces.ICandidateSource
	localUfrag   string
	localPass    string
	remoteUfrag  string
	remotePass   string
	entropy      io.Reader
	localCands   []Candidate
	remoteCands  []Candidate
	pairs        []*CandidatePair
	pending      map[TransactionID]*pendingCheck
	selected     map[int]*CandidatePair
	lastConsent  map[int]time.Time
	consentFails map[int]int
	nextCheck    time.Time
	log          *rtclog.Scope

	stunServers      []interfaces.HostAddress
	turnServers      []interfaces.HostAddress
	turnCredentials  interfaces.TurnCredentials
	gatherPending    map[TransactionID]gatherTransaction
	relayAllocations map[string]*relayAllocation
}

// NewAgent constructs an Agent for the given role, backed by source for
// candidate discovery and entropy for STUN transaction ids.
func NewAgent(role Role, source interfaces.ICandidateSource, localUfrag, localPass string, entropy io.Reader) *Agent {
	return &Agent{
		role:             role,
		source:           source,
		localUfrag:       localUfrag,
		localPass:        localPass,
		entropy:          entropy,
		pending:          make(map[TransactionID]*pendingCheck),
		selected:         make(map[int]*CandidatePair),
		lastConsent:      make(map[int]time.Time),
		consentFails:     make(map[int]int),
		log:              rtclog.NewScope("ice.agent"),
		gatherPending:    make(map[TransactionID]gatherTransaction),
		relayAllocations: make(map[string]*relayAllocation),
	}
}

// ConfigureGathering records the STUN/TURN servers and TURN long-term
// credentials Gather uses for server-reflexive and relay candidate
// discovery. Called once before the first Gather; an Agent with no servers
// configured gathers host candidates only.
func (a *Agent) ConfigureGathering(stunServers, turnServers []interfaces.HostAddress, turnCredentials interfaces.TurnCredentials) {
	a.stunServers = stunServers
	a.turnServers = turnServers
	a.turnCredentials = turnCredentials
}

// Gather begins producing local candidates: host candidates immediately from
// the Candidate Source, with server-reflexive and relay candidates arriving
// later as their STUN/TURN transactions complete (via HandleInbound).
func (a *Agent) Gather(component int) error {
	addrs, err := a.source.EnumerateHostAddresses()
	if err != nil {
		return fmt.Errorf("ice: enumerate host addresses: %w", err)
	}
	for i, addr := range addrs {
		transport := TransportUDP
		if addr.Protocol == interfaces.TransportTCPActive {
			transport = TransportTCPActive
		} else if addr.Protocol == interfaces.TransportTCPPassive {
			transport = TransportTCPPassive
		}
		c := NewHostCandidate(component, transport, addr.IP, addr.Port, uint16(65535-i))
		a.localCands = append(a.localCands, c)
	}

	for _, server := range a.stunServers {
		txID, err := a.newTransactionID()
		if err != nil {
			return fmt.Errorf("ice: gather transaction id: %w", err)
		}
		req := BuildBindingRequest(txID, "", nil, false, 0)
		sentTxID, err := a.source.StunRequest(server, req)
		if err != nil {
			a.log.WithError(err, "gather_stun").Warn("failed to start STUN gathering transaction")
			continue
		}
		a.gatherPending[sentTxID] = gatherTransaction{kind: gatherServerReflexive, server: server, component: component}
	}

	for _, server := range a.turnServers {
		txID, err := a.source.TurnAllocate(server, a.turnCredentials)
		if err != nil {
			a.log.WithError(err, "gather_turn").Warn("failed to start TURN allocate transaction")
			continue
		}
		a.gatherPending[txID] = gatherTransaction{kind: gatherTurnAllocate, server: server, component: component}
	}
	return nil
}

// addLocalCandidate registers a newly gathered local candidate and pairs it
// against every remote candidate already known, mirroring AddRemoteCandidate
// for the opposite arrival order: server-reflexive and relay candidates
// typically finish gathering after the remote description has already
// supplied its candidates.
func (a *Agent) addLocalCandidate(c Candidate) {
	a.localCands = append(a.localCands, c)
	for _, remote := range a.remoteCands {
		if !CanPair(c, remote) {
			continue
		}
		pair := NewPair(c, remote, a.role == RoleControlling)
		pair.State = PairWaiting
		a.pairs = append(a.pairs, pair)
	}
	a.sortPairsByPriority()
}

// AddRemoteCandidate registers a candidate advertised by the peer and forms
// every pair with local candidates that satisfies the pairing rules. A
// candidate whose address is a ".local" mDNS hostname is resolved through
// the Candidate Source's IMDNSResolver capability first; without that
// capability (or while the name is still unresolved) the candidate is
// dropped rather than paired against an unroutable name.
func (a *Agent) AddRemoteCandidate(c Candidate) {
	if strings.HasSuffix(c.Address, ".local") {
		resolver, ok := a.source.(interfaces.IMDNSResolver)
		if !ok {
			a.log.With("hostname", c.Address).Debug("dropping mDNS candidate: source has no resolver capability")
			return
		}
		resolved, err := resolver.ResolveMDNSHostname(c.Address)
		if err != nil {
			a.log.WithError(err, "mdns_resolve").Debug("dropping unresolved mDNS candidate")
			return
		}
		c.Address = resolved
	}
	a.remoteCands = append(a.remoteCands, c)
	for _, local := range a.localCands {
		if !CanPair(local, c) {
			continue
		}
		pair := NewPair(local, c, a.role == RoleControlling)
		pair.State = PairWaiting
		a.pairs = append(a.pairs, pair)
	}
	a.sortPairsByPriority()
}

func (a *Agent) sortPairsByPriority() {
	sort.SliceStable(a.pairs, func(i, j int) bool {
		return a.pairs[i].Priority > a.pairs[j].Priority
	})
}

// SetRemoteCredentials records the peer's ICE ufrag/password, used to
// validate incoming STUN requests' short-term MESSAGE-INTEGRITY.
func (a *Agent) SetRemoteCredentials(ufrag, password string) {
	a.remoteUfrag, a.remotePass = ufrag, password
}

// PollOutbound returns the next STUN transaction to emit — a new
// connectivity check on the highest-priority waiting pair, a retransmission
// of a check whose RTO fired, or a consent keepalive on a selected pair —
// or nil if there is nothing to send yet.
func (a *Agent) PollOutbound(now time.Time) (*OutboundTransaction, error) {
	if tx := a.retransmitDue(now); tx != nil {
		return tx, nil
	}
	if tx, err := a.consentDue(now); tx != nil || err != nil {
		return tx, err
	}
	if now.Before(a.nextCheck) {
		return nil, nil
	}
	pair := a.highestPriorityWaiting()
	if pair == nil {
		return nil, nil
	}
	a.nextCheck = now.Add(checkInterval)
	return a.startCheck(pair, now, a.role == RoleControlling && a.shouldNominate(pair))
}

func (a *Agent) highestPriorityWaiting() *CandidatePair {
	for _, p := range a.pairs {
		if p.State == PairWaiting {
			return p
		}
	}
	return nil
}

// shouldNominate implements regular nomination: the controlling agent
// nominates a pair only after it has succeeded at least once.
func (a *Agent) shouldNominate(p *CandidatePair) bool {
	return p.State == PairSucceeded && !p.Nominated
}

func (a *Agent) startCheck(pair *CandidatePair, now time.Time, nominate bool) (*OutboundTransaction, error) {
	txID, err := a.newTransactionID()
	if err != nil {
		return nil, err
	}
	msg := BuildBindingRequest(txID, a.remoteUfrag+":"+a.localUfrag, []byte(a.remotePass), nominate, pair.Local.Priority)
	pair.State = PairInProgress
	pair.RequestsSent++
	a.pending[txID] = &pendingCheck{pair: pair, txID: txID, sentAt: now, rto: initialCheckRTO}
	return &OutboundTransaction{Pair: pair, Message: msg, TransactionID: txID}, nil
}

func (a *Agent) retransmitDue(now time.Time) *OutboundTransaction {
	for txID, pc := range a.pending {
		if now.Before(pc.sentAt.Add(pc.rto)) {
			continue
		}
		if pc.attempt >= maxCheckAttempts {
			pc.pair.State = PairFailed
			delete(a.pending, txID)
			continue
		}
		pc.attempt++
		pc.sentAt = now
		pc.rto *= 2
		msg := BuildBindingRequest(pc.txID, a.remoteUfrag+":"+a.localUfrag, []byte(a.remotePass), false, pc.pair.Local.Priority)
		pc.pair.RequestsSent++
		return &OutboundTransaction{Pair: pc.pair, Message: msg, TransactionID: pc.txID}
	}
	return nil
}

func (a *Agent) consentDue(now time.Time) (*OutboundTransaction, error) {
	for component, pair := range a.selected {
		last, ok := a.lastConsent[component]
		if ok && now.Before(last.Add(consentInterval)) {
			continue
		}
		txID, err := a.newTransactionID()
		if err != nil {
			return nil, err
		}
		msg := BuildBindingRequest(txID, a.remoteUfrag+":"+a.localUfrag, []byte(a.remotePass), false, pair.Local.Priority)
		pair.ConsentRequests++
		a.lastConsent[component] = now
		a.pending[txID] = &pendingCheck{pair: pair, txID: txID, sentAt: now, rto: initialCheckRTO}
		return &OutboundTransaction{Pair: pair, Message: msg, TransactionID: txID}, nil
	}
	return nil, nil
}

// HandleInbound classifies an inbound datagram already routed to the Agent
// by the demultiplexer as a STUN request or response and updates pair state
// accordingly.
func (a *Agent) HandleInbound(now time.Time, packet []byte, localAddr, peerAddr interfaces.HostAddress) ([]Event, []byte, error) {
	msg, err := ParseMessage(packet)
	if err != nil {
		return nil, nil, err
	}

	switch msg.Type {
	case StunBindingRequest:
		return a.handleBindingRequest(now, msg, peerAddr)
	case StunBindingResponse:
		return a.handleBindingResponse(now, msg)
	case TurnAllocateSuccess, TurnAllocateError:
		return a.handleTurnAllocateResponse(now, msg)
	case TurnCreatePermissionSuccess, TurnCreatePermissionError:
		return a.handleTurnCreatePermissionResponse(now, msg)
	case TurnDataIndication:
		return a.handleTurnDataIndication(msg)
	default:
		return nil, nil, fmt.Errorf("ice: unsupported STUN message type 0x%04x", msg.Type)
	}
}

func (a *Agent) handleBindingRequest(now time.Time, msg *StunMessage, peerAddr interfaces.HostAddress) ([]Event, []byte, error) {
	if !VerifyMessageIntegrity(reencodeForVerification(msg), []byte(a.localPass)) {
		a.log.Warn("dropping STUN request with bad message integrity")
		return nil, nil, nil
	}

	pair := a.findOrCreatePeerReflexivePair(peerAddr)
	pair.RequestsReceived++

	var events []Event
	if pair.State != PairSucceeded {
		pair.State = PairSucceeded
		events = append(events, Event{Kind: EventPairSucceeded, Pair: pair})
	}
	if msg.HasUseCandidate() && a.role == RoleControlled && !pair.Nominated {
		pair.Nominated = true
		a.selected[pair.Local.Component] = pair
		events = append(events, Event{Kind: EventNominated, Pair: pair})
	}

	response, err := BuildBindingResponse(msg.TransactionID, hostIPBytes(peerAddr.IP), peerAddr.Port, []byte(a.localPass))
	if err != nil {
		return events, nil, err
	}
	pair.ResponsesSent++
	return events, response, nil
}

func (a *Agent) handleBindingResponse(now time.Time, msg *StunMessage) ([]Event, []byte, error) {
	if gt, ok := a.gatherPending[msg.TransactionID]; ok {
		delete(a.gatherPending, msg.TransactionID)
		return a.handleServerReflexiveResponse(msg, gt)
	}

	pc, ok := a.pending[msg.TransactionID]
	if !ok {
		return nil, nil, nil
	}
	delete(a.pending, msg.TransactionID)

	pair := pc.pair
	pair.ResponsesReceived++
	rtt := now.Sub(pc.sentAt).Seconds()
	pair.RTTSamples = append(pair.RTTSamples, rtt)

	var events []Event
	if pair.State != PairSucceeded {
		pair.State = PairSucceeded
		events = append(events, Event{Kind: EventPairSucceeded, Pair: pair})
	}
	if a.role == RoleControlling && a.shouldNominate(pair) {
		pair.Nominated = true
		a.selected[pair.Local.Component] = pair
		events = append(events, Event{Kind: EventNominated, Pair: pair})
	}
	if pair.ConsentRequests > 0 {
		pair.ConsentRequests = 0
		a.consentFails[pair.Local.Component] = 0
	}
	return events, nil, nil
}

func (a *Agent) findOrCreatePeerReflexivePair(peerAddr interfaces.HostAddress) *CandidatePair {
	for _, p := range a.pairs {
		if p.Remote.Address == peerAddr.IP && p.Remote.Port == peerAddr.Port {
			return p
		}
	}
	// No matching pair: synthesize a peer-reflexive remote candidate against
	// the first local candidate sharing a component, per RFC 8445 §7.3.1.3.
	component := 1
	if len(a.localCands) > 0 {
		component = a.localCands[0].Component
	}
	remote := NewPeerReflexiveCandidate(component, TransportUDP, peerAddr.IP, peerAddr.Port, 0)
	a.remoteCands = append(a.remoteCands, remote)
	var local Candidate
	if len(a.localCands) > 0 {
		local = a.localCands[0]
	}
	pair := NewPair(local, remote, a.role == RoleControlling)
	pair.State = PairWaiting
	a.pairs = append(a.pairs, pair)
	a.sortPairsByPriority()
	return pair
}

// handleServerReflexiveResponse completes a STUN gathering transaction
// started by Gather: it decodes the reflexive mapped address the server
// observed and adds a server-reflexive local candidate.
func (a *Agent) handleServerReflexiveResponse(msg *StunMessage, gt gatherTransaction) ([]Event, []byte, error) {
	ip, port, err := msg.XorMappedAddress()
	if err != nil {
		a.log.WithError(err, "gather_stun").Warn("STUN gathering response missing mapped address")
		return nil, nil, nil
	}
	c := NewServerReflexiveCandidate(gt.component, TransportUDP, ipString(ip), port, gt.server.IP, gt.server.Port, 65535)
	a.addLocalCandidate(c)
	return []Event{{Kind: EventCandidateGathered, Candidate: &c}}, nil, nil
}

// handleTurnAllocateResponse completes a TURN Allocate transaction started
// by Gather: on success it adds a relay candidate for the allocation and
// installs a permission for every remote candidate already known, so the
// relay forwards their traffic once connectivity checks begin.
func (a *Agent) handleTurnAllocateResponse(now time.Time, msg *StunMessage) ([]Event, []byte, error) {
	gt, ok := a.gatherPending[msg.TransactionID]
	if !ok {
		return nil, nil, nil
	}
	delete(a.gatherPending, msg.TransactionID)

	relayIP, relayPort, lifetime, err := ParseTurnAllocateResponse(msg)
	if err != nil {
		a.log.WithError(err, "gather_turn").Warn("TURN allocate failed or malformed")
		return nil, nil, nil
	}

	// A refresh for an allocation already known just moves its deadline.
	if alloc, ok := a.relayAllocations[hostAddressKey(gt.server)]; ok {
		alloc.expiresAt = now.Add(lifetime)
		return nil, nil, nil
	}

	c := NewRelayCandidate(gt.component, TransportUDP, ipString(relayIP), relayPort, gt.server.IP, gt.server.Port, 0)
	a.addLocalCandidate(c)
	a.relayAllocations[hostAddressKey(gt.server)] = &relayAllocation{
		server:      gt.server,
		component:   gt.component,
		relayedIP:   c.Address,
		relayedPort: c.Port,
		expiresAt:   now.Add(lifetime),
		permissionsExpireAt: now.Add(turnPermissionLifetime),
	}

	for _, remote := range a.remoteCands {
		peer := interfaces.HostAddress{IP: remote.Address, Port: remote.Port, Protocol: interfaces.TransportUDP}
		txID, err := a.source.TurnCreatePermission(peer)
		if err != nil {
			a.log.WithError(err, "gather_turn").Warn("failed to start TURN create permission transaction")
			continue
		}
		a.gatherPending[txID] = gatherTransaction{kind: gatherTurnCreatePermission, server: gt.server, component: gt.component}
	}
	return []Event{{Kind: EventCandidateGathered, Candidate: &c}}, nil, nil
}

func (a *Agent) handleTurnCreatePermissionResponse(now time.Time, msg *StunMessage) ([]Event, []byte, error) {
	gt, ok := a.gatherPending[msg.TransactionID]
	if !ok {
		return nil, nil, nil
	}
	delete(a.gatherPending, msg.TransactionID)
	if err := ParseTurnCreatePermissionResponse(msg); err != nil {
		a.log.WithError(err, "gather_turn").Warn("TURN create permission refused")
		return nil, nil, nil
	}
	if alloc, ok := a.relayAllocations[hostAddressKey(gt.server)]; ok {
		alloc.permissionsExpireAt = now.Add(turnPermissionLifetime)
	}
	return nil, nil, nil
}

// handleTurnDataIndication logs relayed media arriving on a TURN allocation.
// Forwarding that payload into the demultiplexer as if it arrived directly
// would require the pipeline's routing stage to know about the relay
// transport; no relay candidate has been selected by any pair in this tree
// yet, so that wiring is left for when a selected pair actually nominates a
// relay candidate.
func (a *Agent) handleTurnDataIndication(msg *StunMessage) ([]Event, []byte, error) {
	if _, _, _, err := ParseTurnDataIndication(msg); err != nil {
		return nil, nil, nil
	}
	a.log.Debug("dropping relayed data indication: relay data-path forwarding not wired")
	return nil, nil, nil
}

func hostAddressKey(addr interfaces.HostAddress) string {
	return fmt.Sprintf("%s:%d", addr.IP, addr.Port)
}

// ipString renders a raw IPv4/IPv6 byte slice as a dotted-quad or
// colon-separated string for storage in a Candidate's Address field.
func ipString(ip []byte) string {
	return net.IP(ip).String()
}

// PollTimeout returns the earliest deadline across pending checks, the next
// scheduled check tick, and consent keepalives.
func (a *Agent) PollTimeout(now time.Time) time.Time {
	earliest := a.nextCheck
	for _, pc := range a.pending {
		deadline := pc.sentAt.Add(pc.rto)
		if earliest.IsZero() || deadline.Before(earliest) {
			earliest = deadline
		}
	}
	for component := range a.selected {
		deadline := a.lastConsent[component].Add(consentInterval)
		if earliest.IsZero() || deadline.Before(earliest) {
			earliest = deadline
		}
	}
	for _, alloc := range a.relayAllocations {
		for _, deadline := range []time.Time{alloc.expiresAt.Add(-turnRefreshLead), alloc.permissionsExpireAt.Add(-turnRefreshLead)} {
			if !deadline.IsZero() && (earliest.IsZero() || deadline.Before(earliest)) {
				earliest = deadline
			}
		}
	}
	return earliest
}

// refreshRelayAllocations re-issues Allocate and CreatePermission
// transactions for any relay allocation approaching its server-side
// expiry.
func (a *Agent) refreshRelayAllocations(now time.Time) {
	for _, alloc := range a.relayAllocations {
		if !alloc.expiresAt.IsZero() && !now.Before(alloc.expiresAt.Add(-turnRefreshLead)) {
			txID, err := a.source.TurnAllocate(alloc.server, a.turnCredentials)
			if err != nil {
				a.log.WithError(err, "turn_refresh").Warn("failed to start TURN allocation refresh")
			} else {
				a.gatherPending[txID] = gatherTransaction{kind: gatherTurnAllocate, server: alloc.server, component: alloc.component}
			}
			// Pushed forward provisionally; the refresh response
			// re-anchors it to the granted lifetime.
			alloc.expiresAt = now.Add(turnRefreshLead * 2)
		}
		if !alloc.permissionsExpireAt.IsZero() && !now.Before(alloc.permissionsExpireAt.Add(-turnRefreshLead)) {
			for _, remote := range a.remoteCands {
				peer := interfaces.HostAddress{IP: remote.Address, Port: remote.Port, Protocol: interfaces.TransportUDP}
				txID, err := a.source.TurnCreatePermission(peer)
				if err != nil {
					a.log.WithError(err, "turn_refresh").Warn("failed to start TURN permission renewal")
					continue
				}
				a.gatherPending[txID] = gatherTransaction{kind: gatherTurnCreatePermission, server: alloc.server, component: alloc.component}
			}
			alloc.permissionsExpireAt = now.Add(turnRefreshLead * 2)
		}
	}
}

// HandleTimeout checks consent freshness: three consecutive consent failures
// on a component drop its selected pair and raise EventConsentExpired, which
// an ICE restart can recover from.
func (a *Agent) HandleTimeout(now time.Time) []Event {
	var events []Event
	a.refreshRelayAllocations(now)
	for component, pair := range a.selected {
		last := a.lastConsent[component]
		if !last.IsZero() && now.Sub(last) > 2*consentInterval {
			a.consentFails[component]++
			a.lastConsent[component] = now
			if a.consentFails[component] >= maxConsentFailure {
				pair.State = PairFailed
				delete(a.selected, component)
				a.consentFails[component] = 0
				events = append(events, Event{Kind: EventConsentExpired, Pair: pair})
			}
		}
	}
	// Consent loss surfaces on its own first: the connection is
	// disconnected but recoverable by restart. Only an agent whose pairs
	// have all failed outside a consent expiry reports terminal failure.
	if len(events) == 0 && a.allPairsFailed() {
		events = append(events, Event{Kind: EventConnectionFailed})
	}
	return events
}

func (a *Agent) allPairsFailed() bool {
	if len(a.pairs) == 0 {
		return false
	}
	for _, p := range a.pairs {
		if p.State != PairFailed {
			return false
		}
	}
	return true
}

// Restart invalidates all pairs for a fresh gathering cycle while keeping
// the previously selected pair provisionally usable until a new pair is
// nominated under the new credentials.
func (a *Agent) Restart(newUfrag, newPassword string) {
	a.localUfrag, a.localPass = newUfrag, newPassword
	a.remoteCands = nil
	for _, p := range a.pairs {
		if !p.Nominated {
			p.State = PairFrozen
		}
	}
	a.pairs = nil
	a.pending = make(map[TransactionID]*pendingCheck)
}

// SelectedPair returns the nominated, succeeded pair for a component, if any.
func (a *Agent) SelectedPair(component int) (*CandidatePair, bool) {
	p, ok := a.selected[component]
	return p, ok
}

func (a *Agent) newTransactionID() (TransactionID, error) {
	var id TransactionID
	if _, err := io.ReadFull(a.entropy, id[:]); err != nil {
		return id, fmt.Errorf("ice: generate transaction id: %w", err)
	}
	return id, nil
}

func hostIPBytes(ip string) []byte {
	return net4(ip)
}

// net4 parses a dotted-quad string into 4 bytes; non-IPv4-looking input
// yields a zero address rather than erroring, since malformed peer addresses
// are handled upstream by the demultiplexer's classification.
func net4(ip string) []byte {
	var b [4]byte
	var parts [4]int
	n, _ := fmt.Sscanf(ip, "%d.%d.%d.%d", &parts[0], &parts[1], &parts[2], &parts[3])
	if n == 4 {
		for i, p := range parts {
			b[i] = byte(p)
		}
	}
	return b[:]
}

func reencodeForVerification(msg *StunMessage) []byte {
	// The verification path only needs a byte-identical reconstruction of
	// the header and attributes the message was parsed from, since
	// VerifyMessageIntegrity recomputes the HMAC over that prefix.
	var attrs []stunAttribute
	attrs = append(attrs, msg.Attributes...)
	header := encodeHeader(msg.Type, msg.TransactionID, attributesLength(attrs))
	body := encodeAttributes(attrs)
	return append(header, body...)
}
