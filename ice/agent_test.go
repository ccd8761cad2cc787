package ice

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/opd-ai/rtcengine/interfaces"
)

// testSource is an in-memory ICandidateSource: it records the transactions
// the agent starts and hands back predictable transaction ids so tests can
// craft the matching responses.
type testSource struct {
	hosts           []interfaces.HostAddress
	stunCalls       int
	allocateCalls   int
	permissionCalls int
	nextTxByte      byte
	lastTxID        [12]byte
}

func (s *testSource) nextTx() [12]byte {
	s.nextTxByte++
	var id [12]byte
	for i := range id {
		id[i] = s.nextTxByte
	}
	s.lastTxID = id
	return id
}

func (s *testSource) EnumerateHostAddresses() ([]interfaces.HostAddress, error) {
	return s.hosts, nil
}

func (s *testSource) StunRequest(server interfaces.HostAddress, bindingRequest []byte) ([12]byte, error) {
	s.stunCalls++
	return s.nextTx(), nil
}

func (s *testSource) TurnAllocate(server interfaces.HostAddress, creds interfaces.TurnCredentials) ([12]byte, error) {
	s.allocateCalls++
	return s.nextTx(), nil
}

func (s *testSource) TurnCreatePermission(peer interfaces.HostAddress) ([12]byte, error) {
	s.permissionCalls++
	return s.nextTx(), nil
}

func (s *testSource) TurnSend(peer interfaces.HostAddress, payload []byte) error {
	return nil
}

// mdnsSource adds the optional resolver capability on top of testSource.
type mdnsSource struct {
	testSource
	names map[string]string
}

func (s *mdnsSource) ResolveMDNSHostname(hostname string) (string, error) {
	ip, ok := s.names[hostname]
	if !ok {
		return "", errors.New("unknown mdns name")
	}
	return ip, nil
}

func testEntropy() *bytes.Reader {
	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
	return bytes.NewReader(buf)
}

func newTestAgent(role Role, source interfaces.ICandidateSource) *Agent {
	return NewAgent(role, source, "localfrag", "localpassword123456789", testEntropy())
}

func TestGatherPairsHostCandidatesAgainstRemote(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlling, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "198.51.100.7", 41000, 65535))
	if len(agent.pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(agent.pairs))
	}
	if agent.pairs[0].State != PairWaiting {
		t.Fatalf("pair state = %v, want waiting", agent.pairs[0].State)
	}
}

func TestPollOutboundStartsCheckOnHighestPriorityWaitingPair(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlling, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.SetRemoteCredentials("remotefrag", "remotepassword1234567")
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "198.51.100.7", 41000, 65535))

	now := time.Unix(100, 0)
	tx, err := agent.PollOutbound(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a connectivity check on the waiting pair")
	}
	if tx.Pair.State != PairInProgress {
		t.Fatalf("pair state = %v, want in-progress", tx.Pair.State)
	}
	if _, err := ParseMessage(tx.Message); err != nil {
		t.Fatalf("check message must be valid STUN: %v", err)
	}
}

func TestBindingResponseSucceedsAndNominatesForControlling(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlling, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "198.51.100.7", 41000, 65535))

	now := time.Unix(100, 0)
	tx, err := agent.PollOutbound(now)
	if err != nil || tx == nil {
		t.Fatalf("expected check, got tx=%v err=%v", tx, err)
	}

	resp, err := BuildBindingResponse(tx.TransactionID, []byte{192, 0, 2, 1}, 40000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, _, err := agent.HandleInbound(now.Add(20*time.Millisecond), resp, interfaces.HostAddress{}, interfaces.HostAddress{IP: "198.51.100.7", Port: 41000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var succeeded, nominated bool
	for _, ev := range events {
		switch ev.Kind {
		case EventPairSucceeded:
			succeeded = true
		case EventNominated:
			nominated = true
		}
	}
	if !succeeded || !nominated {
		t.Fatalf("events = %+v, want succeeded and nominated", events)
	}
	if pair, ok := agent.SelectedPair(1); !ok || !pair.Nominated {
		t.Fatal("expected a selected, nominated pair")
	}
	if len(agent.pairs[0].RTTSamples) != 1 {
		t.Fatalf("RTT samples = %d, want 1", len(agent.pairs[0].RTTSamples))
	}
}

func TestRestartInvalidatesPairsAndRemoteCandidates(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlling, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "198.51.100.7", 41000, 65535))
	if len(agent.pairs) == 0 {
		t.Fatal("expected pairs before restart")
	}

	agent.Restart("newfrag", "newpassword1234567890")
	if len(agent.pairs) != 0 {
		t.Fatalf("pairs = %d after restart, want 0", len(agent.pairs))
	}
	if len(agent.remoteCands) != 0 {
		t.Fatalf("remote candidates = %d after restart, want 0", len(agent.remoteCands))
	}
	if len(agent.pending) != 0 {
		t.Fatalf("pending checks = %d after restart, want 0", len(agent.pending))
	}
}

func TestConsentLossEmitsConsentExpiredNotConnectionFailed(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlling, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "198.51.100.7", 41000, 65535))

	now := time.Unix(100, 0)
	tx, _ := agent.PollOutbound(now)
	resp, _ := BuildBindingResponse(tx.TransactionID, []byte{192, 0, 2, 1}, 40000, nil)
	if _, _, err := agent.HandleInbound(now, resp, interfaces.HostAddress{}, interfaces.HostAddress{IP: "198.51.100.7", Port: 41000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := agent.SelectedPair(1); !ok {
		t.Fatal("expected selected pair before consent loss")
	}

	// One consent keepalive goes out and is never answered; every
	// missed window counts one failure, the third fails the component.
	if tx, _ := agent.PollOutbound(now.Add(time.Second)); tx == nil {
		t.Fatal("expected consent keepalive on the selected pair")
	}
	var events []Event
	for i := 1; i <= 3; i++ {
		events = agent.HandleTimeout(now.Add(time.Duration(i) * 12 * time.Second))
	}
	if len(events) != 1 || events[0].Kind != EventConsentExpired {
		t.Fatalf("events = %+v, want exactly one consent-expired", events)
	}
	if _, ok := agent.SelectedPair(1); ok {
		t.Fatal("selected pair must be dropped after consent loss")
	}
}

func TestMDNSCandidateResolvedBeforePairing(t *testing.T) {
	src := &mdnsSource{
		testSource: testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}},
		names:      map[string]string{"abcd1234.local": "198.51.100.9"},
	}
	agent := newTestAgent(RoleControlled, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "abcd1234.local", 41000, 65535))
	if len(agent.pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(agent.pairs))
	}
	if got := agent.pairs[0].Remote.Address; got != "198.51.100.9" {
		t.Fatalf("remote address = %q, want the resolved IP", got)
	}
}

func TestMDNSCandidateDroppedWithoutResolverCapability(t *testing.T) {
	src := &testSource{hosts: []interfaces.HostAddress{{IP: "192.0.2.1", Port: 40000}}}
	agent := newTestAgent(RoleControlled, src)
	if err := agent.Gather(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agent.AddRemoteCandidate(NewHostCandidate(1, TransportUDP, "abcd1234.local", 41000, 65535))
	if len(agent.pairs) != 0 {
		t.Fatalf("pairs = %d, want 0: unresolvable mDNS candidate must not pair", len(agent.pairs))
	}
}
