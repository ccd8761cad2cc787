package rtcengine

import (
	"time"

	"github.com/opd-ai/rtcengine/ice"
	"github.com/opd-ai/rtcengine/interfaces"
	"github.com/opd-ai/rtcengine/pipeline"
)

// classifiedDatagram is the message a Session feeds into its pipeline.Chain
// for HandleRead: the Demultiplexer has already run (it routes rather than
// transforms, per pipeline.Chain's own doc comment, so it stays outside the
// chain), and each stage below either consumes a datagram matching its
// route or passes it on unchanged.
type classifiedDatagram struct {
	route pipeline.Route
	data  []byte
	local interfaces.HostAddress
	peer  interfaces.HostAddress
}

// connectivityStage is the Chain stage owning the ICE agent: connectivity
// checks and consent on read, check/gather retransmits on timeout, restart
// on the matching control event.
type connectivityStage struct{ s *Session }

func (c *connectivityStage) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	cd, ok := msg.(classifiedDatagram)
	if !ok || cd.route != pipeline.RouteConnectivity {
		return []interface{}{msg}, nil
	}
	return nil, c.s.handleConnectivityRead(now, cd.data, cd.local, cd.peer)
}

func (c *connectivityStage) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	om, ok := msg.(OutboundMessage)
	if !ok || om.Kind != MessageAddRemoteCandidate {
		return []interface{}{msg}, nil
	}
	return nil, nil
}

func (c *connectivityStage) HandleTimeout(now time.Time) {
	s := c.s
	if tx, err := s.ice.PollOutbound(now); err == nil && tx != nil {
		dest := interfaces.HostAddress{IP: tx.Pair.Remote.Address, Port: tx.Pair.Remote.Port}
		s.ctx.QueueDatagram(pipeline.Datagram{Now: now, Peer: hostAddressString(dest), Bytes: tx.Message})
	}
	for _, ev := range s.ice.HandleTimeout(now) {
		switch ev.Kind {
		case ice.EventConsentExpired:
			// Consent loss on the selected pair is recoverable by an
			// ICE restart, so it surfaces as Disconnected, not Failed,
			// with an explicit restart hint for the host.
			s.haveSelectedPeer = false
			s.setConnState(StateDisconnected)
			s.raiseFault(NewFault(FaultTimeout, "ice", "consent_expired"))
			s.ctx.QueueEvent(SessionEvent{Kind: EventICERestartNeeded})
		case ice.EventConnectionFailed:
			s.setConnState(StateFailed)
			s.raiseFault(NewFault(FaultTimeout, "ice", "consent_or_check_exhausted"))
		}
	}
}

func (c *connectivityStage) PollTimeout(now time.Time) time.Time {
	return c.s.ice.PollTimeout(now)
}

func (c *connectivityStage) HandleEvent(event interface{}) {
	se, ok := event.(SessionEvent)
	if !ok || se.Kind != EventICERestartNeeded {
		return
	}
	s := c.s
	// RFC 8445 §4.4: restart requires a fresh ufrag/password pair, never a
	// reuse of the session's prior credentials.
	ufrag, err := randomICECredential(s.cfg.EntropySource, 4)
	if err != nil {
		return
	}
	password, err := randomICECredential(s.cfg.EntropySource, 16)
	if err != nil {
		return
	}
	s.localUfrag, s.localPassword = ufrag, password
	s.ice.Restart(s.localUfrag, s.localPassword)
}

// handshakeStage owns the DTLS endpoint and, since the Reliable Stream
// Transport rides inside DTLS application-data records rather than its own
// datagram route, the SCTP association alongside it.
type handshakeStage struct{ s *Session }

func (h *handshakeStage) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	cd, ok := msg.(classifiedDatagram)
	if !ok || cd.route != pipeline.RouteHandshake {
		return []interface{}{msg}, nil
	}
	return nil, h.s.handleHandshakeRead(now, cd.data)
}

func (h *handshakeStage) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	om, ok := msg.(OutboundMessage)
	if !ok || om.Kind != MessageReliableSend {
		return []interface{}{msg}, nil
	}
	s := h.s
	if s.sctpAssoc == nil {
		return nil, NewFault(FaultProtocolViolation, "sctp", "association_not_established")
	}
	ppid := uint32(webrtcPPIDString)
	if om.ReliableSend.Binary {
		ppid = webrtcPPIDBinary
	}
	s.sctpAssoc.Send(om.ReliableSend.StreamID, ppid, om.ReliableSend.Bytes, false)
	s.drainSCTPWrites(now)
	return nil, nil
}

func (h *handshakeStage) HandleTimeout(now time.Time) {
	s := h.s
	for _, rec := range s.dtlsEndpoint.HandleTimeout(now) {
		s.queueToSelectedPeer(now, rec)
	}
	if s.sctpAssoc != nil {
		s.sctpAssoc.HandleTimeout(now)
		s.drainSCTPWrites(now)
	}
}

func (h *handshakeStage) PollTimeout(now time.Time) time.Time {
	s := h.s
	var earliest time.Time
	if d, ok := s.dtlsEndpoint.PollTimeout(); ok {
		earliest = d
	}
	if s.sctpAssoc != nil {
		if d := s.sctpAssoc.PollTimeout(now); !d.IsZero() && (earliest.IsZero() || d.Before(earliest)) {
			earliest = d
		}
	}
	return earliest
}

func (h *handshakeStage) HandleEvent(event interface{}) {}

// mediaStage owns the SRTP contexts, RTP/RTCP dispatch, and the
// interceptor chain bound to every media stream.
type mediaStage struct{ s *Session }

func (m *mediaStage) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	cd, ok := msg.(classifiedDatagram)
	if !ok || cd.route != pipeline.RouteMedia {
		return []interface{}{msg}, nil
	}
	return nil, m.s.handleMediaRead(now, cd.data)
}

func (m *mediaStage) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	om, ok := msg.(OutboundMessage)
	if !ok || om.Kind != MessageMediaSend {
		return []interface{}{msg}, nil
	}
	return nil, m.s.handleMediaSend(now, om.MediaSend)
}

func (m *mediaStage) HandleTimeout(now time.Time) {
	m.s.drainInterceptorTimeouts(now)
}

func (m *mediaStage) PollTimeout(now time.Time) time.Time {
	if m.s.interceptors == nil {
		return time.Time{}
	}
	return m.s.interceptors.PollTimeout(now)
}

func (m *mediaStage) HandleEvent(event interface{}) {}
