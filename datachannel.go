package rtcengine

import (
	"time"

	"github.com/opd-ai/rtcengine/sctp"
)

// DataChannelConfig selects the semantics of one data channel. The zero
// value is a reliable ordered channel.
type DataChannelConfig struct {
	Label    string
	Protocol string
	// Unordered delivers messages as they complete rather than in
	// stream-sequence order.
	Unordered bool
	// MaxRetransmits caps retransmissions before a message is abandoned;
	// a value of 0 means fire-and-forget. Nil leaves the channel fully
	// reliable.
	MaxRetransmits *int
	// Lifetime abandons a message outstanding longer than this. Zero
	// means unlimited. MaxRetransmits and Lifetime are mutually
	// exclusive on the wire; MaxRetransmits wins if both are set.
	Lifetime time.Duration
}

// dataChannel is the Session-side record of one negotiated channel: its
// stream id, the DCEP metadata, and whether the establishment handshake
// has completed.
type dataChannel struct {
	streamID uint16
	label    string
	protocol string
	cfg      DataChannelConfig
	open     bool
}

func (c DataChannelConfig) channelType() sctp.ChannelType {
	switch {
	case c.MaxRetransmits != nil && c.Unordered:
		return sctp.ChannelPartialReliableRexmitUnordered
	case c.MaxRetransmits != nil:
		return sctp.ChannelPartialReliableRexmit
	case c.Lifetime > 0 && c.Unordered:
		return sctp.ChannelPartialReliableTimedUnordered
	case c.Lifetime > 0:
		return sctp.ChannelPartialReliableTimed
	case c.Unordered:
		return sctp.ChannelReliableUnordered
	default:
		return sctp.ChannelReliable
	}
}

func (c DataChannelConfig) reliabilityParameter() uint32 {
	if c.MaxRetransmits != nil {
		return uint32(*c.MaxRetransmits)
	}
	if c.Lifetime > 0 {
		return uint32(c.Lifetime / time.Millisecond)
	}
	return 0
}

func (c DataChannelConfig) streamConfig() sctp.StreamConfig {
	cfg := sctp.StreamConfig{Unordered: c.Unordered, MaxRetransmits: -1}
	if c.MaxRetransmits != nil {
		cfg.MaxRetransmits = *c.MaxRetransmits
	} else if c.Lifetime > 0 {
		cfg.Lifetime = c.Lifetime
	}
	return cfg
}

func configFromOpen(o *sctp.DataChannelOpen) DataChannelConfig {
	cfg := DataChannelConfig{Label: o.Label, Protocol: o.Protocol}
	retransmits := int(o.Reliability)
	switch o.ChannelType {
	case sctp.ChannelReliableUnordered:
		cfg.Unordered = true
	case sctp.ChannelPartialReliableRexmit:
		cfg.MaxRetransmits = &retransmits
	case sctp.ChannelPartialReliableRexmitUnordered:
		cfg.MaxRetransmits = &retransmits
		cfg.Unordered = true
	case sctp.ChannelPartialReliableTimed:
		cfg.Lifetime = time.Duration(o.Reliability) * time.Millisecond
	case sctp.ChannelPartialReliableTimedUnordered:
		cfg.Lifetime = time.Duration(o.Reliability) * time.Millisecond
		cfg.Unordered = true
	}
	return cfg
}

// OpenDataChannel begins the RFC 8832 establishment of a new channel over
// the reliable stream transport: it claims the next stream id of this
// side's parity (the DTLS client owns even ids, the server odd ones, so
// simultaneous opens never collide), sends DATA_CHANNEL_OPEN, and returns
// the stream id. The channel is usable for sending immediately; the
// EventReliableStreamOpened event fires once the peer's ACK arrives.
func (s *Session) OpenDataChannel(now time.Time, cfg DataChannelConfig) (uint16, error) {
	if s.sctpAssoc == nil {
		return 0, NewFault(FaultProtocolViolation, "sctp", "association_not_established")
	}
	streamID := s.nextStreamID
	s.nextStreamID += 2
	ch := &dataChannel{streamID: streamID, label: cfg.Label, protocol: cfg.Protocol, cfg: cfg}
	s.channels[streamID] = ch

	open := sctp.MarshalDataChannelOpen(sctp.DataChannelOpen{
		ChannelType: cfg.channelType(),
		Reliability: cfg.reliabilityParameter(),
		Label:       cfg.Label,
		Protocol:    cfg.Protocol,
	})
	// DCEP itself is always reliable and ordered; the channel's own
	// partial-reliability config is installed on the stream only after
	// the peer has acknowledged the open.
	s.sctpAssoc.Send(streamID, webrtcPPIDDCEP, open, false)
	s.drainSCTPWrites(now)
	return streamID, nil
}

// CloseDataChannel resets the channel's stream via RFC 6525 and surfaces
// EventReliableStreamClosed. The stream id is not reused.
func (s *Session) CloseDataChannel(now time.Time, streamID uint16) {
	if s.sctpAssoc == nil {
		return
	}
	ch, ok := s.channels[streamID]
	if !ok {
		return
	}
	delete(s.channels, streamID)
	s.sctpAssoc.ResetStream([]uint16{streamID})
	s.drainSCTPWrites(now)
	s.ctx.QueueEvent(SessionEvent{Kind: EventReliableStreamClosed, StreamID: streamID, Label: ch.label})
}

// ChannelLabel reports the DCEP label negotiated for streamID, if any.
func (s *Session) ChannelLabel(streamID uint16) (string, bool) {
	ch, ok := s.channels[streamID]
	if !ok {
		return "", false
	}
	return ch.label, true
}

// handleDCEP processes one inbound DCEP message (PPID 50): an OPEN from
// the peer creates the channel, installs its stream semantics, and
// answers with an ACK; an ACK completes a locally initiated open.
func (s *Session) handleDCEP(now time.Time, streamID uint16, payload []byte) {
	if sctp.IsDataChannelAck(payload) {
		ch, ok := s.channels[streamID]
		if !ok || ch.open {
			return
		}
		ch.open = true
		s.sctpAssoc.ConfigureStream(streamID, ch.cfg.streamConfig())
		s.ctx.QueueEvent(SessionEvent{Kind: EventReliableStreamOpened, StreamID: streamID, Label: ch.label})
		return
	}
	open, err := sctp.UnmarshalDataChannelOpen(payload)
	if err != nil {
		s.stats.SCTP().Incr("malformed_dcep", 1)
		return
	}
	cfg := configFromOpen(open)
	ch := &dataChannel{streamID: streamID, label: open.Label, protocol: open.Protocol, cfg: cfg, open: true}
	s.channels[streamID] = ch
	s.sctpAssoc.ConfigureStream(streamID, cfg.streamConfig())
	s.sctpAssoc.Send(streamID, webrtcPPIDDCEP, sctp.MarshalDataChannelAck(), false)
	s.drainSCTPWrites(now)
	s.ctx.QueueEvent(SessionEvent{Kind: EventReliableStreamOpened, StreamID: streamID, Label: open.Label})
}
