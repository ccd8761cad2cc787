package rtcengine

import "time"

// InboundDatagram is a timestamped datagram the host hands to HandleRead:
// bytes received on a socket, tagged with the local/remote address pair
// they arrived on.
type InboundDatagram struct {
	Now              time.Time
	LocalAddr        string
	PeerAddr         string
	TransportProtocol string
	ECNMark          uint8
	Bytes            []byte
}

// OutboundDatagram is a timestamped datagram the host must send, returned
// from PollWrite.
type OutboundDatagram struct {
	PeerAddr string
	Bytes    []byte
}

// TrackKind distinguishes an audio track from a video track from a data
// channel, the three kinds a Track(kind, id, params) announcement can name.
type TrackKind int

const (
	TrackAudio TrackKind = iota
	TrackVideo
	TrackData
)

// ConnectionState mirrors the top-level lifecycle a host cares about: new,
// connecting, connected, disconnected, failed, closed.
type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// InboundMessage is the sum type of application-facing events a Session
// delivers to the host via PollRead: a connection state transition, a
// track appearing, a reliable-stream message, or media data/control.
// Exactly one of the typed fields is non-nil/non-zero per instance; callers
// switch on Kind.
type InboundMessage struct {
	Kind InboundMessageKind

	ConnectionState ConnectionState
	Track           TrackInfo
	ReliableMessage ReliableMessage
	MediaPacket     MediaPacket
	MediaControl    MediaControl
}

// InboundMessageKind tags which field of InboundMessage is populated.
type InboundMessageKind int

const (
	MessageConnectionState InboundMessageKind = iota
	MessageTrack
	MessageReliableMessage
	MessageMediaPacket
	MessageMediaControl
)

// TrackInfo describes a track that appeared or disappeared.
type TrackInfo struct {
	Kind   TrackKind
	ID     string
	Params map[string]string
}

// ReliableMessage is one message delivered over a data channel's reliable
// (or partially-reliable) ordered/unordered stream.
type ReliableMessage struct {
	StreamID uint16
	Bytes    []byte
	Binary   bool
}

// MediaPacket is one decoded RTP payload delivered to the host, with the
// header fields the application layer typically needs to interpret it.
type MediaPacket struct {
	TrackID      string
	Payload      []byte
	Marker       bool
	SequenceNum  uint16
	Timestamp    uint32
}

// MediaControl carries one or more decoded RTCP report/feedback blocks for
// a track, surfaced so the host can expose statistics without reaching
// into the engine's internals.
type MediaControl struct {
	TrackID string
	Blocks  [][]byte
}

// OutboundMessage is the sum type of application-facing requests the host
// hands the engine via HandleWrite: send on a reliable stream, submit a
// media packet, or apply a session-description/candidate mutation.
type OutboundMessage struct {
	Kind OutboundMessageKind

	ReliableSend    ReliableMessage
	MediaSend       MediaPacket
	RemoteCandidate string
}

// OutboundMessageKind tags which field of OutboundMessage is populated.
type OutboundMessageKind int

const (
	MessageReliableSend OutboundMessageKind = iota
	MessageMediaSend
	MessageAddRemoteCandidate
)

// SessionEvent is the sum type of control-plane notifications a Session
// raises to the host via PollEvent: connection state transitions, track
// lifecycle, reliable-stream lifecycle, and renegotiation signals.
type SessionEvent struct {
	Kind SessionEventKind

	ConnectionState ConnectionState
	Track           TrackInfo
	StreamID        uint16
	Label           string
	Fault           *Fault
}

// SessionEventKind tags which fields of SessionEvent are populated.
type SessionEventKind int

const (
	EventConnectionStateChanged SessionEventKind = iota
	EventTrackAppeared
	EventTrackDisappeared
	EventReliableStreamOpened
	EventReliableStreamClosed
	EventNegotiationNeeded
	EventICERestartNeeded
	EventFault
)
