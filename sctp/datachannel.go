package sctp

import (
	"encoding/binary"
	"errors"
)

// Data channel establishment protocol message types, RFC 8832 §5.1.
const (
	dcepMessageAck  uint8 = 2
	dcepMessageOpen uint8 = 3
)

// ChannelType selects the reliability/ordering semantics of a data
// channel, RFC 8832 §5.1.
type ChannelType uint8

const (
	ChannelReliable                 ChannelType = 0x00
	ChannelReliableUnordered        ChannelType = 0x80
	ChannelPartialReliableRexmit    ChannelType = 0x01
	ChannelPartialReliableRexmitUnordered ChannelType = 0x81
	ChannelPartialReliableTimed     ChannelType = 0x02
	ChannelPartialReliableTimedUnordered  ChannelType = 0x82
)

// DataChannelOpen is the DATA_CHANNEL_OPEN message, RFC 8832 §5.1: a
// 19-octet fixed header (including the 1-octet message type) followed by
// the label and protocol strings.
type DataChannelOpen struct {
	ChannelType ChannelType
	Priority    uint16
	Reliability uint32 // retransmit count or lifetime in ms, per ChannelType
	Label       string
	Protocol    string
}

const dcepOpenHeaderSize = 12

// MarshalDataChannelOpen encodes a DATA_CHANNEL_OPEN message.
func MarshalDataChannelOpen(o DataChannelOpen) []byte {
	out := make([]byte, dcepOpenHeaderSize+len(o.Label)+len(o.Protocol))
	out[0] = dcepMessageOpen
	out[1] = uint8(o.ChannelType)
	binary.BigEndian.PutUint16(out[2:4], o.Priority)
	binary.BigEndian.PutUint32(out[4:8], o.Reliability)
	binary.BigEndian.PutUint16(out[8:10], uint16(len(o.Label)))
	binary.BigEndian.PutUint16(out[10:12], uint16(len(o.Protocol)))
	copy(out[12:], o.Label)
	copy(out[12+len(o.Label):], o.Protocol)
	return out
}

// UnmarshalDataChannelOpen decodes a DATA_CHANNEL_OPEN message.
func UnmarshalDataChannelOpen(data []byte) (*DataChannelOpen, error) {
	if len(data) < dcepOpenHeaderSize {
		return nil, errors.New("sctp: DATA_CHANNEL_OPEN too short")
	}
	if data[0] != dcepMessageOpen {
		return nil, errors.New("sctp: not a DATA_CHANNEL_OPEN message")
	}
	labelLen := int(binary.BigEndian.Uint16(data[8:10]))
	protoLen := int(binary.BigEndian.Uint16(data[10:12]))
	if len(data) < dcepOpenHeaderSize+labelLen+protoLen {
		return nil, errors.New("sctp: DATA_CHANNEL_OPEN truncated label/protocol")
	}
	return &DataChannelOpen{
		ChannelType: ChannelType(data[1]),
		Priority:    binary.BigEndian.Uint16(data[2:4]),
		Reliability: binary.BigEndian.Uint32(data[4:8]),
		Label:       string(data[dcepOpenHeaderSize : dcepOpenHeaderSize+labelLen]),
		Protocol:    string(data[dcepOpenHeaderSize+labelLen : dcepOpenHeaderSize+labelLen+protoLen]),
	}, nil
}

// MarshalDataChannelAck encodes the 1-octet DATA_CHANNEL_ACK message.
func MarshalDataChannelAck() []byte {
	return []byte{dcepMessageAck}
}

// IsDataChannelAck reports whether data is a DATA_CHANNEL_ACK message.
func IsDataChannelAck(data []byte) bool {
	return len(data) == 1 && data[0] == dcepMessageAck
}
