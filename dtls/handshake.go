package dtls

import (
	"encoding/binary"
	"errors"
)

// HandshakeType identifies a DTLS handshake message.
type HandshakeType uint8

const (
	HandshakeHelloRequest       HandshakeType = 0
	HandshakeClientHello        HandshakeType = 1
	HandshakeServerHello        HandshakeType = 2
	HandshakeHelloVerifyRequest HandshakeType = 3
	HandshakeCertificate        HandshakeType = 11
	HandshakeServerKeyExchange  HandshakeType = 12
	HandshakeCertificateRequest HandshakeType = 13
	HandshakeServerHelloDone    HandshakeType = 14
	HandshakeCertificateVerify  HandshakeType = 15
	HandshakeClientKeyExchange  HandshakeType = 16
	HandshakeFinished           HandshakeType = 20
)

// handshakeHeaderSize is the 12-octet sub-header: msg-type(1), length(3),
// message-seq(2), fragment-offset(3), fragment-length(3).
const handshakeHeaderSize = 12

// maxFlightBufferSize bounds reassembly of a single flight's handshake
// fragments to 64 KiB; an overflow is a resource-exhaustion fault.
const maxFlightBufferSize = 64 * 1024

// pathMTU is the default fragmentation threshold for handshake messages.
const pathMTU = 1200

// HandshakeFragment is one fragment of a handshake message as it appears on
// the wire inside a DTLS record's fragment.
type HandshakeFragment struct {
	Type           HandshakeType
	Length         uint32
	MessageSeq     uint16
	FragmentOffset uint32
	FragmentLength uint32
	Body           []byte
}

// EncodeFragment serializes a single handshake fragment.
func EncodeFragment(f HandshakeFragment) []byte {
	out := make([]byte, handshakeHeaderSize+len(f.Body))
	out[0] = byte(f.Type)
	put24(out[1:4], f.Length)
	binary.BigEndian.PutUint16(out[4:6], f.MessageSeq)
	put24(out[6:9], f.FragmentOffset)
	put24(out[9:12], f.FragmentLength)
	copy(out[handshakeHeaderSize:], f.Body)
	return out
}

// DecodeFragment parses a handshake fragment from a DTLS record's fragment.
func DecodeFragment(data []byte) (HandshakeFragment, error) {
	if len(data) < handshakeHeaderSize {
		return HandshakeFragment{}, errors.New("dtls: handshake fragment too short")
	}
	f := HandshakeFragment{
		Type:           HandshakeType(data[0]),
		Length:         get24(data[1:4]),
		MessageSeq:     binary.BigEndian.Uint16(data[4:6]),
		FragmentOffset: get24(data[6:9]),
		FragmentLength: get24(data[9:12]),
	}
	end := handshakeHeaderSize + int(f.FragmentLength)
	if len(data) < end {
		return HandshakeFragment{}, errors.New("dtls: handshake fragment body truncated")
	}
	f.Body = data[handshakeHeaderSize:end]
	return f, nil
}

// FragmentMessage splits a complete handshake message body into fragments no
// larger than pathMTU bytes each.
func FragmentMessage(msgType HandshakeType, messageSeq uint16, body []byte) []HandshakeFragment {
	if len(body) <= pathMTU {
		return []HandshakeFragment{{
			Type: msgType, Length: uint32(len(body)), MessageSeq: messageSeq,
			FragmentOffset: 0, FragmentLength: uint32(len(body)), Body: body,
		}}
	}
	var frags []HandshakeFragment
	for offset := 0; offset < len(body); offset += pathMTU {
		end := offset + pathMTU
		if end > len(body) {
			end = len(body)
		}
		frags = append(frags, HandshakeFragment{
			Type: msgType, Length: uint32(len(body)), MessageSeq: messageSeq,
			FragmentOffset: uint32(offset), FragmentLength: uint32(end - offset),
			Body: body[offset:end],
		})
	}
	return frags
}

// Reassembler accumulates fragments for handshake messages by message-seq
// until each message is complete, bounded by maxFlightBufferSize.
type Reassembler struct {
	pending map[uint16]*partialMessage
	total   int
}

type partialMessage struct {
	msgType HandshakeType
	length  uint32
	have    []bool
	buf     []byte
}

// NewReassembler constructs an empty handshake reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint16]*partialMessage)}
}

// Add feeds a fragment into the reassembler. It returns the complete message
// body once every fragment for that message-seq has arrived, or nil if the
// message is still incomplete. It returns an error if accepting the fragment
// would exceed the flight buffer cap.
func (r *Reassembler) Add(f HandshakeFragment) ([]byte, error) {
	pm, ok := r.pending[f.MessageSeq]
	if !ok {
		if r.total+int(f.Length) > maxFlightBufferSize {
			return nil, errors.New("dtls: flight reassembly buffer overflow")
		}
		pm = &partialMessage{
			msgType: f.Type,
			length:  f.Length,
			have:    make([]bool, f.Length),
			buf:     make([]byte, f.Length),
		}
		r.pending[f.MessageSeq] = pm
		r.total += int(f.Length)
	}

	copy(pm.buf[f.FragmentOffset:], f.Body)
	for i := uint32(0); i < f.FragmentLength; i++ {
		pm.have[f.FragmentOffset+i] = true
	}

	for _, seen := range pm.have {
		if !seen {
			return nil, nil
		}
	}
	delete(r.pending, f.MessageSeq)
	r.total -= int(pm.length)
	return pm.buf, nil
}

func put24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func get24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
