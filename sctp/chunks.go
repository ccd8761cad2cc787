package sctp

import (
	"encoding/binary"
	"errors"
)

// InitChunk carries the parameters exchanged in INIT / INIT-ACK (RFC 4960
// §3.3.2/§3.3.3). The variable-length parameter list (state cookie, address
// lists) beyond what the handshake needs is not modeled.
type InitChunk struct {
	InitiateTag          uint32
	AdvertisedReceiver   uint32
	OutboundStreams      uint16
	InboundStreams       uint16
	InitialTSN           uint32
	StateCookie          []byte // present only on INIT-ACK
}

func marshalInit(c InitChunk, includeCookie bool) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint32(out[0:4], c.InitiateTag)
	binary.BigEndian.PutUint32(out[4:8], c.AdvertisedReceiver)
	binary.BigEndian.PutUint16(out[8:10], c.OutboundStreams)
	binary.BigEndian.PutUint16(out[10:12], c.InboundStreams)
	binary.BigEndian.PutUint32(out[12:16], c.InitialTSN)
	if includeCookie && len(c.StateCookie) > 0 {
		param := make([]byte, 4+len(c.StateCookie))
		binary.BigEndian.PutUint16(param[0:2], 7) // state cookie parameter type
		binary.BigEndian.PutUint16(param[2:4], uint16(4+len(c.StateCookie)))
		copy(param[4:], c.StateCookie)
		out = append(out, param...)
	}
	return out
}

func unmarshalInit(data []byte) (InitChunk, error) {
	if len(data) < 16 {
		return InitChunk{}, errors.New("sctp: INIT chunk too short")
	}
	c := InitChunk{
		InitiateTag:        binary.BigEndian.Uint32(data[0:4]),
		AdvertisedReceiver: binary.BigEndian.Uint32(data[4:8]),
		OutboundStreams:    binary.BigEndian.Uint16(data[8:10]),
		InboundStreams:     binary.BigEndian.Uint16(data[10:12]),
		InitialTSN:         binary.BigEndian.Uint32(data[12:16]),
	}
	offset := 16
	for offset+4 <= len(data) {
		paramType := binary.BigEndian.Uint16(data[offset : offset+2])
		paramLen := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if paramLen < 4 || offset+paramLen > len(data) {
			break
		}
		if paramType == 7 {
			c.StateCookie = append([]byte(nil), data[offset+4:offset+paramLen]...)
		}
		padded := (paramLen + 3) &^ 3
		offset += padded
	}
	return c, nil
}

// DataChunk is one fragment of a reliable or partially-reliable stream
// message, RFC 4960 §3.3.1.
type DataChunk struct {
	Unordered bool
	Begin     bool
	End       bool
	TSN       uint32
	StreamID  uint16
	StreamSeq uint16
	PPID      uint32
	Payload   []byte
}

const (
	dataFlagEnd       = 1 << 0
	dataFlagBegin     = 1 << 1
	dataFlagUnordered = 1 << 2
)

func marshalData(d DataChunk) Chunk {
	value := make([]byte, 12+len(d.Payload))
	binary.BigEndian.PutUint32(value[0:4], d.TSN)
	binary.BigEndian.PutUint16(value[4:6], d.StreamID)
	binary.BigEndian.PutUint16(value[6:8], d.StreamSeq)
	binary.BigEndian.PutUint32(value[8:12], d.PPID)
	copy(value[12:], d.Payload)

	var flags uint8
	if d.End {
		flags |= dataFlagEnd
	}
	if d.Begin {
		flags |= dataFlagBegin
	}
	if d.Unordered {
		flags |= dataFlagUnordered
	}
	return Chunk{Type: ChunkData, Flags: flags, Value: value}
}

func unmarshalData(c Chunk) (DataChunk, error) {
	if len(c.Value) < 12 {
		return DataChunk{}, errors.New("sctp: DATA chunk too short")
	}
	return DataChunk{
		Unordered: c.Flags&dataFlagUnordered != 0,
		Begin:     c.Flags&dataFlagBegin != 0,
		End:       c.Flags&dataFlagEnd != 0,
		TSN:       binary.BigEndian.Uint32(c.Value[0:4]),
		StreamID:  binary.BigEndian.Uint16(c.Value[4:6]),
		StreamSeq: binary.BigEndian.Uint16(c.Value[6:8]),
		PPID:      binary.BigEndian.Uint32(c.Value[8:12]),
		Payload:   c.Value[12:],
	}, nil
}

// GapAck is one gap-ack-block in a SACK: TSNs cumulativeTSN+start through
// cumulativeTSN+end have been received.
type GapAck struct {
	Start uint16
	End   uint16
}

// SackChunk acknowledges received DATA chunks, RFC 4960 §3.3.4.
type SackChunk struct {
	CumulativeTSN  uint32
	AdvertisedRwnd uint32
	GapAcks        []GapAck
	DuplicateTSNs  []uint32
}

func marshalSack(s SackChunk) Chunk {
	value := make([]byte, 12+4*len(s.GapAcks)+4*len(s.DuplicateTSNs))
	binary.BigEndian.PutUint32(value[0:4], s.CumulativeTSN)
	binary.BigEndian.PutUint32(value[4:8], s.AdvertisedRwnd)
	binary.BigEndian.PutUint16(value[8:10], uint16(len(s.GapAcks)))
	binary.BigEndian.PutUint16(value[10:12], uint16(len(s.DuplicateTSNs)))
	offset := 12
	for _, g := range s.GapAcks {
		binary.BigEndian.PutUint16(value[offset:offset+2], g.Start)
		binary.BigEndian.PutUint16(value[offset+2:offset+4], g.End)
		offset += 4
	}
	for _, d := range s.DuplicateTSNs {
		binary.BigEndian.PutUint32(value[offset:offset+4], d)
		offset += 4
	}
	return Chunk{Type: ChunkSack, Value: value}
}

func unmarshalSack(c Chunk) (SackChunk, error) {
	if len(c.Value) < 12 {
		return SackChunk{}, errors.New("sctp: SACK chunk too short")
	}
	s := SackChunk{
		CumulativeTSN:  binary.BigEndian.Uint32(c.Value[0:4]),
		AdvertisedRwnd: binary.BigEndian.Uint32(c.Value[4:8]),
	}
	numGaps := int(binary.BigEndian.Uint16(c.Value[8:10]))
	numDup := int(binary.BigEndian.Uint16(c.Value[10:12]))
	offset := 12
	for i := 0; i < numGaps; i++ {
		if offset+4 > len(c.Value) {
			return SackChunk{}, errors.New("sctp: SACK gap-ack list truncated")
		}
		s.GapAcks = append(s.GapAcks, GapAck{
			Start: binary.BigEndian.Uint16(c.Value[offset : offset+2]),
			End:   binary.BigEndian.Uint16(c.Value[offset+2 : offset+4]),
		})
		offset += 4
	}
	for i := 0; i < numDup; i++ {
		if offset+4 > len(c.Value) {
			return SackChunk{}, errors.New("sctp: SACK duplicate-TSN list truncated")
		}
		s.DuplicateTSNs = append(s.DuplicateTSNs, binary.BigEndian.Uint32(c.Value[offset:offset+4]))
		offset += 4
	}
	return s, nil
}

// ForwardTSNChunk advances the cumulative TSN past chunks the sender has
// abandoned under partial reliability, RFC 3758 §3.2.
type ForwardTSNChunk struct {
	NewCumulativeTSN uint32
	Streams          []ForwardTSNStream
}

// ForwardTSNStream names the last abandoned stream-sequence-number per
// stream, so the receiver can skip reassembly of the abandoned message.
type ForwardTSNStream struct {
	StreamID  uint16
	StreamSeq uint16
}

func marshalForwardTSN(f ForwardTSNChunk) Chunk {
	value := make([]byte, 4+4*len(f.Streams))
	binary.BigEndian.PutUint32(value[0:4], f.NewCumulativeTSN)
	offset := 4
	for _, s := range f.Streams {
		binary.BigEndian.PutUint16(value[offset:offset+2], s.StreamID)
		binary.BigEndian.PutUint16(value[offset+2:offset+4], s.StreamSeq)
		offset += 4
	}
	return Chunk{Type: ChunkForwardTSN, Value: value}
}

func unmarshalForwardTSN(c Chunk) (ForwardTSNChunk, error) {
	if len(c.Value) < 4 {
		return ForwardTSNChunk{}, errors.New("sctp: FORWARD-TSN chunk too short")
	}
	f := ForwardTSNChunk{NewCumulativeTSN: binary.BigEndian.Uint32(c.Value[0:4])}
	for offset := 4; offset+4 <= len(c.Value); offset += 4 {
		f.Streams = append(f.Streams, ForwardTSNStream{
			StreamID:  binary.BigEndian.Uint16(c.Value[offset : offset+2]),
			StreamSeq: binary.BigEndian.Uint16(c.Value[offset+2 : offset+4]),
		})
	}
	return f, nil
}

// ReConfigChunk carries a single outgoing-stream-reset request/response
// parameter, RFC 6525 §4. Only the stream-reset request and its response
// are modeled; add/reset-TSN parameters are out of scope.
type ReConfigChunk struct {
	RequestSeq uint32
	ResponseSeq uint32 // zero when this is a request, not a response
	Result      uint32 // valid only when ResponseSeq is set
	StreamIDs   []uint16
	IsResponse  bool
}

const (
	paramOutgoingResetRequest = 13
	paramReconfigResponse     = 16
)

func marshalReConfig(r ReConfigChunk) Chunk {
	var value []byte
	if r.IsResponse {
		value = make([]byte, 12)
		binary.BigEndian.PutUint16(value[0:2], paramReconfigResponse)
		binary.BigEndian.PutUint16(value[2:4], 12)
		binary.BigEndian.PutUint32(value[4:8], r.ResponseSeq)
		binary.BigEndian.PutUint32(value[8:12], r.Result)
	} else {
		length := 16 + 2*len(r.StreamIDs)
		padded := (length + 3) &^ 3
		value = make([]byte, padded)
		binary.BigEndian.PutUint16(value[0:2], paramOutgoingResetRequest)
		binary.BigEndian.PutUint16(value[2:4], uint16(length))
		binary.BigEndian.PutUint32(value[4:8], r.RequestSeq)
		binary.BigEndian.PutUint32(value[8:12], 0) // response seq this request responds to, unused here
		binary.BigEndian.PutUint32(value[12:16], 0) // sender's last assigned TSN, unused here
		offset := 16
		for _, id := range r.StreamIDs {
			binary.BigEndian.PutUint16(value[offset:offset+2], id)
			offset += 2
		}
	}
	return Chunk{Type: ChunkReConfig, Value: value}
}

func unmarshalReConfig(c Chunk) (ReConfigChunk, error) {
	if len(c.Value) < 4 {
		return ReConfigChunk{}, errors.New("sctp: RE-CONFIG chunk too short")
	}
	paramType := binary.BigEndian.Uint16(c.Value[0:2])
	paramLen := int(binary.BigEndian.Uint16(c.Value[2:4]))
	if paramLen < 4 || paramLen > len(c.Value) {
		return ReConfigChunk{}, errors.New("sctp: RE-CONFIG parameter length invalid")
	}
	switch paramType {
	case paramReconfigResponse:
		if paramLen < 12 {
			return ReConfigChunk{}, errors.New("sctp: RE-CONFIG response too short")
		}
		return ReConfigChunk{
			IsResponse:  true,
			ResponseSeq: binary.BigEndian.Uint32(c.Value[4:8]),
			Result:      binary.BigEndian.Uint32(c.Value[8:12]),
		}, nil
	case paramOutgoingResetRequest:
		if paramLen < 16 {
			return ReConfigChunk{}, errors.New("sctp: RE-CONFIG request too short")
		}
		r := ReConfigChunk{RequestSeq: binary.BigEndian.Uint32(c.Value[4:8])}
		for offset := 16; offset+2 <= paramLen; offset += 2 {
			r.StreamIDs = append(r.StreamIDs, binary.BigEndian.Uint16(c.Value[offset:offset+2]))
		}
		return r, nil
	default:
		return ReConfigChunk{}, errors.New("sctp: unrecognized RE-CONFIG parameter")
	}
}
