package rtcp

import (
	"encoding/binary"
	"errors"
)

// senderInfoSize is the 20-octet sender-info block inside a Sender Report.
const senderInfoSize = 20

// reportBlockSize is the 24-octet reception report block shared by SR and RR.
const reportBlockSize = 24

// SenderReport carries the sender's own transmission statistics plus zero or
// more reception report blocks, per RFC 3550 §6.4.1.
type SenderReport struct {
	SSRC           uint32
	NTPTimestamp   uint64
	RTPTimestamp   uint32
	PacketCount    uint32
	OctetCount     uint32
	ReportBlocks   []ReportBlock
}

// ReportBlock is one reception report block: the receiver's view of a
// single remote SSRC's stream.
type ReportBlock struct {
	SSRC             uint32
	FractionLost     uint8
	CumulativeLost   uint32 // 24 bits significant
	ExtendedHighSeq  uint32
	Jitter           uint32
	LastSR           uint32
	DelaySinceLastSR uint32
}

// Marshal encodes a Sender Report as a single compound report.
func (sr *SenderReport) Marshal() []byte {
	body := make([]byte, 4+senderInfoSize+len(sr.ReportBlocks)*reportBlockSize)
	binary.BigEndian.PutUint32(body[0:4], sr.SSRC)
	binary.BigEndian.PutUint64(body[4:12], sr.NTPTimestamp)
	binary.BigEndian.PutUint32(body[12:16], sr.RTPTimestamp)
	binary.BigEndian.PutUint32(body[16:20], sr.PacketCount)
	binary.BigEndian.PutUint32(body[20:24], sr.OctetCount)

	offset := 24
	for _, rb := range sr.ReportBlocks {
		encodeReportBlock(body[offset:offset+reportBlockSize], rb)
		offset += reportBlockSize
	}

	lengthWords := uint16((headerSize+len(body))/4 - 1)
	header := encodeHeader(Header{Count: uint8(len(sr.ReportBlocks)), Type: TypeSenderReport, LengthWords: lengthWords})
	return append(header, body...)
}

// UnmarshalSenderReport decodes a Sender Report compound report.
func UnmarshalSenderReport(data []byte) (*SenderReport, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Type != TypeSenderReport {
		return nil, errors.New("rtcp: not a sender report")
	}
	body := data[headerSize:]
	if len(body) < 4+senderInfoSize {
		return nil, errors.New("rtcp: sender report too short")
	}
	sr := &SenderReport{
		SSRC:         binary.BigEndian.Uint32(body[0:4]),
		NTPTimestamp: binary.BigEndian.Uint64(body[4:12]),
		RTPTimestamp: binary.BigEndian.Uint32(body[12:16]),
		PacketCount:  binary.BigEndian.Uint32(body[16:20]),
		OctetCount:   binary.BigEndian.Uint32(body[20:24]),
	}
	offset := 24
	for i := 0; i < int(h.Count); i++ {
		if offset+reportBlockSize > len(body) {
			return nil, errors.New("rtcp: sender report truncated report block")
		}
		sr.ReportBlocks = append(sr.ReportBlocks, decodeReportBlock(body[offset:offset+reportBlockSize]))
		offset += reportBlockSize
	}
	return sr, nil
}

// ReceiverReport carries only reception report blocks, per RFC 3550 §6.4.2.
type ReceiverReport struct {
	SSRC         uint32
	ReportBlocks []ReportBlock
}

// Marshal encodes a Receiver Report.
func (rr *ReceiverReport) Marshal() []byte {
	body := make([]byte, 4+len(rr.ReportBlocks)*reportBlockSize)
	binary.BigEndian.PutUint32(body[0:4], rr.SSRC)
	offset := 4
	for _, rb := range rr.ReportBlocks {
		encodeReportBlock(body[offset:offset+reportBlockSize], rb)
		offset += reportBlockSize
	}
	lengthWords := uint16((headerSize+len(body))/4 - 1)
	header := encodeHeader(Header{Count: uint8(len(rr.ReportBlocks)), Type: TypeReceiverReport, LengthWords: lengthWords})
	return append(header, body...)
}

// UnmarshalReceiverReport decodes a Receiver Report compound report.
func UnmarshalReceiverReport(data []byte) (*ReceiverReport, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Type != TypeReceiverReport {
		return nil, errors.New("rtcp: not a receiver report")
	}
	body := data[headerSize:]
	if len(body) < 4 {
		return nil, errors.New("rtcp: receiver report too short")
	}
	rr := &ReceiverReport{SSRC: binary.BigEndian.Uint32(body[0:4])}
	offset := 4
	for i := 0; i < int(h.Count); i++ {
		if offset+reportBlockSize > len(body) {
			return nil, errors.New("rtcp: receiver report truncated report block")
		}
		rr.ReportBlocks = append(rr.ReportBlocks, decodeReportBlock(body[offset:offset+reportBlockSize]))
		offset += reportBlockSize
	}
	return rr, nil
}

func encodeReportBlock(out []byte, rb ReportBlock) {
	binary.BigEndian.PutUint32(out[0:4], rb.SSRC)
	out[4] = rb.FractionLost
	put24(out[5:8], rb.CumulativeLost)
	binary.BigEndian.PutUint32(out[8:12], rb.ExtendedHighSeq)
	binary.BigEndian.PutUint32(out[12:16], rb.Jitter)
	binary.BigEndian.PutUint32(out[16:20], rb.LastSR)
	binary.BigEndian.PutUint32(out[20:24], rb.DelaySinceLastSR)
}

func decodeReportBlock(data []byte) ReportBlock {
	return ReportBlock{
		SSRC:             binary.BigEndian.Uint32(data[0:4]),
		FractionLost:     data[4],
		CumulativeLost:   get24(data[5:8]),
		ExtendedHighSeq:  binary.BigEndian.Uint32(data[8:12]),
		Jitter:           binary.BigEndian.Uint32(data[12:16]),
		LastSR:           binary.BigEndian.Uint32(data[16:20]),
		DelaySinceLastSR: binary.BigEndian.Uint32(data[20:24]),
	}
}

func put24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func get24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
