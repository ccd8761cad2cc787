package sctp

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const commonHeaderSize = 12

// crc32cTable is the Castagnoli polynomial table RFC 8261/3309 require for
// the SCTP packet checksum.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the 12-octet SCTP common header, per RFC 4960 §3.1.
type Header struct {
	SourcePort      uint16
	DestinationPort uint16
	VerificationTag uint32
	Checksum        uint32
}

// ChunkType identifies an SCTP chunk's function, RFC 4960 §3.2 plus the
// RFC 3758 and RFC 6525 extension chunks this package implements.
type ChunkType uint8

const (
	ChunkData          ChunkType = 0
	ChunkInit          ChunkType = 1
	ChunkInitAck       ChunkType = 2
	ChunkSack          ChunkType = 3
	ChunkHeartbeat     ChunkType = 4
	ChunkHeartbeatAck  ChunkType = 5
	ChunkAbort         ChunkType = 6
	ChunkShutdown      ChunkType = 7
	ChunkShutdownAck   ChunkType = 8
	ChunkError         ChunkType = 9
	ChunkCookieEcho    ChunkType = 10
	ChunkCookieAck     ChunkType = 11
	ChunkShutdownComplete ChunkType = 14
	ChunkForwardTSN    ChunkType = 192
	ChunkReConfig      ChunkType = 130
)

// Chunk is one TLV-framed chunk within an SCTP packet: type(1), flags(1),
// length(2, header+value, excluding padding), value, padded to a 4-byte
// boundary.
type Chunk struct {
	Type  ChunkType
	Flags uint8
	Value []byte
}

// Packet is a fully decoded SCTP packet: the common header plus its chunk
// sequence. Packets never mix DATA and control chunks with an invalid
// checksum; Unmarshal verifies the CRC32C before returning chunks.
type Packet struct {
	Header Header
	Chunks []Chunk
}

// Marshal serializes the packet, computing and filling in the CRC32C
// checksum over the whole packet per RFC 3309.
func Marshal(p *Packet) []byte {
	var chunkBytes []byte
	for _, c := range p.Chunks {
		chunkBytes = append(chunkBytes, marshalChunk(c)...)
	}
	out := make([]byte, commonHeaderSize+len(chunkBytes))
	binary.BigEndian.PutUint16(out[0:2], p.Header.SourcePort)
	binary.BigEndian.PutUint16(out[2:4], p.Header.DestinationPort)
	binary.BigEndian.PutUint32(out[4:8], p.Header.VerificationTag)
	copy(out[12:], chunkBytes)

	sum := crc32.Checksum(out, crc32cTable)
	binary.BigEndian.PutUint32(out[8:12], sum)
	return out
}

// Unmarshal parses an SCTP packet and validates its checksum.
func Unmarshal(data []byte) (*Packet, error) {
	if len(data) < commonHeaderSize {
		return nil, errors.New("sctp: packet too short for common header")
	}
	h := Header{
		SourcePort:      binary.BigEndian.Uint16(data[0:2]),
		DestinationPort: binary.BigEndian.Uint16(data[2:4]),
		VerificationTag: binary.BigEndian.Uint32(data[4:8]),
		Checksum:        binary.BigEndian.Uint32(data[8:12]),
	}

	withoutChecksum := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(withoutChecksum[8:12], 0)
	if crc32.Checksum(withoutChecksum, crc32cTable) != h.Checksum {
		return nil, errors.New("sctp: checksum mismatch")
	}

	chunks, err := unmarshalChunks(data[commonHeaderSize:])
	if err != nil {
		return nil, err
	}
	return &Packet{Header: h, Chunks: chunks}, nil
}

func marshalChunk(c Chunk) []byte {
	length := 4 + len(c.Value)
	padded := (length + 3) &^ 3
	out := make([]byte, padded)
	out[0] = uint8(c.Type)
	out[1] = c.Flags
	binary.BigEndian.PutUint16(out[2:4], uint16(length))
	copy(out[4:], c.Value)
	return out
}

func unmarshalChunks(data []byte) ([]Chunk, error) {
	var chunks []Chunk
	offset := 0
	for offset < len(data) {
		if offset+4 > len(data) {
			return nil, errors.New("sctp: truncated chunk header")
		}
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if length < 4 || offset+length > len(data) {
			return nil, errors.New("sctp: truncated chunk value")
		}
		chunks = append(chunks, Chunk{
			Type:  ChunkType(data[offset]),
			Flags: data[offset+1],
			Value: data[offset+4 : offset+length],
		})
		padded := (length + 3) &^ 3
		offset += padded
	}
	return chunks, nil
}
