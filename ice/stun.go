package ice

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
)

// STUN constants per RFC 5389.
const (
	stunMagicCookie uint32 = 0x2112A442
	stunHeaderSize  = 20

	StunBindingRequest  uint16 = 0x0001
	StunBindingResponse uint16 = 0x0101
	StunBindingError    uint16 = 0x0111

	stunAttrMappedAddress    = 0x0001
	stunAttrXorMappedAddress = 0x0020
	stunAttrUsername         = 0x0006
	stunAttrMessageIntegrity = 0x0008
	stunAttrErrorCode        = 0x0009
	stunAttrUseCandidate     = 0x0025
	stunAttrPriority         = 0x0024
	stunAttrFingerprint      = 0x8028

	addressFamilyIPv4 = 0x01
	addressFamilyIPv6 = 0x02
)

// TransactionID is the 96-bit STUN transaction identifier.
type TransactionID [12]byte

// StunMessage is a decoded STUN message: header fields plus a raw attribute
// list. Callers use accessor methods such as XorMappedAddress and
// HasUseCandidate to pull out attributes they care about.
type StunMessage struct {
	Type          uint16
	TransactionID TransactionID
	Attributes    []stunAttribute
}

type stunAttribute struct {
	Type  uint16
	Value []byte
}

// BuildBindingRequest encodes a STUN binding request. When username and key
// are non-empty, it appends USERNAME and a short-term MESSAGE-INTEGRITY
// attribute computed with HMAC-SHA1 per RFC 5389 §15.4.
func BuildBindingRequest(txID TransactionID, username string, key []byte, useCandidate bool, priority uint32) []byte {
	var attrs []stunAttribute
	if username != "" {
		attrs = append(attrs, stunAttribute{Type: stunAttrUsername, Value: []byte(username)})
	}
	if useCandidate {
		attrs = append(attrs, stunAttribute{Type: stunAttrUseCandidate, Value: nil})
	}
	if priority != 0 {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, priority)
		attrs = append(attrs, stunAttribute{Type: stunAttrPriority, Value: buf})
	}

	header := encodeHeader(StunBindingRequest, txID, attributesLength(attrs))
	body := encodeAttributes(attrs)
	msg := append(header, body...)

	if len(key) > 0 {
		msg = appendMessageIntegrity(msg, key)
	}
	return msg
}

// BuildBindingResponse encodes a STUN success response carrying an
// XOR-MAPPED-ADDRESS attribute for mappedIP:mappedPort.
func BuildBindingResponse(txID TransactionID, mappedIP []byte, mappedPort uint16, key []byte) ([]byte, error) {
	attrVal, err := encodeXorMappedAddress(mappedIP, mappedPort, txID)
	if err != nil {
		return nil, err
	}
	attrs := []stunAttribute{{Type: stunAttrXorMappedAddress, Value: attrVal}}

	header := encodeHeader(StunBindingResponse, txID, attributesLength(attrs))
	body := encodeAttributes(attrs)
	msg := append(header, body...)

	if len(key) > 0 {
		msg = appendMessageIntegrity(msg, key)
	}
	return msg, nil
}

func attributesLength(attrs []stunAttribute) uint16 {
	var n int
	for _, a := range attrs {
		n += 4 + padTo4(len(a.Value))
	}
	return uint16(n)
}

func encodeHeader(msgType uint16, txID TransactionID, bodyLen uint16) []byte {
	header := make([]byte, stunHeaderSize)
	binary.BigEndian.PutUint16(header[0:2], msgType)
	binary.BigEndian.PutUint16(header[2:4], bodyLen)
	binary.BigEndian.PutUint32(header[4:8], stunMagicCookie)
	copy(header[8:20], txID[:])
	return header
}

func encodeAttributes(attrs []stunAttribute) []byte {
	var out []byte
	for _, a := range attrs {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], a.Type)
		binary.BigEndian.PutUint16(buf[2:4], uint16(len(a.Value)))
		out = append(out, buf...)
		out = append(out, a.Value...)
		if pad := padTo4(len(a.Value)) - len(a.Value); pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
	}
	return out
}

func padTo4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// appendMessageIntegrity rewrites the length field to include the
// MESSAGE-INTEGRITY attribute itself (per RFC 5389 the HMAC covers the
// message up to but not including the MESSAGE-INTEGRITY attribute, with the
// length field set as if that attribute were already appended), computes the
// HMAC-SHA1 over that prefix, and appends the attribute.
func appendMessageIntegrity(msg []byte, key []byte) []byte {
	provisional := make([]byte, len(msg))
	copy(provisional, msg)
	binary.BigEndian.PutUint16(provisional[2:4], uint16(len(msg)-stunHeaderSize+4+20))

	mac := hmac.New(sha1.New, key)
	mac.Write(provisional)
	sum := mac.Sum(nil)

	out := append(provisional, make([]byte, 4)...)
	binary.BigEndian.PutUint16(out[len(provisional):len(provisional)+2], stunAttrMessageIntegrity)
	binary.BigEndian.PutUint16(out[len(provisional)+2:len(provisional)+4], 20)
	out = append(out, sum...)
	return out
}

// VerifyMessageIntegrity recomputes the HMAC-SHA1 over msg up to the
// MESSAGE-INTEGRITY attribute and compares it against the carried value.
func VerifyMessageIntegrity(msg []byte, key []byte) bool {
	idx := findAttribute(msg, stunAttrMessageIntegrity)
	if idx < 0 {
		return false
	}
	carried := msg[idx+4 : idx+4+20]

	prefix := make([]byte, idx)
	copy(prefix, msg[:idx])
	binary.BigEndian.PutUint16(prefix[2:4], uint16(idx-stunHeaderSize+4+20))

	mac := hmac.New(sha1.New, key)
	mac.Write(prefix)
	expected := mac.Sum(nil)
	return hmac.Equal(expected, carried)
}

func findAttribute(msg []byte, attrType uint16) int {
	offset := stunHeaderSize
	for offset+4 <= len(msg) {
		t := binary.BigEndian.Uint16(msg[offset : offset+2])
		l := int(binary.BigEndian.Uint16(msg[offset+2 : offset+4]))
		if t == attrType {
			return offset
		}
		offset += 4 + padTo4(l)
	}
	return -1
}

// ParseMessage decodes a STUN message header and attribute list.
func ParseMessage(data []byte) (*StunMessage, error) {
	if len(data) < stunHeaderSize {
		return nil, errors.New("ice: STUN message too short")
	}
	msgType := binary.BigEndian.Uint16(data[0:2])
	bodyLen := int(binary.BigEndian.Uint16(data[2:4]))
	cookie := binary.BigEndian.Uint32(data[4:8])
	if cookie != stunMagicCookie {
		return nil, errors.New("ice: invalid STUN magic cookie")
	}
	if len(data) < stunHeaderSize+bodyLen {
		return nil, errors.New("ice: STUN message truncated")
	}

	msg := &StunMessage{Type: msgType}
	copy(msg.TransactionID[:], data[8:20])

	body := data[stunHeaderSize : stunHeaderSize+bodyLen]
	offset := 0
	for offset+4 <= len(body) {
		t := binary.BigEndian.Uint16(body[offset : offset+2])
		l := int(binary.BigEndian.Uint16(body[offset+2 : offset+4]))
		offset += 4
		if offset+l > len(body) {
			break
		}
		msg.Attributes = append(msg.Attributes, stunAttribute{Type: t, Value: body[offset : offset+l]})
		offset += padTo4(l)
	}
	return msg, nil
}

// XorMappedAddress returns the decoded IP and port carried in the message's
// XOR-MAPPED-ADDRESS attribute, falling back to the legacy MAPPED-ADDRESS.
func (m *StunMessage) XorMappedAddress() (ip []byte, port uint16, err error) {
	for _, a := range m.Attributes {
		if a.Type == stunAttrXorMappedAddress {
			return decodeXorMappedAddress(a.Value, m.TransactionID)
		}
	}
	for _, a := range m.Attributes {
		if a.Type == stunAttrMappedAddress {
			return decodeMappedAddress(a.Value)
		}
	}
	return nil, 0, errors.New("ice: no mapped address attribute present")
}

// HasUseCandidate reports whether the message carries the USE-CANDIDATE
// attribute (RFC 8445 §7.3.1.1's nomination signal).
func (m *StunMessage) HasUseCandidate() bool {
	for _, a := range m.Attributes {
		if a.Type == stunAttrUseCandidate {
			return true
		}
	}
	return false
}

func encodeXorMappedAddress(ip []byte, port uint16, txID TransactionID) ([]byte, error) {
	xorPort := port ^ uint16(stunMagicCookie>>16)
	switch len(ip) {
	case 4:
		out := make([]byte, 8)
		out[1] = addressFamilyIPv4
		binary.BigEndian.PutUint16(out[2:4], xorPort)
		for i := 0; i < 4; i++ {
			out[4+i] = ip[i] ^ byte(stunMagicCookie>>uint(24-8*i))
		}
		return out, nil
	case 16:
		out := make([]byte, 20)
		out[1] = addressFamilyIPv6
		binary.BigEndian.PutUint16(out[2:4], xorPort)
		xorKey := make([]byte, 16)
		binary.BigEndian.PutUint32(xorKey[0:4], stunMagicCookie)
		copy(xorKey[4:16], txID[:])
		for i := 0; i < 16; i++ {
			out[4+i] = ip[i] ^ xorKey[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ice: unsupported IP length %d", len(ip))
	}
}

func decodeXorMappedAddress(v []byte, txID TransactionID) ([]byte, uint16, error) {
	if len(v) < 8 {
		return nil, 0, errors.New("ice: XOR-MAPPED-ADDRESS too short")
	}
	family := v[1]
	xorPort := binary.BigEndian.Uint16(v[2:4])
	port := xorPort ^ uint16(stunMagicCookie>>16)

	switch family {
	case addressFamilyIPv4:
		ip := make([]byte, 4)
		for i := 0; i < 4; i++ {
			ip[i] = v[4+i] ^ byte(stunMagicCookie>>uint(24-8*i))
		}
		return ip, port, nil
	case addressFamilyIPv6:
		if len(v) < 20 {
			return nil, 0, errors.New("ice: IPv6 XOR-MAPPED-ADDRESS too short")
		}
		xorKey := make([]byte, 16)
		binary.BigEndian.PutUint32(xorKey[0:4], stunMagicCookie)
		copy(xorKey[4:16], txID[:])
		ip := make([]byte, 16)
		for i := 0; i < 16; i++ {
			ip[i] = v[4+i] ^ xorKey[i]
		}
		return ip, port, nil
	default:
		return nil, 0, fmt.Errorf("ice: unsupported address family %d", family)
	}
}

func decodeMappedAddress(v []byte) ([]byte, uint16, error) {
	if len(v) < 8 {
		return nil, 0, errors.New("ice: MAPPED-ADDRESS too short")
	}
	family := v[1]
	port := binary.BigEndian.Uint16(v[2:4])
	switch family {
	case addressFamilyIPv4:
		return append([]byte(nil), v[4:8]...), port, nil
	case addressFamilyIPv6:
		if len(v) < 20 {
			return nil, 0, errors.New("ice: IPv6 MAPPED-ADDRESS too short")
		}
		return append([]byte(nil), v[4:20]...), port, nil
	default:
		return nil, 0, fmt.Errorf("ice: unsupported address family %d", family)
	}
}
