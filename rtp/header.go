package rtp

import (
	"errors"

	pionrtp "github.com/pion/rtp"
)

const (
	rtpVersion            = 2
	oneByteExtensionMagic = 0xBEDE
	twoByteExtensionMagic = 0x1000 // high 12 bits; low 4 bits carry the appbits
)

// Header is a parsed RTP fixed header plus the optional CSRC list and
// extension block, per RFC 3550 §5.1. Wire encoding and decoding is
// delegated to github.com/pion/rtp; this type is the stable shape the
// rest of the engine (session dispatch, interceptors) is built against.
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32

	ExtensionProfile uint16
	ExtensionPayload []byte
}

// Extension is one decoded RTP header extension element (one-byte or
// two-byte form per RFC 8285).
type Extension struct {
	ID      uint8
	Payload []byte
}

// Marshal serializes the header, its CSRC list, and its extension block (if
// present) to wire bytes via the pion/rtp codec. Payload bytes are not
// appended; callers concatenate the payload themselves so encryption can
// operate on payload alone.
func (h *Header) Marshal() []byte {
	ph := &pionrtp.Header{
		Version:        rtpVersion,
		Padding:        h.Padding,
		Marker:         h.Marker,
		PayloadType:    h.PayloadType,
		SequenceNumber: h.SequenceNumber,
		Timestamp:      h.Timestamp,
		SSRC:           h.SSRC,
		CSRC:           h.CSRC,
	}
	if h.Extension {
		elements, _ := h.Extensions()
		ph.Extension = true
		ph.ExtensionProfile = h.ExtensionProfile
		for _, e := range elements {
			// pion picks the one/two-byte profile from payload length on its
			// own; feeding it our already-profiled elements just repopulates
			// its internal Extensions slice for MarshalTo to walk.
			_ = ph.SetExtension(e.ID, e.Payload)
		}
		ph.ExtensionProfile = h.ExtensionProfile
	}
	buf, err := ph.Marshal()
	if err != nil {
		// Only MarshalSize mismatches and non-4-aligned RFC3550 extension
		// payloads reach here, neither of which this engine produces.
		return nil
	}
	return buf
}

// Unmarshal parses an RTP header from the front of data, returning the
// header and the number of bytes it occupied.
func Unmarshal(data []byte) (*Header, int, error) {
	ph := &pionrtp.Header{}
	n, err := ph.Unmarshal(data)
	if err != nil {
		return nil, 0, err
	}
	if ph.Version != rtpVersion {
		return nil, 0, errors.New("rtp: unsupported RTP version")
	}

	h := &Header{
		Version:          ph.Version,
		Padding:          ph.Padding,
		Extension:        ph.Extension,
		Marker:           ph.Marker,
		PayloadType:      ph.PayloadType,
		SequenceNumber:   ph.SequenceNumber,
		Timestamp:        ph.Timestamp,
		SSRC:             ph.SSRC,
		CSRC:             ph.CSRC,
		ExtensionProfile: ph.ExtensionProfile,
	}
	if h.Extension {
		switch {
		case h.ExtensionProfile == oneByteExtensionMagic, h.ExtensionProfile&0xfff0 == twoByteExtensionMagic:
			for _, id := range ph.GetExtensionIDs() {
				h.ExtensionPayload = encodeExtensionElement(h.ExtensionPayload, h.ExtensionProfile, id, ph.GetExtension(id))
			}
			for len(h.ExtensionPayload)%4 != 0 {
				h.ExtensionPayload = append(h.ExtensionPayload, 0)
			}
		default:
			// RFC 3550 vendor-specific extension: a single opaque block, no
			// per-element id/length framing to reconstruct.
			h.ExtensionPayload = ph.GetExtension(0)
		}
	}
	return h, n, nil
}

// SetOneByteExtensions encodes elements using the RFC 8285 §4.2 one-byte
// form and installs them as the header's extension block, setting
// Extension and ExtensionProfile. Each element's payload must be 1-16
// bytes long and its ID must be in 1-14 (0 is padding, 15 is reserved as
// the one-byte form's stop marker).
func (h *Header) SetOneByteExtensions(elements []Extension) error {
	for _, e := range elements {
		if e.ID == 0 || e.ID > 14 || len(e.Payload) == 0 || len(e.Payload) > 16 {
			return errors.New("rtp: invalid one-byte extension id or payload length")
		}
	}
	h.Extension = true
	h.ExtensionProfile = oneByteExtensionMagic
	h.ExtensionPayload = nil
	for _, e := range elements {
		h.ExtensionPayload = encodeExtensionElement(h.ExtensionPayload, h.ExtensionProfile, e.ID, e.Payload)
	}
	for len(h.ExtensionPayload)%4 != 0 {
		h.ExtensionPayload = append(h.ExtensionPayload, 0)
	}
	return nil
}

// Extensions decodes the header's extension payload into individual
// elements, supporting both the one-byte (RFC 8285 §4.2) and two-byte (§4.3)
// forms, selected by ExtensionProfile.
func (h *Header) Extensions() ([]Extension, error) {
	if !h.Extension {
		return nil, nil
	}
	switch h.ExtensionProfile {
	case oneByteExtensionMagic:
		return parseOneByteExtensions(h.ExtensionPayload), nil
	default:
		if h.ExtensionProfile&0xfff0 == twoByteExtensionMagic {
			return parseTwoByteExtensions(h.ExtensionPayload), nil
		}
		return nil, errors.New("rtp: unrecognized extension profile")
	}
}

// encodeExtensionElement appends one element's one-byte or two-byte encoding
// (chosen by profile) to buf.
func encodeExtensionElement(buf []byte, profile uint16, id uint8, payload []byte) []byte {
	if profile&0xfff0 == twoByteExtensionMagic && profile != oneByteExtensionMagic {
		buf = append(buf, id, uint8(len(payload)))
		return append(buf, payload...)
	}
	buf = append(buf, id<<4|uint8(len(payload)-1))
	return append(buf, payload...)
}

func parseOneByteExtensions(data []byte) []Extension {
	var out []Extension
	i := 0
	for i < len(data) {
		if data[i] == 0 {
			i++
			continue
		}
		id := data[i] >> 4
		length := int(data[i]&0x0f) + 1
		i++
		if id == 15 || i+length > len(data) {
			break
		}
		out = append(out, Extension{ID: id, Payload: data[i : i+length]})
		i += length
	}
	return out
}

func parseTwoByteExtensions(data []byte) []Extension {
	var out []Extension
	i := 0
	for i < len(data) {
		if data[i] == 0 {
			i++
			continue
		}
		if i+2 > len(data) {
			break
		}
		id := data[i]
		length := int(data[i+1])
		i += 2
		if i+length > len(data) {
			break
		}
		out = append(out, Extension{ID: id, Payload: data[i : i+length]})
		i += length
	}
	return out
}
