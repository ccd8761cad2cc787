package sdp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Marshal emits a Description as RFC 8866 SDP text with the RFC 8829
// Unified Plan conventions (one `m=` line per mid, BUNDLE group attribute
// naming every bundled mid).
func Marshal(d *Description) string {
	var b strings.Builder
	b.WriteString("v=0\r\n")
	fmt.Fprintf(&b, "o=- %d %d IN IP4 0.0.0.0\r\n", d.SessionID, d.SessionVersion)
	b.WriteString("s=-\r\n")
	b.WriteString("t=0 0\r\n")
	if len(d.BundleGroup) > 0 {
		fmt.Fprintf(&b, "a=group:BUNDLE %s\r\n", strings.Join(d.BundleGroup, " "))
	}
	for _, s := range d.Sections {
		writeSection(&b, s)
	}
	return b.String()
}

func writeSection(b *strings.Builder, s MediaSection) {
	payloadTypes := make([]string, len(s.Codecs))
	for i, c := range s.Codecs {
		payloadTypes[i] = strconv.Itoa(int(c.PayloadType))
	}
	fmt.Fprintf(b, "m=%s %d UDP/TLS/RTP/SAVPF %s\r\n", s.Kind, s.Port, strings.Join(payloadTypes, " "))
	b.WriteString("c=IN IP4 0.0.0.0\r\n")
	fmt.Fprintf(b, "a=mid:%s\r\n", s.Mid)
	fmt.Fprintf(b, "a=%s\r\n", s.Direction)
	if s.BundleOnly {
		b.WriteString("a=bundle-only\r\n")
	}
	if s.RTCPMux {
		b.WriteString("a=rtcp-mux\r\n")
	}
	if s.ICEUfrag != "" {
		fmt.Fprintf(b, "a=ice-ufrag:%s\r\n", s.ICEUfrag)
	}
	if s.ICEPassword != "" {
		fmt.Fprintf(b, "a=ice-pwd:%s\r\n", s.ICEPassword)
	}
	if s.Fingerprint.Algorithm != "" {
		fmt.Fprintf(b, "a=fingerprint:%s %s\r\n", s.Fingerprint.Algorithm, s.Fingerprint.Value)
	}
	fmt.Fprintf(b, "a=setup:%s\r\n", s.DTLSRole)
	for _, c := range s.Codecs {
		if c.Channels > 1 {
			fmt.Fprintf(b, "a=rtpmap:%d %s/%d/%d\r\n", c.PayloadType, c.Name, c.ClockRate, c.Channels)
		} else {
			fmt.Fprintf(b, "a=rtpmap:%d %s/%d\r\n", c.PayloadType, c.Name, c.ClockRate)
		}
		if c.FormatParams != "" {
			fmt.Fprintf(b, "a=fmtp:%d %s\r\n", c.PayloadType, c.FormatParams)
		}
	}
	for _, ext := range s.HeaderExtensions {
		fmt.Fprintf(b, "a=extmap:%d %s\r\n", ext.ID, ext.URI)
	}
	for _, ssrc := range s.SSRCs {
		fmt.Fprintf(b, "a=ssrc:%d cname:stream\r\n", ssrc)
	}
}

// Unmarshal parses RFC 8866 SDP text into a Description. The session-level
// type (offer/answer/pranswer) is not carried on the wire; Unmarshal tags
// the result TypeOffer, and callers set the Type field from the signaling
// channel after parsing, or use UnmarshalWithType.
func Unmarshal(text string) (*Description, error) {
	return UnmarshalWithType(text, TypeOffer)
}

// UnmarshalWithType parses SDP text and tags the resulting Description
// with the given type.
func UnmarshalWithType(text string, descType DescriptionType) (*Description, error) {
	d := &Description{Type: descType}
	var cur *MediaSection

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) < 2 || line[1] != '=' {
			continue
		}
		key, value := line[0], line[2:]
		switch key {
		case 'o':
			parseOrigin(value, d)
		case 'm':
			if cur != nil {
				d.Sections = append(d.Sections, *cur)
			}
			section, err := parseMediaLine(value)
			if err != nil {
				return nil, err
			}
			cur = section
		case 'a':
			if cur == nil {
				if strings.HasPrefix(value, "group:BUNDLE ") {
					d.BundleGroup = strings.Fields(strings.TrimPrefix(value, "group:BUNDLE "))
				}
				continue
			}
			parseMediaAttribute(value, cur)
		}
	}
	if cur != nil {
		d.Sections = append(d.Sections, *cur)
	}
	return d, nil
}

func parseOrigin(value string, d *Description) {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return
	}
	if id, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
		d.SessionID = id
	}
	if ver, err := strconv.ParseUint(fields[2], 10, 64); err == nil {
		d.SessionVersion = ver
	}
}

func parseMediaLine(value string) (*MediaSection, error) {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return nil, fmt.Errorf("sdp: malformed m= line %q", value)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("sdp: malformed m= port %q", fields[1])
	}
	s := &MediaSection{Kind: MediaKind(fields[0]), Port: port, Direction: DirectionSendRecv}
	for _, pt := range fields[3:] {
		n, err := strconv.Atoi(pt)
		if err != nil {
			continue
		}
		s.Codecs = append(s.Codecs, Codec{PayloadType: uint8(n)})
	}
	return s, nil
}

func parseMediaAttribute(value string, s *MediaSection) {
	switch {
	case strings.HasPrefix(value, "mid:"):
		s.Mid = strings.TrimPrefix(value, "mid:")
	case value == "sendrecv":
		s.Direction = DirectionSendRecv
	case value == "sendonly":
		s.Direction = DirectionSendOnly
	case value == "recvonly":
		s.Direction = DirectionRecvOnly
	case value == "inactive":
		s.Direction = DirectionInactive
	case value == "bundle-only":
		s.BundleOnly = true
	case value == "rtcp-mux":
		s.RTCPMux = true
	case strings.HasPrefix(value, "ice-ufrag:"):
		s.ICEUfrag = strings.TrimPrefix(value, "ice-ufrag:")
	case strings.HasPrefix(value, "ice-pwd:"):
		s.ICEPassword = strings.TrimPrefix(value, "ice-pwd:")
	case strings.HasPrefix(value, "fingerprint:"):
		fields := strings.Fields(strings.TrimPrefix(value, "fingerprint:"))
		if len(fields) == 2 {
			s.Fingerprint = Fingerprint{Algorithm: fields[0], Value: fields[1]}
		}
	case strings.HasPrefix(value, "setup:"):
		s.DTLSRole = parseSetup(strings.TrimPrefix(value, "setup:"))
	case strings.HasPrefix(value, "rtpmap:"):
		parseRtpmap(strings.TrimPrefix(value, "rtpmap:"), s)
	case strings.HasPrefix(value, "fmtp:"):
		parseFmtp(strings.TrimPrefix(value, "fmtp:"), s)
	case strings.HasPrefix(value, "extmap:"):
		parseExtmap(strings.TrimPrefix(value, "extmap:"), s)
	case strings.HasPrefix(value, "ssrc:"):
		parseSSRC(strings.TrimPrefix(value, "ssrc:"), s)
	}
}

func parseSetup(v string) DTLSRole {
	switch v {
	case "active":
		return RoleActive
	case "passive":
		return RolePassive
	default:
		return RoleActPass
	}
}

func parseRtpmap(v string, s *MediaSection) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return
	}
	pt, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	parts := strings.Split(fields[1], "/")
	if len(parts) < 2 {
		return
	}
	clockRate, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return
	}
	var channels uint64
	if len(parts) == 3 {
		channels, _ = strconv.ParseUint(parts[2], 10, 8)
	}
	for i := range s.Codecs {
		if int(s.Codecs[i].PayloadType) == pt {
			s.Codecs[i].Name = parts[0]
			s.Codecs[i].ClockRate = uint32(clockRate)
			s.Codecs[i].Channels = uint8(channels)
			return
		}
	}
}

func parseFmtp(v string, s *MediaSection) {
	fields := strings.SplitN(v, " ", 2)
	if len(fields) != 2 {
		return
	}
	pt, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	for i := range s.Codecs {
		if int(s.Codecs[i].PayloadType) == pt {
			s.Codecs[i].FormatParams = fields[1]
			return
		}
	}
}

func parseExtmap(v string, s *MediaSection) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	s.HeaderExtensions = append(s.HeaderExtensions, HeaderExtension{ID: uint8(id), URI: fields[1]})
}

func parseSSRC(v string, s *MediaSection) {
	fields := strings.Fields(v)
	if len(fields) < 1 {
		return
	}
	ssrc, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return
	}
	s.SSRCs = append(s.SSRCs, uint32(ssrc))
}
