package sdp

// DescriptionType is the RFC 8829 `type` field of a session description.
type DescriptionType int

const (
	TypeOffer DescriptionType = iota
	TypePranswer
	TypeAnswer
	TypeRollback
)

func (t DescriptionType) String() string {
	switch t {
	case TypeOffer:
		return "offer"
	case TypePranswer:
		return "pranswer"
	case TypeAnswer:
		return "answer"
	case TypeRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// MediaKind names the three media kinds a section may carry.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
	KindData  MediaKind = "application"
)

// Direction is the RFC 8866 media direction attribute.
type Direction int

const (
	DirectionSendRecv Direction = iota
	DirectionSendOnly
	DirectionRecvOnly
	DirectionInactive
)

func (d Direction) String() string {
	switch d {
	case DirectionSendOnly:
		return "sendonly"
	case DirectionRecvOnly:
		return "recvonly"
	case DirectionInactive:
		return "inactive"
	default:
		return "sendrecv"
	}
}

// DTLSRole is the RFC 8842 `a=setup` attribute value.
type DTLSRole int

const (
	RoleActPass DTLSRole = iota
	RoleActive
	RolePassive
)

func (r DTLSRole) String() string {
	switch r {
	case RoleActive:
		return "active"
	case RolePassive:
		return "passive"
	default:
		return "actpass"
	}
}

// Codec is one payload-type entry in a media section's codec list.
type Codec struct {
	PayloadType uint8
	Name        string
	ClockRate   uint32
	Channels    uint8  // audio only; 0 means unspecified
	FormatParams string // raw a=fmtp value, if any
}

// HeaderExtension is one negotiated RTP header extension, id-to-URI per
// RFC 8285.
type HeaderExtension struct {
	ID  uint8
	URI string
}

// Fingerprint is the DTLS certificate fingerprint carried in the
// description, RFC 8122.
type Fingerprint struct {
	Algorithm string
	Value     string
}

// MediaSection is one `m=` line and its attributes, identified stably by
// Mid across renegotiations.
type MediaSection struct {
	Kind      MediaKind
	Mid       string
	Port      int // 0 marks the section removed (RFC 8829 renegotiation)
	Direction Direction
	Codecs    []Codec
	HeaderExtensions []HeaderExtension
	SSRCs     []uint32
	ICEUfrag     string
	ICEPassword  string
	Fingerprint  Fingerprint
	DTLSRole     DTLSRole
	BundleOnly   bool
	RTCPMux      bool
}

// Description is a full session description: session-level fields plus an
// ordered list of media sections and the BUNDLE group membership.
type Description struct {
	Type           DescriptionType
	SessionID      uint64
	SessionVersion uint64
	Sections       []MediaSection
	BundleGroup    []string // mids bundled onto the first section's transport
}

// SectionByMid returns the section with the given mid, or nil.
func (d *Description) SectionByMid(mid string) *MediaSection {
	for i := range d.Sections {
		if d.Sections[i].Mid == mid {
			return &d.Sections[i]
		}
	}
	return nil
}
