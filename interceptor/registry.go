package interceptor

import "time"

// StreamInfo describes one media SSRC's negotiated parameters, passed to
// an interceptor when a stream is bound so it can size its per-SSRC state.
type StreamInfo struct {
	SSRC        uint32
	PayloadType uint8
	ClockRate   uint32
}

// Interceptor observes every packet flowing through the media transport
// and may hold outbound packets ready for the next PollWrite. Every method
// takes the raw RTP or RTCP wire bytes; interceptors that need the parsed
// header decode it themselves (rtp.Unmarshal / rtcp.SplitCompound).
type Interceptor interface {
	// BindLocalStream is called when an outbound SSRC is negotiated.
	BindLocalStream(info StreamInfo)
	// BindRemoteStream is called when an inbound SSRC is negotiated.
	BindRemoteStream(info StreamInfo)
	// UnbindLocalStream/UnbindRemoteStream release per-SSRC state, called
	// when a section is removed under renegotiation.
	UnbindLocalStream(ssrc uint32)
	UnbindRemoteStream(ssrc uint32)

	// HandleOutboundRTP observes a packet about to be sent.
	HandleOutboundRTP(now time.Time, packet []byte)
	// HandleInboundRTP observes a packet just received.
	HandleInboundRTP(now time.Time, packet []byte)
	// HandleInboundRTCP observes an inbound compound RTCP packet.
	HandleInboundRTCP(now time.Time, packet []byte)

	// PollTimeout reports when HandleTimeout should next be called.
	PollTimeout(now time.Time) time.Time
	// HandleTimeout lets the interceptor emit any due control packets.
	HandleTimeout(now time.Time) [][]byte
}

// Factory constructs a fresh Interceptor instance, one per Session, so
// interceptors never share state across sessions.
type Factory func() Interceptor

// Registry holds named interceptor factories and builds the ordered chain
// a Session installs. Registration order is chain order.
type Registry struct {
	names     []string
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named factory to the end of the chain order. Registering
// the same name twice replaces the factory but keeps its original position.
func (r *Registry) Register(name string, factory Factory) {
	if _, exists := r.factories[name]; !exists {
		r.names = append(r.names, name)
	}
	r.factories[name] = factory
}

// Build instantiates one Interceptor per registered factory, in
// registration order, forming the chain a Chain wraps.
func (r *Registry) Build() *Chain {
	chain := &Chain{}
	for _, name := range r.names {
		chain.interceptors = append(chain.interceptors, r.factories[name]())
	}
	return chain
}

// Chain fans a single call out to every interceptor in registration order.
type Chain struct {
	interceptors []Interceptor
}

func (c *Chain) BindLocalStream(info StreamInfo) {
	for _, i := range c.interceptors {
		i.BindLocalStream(info)
	}
}

func (c *Chain) BindRemoteStream(info StreamInfo) {
	for _, i := range c.interceptors {
		i.BindRemoteStream(info)
	}
}

func (c *Chain) UnbindLocalStream(ssrc uint32) {
	for _, i := range c.interceptors {
		i.UnbindLocalStream(ssrc)
	}
}

func (c *Chain) UnbindRemoteStream(ssrc uint32) {
	for _, i := range c.interceptors {
		i.UnbindRemoteStream(ssrc)
	}
}

func (c *Chain) HandleOutboundRTP(now time.Time, packet []byte) {
	for _, i := range c.interceptors {
		i.HandleOutboundRTP(now, packet)
	}
}

func (c *Chain) HandleInboundRTP(now time.Time, packet []byte) {
	for _, i := range c.interceptors {
		i.HandleInboundRTP(now, packet)
	}
}

func (c *Chain) HandleInboundRTCP(now time.Time, packet []byte) {
	for _, i := range c.interceptors {
		i.HandleInboundRTCP(now, packet)
	}
}

// PollTimeout returns the earliest deadline across every interceptor in
// the chain.
func (c *Chain) PollTimeout(now time.Time) time.Time {
	deadline := now.Add(24 * time.Hour)
	for _, i := range c.interceptors {
		if d := i.PollTimeout(now); d.Before(deadline) {
			deadline = d
		}
	}
	return deadline
}

// HandleTimeout drains due control packets from every interceptor.
func (c *Chain) HandleTimeout(now time.Time) [][]byte {
	var out [][]byte
	for _, i := range c.interceptors {
		out = append(out, i.HandleTimeout(now)...)
	}
	return out
}
