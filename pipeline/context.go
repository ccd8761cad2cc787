package pipeline

import "time"

// Datagram is a timestamped inbound or outbound network payload, carrying
// enough address information for the demultiplexer and connectivity
// subsystem to make routing decisions without touching a real socket.
type Datagram struct {
	Now      time.Time
	Local    string
	Peer     string
	ECNMark  uint8
	Bytes    []byte
}

// Stats is a tree-of-counters accumulator: each node owns its own named
// counters plus named children, so a subsystem can report
// "sctp.retransmits" or "ice.pairs.succeeded" without every counter living
// in one flat namespace.
type Stats struct {
	counters map[string]uint64
	children map[string]*Stats
}

// NewStats returns an empty counter node.
func NewStats() *Stats {
	return &Stats{counters: make(map[string]uint64), children: make(map[string]*Stats)}
}

// Incr adds delta to the named counter at this node.
func (s *Stats) Incr(name string, delta uint64) {
	s.counters[name] += delta
}

// Get returns the current value of the named counter at this node.
func (s *Stats) Get(name string) uint64 {
	return s.counters[name]
}

// Child returns the named child node, creating it on first use.
func (s *Stats) Child(name string) *Stats {
	c, ok := s.children[name]
	if !ok {
		c = NewStats()
		s.children[name] = c
	}
	return c
}

// Snapshot flattens the tree into dotted-path counter names, e.g.
// "sctp.retransmits" -> 3. Useful for exposing stats to a host's own
// metrics system without exporting the tree structure itself.
func (s *Stats) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	s.snapshotInto(out, "")
	return out
}

func (s *Stats) snapshotInto(out map[string]uint64, prefix string) {
	for name, v := range s.counters {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		out[key] = v
	}
	for name, child := range s.children {
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "." + name
		}
		child.snapshotInto(out, childPrefix)
	}
}

// Context is shared state passed down the handler chain on every call: the
// three FIFO queues a Session drains via its host-facing poll operations,
// and the stats tree every handler reports into.
type Context struct {
	// OutboundDatagrams holds wire bytes ready for the host to send,
	// queued in the order handlers produced them.
	OutboundDatagrams []Datagram

	// InboundMessages holds decoded application messages ready for the
	// host to consume (ConnectionState, Track, ReliableMessage,
	// MediaPacket, MediaControl).
	InboundMessages []interface{}

	// OutboundEvents holds control-plane notifications for the host
	// (connection state transition, track appearance, negotiation-needed).
	OutboundEvents []interface{}

	Stats *Stats
}

// NewContext returns an empty pipeline context with a fresh stats tree.
func NewContext() *Context {
	return &Context{Stats: NewStats()}
}

// QueueDatagram appends an outbound datagram to the send queue.
func (c *Context) QueueDatagram(d Datagram) {
	c.OutboundDatagrams = append(c.OutboundDatagrams, d)
}

// QueueMessage appends a decoded application message to the inbound queue.
func (c *Context) QueueMessage(m interface{}) {
	c.InboundMessages = append(c.InboundMessages, m)
}

// QueueEvent appends a control-plane event to the outbound event queue.
func (c *Context) QueueEvent(e interface{}) {
	c.OutboundEvents = append(c.OutboundEvents, e)
}

// DrainDatagrams returns and clears the outbound datagram queue.
func (c *Context) DrainDatagrams() []Datagram {
	out := c.OutboundDatagrams
	c.OutboundDatagrams = nil
	return out
}

// DrainMessages returns and clears the inbound message queue.
func (c *Context) DrainMessages() []interface{} {
	out := c.InboundMessages
	c.InboundMessages = nil
	return out
}

// DrainEvents returns and clears the outbound event queue.
func (c *Context) DrainEvents() []interface{} {
	out := c.OutboundEvents
	c.OutboundEvents = nil
	return out
}
