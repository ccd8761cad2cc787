package pipeline

import "time"

// Handler is the contract every stage of the per-packet chain implements.
// A stage consumes a message moving in one direction and returns zero or
// more messages to forward to the next stage; it never mutates the message
// it was given.
type Handler interface {
	// HandleRead processes an inbound message (a Datagram from the host,
	// or an intermediate message from an upstream stage) and returns the
	// messages to forward further down the chain.
	HandleRead(now time.Time, msg interface{}) ([]interface{}, error)

	// HandleWrite processes an outbound application message moving from
	// the endpoint toward the host and returns the messages (typically
	// Datagrams) to forward further up the chain.
	HandleWrite(now time.Time, msg interface{}) ([]interface{}, error)

	// HandleTimeout runs this stage's due timer work. Side effects only;
	// any resulting output is queued on the shared Context.
	HandleTimeout(now time.Time)

	// PollTimeout returns the earliest deadline this stage wants to be
	// woken for, or the zero Time if it has nothing pending.
	PollTimeout(now time.Time) time.Time

	// HandleEvent delivers a control-plane event (e.g. ICE restart
	// request, reconfiguration) to this stage.
	HandleEvent(event interface{})
}

// Chain runs an ordered list of Handlers as a pipeline: HandleRead's output
// from one stage becomes the next stage's input, matching the order
// Demultiplex → Connectivity → Handshake → (fan-out) → Reliable Stream |
// Media → Interceptors → Endpoint. The Demultiplexer itself sits in front
// of the chain (it routes rather than transforms) and is not a Handler.
type Chain struct {
	Stages []Handler
}

// NewChain returns a Chain running stages in the given order.
func NewChain(stages ...Handler) *Chain {
	return &Chain{Stages: stages}
}

// HandleRead pushes msg through every stage in order, feeding each stage's
// output forward as the next stage's input. A stage that returns no
// messages ends the chain early for that input.
func (c *Chain) HandleRead(now time.Time, msg interface{}) ([]interface{}, error) {
	pending := []interface{}{msg}
	for _, stage := range c.Stages {
		var next []interface{}
		for _, m := range pending {
			out, err := stage.HandleRead(now, m)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		pending = next
		if len(pending) == 0 {
			break
		}
	}
	return pending, nil
}

// HandleWrite runs the chain in reverse stage order for outbound
// application messages moving toward the host.
func (c *Chain) HandleWrite(now time.Time, msg interface{}) ([]interface{}, error) {
	pending := []interface{}{msg}
	for i := len(c.Stages) - 1; i >= 0; i-- {
		stage := c.Stages[i]
		var next []interface{}
		for _, m := range pending {
			out, err := stage.HandleWrite(now, m)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		pending = next
		if len(pending) == 0 {
			break
		}
	}
	return pending, nil
}

// PollTimeout returns the earliest deadline across every stage, or the
// zero Time if no stage has a pending timer.
func (c *Chain) PollTimeout(now time.Time) time.Time {
	var earliest time.Time
	for _, stage := range c.Stages {
		d := stage.PollTimeout(now)
		if d.IsZero() {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

// HandleTimeout runs every stage's due timer work.
func (c *Chain) HandleTimeout(now time.Time) {
	for _, stage := range c.Stages {
		stage.HandleTimeout(now)
	}
}

// HandleEvent broadcasts a control-plane event to every stage.
func (c *Chain) HandleEvent(event interface{}) {
	for _, stage := range c.Stages {
		stage.HandleEvent(event)
	}
}
