package sctp

import "time"

// CongestionController tracks the congestion window and RTO for one
// destination, implementing RFC 4960 §4.3's slow-start / congestion-
// avoidance window growth and RFC 2988-style RTO estimation.
type CongestionController struct {
	mtu          uint32
	cwnd         uint32
	ssthresh     uint32
	srtt         time.Duration
	rttvar       time.Duration
	rto          time.Duration
	haveRTTSample bool

	dupAckCount int
}

const (
	initialRTO = 3 * time.Second
	minRTO     = 1 * time.Second
	maxRTO     = 60 * time.Second
)

// NewCongestionController creates a controller with the initial values
// cwnd = 4*MTU, ssthresh = rwnd.
func NewCongestionController(mtu, initialRwnd uint32) *CongestionController {
	cwnd := 4 * mtu
	return &CongestionController{
		mtu:      mtu,
		cwnd:     cwnd,
		ssthresh: initialRwnd,
		rto:      initialRTO,
	}
}

// Cwnd returns the current congestion window in bytes.
func (c *CongestionController) Cwnd() uint32 { return c.cwnd }

// RTO returns the current retransmission timeout.
func (c *CongestionController) RTO() time.Duration { return c.rto }

// InSlowStart reports whether the controller is below its slow-start
// threshold.
func (c *CongestionController) InSlowStart() bool { return c.cwnd < c.ssthresh }

// OnAck folds in a SACK that newly acknowledged ackedBytes of data, growing
// the window per RFC 4960 §7.2: by the full acked amount in slow start
// (capped at one MTU per ack, the conservative variant), or by
// MTU*acked/cwnd in
// congestion avoidance.
func (c *CongestionController) OnAck(ackedBytes uint32) {
	c.dupAckCount = 0
	if ackedBytes == 0 {
		return
	}
	if c.InSlowStart() {
		grow := ackedBytes
		if grow > c.mtu {
			grow = c.mtu
		}
		c.cwnd += grow
		return
	}
	c.cwnd += c.mtu * ackedBytes / c.cwnd
}

// OnRTOExpired halves ssthresh to max(cwnd/2, 4*MTU), resets cwnd to one
// MTU, and doubles the RTO up to the 60s cap, per RFC 4960 §7.2.3 and §6.3.3.
func (c *CongestionController) OnRTOExpired() {
	half := c.cwnd / 2
	if floor := 4 * c.mtu; half < floor {
		half = floor
	}
	c.ssthresh = half
	c.cwnd = c.mtu
	c.rto *= 2
	if c.rto > maxRTO {
		c.rto = maxRTO
	}
}

// OnDuplicateAck counts a duplicate SACK toward fast retransmit; on the
// third duplicate it halves ssthresh/cwnd (RFC 4960 §7.2.4) and reports
// that fast retransmit should fire.
func (c *CongestionController) OnDuplicateAck() (fastRetransmit bool) {
	c.dupAckCount++
	if c.dupAckCount == 3 {
		half := c.cwnd / 2
		if floor := 4 * c.mtu; half < floor {
			half = floor
		}
		c.ssthresh = half
		c.cwnd = half
		return true
	}
	return false
}

// UpdateRTT folds in a fresh round-trip sample using the RFC 2988 SRTT/
// RTTVAR estimator, clamping the resulting RTO to [minRTO, maxRTO].
func (c *CongestionController) UpdateRTT(sample time.Duration) {
	if !c.haveRTTSample {
		c.srtt = sample
		c.rttvar = sample / 2
		c.haveRTTSample = true
	} else {
		diff := c.srtt - sample
		if diff < 0 {
			diff = -diff
		}
		c.rttvar = c.rttvar*3/4 + diff/4
		c.srtt = c.srtt*7/8 + sample/8
	}
	rto := c.srtt + 4*c.rttvar
	if rto < minRTO {
		rto = minRTO
	}
	if rto > maxRTO {
		rto = maxRTO
	}
	c.rto = rto
}
