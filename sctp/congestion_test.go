package sctp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCongestionControllerInitialWindow(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	assert.Equal(t, uint32(4*1200), c.Cwnd())
	assert.True(t, c.InSlowStart(), "controller must start in slow start")
}

func TestOnAckGrowsWindowInSlowStart(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	before := c.Cwnd()
	c.OnAck(1200)
	assert.Greater(t, c.Cwnd(), before)
}

func TestOnRTOExpiredResetsWindowAndDoublesRTO(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	beforeRTO := c.RTO()
	c.OnRTOExpired()
	assert.Equal(t, uint32(1200), c.Cwnd(), "cwnd collapses to one MTU on RTO")
	assert.Equal(t, beforeRTO*2, c.RTO())
}

func TestOnDuplicateAckFastRetransmitsOnThird(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	require.False(t, c.OnDuplicateAck())
	require.False(t, c.OnDuplicateAck())
	assert.True(t, c.OnDuplicateAck(), "third duplicate ack fires fast retransmit")
}

func TestUpdateRTTClampsToMinimum(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	c.UpdateRTT(1 * time.Millisecond)
	assert.GreaterOrEqual(t, c.RTO(), minRTO)
}

func TestUpdateRTTClampsToMaximum(t *testing.T) {
	c := NewCongestionController(1200, 128*1024)
	for i := 0; i < 10; i++ {
		c.UpdateRTT(100 * time.Second)
	}
	assert.LessOrEqual(t, c.RTO(), maxRTO)
}
