package interceptor

import (
	"testing"
	"time"
)

type recordingInterceptor struct {
	bound []uint32
}

func (r *recordingInterceptor) BindLocalStream(info StreamInfo)  { r.bound = append(r.bound, info.SSRC) }
func (r *recordingInterceptor) BindRemoteStream(StreamInfo)      {}
func (r *recordingInterceptor) UnbindLocalStream(uint32)         {}
func (r *recordingInterceptor) UnbindRemoteStream(uint32)        {}
func (r *recordingInterceptor) HandleOutboundRTP(time.Time, []byte) {}
func (r *recordingInterceptor) HandleInboundRTP(time.Time, []byte)  {}
func (r *recordingInterceptor) HandleInboundRTCP(time.Time, []byte) {}
func (r *recordingInterceptor) PollTimeout(now time.Time) time.Time { return now.Add(time.Hour) }
func (r *recordingInterceptor) HandleTimeout(time.Time) [][]byte    { return nil }

func TestRegistryBuildPreservesRegistrationOrder(t *testing.T) {
	var order []string
	reg := NewRegistry()
	reg.Register("second", func() Interceptor {
		order = append(order, "second")
		return &recordingInterceptor{}
	})
	reg.Register("first", func() Interceptor {
		order = append(order, "first")
		return &recordingInterceptor{}
	})
	reg.Build()
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("build order = %v, want registration order", order)
	}
}

func TestChainFansOutBindLocalStream(t *testing.T) {
	reg := NewRegistry()
	one := &recordingInterceptor{}
	reg.Register("one", func() Interceptor { return one })
	chain := reg.Build()
	chain.BindLocalStream(StreamInfo{SSRC: 42})
	if len(one.bound) != 1 || one.bound[0] != 42 {
		t.Fatalf("bound = %v, want [42]", one.bound)
	}
}

func TestRegisterSameNameTwiceKeepsPosition(t *testing.T) {
	reg := NewRegistry()
	var calls []string
	reg.Register("a", func() Interceptor { calls = append(calls, "a-v1"); return &recordingInterceptor{} })
	reg.Register("b", func() Interceptor { calls = append(calls, "b"); return &recordingInterceptor{} })
	reg.Register("a", func() Interceptor { calls = append(calls, "a-v2"); return &recordingInterceptor{} })
	reg.Build()
	if len(calls) != 2 || calls[0] != "a-v2" || calls[1] != "b" {
		t.Fatalf("calls = %v, want [a-v2 b] (a's slot, updated factory)", calls)
	}
}
