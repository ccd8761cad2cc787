package sctp

import (
	"bytes"
	"testing"
	"time"

	"github.com/opd-ai/rtcengine/rtclog"
)

func TestAssociationFourWayHandshake(t *testing.T) {
	now := time.Unix(0, 0)
	client, err := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 64)), 1200, rtclog.NewScope("sctp-test-client"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server, err := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 64)), 1200, rtclog.NewScope("sctp-test-server"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client.Associate()

	init := client.PollWrite(now)
	if init == nil {
		t.Fatal("expected INIT to be queued after Associate")
	}
	if err := server.HandleRead(now, init); err != nil {
		t.Fatalf("server failed to handle INIT: %v", err)
	}

	initAck := server.PollWrite(now)
	if initAck == nil {
		t.Fatal("expected INIT-ACK to be queued by server")
	}
	if err := client.HandleRead(now, initAck); err != nil {
		t.Fatalf("client failed to handle INIT-ACK: %v", err)
	}
	if client.State() != StateCookieEchoed {
		t.Fatalf("client state = %v, want CookieEchoed", client.State())
	}

	cookieEcho := client.PollWrite(now)
	if cookieEcho == nil {
		t.Fatal("expected COOKIE-ECHO to be queued by client")
	}
	if err := server.HandleRead(now, cookieEcho); err != nil {
		t.Fatalf("server failed to handle COOKIE-ECHO: %v", err)
	}
	if server.State() != StateEstablished {
		t.Fatalf("server state = %v, want Established", server.State())
	}

	cookieAck := server.PollWrite(now)
	if cookieAck == nil {
		t.Fatal("expected COOKIE-ACK to be queued by server")
	}
	if err := client.HandleRead(now, cookieAck); err != nil {
		t.Fatalf("client failed to handle COOKIE-ACK: %v", err)
	}
	if client.State() != StateEstablished {
		t.Fatalf("client state = %v, want Established", client.State())
	}
}

func TestAssociationDataDeliveryAndSack(t *testing.T) {
	now := time.Unix(0, 0)
	client, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 64)), 1200, rtclog.NewScope("sctp-test"))
	server, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 64)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, client, server, now)

	client.Send(0, 51, []byte("hello"), false)
	dataPkt := client.PollWrite(now)
	if dataPkt == nil {
		t.Fatal("expected DATA packet")
	}
	if err := server.HandleRead(now, dataPkt); err != nil {
		t.Fatalf("server failed to handle DATA: %v", err)
	}
	delivered := server.Deliver()
	if len(delivered) != 1 || string(delivered[0].Payload) != "hello" {
		t.Fatalf("delivered = %+v", delivered)
	}

	sackPkt := server.PollWrite(now)
	if sackPkt == nil {
		t.Fatal("expected SACK packet")
	}
	if err := client.HandleRead(now, sackPkt); err != nil {
		t.Fatalf("client failed to handle SACK: %v", err)
	}
	if len(client.unacked) != 0 {
		t.Fatalf("expected unacked chunks cleared after SACK, got %d", len(client.unacked))
	}
}

func TestAssociationResetStreamRoundTrip(t *testing.T) {
	now := time.Unix(0, 0)
	client, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 64)), 1200, rtclog.NewScope("sctp-test"))
	server, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 64)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, client, server, now)

	client.ResetStream([]uint16{2})
	reconfigPkt := client.PollWrite(now)
	if reconfigPkt == nil {
		t.Fatal("expected RE-CONFIG packet")
	}
	if err := server.HandleRead(now, reconfigPkt); err != nil {
		t.Fatalf("server failed to handle RE-CONFIG: %v", err)
	}
	resp := server.PollWrite(now)
	if resp == nil {
		t.Fatal("expected RE-CONFIG response")
	}
	if err := client.HandleRead(now, resp); err != nil {
		t.Fatalf("client failed to handle RE-CONFIG response: %v", err)
	}
}

func TestHandleTimeoutRetransmitsExpiredData(t *testing.T) {
	now := time.Unix(0, 0)
	client, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 64)), 1200, rtclog.NewScope("sctp-test"))
	server, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 64)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, client, server, now)

	client.Send(0, 51, []byte("hello"), false)
	_ = client.PollWrite(now) // send once, drop it (simulated loss)
	if len(client.unacked) != 1 {
		t.Fatalf("expected 1 unacked chunk, got %d", len(client.unacked))
	}

	later := now.Add(client.congestion.RTO() + time.Second)
	client.HandleTimeout(later)
	if len(client.outbound) != 1 {
		t.Fatalf("expected retransmission to be requeued, got %d outbound", len(client.outbound))
	}
}

// establish drives a full four-way handshake between client and server.
func establish(t *testing.T, client, server *Association, now time.Time) {
	t.Helper()
	client.Associate()
	if err := server.HandleRead(now, client.PollWrite(now)); err != nil {
		t.Fatalf("server INIT: %v", err)
	}
	if err := client.HandleRead(now, server.PollWrite(now)); err != nil {
		t.Fatalf("client INIT-ACK: %v", err)
	}
	if err := server.HandleRead(now, client.PollWrite(now)); err != nil {
		t.Fatalf("server COOKIE-ECHO: %v", err)
	}
	if err := client.HandleRead(now, server.PollWrite(now)); err != nil {
		t.Fatalf("client COOKIE-ACK: %v", err)
	}
}

func TestOrderedDeliveryBuffersOutOfOrderChunks(t *testing.T) {
	now := time.Unix(0, 0)
	sender, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	receiver, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, sender, receiver, now)

	sender.Send(0, 51, []byte("first"), false)
	pkt1 := sender.PollWrite(now)
	sender.Send(0, 51, []byte("second"), false)
	pkt2 := sender.PollWrite(now)
	sender.Send(0, 51, []byte("third"), false)
	pkt3 := sender.PollWrite(now)
	if pkt1 == nil || pkt2 == nil || pkt3 == nil {
		t.Fatal("expected three DATA packets")
	}

	// Deliver the third first, then the first two.
	if err := receiver.HandleRead(now, pkt3); err != nil {
		t.Fatalf("pkt3: %v", err)
	}
	if got := receiver.Deliver(); len(got) != 0 {
		t.Fatalf("out-of-order chunk must be buffered, got %d messages", len(got))
	}
	if err := receiver.HandleRead(now, pkt1); err != nil {
		t.Fatalf("pkt1: %v", err)
	}
	if err := receiver.HandleRead(now, pkt2); err != nil {
		t.Fatalf("pkt2: %v", err)
	}
	got := receiver.Deliver()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages after holes filled, got %d", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if string(got[i].Payload) != want {
			t.Fatalf("message %d = %q, want %q", i, got[i].Payload, want)
		}
	}
}

func TestUnorderedDeliveryBypassesSequenceOrder(t *testing.T) {
	now := time.Unix(0, 0)
	sender, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	receiver, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, sender, receiver, now)

	sender.Send(0, 51, []byte("one"), true)
	pkt1 := sender.PollWrite(now)
	sender.Send(0, 51, []byte("two"), true)
	pkt2 := sender.PollWrite(now)

	if err := receiver.HandleRead(now, pkt2); err != nil {
		t.Fatalf("pkt2: %v", err)
	}
	got := receiver.Deliver()
	if len(got) != 1 || string(got[0].Payload) != "two" {
		t.Fatalf("unordered message must deliver immediately, got %+v", got)
	}
	if err := receiver.HandleRead(now, pkt1); err != nil {
		t.Fatalf("pkt1: %v", err)
	}
	got = receiver.Deliver()
	if len(got) != 1 || string(got[0].Payload) != "one" {
		t.Fatalf("got %+v", got)
	}
}

func TestFragmentationReassemblesLargeMessage(t *testing.T) {
	now := time.Unix(0, 0)
	sender, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	receiver, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, sender, receiver, now)

	payload := bytes.Repeat([]byte{0xAB}, 3000)
	sender.Send(0, 53, payload, false)
	var fragments int
	for {
		pkt := sender.PollWrite(now)
		if pkt == nil {
			break
		}
		fragments++
		if err := receiver.HandleRead(now, pkt); err != nil {
			t.Fatalf("fragment %d: %v", fragments, err)
		}
	}
	if fragments < 3 {
		t.Fatalf("3000-byte payload over a 1200-byte MTU must fragment, sent %d packets", fragments)
	}
	got := receiver.Deliver()
	if len(got) != 1 {
		t.Fatalf("expected one reassembled message, got %d", len(got))
	}
	if !bytes.Equal(got[0].Payload, payload) {
		t.Fatal("reassembled payload differs from original")
	}
}

func TestPartialReliabilityAbandonsViaForwardTSN(t *testing.T) {
	now := time.Unix(0, 0)
	sender, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	receiver, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, sender, receiver, now)

	sender.ConfigureStream(0, StreamConfig{MaxRetransmits: 0})
	sender.Send(0, 51, []byte("lost"), false)
	_ = sender.PollWrite(now) // "lost" goes out and is dropped by the path
	sender.Send(0, 51, []byte("kept"), false)
	keptPkt := sender.PollWrite(now) // "kept" arrives
	if err := receiver.HandleRead(now, keptPkt); err != nil {
		t.Fatalf("kept: %v", err)
	}
	if got := receiver.Deliver(); len(got) != 0 {
		t.Fatal("kept must wait for the hole until FORWARD-TSN arrives")
	}
	// The gap-ack for "kept" reaches the sender, so only "lost" is still
	// outstanding when the RTO fires.
	if err := sender.HandleRead(now, receiver.PollWrite(now)); err != nil {
		t.Fatalf("gap-ack: %v", err)
	}

	// The RTO fires with zero allowed retransmissions: the chunk is
	// abandoned and a FORWARD-TSN is queued instead of a retransmit.
	later := now.Add(sender.congestion.RTO() + time.Second)
	sender.HandleTimeout(later)
	fwdPkt := sender.PollWrite(later)
	if fwdPkt == nil {
		t.Fatal("expected FORWARD-TSN packet after abandonment")
	}
	if err := receiver.HandleRead(later, fwdPkt); err != nil {
		t.Fatalf("forward-tsn: %v", err)
	}
	got := receiver.Deliver()
	if len(got) != 1 || string(got[0].Payload) != "kept" {
		t.Fatalf("expected the kept message after skip, got %+v", got)
	}
}

func TestGapAckedChunkIsNeverRetransmitted(t *testing.T) {
	now := time.Unix(0, 0)
	sender, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	receiver, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, sender, receiver, now)

	sender.Send(0, 51, []byte("dropped"), false)
	_ = sender.PollWrite(now) // first packet lost
	sender.Send(0, 51, []byte("arrived"), false)
	second := sender.PollWrite(now)
	if err := receiver.HandleRead(now, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	sackPkt := receiver.PollWrite(now)
	if err := sender.HandleRead(now, sackPkt); err != nil {
		t.Fatalf("sack: %v", err)
	}
	// Only the dropped chunk remains unacked; the gap-acked one is gone.
	if len(sender.unacked) != 1 {
		t.Fatalf("expected 1 unacked chunk after gap-ack, got %d", len(sender.unacked))
	}
	later := now.Add(sender.congestion.RTO() + time.Second)
	sender.HandleTimeout(later)
	if len(sender.outbound) != 1 {
		t.Fatalf("only the dropped chunk may be retransmitted, got %d queued", len(sender.outbound))
	}
	if string(sender.outbound[0].Payload) != "dropped" {
		t.Fatalf("retransmitting %q, want the dropped chunk", sender.outbound[0].Payload)
	}
}

func TestShutdownHandshakeClosesBothSides(t *testing.T) {
	now := time.Unix(0, 0)
	client, _ := NewAssociation(RoleClient, bytes.NewReader(bytes.Repeat([]byte{1}, 256)), 1200, rtclog.NewScope("sctp-test"))
	server, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	establish(t, client, server, now)

	client.Shutdown()
	if client.State() != StateShutdownPending {
		t.Fatalf("state = %v, want ShutdownPending", client.State())
	}
	shutdownPkt := client.PollWrite(now)
	if shutdownPkt == nil {
		t.Fatal("expected SHUTDOWN with empty queues")
	}
	if client.State() != StateShutdownSent {
		t.Fatalf("state = %v, want ShutdownSent", client.State())
	}
	if err := server.HandleRead(now, shutdownPkt); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	ackPkt := server.PollWrite(now)
	if err := client.HandleRead(now, ackPkt); err != nil {
		t.Fatalf("shutdown-ack: %v", err)
	}
	if client.State() != StateClosed {
		t.Fatalf("client state = %v, want Closed", client.State())
	}
	completePkt := client.PollWrite(now)
	if err := server.HandleRead(now, completePkt); err != nil {
		t.Fatalf("shutdown-complete: %v", err)
	}
	if server.State() != StateClosed {
		t.Fatalf("server state = %v, want Closed", server.State())
	}
}

func TestCookieEchoFromWrongHandshakeRejected(t *testing.T) {
	now := time.Unix(0, 0)
	server, _ := NewAssociation(RoleServer, bytes.NewReader(bytes.Repeat([]byte{2}, 256)), 1200, rtclog.NewScope("sctp-test"))
	// A COOKIE-ECHO that was never sealed by this association must fail
	// to open.
	forged := Marshal(&Packet{
		Header: Header{VerificationTag: 0},
		Chunks: []Chunk{{Type: ChunkCookieEcho, Value: bytes.Repeat([]byte{0xFF}, 36)}},
	})
	if err := server.HandleRead(now, forged); err != nil {
		t.Fatalf("HandleRead must swallow the error internally: %v", err)
	}
	if server.State() != StateClosed {
		t.Fatalf("forged cookie must not establish, state = %v", server.State())
	}
}
