package sctp

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"sort"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/opd-ai/rtcengine/crypto"
	"github.com/opd-ai/rtcengine/rtclog"
)

// AssociationState names the handshake and shutdown states of RFC 4960 §4.
type AssociationState int

const (
	StateClosed AssociationState = iota
	StateCookieWait
	StateCookieEchoed
	StateEstablished
	StateShutdownPending
	StateShutdownSent
	StateShutdownAckSent
)

// Role distinguishes the handshake initiator from the responder; it
// decides who sends INIT first.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// heartbeatInterval is the SCTP path-liveness cadence, separate from (and
// slower than) the ICE consent-check cadence; maxHeartbeatMisses bounds the
// consecutive unanswered heartbeats before the association closes.
const (
	heartbeatInterval  = 30 * time.Second
	maxHeartbeatMisses = 5

	defaultRwnd = 128 * 1024
	// dataChunkOverhead is the common header plus one DATA chunk's TLV
	// and fixed fields; payload above mtu-overhead is fragmented.
	dataChunkOverhead = commonHeaderSize + 4 + 12
)

// DeliveredMessage is one reassembled, in-order (or deliberately
// unordered) application message ready for the host.
type DeliveredMessage struct {
	StreamID  uint16
	StreamSeq uint16
	PPID      uint32
	Unordered bool
	Payload   []byte
}

// Association is a sans-I/O SCTP association running over a single DTLS
// application-data channel. The host drives it with HandleRead/Send/
// PollWrite/HandleTimeout/PollTimeout, mirroring the engine's eight host
// operations.
type Association struct {
	role  Role
	state AssociationState
	log   *rtclog.Scope

	entropy crypto.EntropySource

	localTag        uint32
	peerTag         uint32
	localInitialTSN uint32
	peerInitialTSN  uint32

	cumulativeTSN uint32          // highest contiguous TSN received
	pendingTSNs   map[uint32]bool // received TSNs above cumulativeTSN
	dupTSNs       []uint32        // duplicates seen since the last SACK
	nextTSN       uint32          // next TSN this side will send

	outStreams map[uint16]*outboundStream
	inStreams  map[uint16]*inboundStream

	outbound []DataChunk
	unacked  map[uint32]*sentChunk
	inFlight uint32 // payload bytes currently unacknowledged

	lastCumAcked uint32                      // peer's last cumulative TSN ack
	abandoned    map[uint32]ForwardTSNStream // TSNs given up under partial reliability
	gapAcked     map[uint32]bool             // TSNs acked by gap-ack blocks

	congestion *CongestionController
	mtu        uint32

	lastHeartbeatSent time.Time
	heartbeatMisses   int

	pendingReconfigSeq uint32
	cookieAEAD         cipher.AEAD

	delivered []DeliveredMessage
	outbox    []Chunk
}

type sentChunk struct {
	chunk       DataChunk
	sentAt      time.Time
	firstSentAt time.Time
	retries     int
}

// NewAssociation creates an association in the closed state. entropy seeds
// the initiate tag, initial TSN, and the state-cookie sealing key; mtu
// sizes the congestion controller and the fragmentation threshold.
func NewAssociation(role Role, entropy crypto.EntropySource, mtu uint32, log *rtclog.Scope) (*Association, error) {
	var buf [8]byte
	if _, err := io.ReadFull(entropy, buf[:]); err != nil {
		return nil, err
	}
	cookieKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(entropy, cookieKey); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(cookieKey)
	if err != nil {
		return nil, err
	}
	crypto.ZeroBytes(cookieKey)
	a := &Association{
		role:            role,
		state:           StateClosed,
		log:             log,
		entropy:         entropy,
		localTag:        binary.BigEndian.Uint32(buf[0:4]),
		localInitialTSN: binary.BigEndian.Uint32(buf[4:8]),
		pendingTSNs:     make(map[uint32]bool),
		outStreams:      make(map[uint16]*outboundStream),
		inStreams:       make(map[uint16]*inboundStream),
		unacked:         make(map[uint32]*sentChunk),
		abandoned:       make(map[uint32]ForwardTSNStream),
		gapAcked:        make(map[uint32]bool),
		congestion:      NewCongestionController(mtu, defaultRwnd),
		mtu:             mtu,
		cookieAEAD:      aead,
	}
	a.nextTSN = a.localInitialTSN
	a.lastCumAcked = a.localInitialTSN - 1
	return a, nil
}

// Associate begins the handshake from the client side by emitting an INIT.
func (a *Association) Associate() {
	if a.role != RoleClient || a.state != StateClosed {
		return
	}
	a.state = StateCookieWait
	a.queueControl(Chunk{Type: ChunkInit, Value: marshalInit(InitChunk{
		InitiateTag:        a.localTag,
		AdvertisedReceiver: defaultRwnd,
		OutboundStreams:    65535,
		InboundStreams:     65535,
		InitialTSN:         a.localInitialTSN,
	}, false)})
}

// ConfigureStream sets the reliability and ordering semantics of one
// outgoing stream; it must be called before the first Send on that stream
// to take effect from the first chunk.
func (a *Association) ConfigureStream(streamID uint16, cfg StreamConfig) {
	s := a.outStream(streamID)
	s.cfg = cfg
}

func (a *Association) outStream(streamID uint16) *outboundStream {
	s, ok := a.outStreams[streamID]
	if !ok {
		s = &outboundStream{cfg: fullyReliable}
		a.outStreams[streamID] = s
	}
	return s
}

func (a *Association) inStream(streamID uint16) *inboundStream {
	s, ok := a.inStreams[streamID]
	if !ok {
		s = newInboundStream()
		a.inStreams[streamID] = s
	}
	return s
}

// HandleRead processes one inbound SCTP packet (already DTLS-decrypted).
func (a *Association) HandleRead(now time.Time, data []byte) error {
	pkt, err := Unmarshal(data)
	if err != nil {
		a.log.WithError(err, "unmarshal_packet").Debug("dropping malformed SCTP packet")
		return nil
	}
	for _, c := range pkt.Chunks {
		if err := a.handleChunk(now, c); err != nil {
			a.log.WithError(err, "handle_chunk").Warn("chunk handling error")
		}
	}
	return nil
}

func (a *Association) handleChunk(now time.Time, c Chunk) error {
	switch c.Type {
	case ChunkInit:
		return a.handleInit(c)
	case ChunkInitAck:
		return a.handleInitAck(c)
	case ChunkCookieEcho:
		return a.handleCookieEcho(c)
	case ChunkCookieAck:
		a.state = StateEstablished
		return nil
	case ChunkData:
		return a.handleData(now, c)
	case ChunkSack:
		return a.handleSack(now, c)
	case ChunkForwardTSN:
		return a.handleForwardTSN(c)
	case ChunkReConfig:
		return a.handleReConfig(c)
	case ChunkHeartbeat:
		a.queueControl(Chunk{Type: ChunkHeartbeatAck, Value: c.Value})
		return nil
	case ChunkHeartbeatAck:
		a.heartbeatMisses = 0
		return nil
	case ChunkShutdown:
		return a.handleShutdown(c)
	case ChunkShutdownAck:
		a.queueControl(Chunk{Type: ChunkShutdownComplete})
		a.state = StateClosed
		return nil
	case ChunkShutdownComplete:
		a.state = StateClosed
		return nil
	case ChunkAbort:
		a.state = StateClosed
		return nil
	}
	return nil
}

func (a *Association) handleInit(c Chunk) error {
	init, err := unmarshalInit(c.Value)
	if err != nil {
		return err
	}
	a.peerTag = init.InitiateTag
	a.peerInitialTSN = init.InitialTSN
	a.cumulativeTSN = init.InitialTSN - 1
	cookie, err := a.sealCookie()
	if err != nil {
		return err
	}
	a.queueControl(Chunk{Type: ChunkInitAck, Value: marshalInit(InitChunk{
		InitiateTag:        a.localTag,
		AdvertisedReceiver: defaultRwnd,
		OutboundStreams:    65535,
		InboundStreams:     65535,
		InitialTSN:         a.localInitialTSN,
		StateCookie:        cookie,
	}, true)})
	return nil
}

func (a *Association) handleInitAck(c Chunk) error {
	if a.state != StateCookieWait {
		return nil
	}
	initAck, err := unmarshalInit(c.Value)
	if err != nil {
		return err
	}
	a.peerTag = initAck.InitiateTag
	a.peerInitialTSN = initAck.InitialTSN
	a.cumulativeTSN = initAck.InitialTSN - 1
	a.state = StateCookieEchoed
	a.queueControl(Chunk{Type: ChunkCookieEcho, Value: initAck.StateCookie})
	return nil
}

func (a *Association) handleCookieEcho(c Chunk) error {
	if !a.openCookie(c.Value) {
		return errors.New("sctp: invalid state cookie")
	}
	a.state = StateEstablished
	a.queueControl(Chunk{Type: ChunkCookieAck})
	return nil
}

// sealCookie and openCookie implement a self-encrypted state cookie: the
// INIT-ACK responder seals the association's two tags under a key only it
// holds, so a COOKIE-ECHO replayed from a different handshake fails to
// open. SCTP here runs atop an already-authenticated DTLS channel, so the
// cookie's job is only to let the responder recognize its own prior
// offer, not to defend against an unauthenticated flood the way the DTLS
// HelloVerifyRequest cookie must.
func (a *Association) sealCookie() ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(a.entropy, nonce); err != nil {
		return nil, err
	}
	plain := make([]byte, 8)
	binary.BigEndian.PutUint32(plain[0:4], a.localTag)
	binary.BigEndian.PutUint32(plain[4:8], a.peerTag)
	return append(nonce, a.cookieAEAD.Seal(nil, nonce, plain, nil)...), nil
}

func (a *Association) openCookie(cookie []byte) bool {
	if len(cookie) < chacha20poly1305.NonceSize {
		return false
	}
	nonce, sealed := cookie[:chacha20poly1305.NonceSize], cookie[chacha20poly1305.NonceSize:]
	plain, err := a.cookieAEAD.Open(nil, nonce, sealed, nil)
	if err != nil || len(plain) != 8 {
		return false
	}
	return binary.BigEndian.Uint32(plain[0:4]) == a.localTag &&
		binary.BigEndian.Uint32(plain[4:8]) == a.peerTag
}

// Send queues payload for delivery on streamID, fragmenting it at the
// path MTU. Ordered messages are delivered in stream-sequence order on
// the far end; unordered messages bypass reassembly ordering entirely.
func (a *Association) Send(streamID uint16, ppid uint32, payload []byte, unordered bool) {
	stream := a.outStream(streamID)
	if stream.cfg.Unordered {
		unordered = true
	}
	ssn := stream.nextSSN
	stream.nextSSN++

	fragmentSize := int(a.mtu) - dataChunkOverhead
	if fragmentSize <= 0 {
		fragmentSize = len(payload) + 1
	}
	total := len(payload)
	if total == 0 {
		total = 1 // an empty message still occupies one chunk
	}
	for offset := 0; offset < total; offset += fragmentSize {
		end := offset + fragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		a.outbound = append(a.outbound, DataChunk{
			Begin:     offset == 0,
			End:       end == len(payload),
			TSN:       a.nextTSN,
			StreamID:  streamID,
			StreamSeq: ssn,
			PPID:      ppid,
			Payload:   payload[offset:end],
			Unordered: unordered,
		})
		a.nextTSN++
	}
}

// Shutdown begins the graceful close. The SHUTDOWN chunk is held back
// until the outbound queue and every unacknowledged chunk have drained,
// per RFC 4960 §9.2.
func (a *Association) Shutdown() {
	if a.state != StateEstablished {
		return
	}
	a.state = StateShutdownPending
}

func (a *Association) handleShutdown(c Chunk) error {
	if len(c.Value) >= 4 {
		a.noteCumAck(binary.BigEndian.Uint32(c.Value[0:4]))
	}
	a.queueControl(Chunk{Type: ChunkShutdownAck})
	a.state = StateShutdownAckSent
	return nil
}

// PollWrite drains any queued outbound chunks respecting the congestion
// window and the path MTU, returning the wire bytes for one SCTP packet,
// or nil if there is nothing eligible to send.
func (a *Association) PollWrite(now time.Time) []byte {
	chunks := a.drainControl()
	var packetBytes int
	for _, c := range chunks {
		packetBytes += 4 + len(c.Value)
	}
	for len(a.outbound) > 0 && a.inFlight < a.congestion.Cwnd() {
		d := a.outbound[0]
		if packetBytes > 0 && packetBytes+dataChunkOverhead+len(d.Payload) > int(a.mtu) {
			break
		}
		a.outbound = a.outbound[1:]
		chunks = append(chunks, marshalData(d))
		packetBytes += dataChunkOverhead + len(d.Payload)
		if sc, ok := a.unacked[d.TSN]; ok {
			sc.sentAt = now
		} else {
			a.unacked[d.TSN] = &sentChunk{chunk: d, sentAt: now, firstSentAt: now}
			a.inFlight += uint32(len(d.Payload))
		}
	}
	if len(a.outbound) == 0 && len(a.unacked) == 0 && a.state == StateShutdownPending {
		a.state = StateShutdownSent
		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, a.cumulativeTSN)
		chunks = append(chunks, Chunk{Type: ChunkShutdown, Value: value})
	}
	if len(chunks) == 0 {
		return nil
	}
	return Marshal(&Packet{Header: Header{VerificationTag: a.peerTag}, Chunks: chunks})
}

func (a *Association) queueControl(c Chunk) {
	a.outbox = append(a.outbox, c)
}

func (a *Association) drainControl() []Chunk {
	chunks := a.outbox
	a.outbox = nil
	return chunks
}

func (a *Association) handleData(now time.Time, c Chunk) error {
	d, err := unmarshalData(c)
	if err != nil {
		return err
	}
	if tsnLessOrEqual(d.TSN, a.cumulativeTSN) || a.pendingTSNs[d.TSN] {
		a.dupTSNs = append(a.dupTSNs, d.TSN)
		a.queueSack()
		return nil
	}
	a.pendingTSNs[d.TSN] = true
	for a.pendingTSNs[a.cumulativeTSN+1] {
		delete(a.pendingTSNs, a.cumulativeTSN+1)
		a.cumulativeTSN++
	}

	stream := a.inStream(d.StreamID)
	if msg := stream.addFragment(d); msg != nil {
		if msg.Unordered {
			a.delivered = append(a.delivered, *msg)
		} else {
			stream.ready[msg.StreamSeq] = *msg
			a.delivered = append(a.delivered, stream.drainOrdered()...)
		}
	}
	a.queueSack()
	return nil
}

func (a *Association) queueSack() {
	a.queueControl(marshalSack(SackChunk{
		CumulativeTSN:  a.cumulativeTSN,
		AdvertisedRwnd: defaultRwnd,
		GapAcks:        a.gapAckBlocks(),
		DuplicateTSNs:  a.dupTSNs,
	}))
	a.dupTSNs = nil
}

// gapAckBlocks summarizes the received-above-cumulative TSNs as ranges
// relative to the cumulative TSN, RFC 4960 §3.3.4.
func (a *Association) gapAckBlocks() []GapAck {
	if len(a.pendingTSNs) == 0 {
		return nil
	}
	offsets := make([]uint32, 0, len(a.pendingTSNs))
	for tsn := range a.pendingTSNs {
		offsets = append(offsets, tsn-a.cumulativeTSN)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	var blocks []GapAck
	for _, off := range offsets {
		n := len(blocks)
		if n > 0 && uint32(blocks[n-1].End)+1 == off {
			blocks[n-1].End = uint16(off)
			continue
		}
		blocks = append(blocks, GapAck{Start: uint16(off), End: uint16(off)})
	}
	return blocks
}

// Deliver drains and returns application messages reassembled since the
// last call.
func (a *Association) Deliver() []DeliveredMessage {
	out := a.delivered
	a.delivered = nil
	return out
}

func (a *Association) handleSack(now time.Time, c Chunk) error {
	sack, err := unmarshalSack(c)
	if err != nil {
		return err
	}
	var ackedBytes uint32
	for tsn, sc := range a.unacked {
		if tsnLessOrEqual(tsn, sack.CumulativeTSN) {
			ackedBytes += uint32(len(sc.chunk.Payload))
			if sc.retries == 0 {
				a.congestion.UpdateRTT(now.Sub(sc.sentAt))
			}
			a.forgetSent(tsn, sc)
		}
	}
	// A chunk covered by a gap-ack block has arrived; it is never
	// retransmitted even though the cumulative TSN has not reached it.
	for _, gap := range sack.GapAcks {
		for off := uint32(gap.Start); off <= uint32(gap.End); off++ {
			tsn := sack.CumulativeTSN + off
			if sc, ok := a.unacked[tsn]; ok {
				ackedBytes += uint32(len(sc.chunk.Payload))
				a.forgetSent(tsn, sc)
				a.gapAcked[tsn] = true
			}
		}
	}
	a.noteCumAck(sack.CumulativeTSN)
	if ackedBytes > 0 {
		a.congestion.OnAck(ackedBytes)
	} else if len(sack.GapAcks) == 0 {
		if a.congestion.OnDuplicateAck() {
			a.fastRetransmit(now)
		}
	}
	return nil
}

func (a *Association) forgetSent(tsn uint32, sc *sentChunk) {
	delete(a.unacked, tsn)
	a.inFlight -= uint32(len(sc.chunk.Payload))
}

// noteCumAck records the peer's cumulative ack and discards abandonment
// and gap-ack bookkeeping it has made obsolete.
func (a *Association) noteCumAck(cum uint32) {
	if !tsnLess(a.lastCumAcked, cum) {
		return
	}
	a.lastCumAcked = cum
	for tsn := range a.abandoned {
		if tsnLessOrEqual(tsn, cum) {
			delete(a.abandoned, tsn)
		}
	}
	for tsn := range a.gapAcked {
		if tsnLessOrEqual(tsn, cum) {
			delete(a.gapAcked, tsn)
		}
	}
}

func (a *Association) fastRetransmit(now time.Time) {
	var oldestTSN uint32
	var oldest *sentChunk
	for tsn, sc := range a.unacked {
		if oldest == nil || tsnLess(tsn, oldestTSN) {
			oldestTSN, oldest = tsn, sc
		}
	}
	if oldest == nil {
		return
	}
	if a.abandonIfExpired(now, oldestTSN, oldest) {
		return
	}
	oldest.retries++
	a.outbound = append([]DataChunk{oldest.chunk}, a.outbound...)
}

// abandonIfExpired drops the chunk under its stream's partial-reliability
// limits, records it for the next FORWARD-TSN, and reports whether it was
// abandoned.
func (a *Association) abandonIfExpired(now time.Time, tsn uint32, sc *sentChunk) bool {
	cfg := a.outStream(sc.chunk.StreamID).cfg
	expired := false
	if cfg.MaxRetransmits >= 0 && sc.retries >= cfg.MaxRetransmits {
		expired = true
	}
	if cfg.Lifetime > 0 && now.Sub(sc.firstSentAt) >= cfg.Lifetime {
		expired = true
	}
	if !expired {
		return false
	}
	a.forgetSent(tsn, sc)
	a.abandoned[tsn] = ForwardTSNStream{StreamID: sc.chunk.StreamID, StreamSeq: sc.chunk.StreamSeq}
	a.emitForwardTSN()
	return true
}

// emitForwardTSN advances the peer's cumulative TSN past every chunk that
// is either abandoned or already gap-acked, starting from the last
// cumulative ack, RFC 3758 §3.5.
func (a *Association) emitForwardTSN() {
	advance := a.lastCumAcked
	perStream := make(map[uint16]uint16)
	for {
		next := advance + 1
		if fs, ok := a.abandoned[next]; ok {
			perStream[fs.StreamID] = fs.StreamSeq
			advance = next
			continue
		}
		if a.gapAcked[next] {
			advance = next
			continue
		}
		break
	}
	if advance == a.lastCumAcked {
		return
	}
	f := ForwardTSNChunk{NewCumulativeTSN: advance}
	for id, ssn := range perStream {
		f.Streams = append(f.Streams, ForwardTSNStream{StreamID: id, StreamSeq: ssn})
	}
	sort.Slice(f.Streams, func(i, j int) bool { return f.Streams[i].StreamID < f.Streams[j].StreamID })
	a.queueControl(marshalForwardTSN(f))
}

func (a *Association) handleForwardTSN(c Chunk) error {
	f, err := unmarshalForwardTSN(c)
	if err != nil {
		return err
	}
	if tsnLess(a.cumulativeTSN, f.NewCumulativeTSN) {
		a.cumulativeTSN = f.NewCumulativeTSN
		for tsn := range a.pendingTSNs {
			if tsnLessOrEqual(tsn, f.NewCumulativeTSN) {
				delete(a.pendingTSNs, tsn)
			}
		}
		for a.pendingTSNs[a.cumulativeTSN+1] {
			delete(a.pendingTSNs, a.cumulativeTSN+1)
			a.cumulativeTSN++
		}
	}
	for _, fs := range f.Streams {
		a.delivered = append(a.delivered, a.inStream(fs.StreamID).skipTo(fs.StreamSeq)...)
	}
	a.queueSack()
	return nil
}

func (a *Association) handleReConfig(c Chunk) error {
	rc, err := unmarshalReConfig(c)
	if err != nil {
		return err
	}
	if rc.IsResponse {
		return nil
	}
	for _, id := range rc.StreamIDs {
		delete(a.inStreams, id)
	}
	a.queueControl(marshalReConfig(ReConfigChunk{IsResponse: true, ResponseSeq: rc.RequestSeq, Result: 1}))
	return nil
}

// ResetStream requests the peer reset (close) the named outgoing streams,
// RFC 6525 stream reset.
func (a *Association) ResetStream(streamIDs []uint16) {
	a.pendingReconfigSeq++
	a.queueControl(marshalReConfig(ReConfigChunk{RequestSeq: a.pendingReconfigSeq, StreamIDs: streamIDs}))
}

// PollTimeout returns when HandleTimeout should next be called: the
// earliest of the oldest unacked chunk's RTO deadline and the next
// heartbeat.
func (a *Association) PollTimeout(now time.Time) time.Time {
	deadline := now.Add(heartbeatInterval)
	for _, sc := range a.unacked {
		rtoDeadline := sc.sentAt.Add(a.congestion.RTO())
		if rtoDeadline.Before(deadline) {
			deadline = rtoDeadline
		}
	}
	return deadline
}

// HandleTimeout retransmits expired chunks (abandoning those whose
// stream's partial-reliability limit has run out) and sends heartbeats,
// per RFC 4960 §6.3.3 and §8.3.
func (a *Association) HandleTimeout(now time.Time) {
	for tsn, sc := range a.unacked {
		if now.Sub(sc.sentAt) < a.congestion.RTO() {
			continue
		}
		if a.abandonIfExpired(now, tsn, sc) {
			continue
		}
		a.congestion.OnRTOExpired()
		sc.retries++
		sc.sentAt = now
		// The chunk stays in unacked so its retry count and first-send
		// time survive the requeue; PollWrite refreshes sentAt in place
		// rather than double-counting it in flight.
		a.outbound = append([]DataChunk{sc.chunk}, a.outbound...)
	}
	if a.state == StateEstablished && now.Sub(a.lastHeartbeatSent) >= heartbeatInterval {
		a.lastHeartbeatSent = now
		a.heartbeatMisses++
		a.queueControl(Chunk{Type: ChunkHeartbeat})
		if a.heartbeatMisses > maxHeartbeatMisses {
			a.state = StateClosed
		}
	}
}

// State returns the association's current handshake state.
func (a *Association) State() AssociationState { return a.state }

func tsnLessOrEqual(a, b uint32) bool {
	return int32(a-b) <= 0
}
