package crypto

// MaxPacketsPerKey is the packet-index budget a single SRTP/SRTCP key is
// trusted for: the transport re-keys automatically before 2^31 media
// packets have been emitted on one SSRC under a single key.
const MaxPacketsPerKey = 1 << 31

// KeyLifetimeTracker counts packets encrypted under one key and reports
// when the caller must derive a fresh key before the packet index for
// this key's SSRC would repeat. It holds no clock and no randomness; the
// media transport calls RecordPacket once per encrypted packet.
type KeyLifetimeTracker struct {
	limit   uint64
	emitted uint64
}

// NewKeyLifetimeTracker creates a tracker that signals rekey once limit
// packets have been emitted under the current key.
func NewKeyLifetimeTracker(limit uint64) *KeyLifetimeTracker {
	if limit == 0 {
		limit = MaxPacketsPerKey
	}
	return &KeyLifetimeTracker{limit: limit}
}

// RecordPacket registers one packet encrypted under the current key.
func (t *KeyLifetimeTracker) RecordPacket() {
	t.emitted++
}

// NeedsRekey reports whether the key's packet budget has been exhausted.
func (t *KeyLifetimeTracker) NeedsRekey() bool {
	return t.emitted >= t.limit
}

// Emitted returns the number of packets recorded under the current key.
func (t *KeyLifetimeTracker) Emitted() uint64 {
	return t.emitted
}

// Reset clears the counter after a rekey has produced a new key.
func (t *KeyLifetimeTracker) Reset() {
	t.emitted = 0
}
