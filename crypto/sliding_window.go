package crypto

import "github.com/opd-ai/rtcengine/rtclog"

var slidingWindowLog = rtclog.NewScope("crypto")

// SlidingWindow is the width-bounded bitmap replay window shared by the
// DTLS record layer (per-epoch sequence numbers, width 64) and the media
// transport (per-SSRC packet indices, width 64).
//
// Acceptance range: given the current high-water mark H and window
// width W, an index I is accepted iff I == H (first packet only), I > H
// (advances the high-water mark), or H-I <= W and bit (H-I-1) of the
// bitmap is unset (not yet seen). A rejected packet never mutates state,
// so an authentication failure never advances the window either.
//
// SlidingWindow is not safe for concurrent use; each DTLS epoch and each
// SSRC direction owns its own instance, consistent with the engine's
// single-threaded cooperative scheduling model.
type SlidingWindow struct {
	width     uint64
	highWater int64 // -1 means no packet accepted yet
	bitmap    uint64
}

// NewSlidingWindow creates an empty replay window of the given width in
// bits. Width must be <= 64; callers needing the usual RTP/DTLS default use 64.
func NewSlidingWindow(width uint64) *SlidingWindow {
	if width == 0 || width > 64 {
		width = 64
	}
	return &SlidingWindow{width: width, highWater: -1}
}

// Check reports whether index is a fresh, in-window packet without
// mutating any state. Callers that must authenticate a packet before
// letting it affect replay state (AEAD-sealed media and control traffic)
// call Check first and only call Commit once the auth tag has verified;
// Accept is for callers, like the DTLS handshake record layer, with
// nothing to authenticate before replay bookkeeping.
func (w *SlidingWindow) Check(index uint64) bool {
	idx := int64(index)

	if w.highWater < 0 {
		return true
	}

	if idx == w.highWater {
		slidingWindowLog.With("index", index).Debug("replay: duplicate of current high-water rejected")
		return false
	}

	if idx > w.highWater {
		return true
	}

	diff := uint64(w.highWater - idx)
	if diff > w.width {
		slidingWindowLog.With("index", index).With("high_water", w.highWater).Debug("replay: index older than window, rejected")
		return false
	}

	bit := uint64(1) << (diff - 1)
	if w.bitmap&bit != 0 {
		slidingWindowLog.With("index", index).Debug("replay: duplicate index rejected")
		return false
	}
	return true
}

// Commit marks index as seen, advancing the high-water mark and shifting
// the bitmap if index is newer. Callers must have already verified index
// with Check (and, for authenticated streams, the packet's auth tag); a
// rejected packet must never reach Commit, since that would let a forged
// packet with a fresh index desync the window before its tag is checked.
func (w *SlidingWindow) Commit(index uint64) {
	idx := int64(index)

	if w.highWater < 0 {
		w.highWater = idx
		w.bitmap = 0
		return
	}

	if idx > w.highWater {
		shift := uint64(idx - w.highWater)
		w.bitmap <<= shift
		if shift-1 < 64 {
			w.bitmap |= uint64(1) << (shift - 1)
		}
		w.highWater = idx
		return
	}

	diff := uint64(w.highWater - idx)
	if diff <= w.width {
		w.bitmap |= uint64(1) << (diff - 1)
	}
}

// Accept checks and commits index in a single call, for callers with no
// authentication step to interpose between the two (the DTLS record
// layer's per-epoch sequence numbers).
func (w *SlidingWindow) Accept(index uint64) bool {
	if !w.Check(index) {
		return false
	}
	w.Commit(index)
	return true
}

// HighWater returns the highest index accepted so far, or -1 if none.
func (w *SlidingWindow) HighWater() int64 {
	return w.highWater
}
