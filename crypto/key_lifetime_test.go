package crypto

import "testing"

func TestKeyLifetimeTracker_DefaultsToSpecLimit(t *testing.T) {
	tracker := NewKeyLifetimeTracker(0)
	if tracker.limit != MaxPacketsPerKey {
		t.Fatalf("limit = %d, want %d", tracker.limit, MaxPacketsPerKey)
	}
}

func TestKeyLifetimeTracker_EmittedTracksCount(t *testing.T) {
	tracker := NewKeyLifetimeTracker(100)
	for i := 0; i < 5; i++ {
		tracker.RecordPacket()
	}
	if tracker.Emitted() != 5 {
		t.Fatalf("emitted = %d, want 5", tracker.Emitted())
	}
}
