package backup

import (
	"testing"

	"github.com/charsi/signalbackup-tools/frames"
)

// TestResyncCounterDriftRecoversDrift simulates a producer whose counter
// has drifted ahead of the reader's (e.g. because some frames upstream were
// skipped or re-derived): frame A reads normally, frame B was encrypted
// under a counter 3 values ahead of what a plain Next() would try, so a
// plain read of B MAC-verifies (the MAC never depended on the counter) but
// decodes to garbage. ResyncCounterDrift should locate the correct counter
// and recover B intact.
func TestResyncCounterDriftRecoversDrift(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(10)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendCipherFrame(stream, keys, ivSeed, 10, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (1)")},
	})
	// Producer's counter jumped from 11 to 14 for this frame; a plain Next()
	// will try 11 (then latch to 12 regardless of outcome) and fail to
	// decode it.
	bStart := len(stream)
	stream = appendCipherFrame(stream, keys, ivSeed, 14, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (2)")},
	})
	stream = appendCipherFrame(stream, keys, ivSeed, 15, &frames.BackupFrame{End: boolPtr(true)})

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (frame A): %v", err)
	}
	if s.Counter() != 11 {
		t.Fatalf("counter after A = %d, want 11", s.Counter())
	}

	broken, err := s.Next()
	if err != nil {
		t.Fatalf("Next (frame B, drifted): %v", err)
	}
	if !broken.Invalid {
		t.Fatalf("expected frame B to decode as Invalid before resync, got Invalid=%v BadMac=%v", broken.Invalid, broken.BadMac)
	}
	// Next() already advanced the counter once (11 -> 12) on this failed
	// attempt, same as any other read.
	if s.Counter() != 12 {
		t.Fatalf("counter after failed read of B = %d, want 12", s.Counter())
	}

	if err := s.Source().SeekAbsolute(int64(bStart)); err != nil {
		t.Fatalf("rewind: %v", err)
	}

	k, recovered, err := s.ResyncCounterDrift(0)
	if err != nil {
		t.Fatalf("ResyncCounterDrift: %v", err)
	}
	if k != 3 {
		t.Fatalf("k = %d, want 3 (candidate counter 12+2=14, one past the successful attempt)", k)
	}
	if recovered.Type() != frames.FrameStatement {
		t.Fatalf("recovered frame type = %v, want statement", recovered.Type())
	}
	if got := recovered.Payload.GetStatement().GetStatement(); got != "INSERT INTO t VALUES (2)" {
		t.Fatalf("recovered statement text = %q", got)
	}
	if s.Counter() != 15 {
		t.Fatalf("counter after resync = %d, want 15", s.Counter())
	}

	// The session should be back in ordinary streaming mode: the next Next()
	// reads the End frame ordinarily.
	end, err := s.Next()
	if err != nil {
		t.Fatalf("Next (end, post-resync): %v", err)
	}
	if end.Type() != frames.FrameEnd {
		t.Fatalf("expected end frame, got %v", end.Type())
	}
}

// TestResyncMacCatalogueStopsAtFirstBadMac walks a short run of
// good-MAC frames and confirms the catalogue stops exactly at the frame
// whose tag was corrupted, restoring the source position afterward.
func TestResyncMacCatalogueStopsAtFirstBadMac(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (1)")},
	})
	stream = appendCipherFrame(stream, keys, ivSeed, 1, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (2)")},
	})
	stream[len(stream)-1] ^= 0xFF // corrupt the second frame's tag
	stream = appendCipherFrame(stream, keys, ivSeed, 2, &frames.BackupFrame{End: boolPtr(true)})

	s := &Session{src: &memSource{data: stream}, keys: keys, ivSeed: ivSeed, counter: 0, state: StateStreaming}

	entries, err := s.ResyncMacCatalogue(nil, 0)
	if err != nil {
		t.Fatalf("ResyncMacCatalogue: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d catalogue entries, want 1", len(entries))
	}
	// Only the first frame's tag verifies, so it is the only entry.
	if entries[0].Position != 0 {
		t.Fatalf("entry position = %d, want 0", entries[0].Position)
	}
	if s.src.Position() != 0 {
		t.Fatalf("ResyncMacCatalogue should restore position, got %d", s.src.Position())
	}
}
