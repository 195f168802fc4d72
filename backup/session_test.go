package backup

import (
	"errors"
	"testing"

	"github.com/charsi/signalbackup-tools/frames"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func u32Ptr(v uint32) *uint32 { return &v }

func TestHeaderAndEndRoundTrip(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(10)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt"), Version: u32Ptr(1)})
	stream = appendCipherFrame(stream, keys, ivSeed, 10, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("CREATE TABLE t (a)")},
	})
	stream = appendCipherFrame(stream, keys, ivSeed, 11, &frames.BackupFrame{End: boolPtr(true)})

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	header, err := s.Next()
	if err != nil {
		t.Fatalf("Next (header): %v", err)
	}
	if header.Type() != frames.FrameHeader {
		t.Fatalf("expected header frame, got %v", header.Type())
	}
	if s.Counter() != 10 {
		t.Fatalf("counter after Open = %d, want 10", s.Counter())
	}

	stmt, err := s.Next()
	if err != nil {
		t.Fatalf("Next (statement): %v", err)
	}
	if stmt.Invalid || stmt.BadMac {
		t.Fatalf("statement frame unexpectedly invalid=%v badMac=%v", stmt.Invalid, stmt.BadMac)
	}
	if got := stmt.Payload.GetStatement().GetStatement(); got != "CREATE TABLE t (a)" {
		t.Fatalf("statement text = %q", got)
	}

	end, err := s.Next()
	if err != nil {
		t.Fatalf("Next (end): %v", err)
	}
	if end.Type() != frames.FrameEnd {
		t.Fatalf("expected end frame, got %v", end.Type())
	}

	if s.Counter() != 12 {
		t.Fatalf("terminal counter = %d, want 12", s.Counter())
	}
	if s.FrameNumber() != 2 {
		t.Fatalf("terminal frame number = %d, want 2", s.FrameNumber())
	}

	if _, err := s.Next(); err != ErrEndOfStream {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
}

func TestBadMacLatchesWithoutStopOnError(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (1)")},
	})
	// Flip the trailing tag's last byte so the MAC no longer verifies.
	stream[len(stream)-1] ^= 0xFF

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	frame, err := s.Next()
	if err != nil {
		t.Fatalf("expected bad-MAC frame to be returned, not an error: %v", err)
	}
	if !frame.BadMac {
		t.Fatalf("expected BadMac=true")
	}
	if !s.BadMac() {
		t.Fatalf("expected session BadMac() latch to be set")
	}
}

func TestStopOnErrorMakesBadMacFatal(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Statement: &frames.SqlStatement{Statement: strPtr("INSERT INTO t VALUES (1)")},
	})
	stream[len(stream)-1] ^= 0xFF

	s, err := Open(&memSource{data: stream}, stubDeriver(keys), WithStopOnError(true))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	_, err = s.Next()
	var badMac *BadMacError
	if !errors.As(err, &badMac) {
		t.Fatalf("expected *BadMacError, got %v (%T)", err, err)
	}
}

func TestMalformedFrameLength(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendRawFrame(stream, 3, []byte{0, 0, 0}) // below MinFrameLength

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	_, err = s.Next()
	var malformed *MalformedLengthError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedLengthError, got %v (%T)", err, err)
	}
}

func TestTruncatedAttachmentRejectedByDefault(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	// Announce a 1000-byte attachment but back it with nothing.
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Attachment: &frames.Attachment{RowId: func() *uint64 { v := uint64(1); return &v }(), Length: u32Ptr(1000)},
	})

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	_, err = s.Next()
	var trunc *TruncatedError
	if !errors.As(err, &trunc) {
		t.Fatalf("expected *TruncatedError, got %v (%T)", err, err)
	}
}

func TestTruncatedAttachmentToleratedWithAssumeBadSize(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Attachment: &frames.Attachment{RowId: func() *uint64 { v := uint64(1); return &v }(), Length: u32Ptr(1000)},
	})

	s, err := Open(&memSource{data: stream}, stubDeriver(keys), WithAssumeBadSize(true))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	frame, err := s.Next()
	if err != nil {
		t.Fatalf("expected tolerated truncation, got error: %v", err)
	}
	if frame.Attachment == nil {
		t.Fatalf("expected an attachment descriptor to be attached")
	}
	if frame.Attachment.Size() != 1000 {
		t.Fatalf("descriptor size = %d, want 1000", frame.Attachment.Size())
	}
}

func TestAttachmentStreamsOverAndDecrypts(t *testing.T) {
	keys := testKeys()
	ivSeed := testIVSeed(0)
	plaintext := []byte("hello, this is attachment content")

	var stream []byte
	stream = appendHeaderFrame(stream, &frames.Header{Iv: ivSeed, Salt: []byte("salt")})
	stream = appendCipherFrame(stream, keys, ivSeed, 0, &frames.BackupFrame{
		Attachment: &frames.Attachment{RowId: func() *uint64 { v := uint64(1); return &v }(), Length: u32Ptr(uint32(len(plaintext)))},
	})
	// The frame above consumed counter 0; the attachment blob is keyed off
	// counter 1, the next value Session hands out.
	stream = appendAttachmentBlob(stream, keys, ivSeed, 1, plaintext)
	stream = appendCipherFrame(stream, keys, ivSeed, 2, &frames.BackupFrame{End: boolPtr(true)})

	s, err := Open(&memSource{data: stream}, stubDeriver(keys))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next (header): %v", err)
	}

	frame, err := s.Next()
	if err != nil {
		t.Fatalf("Next (attachment frame): %v", err)
	}
	if frame.Attachment == nil {
		t.Fatalf("expected attachment descriptor")
	}

	var out []byte
	buf := &sliceWriter{}
	if err := frame.Attachment.Decrypt(s.Source(), buf); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	out = buf.data
	if string(out) != string(plaintext) {
		t.Fatalf("decrypted = %q, want %q", out, plaintext)
	}

	end, err := s.Next()
	if err != nil {
		t.Fatalf("Next (end): %v", err)
	}
	if end.Type() != frames.FrameEnd {
		t.Fatalf("expected end frame after streaming over attachment, got %v", end.Type())
	}
}

// sliceWriter is a minimal io.Writer collecting everything written to it.
type sliceWriter struct{ data []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}
