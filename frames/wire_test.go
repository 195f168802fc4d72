package frames

import (
	"bytes"
	"testing"
)

func u32(v uint32) *uint32 { return &v }
func str(v string) *string { return &v }

func TestRoundTripHeader(t *testing.T) {
	want := &BackupFrame{Header: &Header{
		Iv:      bytes.Repeat([]byte{0x01}, 16),
		Salt:    bytes.Repeat([]byte{0xAA}, 16),
		Version: u32(1),
	}}

	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.FrameType() != FrameHeader {
		t.Fatalf("FrameType() = %v, want FrameHeader", got.FrameType())
	}
	if !bytes.Equal(got.GetHeader().GetIv(), want.Header.Iv) {
		t.Errorf("Iv = %x, want %x", got.GetHeader().GetIv(), want.Header.Iv)
	}
	if !bytes.Equal(got.GetHeader().GetSalt(), want.Header.Salt) {
		t.Errorf("Salt = %x, want %x", got.GetHeader().GetSalt(), want.Header.Salt)
	}
	if got.GetHeader().GetVersion() != 1 {
		t.Errorf("Version = %d, want 1", got.GetHeader().GetVersion())
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestRoundTripStatement(t *testing.T) {
	i := uint64(42)
	want := &BackupFrame{Statement: &SqlStatement{
		Statement: str("INSERT INTO foo VALUES (?)"),
		Parameters: []*SqlParameter{
			{IntegerParameter: &i},
			{StringParameter: str("hello")},
			{BlobParameter: []byte{1, 2, 3}},
		},
	}}

	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.FrameType() != FrameStatement {
		t.Fatalf("FrameType() = %v, want FrameStatement", got.FrameType())
	}
	if got.GetStatement().GetStatement() != "INSERT INTO foo VALUES (?)" {
		t.Errorf("statement text mismatch: %q", got.GetStatement().GetStatement())
	}
	params := got.GetStatement().GetParameters()
	if len(params) != 3 {
		t.Fatalf("len(Parameters) = %d, want 3", len(params))
	}
	if params[0].GetIntegerParameter() != 42 {
		t.Errorf("Parameters[0] = %d, want 42", params[0].GetIntegerParameter())
	}
	if params[1].GetStringParameter() != "hello" {
		t.Errorf("Parameters[1] = %q, want hello", params[1].GetStringParameter())
	}
	if !bytes.Equal(params[2].GetBlobParameter(), []byte{1, 2, 3}) {
		t.Errorf("Parameters[2] = %x, want 010203", params[2].GetBlobParameter())
	}
}

func TestRoundTripAttachmentSize(t *testing.T) {
	for _, tc := range []struct {
		name  string
		frame *BackupFrame
		want  uint32
	}{
		{"attachment", &BackupFrame{Attachment: &Attachment{Length: u32(4096)}}, 4096},
		{"avatar", &BackupFrame{Avatar: &Avatar{Length: u32(128)}}, 128},
		{"sticker", &BackupFrame{Sticker: &Sticker{Length: u32(64)}}, 64},
		{"statement", &BackupFrame{Statement: &SqlStatement{Statement: str("END")}}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(Encode(tc.frame))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.AttachmentSize() != tc.want {
				t.Errorf("AttachmentSize() = %d, want %d", got.AttachmentSize(), tc.want)
			}
		})
	}
}

func TestEndFrame(t *testing.T) {
	end := true
	want := &BackupFrame{End: &end}
	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.FrameType() != FrameEnd {
		t.Fatalf("FrameType() = %v, want FrameEnd", got.FrameType())
	}
	if !got.GetEnd() {
		t.Errorf("GetEnd() = false, want true")
	}
}

func TestDecodeUnparseable(t *testing.T) {
	// A lone continuation byte is an incomplete varint: the tag can never
	// finish parsing.
	_, err := Decode([]byte{0xFF})
	if err == nil {
		t.Fatal("Decode() = nil error, want ErrUnparseable")
	}
}

func TestValidateRejectsEmptyFrame(t *testing.T) {
	f := &BackupFrame{}
	if err := f.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for frame with no variant set")
	}
}

func TestValidateRejectsShortHeaderIV(t *testing.T) {
	f := &BackupFrame{Header: &Header{Iv: []byte{1, 2, 3}}}
	if err := f.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for short IV")
	}
}
