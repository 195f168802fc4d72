package backup

import "github.com/charsi/signalbackup-tools/frames"

// Frame is what Session.Next hands back: a decoded payload plus the
// bookkeeping a consumer needs to make sense of it. It is not persisted;
// spec.md §3 describes it as "in flight" state only.
type Frame struct {
	// Number is the purely-informational, monotonically increasing
	// frame_number from spec.md §3.
	Number uint64
	// Position is the absolute offset of this frame's length prefix.
	Position int64
	// Length is the frame's length prefix (4-byte header excluded). For
	// the bootstrap header frame it is the length of the unencrypted
	// header payload, which has no MAC trailer.
	Length uint32
	// Payload is the decoded message. Nil when Invalid is true and
	// decoding failed before a frames.BackupFrame could be produced at
	// all.
	Payload *frames.BackupFrame
	// Invalid marks the InvalidFrame data outcome from spec.md §4.4 step
	// 8: MAC verified but the plaintext didn't parse or validate. The
	// stream is not abandoned; Payload may be nil or may be the
	// best-effort partial decode.
	Invalid bool
	// BadMac marks that this frame's MAC check failed. The frame is
	// still returned (unless the session's stop-on-error is set, in
	// which case Next returns an error instead).
	BadMac bool
	// Attachment is set when this frame announces a trailing ciphertext
	// blob that the reader streamed over rather than decrypting eagerly.
	Attachment *AttachmentDescriptor
}

// Type reports the payload's frame type, or frames.FrameUnknown if Payload
// is nil.
func (f *Frame) Type() frames.FrameType {
	if f == nil || f.Payload == nil {
		return frames.FrameUnknown
	}
	return f.Payload.FrameType()
}
