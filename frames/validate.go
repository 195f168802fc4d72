package frames

import "github.com/pkg/errors"

// Validate performs the structural check spec.md's FrameCodec is required
// to expose: required fields present, sizes sane, the right number of oneof
// variants set. It does not know anything about MACs, counters, or the
// surrounding container — that's FrameReader's job.
func (f *BackupFrame) Validate() error {
	if f == nil {
		return errors.New("frames: nil frame")
	}

	set := 0
	if f.Header != nil {
		set++
	}
	if f.Statement != nil {
		set++
	}
	if f.Preference != nil {
		set++
	}
	if f.Attachment != nil {
		set++
	}
	if f.Version != nil {
		set++
	}
	if f.End != nil {
		set++
	}
	if f.Avatar != nil {
		set++
	}
	if f.Sticker != nil {
		set++
	}
	if f.KeyValue != nil {
		set++
	}
	if set != 1 {
		return errors.Errorf("frames: expected exactly one frame variant, got %d", set)
	}

	switch f.FrameType() {
	case FrameHeader:
		if len(f.Header.Iv) != 16 {
			return errors.Errorf("frames: header has %d-byte IV, want 16", len(f.Header.Iv))
		}
	case FrameStatement:
		if f.Statement.Statement == nil {
			return errors.Errorf("frames: statement frame missing statement text")
		}
	case FramePreference:
		if f.Preference.Key == nil {
			return errors.Errorf("frames: preference frame missing key")
		}
	case FrameAttachment:
		if f.Attachment.Length == nil {
			return errors.Errorf("frames: attachment frame missing length")
		}
	case FrameAvatar:
		if f.Avatar.Length == nil {
			return errors.Errorf("frames: avatar frame missing length")
		}
	case FrameSticker:
		if f.Sticker.Length == nil {
			return errors.Errorf("frames: sticker frame missing length")
		}
	case FrameKeyValue:
		if f.KeyValue.Key == nil {
			return errors.Errorf("frames: key-value frame missing key")
		}
	}
	return nil
}
