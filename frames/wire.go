package frames

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrUnparseable is returned by Decode when the plaintext is not a
// well-formed tagged message at all (truncated varint, unknown wire type,
// length-delimited field overruns the buffer). It is distinct from a
// BackupFrame that decodes fine but fails Validate.
var ErrUnparseable = errors.New("frames: unparseable frame")

// Decode parses a plaintext buffer into a BackupFrame. It never panics on
// malformed input; any wire-level problem is reported as ErrUnparseable.
func Decode(data []byte) (frame *BackupFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame, err = nil, errors.Wrapf(ErrUnparseable, "%v", r)
		}
	}()

	f := &BackupFrame{}
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]

		switch num {
		case 1:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Header, err = decodeHeader(sub)
			if err != nil {
				return nil, err
			}
		case 2:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Statement, err = decodeSqlStatement(sub)
			if err != nil {
				return nil, err
			}
		case 3:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Preference, err = decodeSharedPreference(sub)
			if err != nil {
				return nil, err
			}
		case 4:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Attachment, err = decodeAttachment(sub)
			if err != nil {
				return nil, err
			}
		case 5:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Version, err = decodeDatabaseVersion(sub)
			if err != nil {
				return nil, err
			}
		case 6:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			end := v != 0
			f.End = &end
		case 7:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Avatar, err = decodeAvatar(sub)
			if err != nil {
				return nil, err
			}
		case 8:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.Sticker, err = decodeSticker(sub)
			if err != nil {
				return nil, err
			}
		case 9:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			f.KeyValue, err = decodeKeyValue(sub)
			if err != nil {
				return nil, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return f, nil
}

func consumeSubmessage(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, ErrUnparseable
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, ErrUnparseable
	}
	return v, n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, ErrUnparseable
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, ErrUnparseable
	}
	return v, n, nil
}

func decodeHeader(b []byte) (*Header, error) {
	h := &Header{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			h.Iv = append([]byte(nil), v...)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			h.Salt = append([]byte(nil), v...)
			b = b[n:]
		case 3:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			version := uint32(v)
			h.Version = &version
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return h, nil
}

func decodeSqlStatement(b []byte) (*SqlStatement, error) {
	s := &SqlStatement{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			str := string(v)
			s.Statement = &str
			b = b[n:]
		case 2:
			sub, n, err := consumeSubmessage(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			p, err := decodeSqlParameter(sub)
			if err != nil {
				return nil, err
			}
			s.Parameters = append(s.Parameters, p)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return s, nil
}

func decodeSqlParameter(b []byte) (*SqlParameter, error) {
	p := &SqlParameter{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			str := string(v)
			p.StringParameter = &str
			b = b[n:]
		case 2:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			p.IntegerParameter = &v
		case 3:
			if typ != protowire.Fixed64Type {
				return nil, ErrUnparseable
			}
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
			d := protowire.DecodeFixed64Float(v)
			p.DoubleParameter = &d
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			p.BlobParameter = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodeSharedPreference(b []byte) (*SharedPreference, error) {
	p := &SharedPreference{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1, 2, 3:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			str := string(v)
			switch num {
			case 1:
				p.File = &str
			case 2:
				p.Key = &str
			case 3:
				p.Value = &str
			}
			b = b[n:]
		case 4:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			bv := v != 0
			p.IsStringSetValue = &bv
		case 5:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			p.StringSetValue = append(p.StringSetValue, string(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return p, nil
}

func decodeAttachment(b []byte) (*Attachment, error) {
	a := &Attachment{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		v, n, err := consumeVarint(b, typ)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		switch num {
		case 1:
			a.RowId = &v
		case 2:
			a.AttachmentId = &v
		case 3:
			length := uint32(v)
			a.Length = &length
		}
	}
	return a, nil
}

func decodeDatabaseVersion(b []byte) (*DatabaseVersion, error) {
	d := &DatabaseVersion{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		v, n, err := consumeVarint(b, typ)
		if err != nil {
			return nil, err
		}
		b = b[n:]
		if num == 1 {
			version := uint32(v)
			d.Version = &version
		}
	}
	return d, nil
}

func decodeAvatar(b []byte) (*Avatar, error) {
	a := &Avatar{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			str := string(v)
			a.Name = &str
			b = b[n:]
		case 2, 3:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			if num == 2 {
				length := uint32(v)
				a.Length = &length
			} else {
				a.RecipientId = &v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return a, nil
}

func decodeSticker(b []byte) (*Sticker, error) {
	s := &Sticker{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1, 3:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			if num == 1 {
				s.RowId = &v
			} else {
				length := uint32(v)
				s.Length = &length
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return s, nil
}

func decodeKeyValue(b []byte) (*KeyValue, error) {
	k := &KeyValue{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrUnparseable
		}
		b = b[n:]
		switch num {
		case 1, 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			str := string(v)
			if num == 1 {
				k.Key = &str
			} else {
				k.StringValue = &str
			}
			b = b[n:]
		case 7:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			k.BlobValue = append([]byte(nil), v...)
			b = b[n:]
		case 2:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			bv := v != 0
			k.BooleanValue = &bv
		case 3:
			if typ != protowire.Fixed32Type {
				return nil, ErrUnparseable
			}
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
			fv := protowire.DecodeFixed32Float(v)
			k.FloatValue = &fv
		case 4, 5:
			v, n, err := consumeVarint(b, typ)
			if err != nil {
				return nil, err
			}
			b = b[n:]
			iv := int64(v)
			if num == 4 {
				k.IntegerValue = &iv
			} else {
				k.LongValue = &iv
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrUnparseable
			}
			b = b[n:]
		}
	}
	return k, nil
}
