package frames

import "google.golang.org/protobuf/encoding/protowire"

// Encode serialises a BackupFrame back into the tagged wire format Decode
// reads. It only needs to round-trip what this package's decoder
// understands, so it exists for the canonical stream builder in package
// backup's tests, not as a general-purpose encoder.
func Encode(f *BackupFrame) []byte {
	var b []byte
	if f.Header != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeHeader(f.Header))
	}
	if f.Statement != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSqlStatement(f.Statement))
	}
	if f.Preference != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSharedPreference(f.Preference))
	}
	if f.Attachment != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAttachment(f.Attachment))
	}
	if f.Version != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeDatabaseVersion(f.Version))
	}
	if f.End != nil {
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		if *f.End {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	}
	if f.Avatar != nil {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAvatar(f.Avatar))
	}
	if f.Sticker != nil {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSticker(f.Sticker))
	}
	if f.KeyValue != nil {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeKeyValue(f.KeyValue))
	}
	return b
}

func encodeHeader(h *Header) []byte {
	var b []byte
	if h.Iv != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Iv)
	}
	if h.Salt != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Salt)
	}
	if h.Version != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*h.Version))
	}
	return b
}

func encodeSqlStatement(s *SqlStatement) []byte {
	var b []byte
	if s.Statement != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*s.Statement))
	}
	for _, p := range s.Parameters {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeSqlParameter(p))
	}
	return b
}

func encodeSqlParameter(p *SqlParameter) []byte {
	var b []byte
	if p.StringParameter != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*p.StringParameter))
	}
	if p.IntegerParameter != nil {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, *p.IntegerParameter)
	}
	if p.DoubleParameter != nil {
		b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, protowire.EncodeFixed64Float(*p.DoubleParameter))
	}
	if p.BlobParameter != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, p.BlobParameter)
	}
	return b
}

func encodeSharedPreference(p *SharedPreference) []byte {
	var b []byte
	if p.File != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*p.File))
	}
	if p.Key != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*p.Key))
	}
	if p.Value != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*p.Value))
	}
	if p.IsStringSetValue != nil {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		if *p.IsStringSetValue {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	}
	for _, v := range p.StringSetValue {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(v))
	}
	return b
}

func encodeAttachment(a *Attachment) []byte {
	var b []byte
	if a.RowId != nil {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, *a.RowId)
	}
	if a.AttachmentId != nil {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, *a.AttachmentId)
	}
	if a.Length != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*a.Length))
	}
	return b
}

func encodeDatabaseVersion(d *DatabaseVersion) []byte {
	var b []byte
	if d.Version != nil {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*d.Version))
	}
	return b
}

func encodeAvatar(a *Avatar) []byte {
	var b []byte
	if a.Name != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*a.Name))
	}
	if a.Length != nil {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*a.Length))
	}
	if a.RecipientId != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, *a.RecipientId)
	}
	return b
}

func encodeSticker(s *Sticker) []byte {
	var b []byte
	if s.RowId != nil {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, *s.RowId)
	}
	if s.Length != nil {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*s.Length))
	}
	return b
}

func encodeKeyValue(k *KeyValue) []byte {
	var b []byte
	if k.Key != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*k.Key))
	}
	if k.BooleanValue != nil {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		if *k.BooleanValue {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	}
	if k.FloatValue != nil {
		b = protowire.AppendTag(b, 3, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, protowire.EncodeFixed32Float(*k.FloatValue))
	}
	if k.IntegerValue != nil {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*k.IntegerValue))
	}
	if k.LongValue != nil {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*k.LongValue))
	}
	if k.StringValue != nil {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(*k.StringValue))
	}
	if k.BlobValue != nil {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, k.BlobValue)
	}
	return b
}
