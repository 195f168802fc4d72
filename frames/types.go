// Package frames defines the payload schema carried inside a backup frame
// and decodes it from the protobuf-tagged plaintext a Frame decrypts to.
//
// There is no .proto source checked into this tree: the backup format is a
// closed, small set of messages, and the schema below is expressed directly
// as hand-written structs decoded with google.golang.org/protobuf's wire
// primitives rather than protoc-gen-go output. See DESIGN.md for why.
package frames

// FrameType identifies which of the BackupFrame oneof-style fields is set.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameHeader
	FrameStatement
	FramePreference
	FrameAttachment
	FrameVersion
	FrameEnd
	FrameAvatar
	FrameSticker
	FrameKeyValue
)

func (t FrameType) String() string {
	switch t {
	case FrameHeader:
		return "header"
	case FrameStatement:
		return "statement"
	case FramePreference:
		return "preference"
	case FrameAttachment:
		return "attachment"
	case FrameVersion:
		return "version"
	case FrameEnd:
		return "end"
	case FrameAvatar:
		return "avatar"
	case FrameSticker:
		return "sticker"
	case FrameKeyValue:
		return "keyvalue"
	default:
		return "unknown"
	}
}

// Header carries the salt and IV seed a backup is encrypted with. It is the
// only frame ever read without authentication or decryption.
type Header struct {
	Iv      []byte
	Salt    []byte
	Version *uint32
}

func (h *Header) GetIv() []byte {
	if h == nil {
		return nil
	}
	return h.Iv
}

func (h *Header) GetSalt() []byte {
	if h == nil {
		return nil
	}
	return h.Salt
}

func (h *Header) GetVersion() uint32 {
	if h == nil || h.Version == nil {
		return 0
	}
	return *h.Version
}

// SqlParameter is a single bound value of a SqlStatement.
type SqlParameter struct {
	StringParameter  *string
	IntegerParameter *uint64
	DoubleParameter  *float64
	BlobParameter    []byte
}

func (p *SqlParameter) GetStringParameter() string {
	if p == nil || p.StringParameter == nil {
		return ""
	}
	return *p.StringParameter
}

func (p *SqlParameter) GetIntegerParameter() uint64 {
	if p == nil || p.IntegerParameter == nil {
		return 0
	}
	return *p.IntegerParameter
}

func (p *SqlParameter) GetDoubleParameter() float64 {
	if p == nil || p.DoubleParameter == nil {
		return 0
	}
	return *p.DoubleParameter
}

func (p *SqlParameter) GetBlobParameter() []byte {
	if p == nil {
		return nil
	}
	return p.BlobParameter
}

// SqlStatement replays one statement (DDL or DML) against the recovered
// database.
type SqlStatement struct {
	Statement  *string
	Parameters []*SqlParameter
}

func (s *SqlStatement) GetStatement() string {
	if s == nil || s.Statement == nil {
		return ""
	}
	return *s.Statement
}

func (s *SqlStatement) GetParameters() []*SqlParameter {
	if s == nil {
		return nil
	}
	return s.Parameters
}

// SharedPreference is a single key/value entry from the app's preference
// store.
type SharedPreference struct {
	File             *string
	Key              *string
	Value            *string
	IsStringSetValue *bool
	StringSetValue   []string
}

func (p *SharedPreference) GetFile() string {
	if p == nil || p.File == nil {
		return ""
	}
	return *p.File
}

func (p *SharedPreference) GetKey() string {
	if p == nil || p.Key == nil {
		return ""
	}
	return *p.Key
}

func (p *SharedPreference) GetValue() string {
	if p == nil || p.Value == nil {
		return ""
	}
	return *p.Value
}

// Attachment announces a trailing ciphertext blob belonging to a message.
type Attachment struct {
	RowId        *uint64
	AttachmentId *uint64
	Length       *uint32
}

func (a *Attachment) GetRowId() uint64 {
	if a == nil || a.RowId == nil {
		return 0
	}
	return *a.RowId
}

func (a *Attachment) GetLength() uint32 {
	if a == nil || a.Length == nil {
		return 0
	}
	return *a.Length
}

// DatabaseVersion records the schema version of the exported database.
type DatabaseVersion struct {
	Version *uint32
}

func (v *DatabaseVersion) GetVersion() uint32 {
	if v == nil || v.Version == nil {
		return 0
	}
	return *v.Version
}

// Avatar announces a trailing ciphertext blob holding a contact's avatar
// image.
type Avatar struct {
	Name        *string
	Length      *uint32
	RecipientId *uint64
}

func (a *Avatar) GetName() string {
	if a == nil || a.Name == nil {
		return ""
	}
	return *a.Name
}

func (a *Avatar) GetLength() uint32 {
	if a == nil || a.Length == nil {
		return 0
	}
	return *a.Length
}

// Sticker announces a trailing ciphertext blob holding a sticker image.
type Sticker struct {
	RowId  *uint64
	Length *uint32
}

func (s *Sticker) GetRowId() uint64 {
	if s == nil || s.RowId == nil {
		return 0
	}
	return *s.RowId
}

func (s *Sticker) GetLength() uint32 {
	if s == nil || s.Length == nil {
		return 0
	}
	return *s.Length
}

// KeyValue is a single entry of the app's generic key-value store.
type KeyValue struct {
	Key          *string
	BooleanValue *bool
	FloatValue   *float32
	IntegerValue *int64
	LongValue    *int64
	StringValue  *string
	BlobValue    []byte
}

func (k *KeyValue) GetKey() string {
	if k == nil || k.Key == nil {
		return ""
	}
	return *k.Key
}

// BackupFrame is the top-level, oneof-style tagged message every frame
// decrypts to. Exactly one of the pointer fields (or End) is set for any
// frame read past bootstrap.
type BackupFrame struct {
	Header     *Header
	Statement  *SqlStatement
	Preference *SharedPreference
	Attachment *Attachment
	Version    *DatabaseVersion
	End        *bool
	Avatar     *Avatar
	Sticker    *Sticker
	KeyValue   *KeyValue
}

func (f *BackupFrame) GetHeader() *Header {
	if f == nil {
		return nil
	}
	return f.Header
}

func (f *BackupFrame) GetStatement() *SqlStatement {
	if f == nil {
		return nil
	}
	return f.Statement
}

func (f *BackupFrame) GetPreference() *SharedPreference {
	if f == nil {
		return nil
	}
	return f.Preference
}

func (f *BackupFrame) GetAttachment() *Attachment {
	if f == nil {
		return nil
	}
	return f.Attachment
}

func (f *BackupFrame) GetVersion() *DatabaseVersion {
	if f == nil {
		return nil
	}
	return f.Version
}

func (f *BackupFrame) GetAvatar() *Avatar {
	if f == nil {
		return nil
	}
	return f.Avatar
}

func (f *BackupFrame) GetSticker() *Sticker {
	if f == nil {
		return nil
	}
	return f.Sticker
}

func (f *BackupFrame) GetKeyValue() *KeyValue {
	if f == nil {
		return nil
	}
	return f.KeyValue
}

func (f *BackupFrame) GetEnd() bool {
	if f == nil || f.End == nil {
		return false
	}
	return *f.End
}

// FrameType reports which variant is populated. Exactly one is expected;
// when more than one is set (malformed input) the lowest field number wins,
// mirroring the union semantics of the wire format.
func (f *BackupFrame) FrameType() FrameType {
	switch {
	case f == nil:
		return FrameUnknown
	case f.Header != nil:
		return FrameHeader
	case f.Statement != nil:
		return FrameStatement
	case f.Preference != nil:
		return FramePreference
	case f.Attachment != nil:
		return FrameAttachment
	case f.Version != nil:
		return FrameVersion
	case f.End != nil:
		return FrameEnd
	case f.Avatar != nil:
		return FrameAvatar
	case f.Sticker != nil:
		return FrameSticker
	case f.KeyValue != nil:
		return FrameKeyValue
	default:
		return FrameUnknown
	}
}

// AttachmentSize is non-zero only for the three variants that carry a
// trailing ciphertext blob.
func (f *BackupFrame) AttachmentSize() uint32 {
	switch {
	case f == nil:
		return 0
	case f.Attachment != nil:
		return f.Attachment.GetLength()
	case f.Avatar != nil:
		return f.Avatar.GetLength()
	case f.Sticker != nil:
		return f.Sticker.GetLength()
	default:
		return 0
	}
}
