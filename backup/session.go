// Package backup implements the frame reader/decryptor core of an
// encrypted messenger backup: the state machine that parses the
// length-prefixed, HMAC-authenticated, AES-256-CTR-encrypted container
// format, streams over trailing attachment blobs, and resynchronises the
// counter after corruption.
package backup

import (
	"encoding/binary"
	"io"
	"log"

	"github.com/charsi/signalbackup-tools/frames"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// State is one of the FrameReader states from spec.md §4.4's state
// machine.
type State int

const (
	StateAwaitingHeader State = iota
	StateStreaming
	StateAttachmentPending
	StateResyncing
	StateTerminated
)

// Option configures a Session at Open time.
type Option func(*Session)

// WithStopOnError makes Session.Next return a fatal error on the first bad
// MAC instead of latching bad_mac and continuing.
func WithStopOnError(stop bool) Option {
	return func(s *Session) { s.stopOnError = stop }
}

// WithAssumeBadSize tells the session to tolerate a declared attachment
// size that runs past the end of the file, yielding the frame with its
// descriptor anyway instead of failing with Truncated.
func WithAssumeBadSize(assume bool) Option {
	return func(s *Session) { s.assumeBadSize = assume }
}

// WithVerboseLog enables per-frame diagnostic logging to the standard
// logger, mirroring the teacher's `verbose` CLI flag.
func WithVerboseLog(verbose bool) Option {
	return func(s *Session) { s.verbose = verbose }
}

// Session is one open backup: its keys, counters, source position, and the
// small set of latches spec.md §3 calls "Session state". A session owns its
// ByteSource exclusively; nothing here is safe to share across goroutines
// (spec.md §5).
type Session struct {
	id uuid.UUID

	src  ByteSource
	keys KeyMaterial
	// ivSeed is the header's 16-byte IV template; only its first four
	// bytes are ever replaced, with the current counter.
	ivSeed []byte

	counter     uint32
	frameNumber uint64

	badMac        bool
	stopOnError   bool
	assumeBadSize bool
	verbose       bool

	state         State
	pendingHeader *Frame
}

// Open bootstraps a session: reads the unencrypted header frame (spec.md
// §4.4 "Bootstrap"), asks deriveKeys for cipher/MAC keys now that the
// header's salt is known, and initialises the counter from the header's IV
// seed. The header frame itself is queued and handed back by the first call
// to Next.
func Open(src ByteSource, deriveKeys KeyDeriver, opts ...Option) (*Session, error) {
	s := &Session{
		id:    uuid.New(),
		src:   src,
		state: StateAwaitingHeader,
	}
	for _, opt := range opts {
		opt(s)
	}

	lengthBytes, read, err := src.Read(4)
	if err != nil {
		return nil, wrapIo(err, "reading header length prefix")
	}
	if read < 4 {
		return nil, &TruncatedError{Want: 4, Got: read}
	}
	headerLength := binary.BigEndian.Uint32(lengthBytes)

	plaintext, read, err := src.Read(int(headerLength))
	if err != nil {
		return nil, wrapIo(err, "reading header frame")
	}
	if uint32(read) < headerLength {
		return nil, &TruncatedError{Want: int(headerLength), Got: read}
	}

	payload, err := frames.Decode(plaintext)
	if err != nil {
		return nil, err
	}
	if payload.FrameType() != frames.FrameHeader {
		return nil, wrapCrypto(errNotAHeader, "validating bootstrap frame")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	header := payload.GetHeader()
	keys, err := deriveKeys(header.GetSalt())
	if err != nil {
		return nil, errors.Wrap(err, "deriving keys from header salt")
	}

	s.keys = keys
	s.ivSeed = append([]byte(nil), header.GetIv()...)
	s.counter = binary.BigEndian.Uint32(s.ivSeed[:4])
	s.pendingHeader = &Frame{
		Number:  0,
		Length:  headerLength,
		Payload: payload,
	}

	if s.verbose {
		log.Printf("backup[%s]: opened, counter=%d", s.id, s.counter)
	}

	return s, nil
}

// ID is the session's opaque identifier, useful for telling concurrent
// sessions' log lines apart.
func (s *Session) ID() uuid.UUID { return s.id }

// State reports the current FrameReader state.
func (s *Session) State() State { return s.state }

// Counter is the current AES-CTR counter value.
func (s *Session) Counter() uint32 { return s.counter }

// FrameNumber is the purely-informational frame counter.
func (s *Session) FrameNumber() uint64 { return s.frameNumber }

// BadMac reports whether the most recently read frame's MAC verification
// failed.
func (s *Session) BadMac() bool { return s.badMac }

// Keys exposes the session's key material, e.g. for a caller building an
// AttachmentDescriptor of its own during a resync probe.
func (s *Session) Keys() KeyMaterial { return s.keys }

// Source exposes the session's ByteSource, so a caller decrypting an
// AttachmentDescriptor returned by Next can seek the same underlying file
// rather than opening a second handle to it.
func (s *Session) Source() ByteSource { return s.src }

// IVSeed returns a copy of the 16-byte IV template.
func (s *Session) IVSeed() []byte { return append([]byte(nil), s.ivSeed...) }

// Next implements the FrameReader public contract of spec.md §4.4.
func (s *Session) Next() (*Frame, error) {
	if s.pendingHeader != nil {
		f := s.pendingHeader
		s.pendingHeader = nil
		s.state = StateStreaming
		return f, nil
	}

	if s.state == StateTerminated {
		return nil, ErrEndOfStream
	}

	if s.src.Eof() {
		s.state = StateTerminated
		return nil, ErrEndOfStream
	}

	pos := s.src.Position()

	lengthBytes, read, err := s.src.Read(4)
	if err == io.EOF {
		s.state = StateTerminated
		if s.verbose {
			log.Printf("backup[%s]: EOF reading length prefix at %d", s.id, pos)
		}
		return nil, ErrEndOfStream
	}
	if err != nil {
		s.state = StateTerminated
		return nil, wrapIo(err, "reading frame length prefix")
	}
	if read < 4 {
		s.state = StateTerminated
		return nil, &TruncatedError{Want: 4, Got: read}
	}

	length := binary.BigEndian.Uint32(lengthBytes)
	if length < MinFrameLength || length > MaxFrameLength {
		return nil, &MalformedLengthError{Length: length}
	}

	buf, read, err := s.src.Read(int(length))
	if err != nil {
		s.state = StateTerminated
		return nil, wrapIo(err, "reading frame body")
	}
	if uint32(read) < length {
		s.state = StateTerminated
		return nil, &TruncatedError{Want: int(length), Got: read}
	}

	cipherLen := int(length) - macSize
	ciphertext := buf[:cipherLen]
	theirTag := buf[cipherLen:]

	if verifyTag(s.keys.MacKey, ciphertext, theirTag) {
		s.badMac = false
	} else {
		s.badMac = true
		if s.verbose {
			log.Printf("backup[%s]: bad MAC at %d: want %x got %x", s.id, pos, computeTag(s.keys.MacKey, ciphertext), theirTag)
		}
		if s.stopOnError {
			s.state = StateTerminated
			return nil, &BadMacError{Want: computeTag(s.keys.MacKey, ciphertext), Got: theirTag}
		}
	}

	iv := buildIV(s.ivSeed, s.counter)
	s.counter++

	plain, err := aesCTRDecryptBlock(s.keys.CipherKey, iv, ciphertext)
	if err != nil {
		s.state = StateTerminated
		return nil, err
	}

	number := s.frameNumber
	s.frameNumber++

	payload, decodeErr := frames.Decode(plain)
	var validateErr error
	if decodeErr == nil {
		validateErr = payload.Validate()
	}

	frame := &Frame{
		Number:   number,
		Position: pos,
		Length:   length,
		Payload:  payload,
		BadMac:   s.badMac,
	}

	if decodeErr != nil || validateErr != nil {
		if s.badMac {
			s.state = StateTerminated
			return nil, &BadMacError{Want: computeTag(s.keys.MacKey, ciphertext), Got: theirTag}
		}
		frame.Invalid = true
		if s.verbose {
			log.Printf("backup[%s]: invalid frame at %d (frame_number=%d)", s.id, pos, number)
		}
		return frame, nil
	}

	if !s.badMac {
		if err := s.attachTrailingBlob(frame, payload); err != nil {
			s.state = StateTerminated
			return nil, err
		}
	}

	s.state = StateStreaming
	return frame, nil
}

// attachTrailingBlob builds an AttachmentDescriptor and streams over the
// attachment's ciphertext when payload announces one, per spec.md §4.4 step
// 9. It advances s.counter (the descriptor's IV uses its own counter value,
// distinct from the frame that announced it) and s.src's position, but
// leaves frame/session state otherwise untouched so Next and the resync
// strategies can share it.
func (s *Session) attachTrailingBlob(frame *Frame, payload *frames.BackupFrame) error {
	attSize := payload.AttachmentSize()
	if attSize == 0 || !isAttachmentBearing(payload.FrameType()) {
		return nil
	}

	if s.src.Position()+int64(attSize)+macSize > s.src.Size() && !s.assumeBadSize {
		return &TruncatedError{
			Want: int(attSize) + macSize,
			Got:  int(s.src.Size() - s.src.Position()),
		}
	}

	attIV := buildIV(s.ivSeed, s.counter)
	s.counter++

	frame.Attachment = &AttachmentDescriptor{
		offset:    s.src.Position(),
		size:      attSize,
		iv:        attIV,
		cipherKey: append([]byte(nil), s.keys.CipherKey...),
		macKey:    append([]byte(nil), s.keys.MacKey...),
	}

	if err := s.src.SeekRelative(int64(attSize) + macSize); err != nil {
		return wrapIo(err, "seeking past trailing attachment blob")
	}
	return nil
}

func isAttachmentBearing(t frames.FrameType) bool {
	switch t {
	case frames.FrameAttachment, frames.FrameAvatar, frames.FrameSticker:
		return true
	default:
		return false
	}
}

var errNotAHeader = errNotAHeaderType{}

type errNotAHeaderType struct{}

func (errNotAHeaderType) Error() string { return "backup: first frame is not a header frame" }
