package backup

import (
	"crypto/hmac"
	"encoding/binary"

	"github.com/charsi/signalbackup-tools/frames"
)

// maxResyncAttempts bounds Strategy A's brute-force search, per spec.md
// §4.5, so a hostile or wildly corrupt stream cannot spin the reader
// forever.
const maxResyncAttempts = 1000000

// MacCatalogueEntry is one (position, tag) pair recorded by
// ResyncMacCatalogue.
type MacCatalogueEntry struct {
	// Position is the absolute offset of the catalogued frame's length
	// prefix.
	Position int64
	// Tag is the verified truncated HMAC trailing that frame.
	Tag []byte
}

// ResyncCounterDrift implements spec.md §4.5 Strategy A: the reader is at a
// file offset known to hold a length-prefixed, MAC-verified frame (either
// because a caller rewound the source there after an InvalidFrame, or
// because next() just returned one and the source hasn't moved past it
// yet), but the session's counter no longer matches the producer's counter
// at that position. ResyncCounterDrift re-reads the frame at the source's
// current position and tries successive counter offsets, starting from the
// session's current counter, until one decrypts to a frame that validates
// and is neither a Header nor a premature End.
//
// maxAttempts caps the search; a non-positive value is replaced by
// maxResyncAttempts. On success it returns the winning 1-indexed offset k,
// the recovered frame (with its attachment, if any, already streamed over),
// and advances the session's counter and frame_number by k, leaving the
// session ready for the next ordinary Next() call. On exhaustion it
// terminates the session and returns ResyncFailedError.
func (s *Session) ResyncCounterDrift(maxAttempts int) (uint32, *Frame, error) {
	if maxAttempts <= 0 {
		maxAttempts = maxResyncAttempts
	}
	s.state = StateResyncing

	pos := s.src.Position()

	lengthBytes, read, err := s.src.Read(4)
	if err != nil {
		s.state = StateTerminated
		return 0, nil, wrapIo(err, "resync: reading frame length prefix")
	}
	if read < 4 {
		s.state = StateTerminated
		return 0, nil, &TruncatedError{Want: 4, Got: read}
	}

	length := binary.BigEndian.Uint32(lengthBytes)
	if length < MinFrameLength || length > MaxFrameLength {
		s.state = StateTerminated
		return 0, nil, &MalformedLengthError{Length: length}
	}

	buf, read, err := s.src.Read(int(length))
	if err != nil {
		s.state = StateTerminated
		return 0, nil, wrapIo(err, "resync: reading frame body")
	}
	if uint32(read) < length {
		s.state = StateTerminated
		return 0, nil, &TruncatedError{Want: int(length), Got: read}
	}

	cipherLen := int(length) - macSize
	ciphertext := buf[:cipherLen]
	theirTag := buf[cipherLen:]

	if !verifyTag(s.keys.MacKey, ciphertext, theirTag) {
		s.state = StateTerminated
		return 0, nil, &BadMacError{Want: computeTag(s.keys.MacKey, ciphertext), Got: theirTag}
	}

	baseCounter := s.counter
	baseFrameNumber := s.frameNumber

	for i := 0; i < maxAttempts; i++ {
		candidate := baseCounter + uint32(i)
		iv := buildIV(s.ivSeed, candidate)

		plain, err := aesCTRDecryptBlock(s.keys.CipherKey, iv, ciphertext)
		if err != nil {
			continue
		}
		payload, decodeErr := frames.Decode(plain)
		if decodeErr != nil {
			continue
		}
		if err := payload.Validate(); err != nil {
			continue
		}
		if payload.FrameType() == frames.FrameHeader {
			continue
		}
		if payload.FrameType() == frames.FrameEnd && !s.src.Eof() {
			continue
		}

		k := uint32(i) + 1
		s.counter = baseCounter + k
		s.frameNumber = baseFrameNumber + uint64(k)
		s.badMac = false

		frame := &Frame{
			Number:   baseFrameNumber,
			Position: pos,
			Length:   length,
			Payload:  payload,
		}
		if err := s.attachTrailingBlob(frame, payload); err != nil {
			s.state = StateTerminated
			return k, nil, err
		}

		s.state = StateStreaming
		return k, frame, nil
	}

	s.state = StateTerminated
	return 0, nil, &ResyncFailedError{Attempts: maxAttempts}
}

// ResyncMacCatalogue implements spec.md §4.5 Strategy B: it walks forward
// from the source's current position as long as successive length-prefixed
// frames keep presenting a MAC that verifies, recording each (position,
// tag) pair, and stops at the first position whose tag does not verify or
// whose length prefix is malformed (the point where the good run ends) or
// at maxAttempts frames, whichever comes first. It restores the source's
// original position before returning, so it never disturbs a session that
// is still trying other recovery paths.
//
// If knownGoodTag is non-nil, the returned slice is filtered to only the
// catalogue entries whose tag equals it — candidate restart offsets, none
// chosen automatically; the caller decides which (if any) to rewind to and
// resume from. A nil knownGoodTag returns the whole catalogue.
func (s *Session) ResyncMacCatalogue(knownGoodTag []byte, maxAttempts int) ([]MacCatalogueEntry, error) {
	if maxAttempts <= 0 {
		maxAttempts = maxResyncAttempts
	}

	startPos := s.src.Position()
	defer s.src.SeekAbsolute(startPos)

	var catalogue []MacCatalogueEntry
	for attempts := 0; attempts < maxAttempts; attempts++ {
		if s.src.Eof() {
			break
		}

		pos := s.src.Position()
		lengthBytes, read, err := s.src.Read(4)
		if err != nil || read < 4 {
			break
		}
		length := binary.BigEndian.Uint32(lengthBytes)
		if length < MinFrameLength || length > MaxFrameLength {
			break
		}
		buf, read, err := s.src.Read(int(length))
		if err != nil || uint32(read) < length {
			break
		}

		cipherLen := int(length) - macSize
		ciphertext := buf[:cipherLen]
		tag := buf[cipherLen:]
		if !verifyTag(s.keys.MacKey, ciphertext, tag) {
			break
		}

		catalogue = append(catalogue, MacCatalogueEntry{
			Position: pos,
			Tag:      append([]byte(nil), tag...),
		})
	}

	if knownGoodTag == nil {
		return catalogue, nil
	}

	var matches []MacCatalogueEntry
	for _, entry := range catalogue {
		if hmac.Equal(entry.Tag, knownGoodTag) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}
