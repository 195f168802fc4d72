package backup

import (
	"fmt"

	"github.com/pkg/errors"
)

// MaxFrameLength is the largest frame length prefix spec.md §6 accepts.
const MaxFrameLength = 110 * 1024 * 1024

// MinFrameLength is the smallest frame length prefix spec.md §6 accepts:
// 10 bytes of MAC plus at least one byte of ciphertext.
const MinFrameLength = 11

// TruncatedError reports a short read inside a frame or attachment. It is
// always fatal: the stream position is no longer trustworthy.
type TruncatedError struct {
	Want, Got int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("backup: truncated read, wanted %d bytes, got %d", e.Want, e.Got)
}

// MalformedLengthError reports a frame-length prefix outside
// [MinFrameLength, MaxFrameLength].
type MalformedLengthError struct {
	Length uint32
}

func (e *MalformedLengthError) Error() string {
	return fmt.Sprintf("backup: malformed frame length %d", e.Length)
}

// BadMacError reports an HMAC mismatch. Whether it is fatal depends on the
// session's stop-on-error setting; see Session.Next.
type BadMacError struct {
	Want, Got []byte
}

func (e *BadMacError) Error() string {
	return fmt.Sprintf("backup: bad MAC, want %x got %x", e.Want, e.Got)
}

// ResyncFailedError reports a resync probe that exhausted its attempt
// budget without finding a valid frame.
type ResyncFailedError struct {
	Attempts int
}

func (e *ResyncFailedError) Error() string {
	return fmt.Sprintf("backup: resync failed after %d attempts", e.Attempts)
}

// wrapIo annotates an underlying ByteSource error with the step that was
// attempting it, the way types/backup.go wraps every os/io failure with
// errors.Wrap instead of returning it bare.
func wrapIo(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// wrapCrypto annotates an underlying cipher failure the same way.
func wrapCrypto(err error, msg string) error {
	return errors.Wrap(err, msg)
}
