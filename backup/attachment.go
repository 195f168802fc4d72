package backup

import (
	"crypto/cipher"
	"crypto/hmac"
	"io"
)

// attachmentBufferSize is the streaming chunk size used when decrypting an
// attachment tail, matching the teacher's ATTACHMENT_BUFFER_SIZE: large
// enough to amortise syscalls, small enough that a multi-gigabyte
// attachment never needs to be buffered whole.
const attachmentBufferSize = 8192

// AttachmentDescriptor is a lazy handle to a trailing ciphertext blob: byte
// offset, size, and the IV/key material needed to decrypt it later. It
// exclusively owns its copies of the IV and keys (spec.md §9 "Lazy
// attachments") so it can outlive the Session that produced it without
// aliasing mutable session state; the consumer that decrypts it later opens
// its own read window on the same file via Decrypt.
type AttachmentDescriptor struct {
	offset    int64
	size      uint32
	iv        []byte
	cipherKey []byte
	macKey    []byte
}

// Offset is the absolute byte position of the first ciphertext byte.
func (d *AttachmentDescriptor) Offset() int64 { return d.offset }

// Size is the declared plaintext/ciphertext length (CTR mode: they match).
func (d *AttachmentDescriptor) Size() uint32 { return d.size }

// Decrypt streams the attachment's ciphertext from src, starting at
// d.Offset(), through AES-256-CTR into out, verifying the trailing MAC
// before returning. It seeks src to d.Offset() on entry and leaves it
// positioned just past the trailing MAC on success.
func (d *AttachmentDescriptor) Decrypt(src ByteSource, out io.Writer) error {
	if err := src.SeekAbsolute(d.offset); err != nil {
		return wrapIo(err, "seeking to attachment offset")
	}

	mac := newAttachmentMac(d.macKey, d.iv)

	return decryptCTR(d.cipherKey, d.iv, func(stream cipher.Stream) error {
		remaining := d.size
		buf := make([]byte, attachmentBufferSize)
		plain := make([]byte, attachmentBufferSize)
		for remaining > 0 {
			chunk := uint32(len(buf))
			if remaining < chunk {
				chunk = remaining
			}
			data, read, err := src.Read(int(chunk))
			if err != nil {
				return wrapIo(err, "reading attachment chunk")
			}
			if uint32(read) < chunk {
				return &TruncatedError{Want: int(chunk), Got: read}
			}
			mac.Write(data)
			stream.XORKeyStream(plain[:chunk], data)
			if _, err := out.Write(plain[:chunk]); err != nil {
				return wrapIo(err, "writing decrypted attachment chunk")
			}
			remaining -= chunk
		}

		theirTag, read, err := src.Read(macSize)
		if err != nil {
			return wrapIo(err, "reading attachment trailing MAC")
		}
		if read < macSize {
			return &TruncatedError{Want: macSize, Got: read}
		}
		ourTag := mac.Sum(nil)[:macSize]
		if !hmac.Equal(ourTag, theirTag) {
			return &BadMacError{Want: ourTag, Got: theirTag}
		}
		return nil
	})
}
