package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
)

// macSize is the length of the truncated HMAC-SHA256 tag trailing every
// authenticated frame and attachment.
const macSize = 10

// computeTag returns the truncated HMAC-SHA256 of data under key.
func computeTag(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)[:macSize]
}

// verifyTag reports whether tag authenticates data under key, using
// hmac.Equal's constant-time comparison (crypto/subtle under the hood) so
// that no early exit on the first differing byte leaks timing information,
// per spec.md §4.2.
func verifyTag(key, data, tag []byte) bool {
	return hmac.Equal(computeTag(key, data), tag)
}

// buildIV replaces the first four bytes of seed with counter, big-endian,
// per spec.md §3's invariant. seed is never mutated; buildIV returns a
// fresh 16-byte slice so the caller (and any AttachmentDescriptor that
// squirrels the result away) owns an independent copy.
func buildIV(seed []byte, counter uint32) []byte {
	iv := make([]byte, len(seed))
	copy(iv, seed)
	binary.BigEndian.PutUint32(iv[:4], counter)
	return iv
}

// decryptCTR runs fn against an AES-256-CTR keystream derived from key and
// iv, guaranteeing the cipher context is never reused past this call
// regardless of how fn returns. This is the "scoped cipher context" design
// note from spec.md §9: acquisition and teardown happen in the same stack
// frame, on every exit path including panics propagating past fn.
func decryptCTR(key, iv []byte, fn func(stream cipher.Stream) error) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return wrapCrypto(err, "initialising AES cipher")
	}
	stream := cipher.NewCTR(block, iv)
	defer func() { stream = nil }()
	if err := fn(stream); err != nil {
		return err
	}
	return nil
}

// aesCTRDecryptBlock decrypts ciphertext in one shot; output length always
// equals input length since CTR mode has no padding.
func aesCTRDecryptBlock(key, iv, ciphertext []byte) ([]byte, error) {
	plain := make([]byte, len(ciphertext))
	err := decryptCTR(key, iv, func(stream cipher.Stream) error {
		stream.XORKeyStream(plain, ciphertext)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// newAttachmentMac starts the running HMAC an attachment's trailing tag is
// checked against: primed with the IV, then every ciphertext chunk as it
// streams past, matching the teacher's DecryptAttachment.
func newAttachmentMac(key, iv []byte) hash.Hash {
	h := hmac.New(sha256.New, key)
	h.Write(iv)
	return h
}
