package backup

import (
	"encoding/binary"
	"io"

	"github.com/charsi/signalbackup-tools/frames"
)

// memSource is an in-memory ByteSource for exercising Session without
// touching a real file, mirroring FileSource's short-read-only-at-EOF
// contract.
type memSource struct {
	data []byte
	pos  int64
}

func (m *memSource) Read(n int) ([]byte, int, error) {
	if m.pos >= int64(len(m.data)) {
		return nil, 0, io.EOF
	}
	end := m.pos + int64(n)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	out := append([]byte(nil), m.data[m.pos:end]...)
	m.pos = end
	return out, len(out), nil
}

func (m *memSource) SeekAbsolute(pos int64) error {
	m.pos = pos
	return nil
}

func (m *memSource) SeekRelative(delta int64) error {
	m.pos += delta
	return nil
}

func (m *memSource) Position() int64 { return m.pos }
func (m *memSource) Size() int64     { return int64(len(m.data)) }
func (m *memSource) Eof() bool       { return m.pos >= int64(len(m.data)) }

// appendHeaderFrame writes the unencrypted bootstrap header frame.
func appendHeaderFrame(stream []byte, h *frames.Header) []byte {
	plain := frames.Encode(&frames.BackupFrame{Header: h})
	lengthPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthPrefix, uint32(len(plain)))
	return append(append(stream, lengthPrefix...), plain...)
}

// appendCipherFrame encrypts payload under counter (AES-256-CTR is its own
// inverse), tags it, and appends the length-prefixed result to stream.
func appendCipherFrame(stream []byte, keys KeyMaterial, ivSeed []byte, counter uint32, payload *frames.BackupFrame) []byte {
	plain := frames.Encode(payload)
	iv := buildIV(ivSeed, counter)
	ciphertext, err := aesCTRDecryptBlock(keys.CipherKey, iv, plain)
	if err != nil {
		panic(err)
	}
	tag := computeTag(keys.MacKey, ciphertext)
	body := append(append([]byte(nil), ciphertext...), tag...)
	lengthPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthPrefix, uint32(len(body)))
	return append(append(stream, lengthPrefix...), body...)
}

// appendRawFrame appends an already-built length-prefixed frame body,
// useful for injecting deliberately malformed bytes.
func appendRawFrame(stream []byte, length uint32, body []byte) []byte {
	lengthPrefix := make([]byte, 4)
	binary.BigEndian.PutUint32(lengthPrefix, length)
	return append(append(stream, lengthPrefix...), body...)
}

// appendAttachmentBlob encrypts and tags an attachment's plaintext under
// counter, without any length prefix (attachments are addressed purely by
// the announcing frame's declared length).
func appendAttachmentBlob(stream []byte, keys KeyMaterial, ivSeed []byte, counter uint32, plaintext []byte) []byte {
	iv := buildIV(ivSeed, counter)
	ciphertext, err := aesCTRDecryptBlock(keys.CipherKey, iv, plaintext)
	if err != nil {
		panic(err)
	}
	mac := newAttachmentMac(keys.MacKey, iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)[:macSize]
	out := append(stream, ciphertext...)
	return append(out, tag...)
}

func testKeys() KeyMaterial {
	return KeyMaterial{
		CipherKey: []byte("0123456789abcdef0123456789abcdef"[:32]),
		MacKey:    []byte("fedcba9876543210fedcba9876543210"[:32]),
	}
}

func testIVSeed(counter uint32) []byte {
	seed := make([]byte, 16)
	binary.BigEndian.PutUint32(seed[:4], counter)
	copy(seed[4:], []byte("staticrestbytes!"))
	return seed
}

func stubDeriver(keys KeyMaterial) KeyDeriver {
	return func(salt []byte) (KeyMaterial, error) { return keys, nil }
}
