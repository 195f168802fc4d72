// Package keys derives the cipher and MAC keys a backup.Session needs from
// a user-supplied passphrase, once the header frame's salt is known. This
// is the external collaborator backup.KeyDeriver defers to: spec.md §1
// scopes key derivation out of the core reader, but every real backup needs
// one, so this package supplies the teacher's own scheme.
package keys

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/charsi/signalbackup-tools/backup"
)

// stretchRounds is the number of SHA-512 iterations the passphrase is put
// through before HKDF expansion, matching the teacher's backupKey.
const stretchRounds = 250000

// hkdfInfo is the fixed HKDF info string both this implementation and the
// teacher use; it is not a secret, just a domain separator.
const hkdfInfo = "Backup Export"

// FromPassphrase returns a backup.KeyDeriver that stretches passphrase with
// an iterated SHA-512 hash (stretchRounds rounds, salted with the backup's
// header salt) and expands the result via HKDF-SHA256 into a 32-byte AES
// key and a 32-byte MAC key.
//
// Leading and trailing whitespace and every space character inside
// passphrase are stripped before stretching, matching the
// teacher's handling of Signal's space-grouped passphrase display format
// ("1234 5678 ...").
func FromPassphrase(passphrase string) backup.KeyDeriver {
	return func(salt []byte) (backup.KeyMaterial, error) {
		stretched := stretch(passphrase, salt)
		okm, err := expand(stretched, []byte(hkdfInfo))
		if err != nil {
			return backup.KeyMaterial{}, errors.Wrap(err, "failed to derive keys")
		}
		return backup.KeyMaterial{
			CipherKey: okm[:32],
			MacKey:    okm[32:],
		}, nil
	}
}

func stretch(passphrase string, salt []byte) []byte {
	digest := crypto.SHA512.New()
	input := []byte(strings.Replace(strings.TrimSpace(passphrase), " ", "", -1))
	hash := input

	if salt != nil {
		digest.Write(salt)
	}

	for i := 0; i < stretchRounds; i++ {
		digest.Write(hash)
		digest.Write(input)
		hash = digest.Sum(nil)
		digest.Reset()
	}

	return hash[:32]
}

func expand(input, info []byte) ([]byte, error) {
	sha := crypto.SHA256.New
	salt := make([]byte, sha().Size())
	okm := make([]byte, 64)

	kdf := hkdf.New(sha, input, salt, info)
	if _, err := io.ReadFull(kdf, okm); err != nil {
		return nil, err
	}
	return okm, nil
}
