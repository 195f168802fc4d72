package backup

// KeyMaterial bundles the secrets a Session needs once the header frame's
// salt is known. Deriving this from a user passphrase is an external
// collaborator (spec.md §1 scopes it out of the core); Session only
// consumes the result.
type KeyMaterial struct {
	// CipherKey is the 32-byte AES-256 key.
	CipherKey []byte
	// MacKey authenticates frames and attachments; spec.md allows up to
	// 64 bytes.
	MacKey []byte
}

// KeyDeriver derives key material once the header frame's salt is known.
// Implementations live outside this package (see package keys for the
// concrete passphrase-based one); Session treats this purely as an
// interface.
type KeyDeriver func(salt []byte) (KeyMaterial, error)
