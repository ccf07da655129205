package crypto

import (
	"crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey stretches a passphrase into a 32-byte AES key with
// PBKDF2-HMAC-SHA512. The iteration count is fixed; envelopes record it so
// a future bump can coexist with old ciphertext.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, Iterations, KeyLen, sha512.New)
}
