package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

const (
	// Version is the only envelope version currently written or accepted.
	Version = "v1"

	// KDFLegacy marks values encrypted directly under a passphrase-derived
	// key (pre-master-key scheme). KDFMaster marks values encrypted under
	// the raw 32-byte workspace master key.
	KDFLegacy = "pbkdf2-sha512"
	KDFMaster = "master"

	KeyLen     = 32
	SaltLen    = 16
	IVLen      = 12
	Iterations = 600_000

	prefix = "enc:"
)

var (
	ErrMalformedEnvelope    = errors.New("crypto: malformed envelope")
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	ErrInvalidKeyLength     = errors.New("crypto: invalid master key length")
	ErrPassphraseRequired   = errors.New("crypto: passphrase required for legacy ciphertext")
	ErrKeyRequired          = errors.New("crypto: master key required for master-mode ciphertext")
)

// Envelope is the parsed form of one encrypted value. The string encoding
// is `enc:<version>|<kdf>|<iterations>|<salt_b64>|<iv_b64>|<ct_b64>`;
// everything needed to decrypt, other than the key itself, travels inside
// the value. Salt and iterations are empty/zero in master mode.
type Envelope struct {
	Version    string
	KDF        string
	Iterations int
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// IsEncrypted reports whether s carries the envelope prefix. Parse still
// validates the full shape; callers treat a prefixed-but-broken value as a
// per-field decrypt failure, not plaintext.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, prefix) || strings.HasPrefix(s, "enc"+Version+"|")
}

// EncryptWithPassphrase seals plaintext in legacy mode: a fresh 16-byte
// salt, PBKDF2-HMAC-SHA512 at 600k iterations, AES-256-GCM.
func EncryptWithPassphrase(plaintext, passphrase string) (string, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := DeriveKey(passphrase, salt)
	defer Zero(key)
	return seal(plaintext, key, Envelope{
		Version:    Version,
		KDF:        KDFLegacy,
		Iterations: Iterations,
		Salt:       salt,
	})
}

// EncryptWithKey seals plaintext in master mode under a raw 32-byte key.
// No salt or KDF is involved; iterations are recorded as 0.
func EncryptWithKey(plaintext string, key []byte) (string, error) {
	if len(key) != KeyLen {
		return "", ErrInvalidKeyLength
	}
	return seal(plaintext, key, Envelope{Version: Version, KDF: KDFMaster})
}

func seal(plaintext string, key []byte, env Envelope) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	env.IV = iv
	env.Ciphertext = aead.Seal(nil, iv, []byte(plaintext), nil)
	return env.String(), nil
}

// DecryptWithKey opens a master-mode envelope under the raw master key.
// Legacy envelopes are rejected with ErrPassphraseRequired so callers can
// leave them for migration instead of mangling them.
func DecryptWithKey(envelope string, key []byte) (string, error) {
	env, err := Parse(envelope)
	if err != nil {
		return "", err
	}
	if env.KDF == KDFLegacy {
		return "", ErrPassphraseRequired
	}
	if len(key) != KeyLen {
		return "", ErrInvalidKeyLength
	}
	return open(env, key)
}

// DecryptWithPassphrase opens a legacy envelope, re-deriving the key from
// the embedded salt and iteration count.
func DecryptWithPassphrase(envelope, passphrase string) (string, error) {
	env, err := Parse(envelope)
	if err != nil {
		return "", err
	}
	if env.KDF == KDFMaster {
		return "", ErrKeyRequired
	}
	key := DeriveKey(passphrase, env.Salt)
	defer Zero(key)
	return open(env, key)
}

func open(env Envelope, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		// Wrong key or tampered ciphertext/IV. Never surfaced as plaintext.
		return "", ErrAuthenticationFailed
	}
	return string(pt), nil
}

// Parse validates and decodes an envelope string. The canonical form
// carries the `enc:` prefix; the bare `encv1|` form produced by an old
// writer is accepted here as a migration-only read path and is never
// emitted by String.
func Parse(s string) (Envelope, error) {
	body, ok := strings.CutPrefix(s, prefix)
	if !ok {
		body, ok = strings.CutPrefix(s, "enc")
		if !ok || !strings.HasPrefix(body, Version+"|") {
			return Envelope{}, ErrMalformedEnvelope
		}
	}
	parts := strings.Split(body, "|")
	if len(parts) != 6 {
		return Envelope{}, ErrMalformedEnvelope
	}
	if parts[0] != Version {
		return Envelope{}, ErrMalformedEnvelope
	}
	kdf := parts[1]
	if kdf != KDFLegacy && kdf != KDFMaster {
		return Envelope{}, ErrMalformedEnvelope
	}
	iters, err := strconv.Atoi(parts[2])
	if err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	var salt []byte
	if parts[3] != "" {
		if salt, err = base64.StdEncoding.DecodeString(parts[3]); err != nil {
			return Envelope{}, ErrMalformedEnvelope
		}
	}
	iv, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	ct, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	if kdf == KDFLegacy && (len(salt) != SaltLen || iters != Iterations) {
		return Envelope{}, ErrMalformedEnvelope
	}
	if len(iv) != IVLen {
		return Envelope{}, ErrMalformedEnvelope
	}
	return Envelope{
		Version:    parts[0],
		KDF:        kdf,
		Iterations: iters,
		Salt:       salt,
		IV:         iv,
		Ciphertext: ct,
	}, nil
}

// String renders the canonical envelope encoding.
func (e Envelope) String() string {
	salt := ""
	if len(e.Salt) > 0 {
		salt = base64.StdEncoding.EncodeToString(e.Salt)
	}
	fields := []string{
		e.Version,
		e.KDF,
		strconv.Itoa(e.Iterations),
		salt,
		base64.StdEncoding.EncodeToString(e.IV),
		base64.StdEncoding.EncodeToString(e.Ciphertext),
	}
	return prefix + strings.Join(fields, "|")
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
