package crypto

import "crypto/rand"

// WrapMasterKey encrypts the raw workspace master key under a
// passphrase-derived key. Blob layout: salt(16) || iv(12) || AES-256-GCM
// ciphertext. This is the payload of the on-disk vault record; the master
// key never touches disk in any other form.
func WrapMasterKey(master []byte, passphrase string) ([]byte, error) {
	if len(master) != KeyLen {
		return nil, ErrInvalidKeyLength
	}
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := DeriveKey(passphrase, salt)
	defer Zero(key)
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	out := make([]byte, 0, SaltLen+IVLen+len(master)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, iv...)
	return aead.Seal(out, iv, master, nil), nil
}

// UnwrapMasterKey reverses WrapMasterKey. ErrAuthenticationFailed means a
// wrong passphrase or a corrupted record; callers map it to their own
// incorrect-passphrase error.
func UnwrapMasterKey(blob []byte, passphrase string) ([]byte, error) {
	if len(blob) < SaltLen+IVLen {
		return nil, ErrMalformedEnvelope
	}
	salt := blob[:SaltLen]
	iv := blob[SaltLen : SaltLen+IVLen]
	ct := blob[SaltLen+IVLen:]
	key := DeriveKey(passphrase, salt)
	defer Zero(key)
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	master, err := aead.Open(nil, iv, ct, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return master, nil
}
