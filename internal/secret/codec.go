// Package secret applies field-level encryption to workspace documents.
// Two rules govern every value: encryption consults the field's secret
// marker, decryption never does; any detected ciphertext is decrypted so
// marker edits or key renames cannot strand encrypted values.
package secret

import (
	"encoding/json"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
)

// IsCiphertext reports whether v is a string carrying the envelope prefix.
func IsCiphertext(v any) bool {
	s, ok := v.(string)
	return ok && crypto.IsEncrypted(s)
}

// EncryptIfSecret encrypts v when a key is present, the marker is set and
// v is a plain string. Already-encrypted values pass through untouched,
// which keeps re-encryption idempotent instead of nesting envelopes.
func EncryptIfSecret(v any, marked bool, key []byte) (any, error) {
	if len(key) == 0 || !marked {
		return v, nil
	}
	s, ok := v.(string)
	if !ok || crypto.IsEncrypted(s) {
		return v, nil
	}
	enc, err := crypto.EncryptWithKey(s, key)
	if err != nil {
		return v, err
	}
	return enc, nil
}

// EncryptJSONIfSecret additionally accepts structured values, for the
// whole-body-secret case where a body may be a JSON object: maps are
// serialized to compact JSON text before encryption.
func EncryptJSONIfSecret(v any, marked bool, key []byte) (any, error) {
	if len(key) == 0 || !marked {
		return v, nil
	}
	switch val := v.(type) {
	case string:
		return EncryptIfSecret(val, true, key)
	case map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return v, nil
		}
		enc, err := crypto.EncryptWithKey(string(raw), key)
		if err != nil {
			return v, err
		}
		return enc, nil
	default:
		return v, nil
	}
}

// DecryptIfCiphertext decrypts any detected ciphertext. Failures come back
// as a per-field message rather than an error so one corrupt field cannot
// abort a whole document load; the original value is preserved.
func DecryptIfCiphertext(v any, key []byte) (any, string) {
	s, ok := v.(string)
	if len(key) == 0 || !ok || !crypto.IsEncrypted(s) {
		return v, ""
	}
	pt, err := crypto.DecryptWithKey(s, key)
	if err != nil {
		return v, err.Error()
	}
	return pt, ""
}

// DecryptBodyIfCiphertext decrypts like DecryptIfCiphertext and, when a
// decryption actually happened, attempts to restore a structured JSON
// body, falling back to the raw string when it does not parse to an
// object.
func DecryptBodyIfCiphertext(v any, key []byte) (any, string) {
	s, ok := v.(string)
	if len(key) == 0 || !ok || !crypto.IsEncrypted(s) {
		return v, ""
	}
	pt, err := crypto.DecryptWithKey(s, key)
	if err != nil {
		return v, err.Error()
	}
	var obj any
	if json.Unmarshal([]byte(pt), &obj) == nil {
		if m, isMap := obj.(map[string]any); isMap {
			return m, ""
		}
	}
	return pt, ""
}

// ContainsCiphertext walks an arbitrary decoded JSON value looking for
// envelope strings. Used on raw documents when no key is loaded.
func ContainsCiphertext(v any) bool {
	switch val := v.(type) {
	case string:
		return crypto.IsEncrypted(val)
	case map[string]any:
		for _, e := range val {
			if ContainsCiphertext(e) {
				return true
			}
		}
	case []any:
		for _, e := range val {
			if ContainsCiphertext(e) {
				return true
			}
		}
	}
	return false
}
