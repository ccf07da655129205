package secret

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
)

func testKey(t testing.TB) []byte {
	t.Helper()
	k := make([]byte, crypto.KeyLen)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return k
}

func TestEncryptIfSecretRespectsMarker(t *testing.T) {
	key := testKey(t)

	// Marked plain string gets encrypted.
	out, err := EncryptIfSecret("token", true, key)
	require.NoError(t, err)
	assert.True(t, IsCiphertext(out))

	// Unmarked values stay plaintext even under an active key.
	out, err = EncryptIfSecret("token", false, key)
	require.NoError(t, err)
	assert.Equal(t, "token", out)

	// No key: marker alone never encrypts.
	out, err = EncryptIfSecret("token", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "token", out)

	// Non-strings pass through.
	out, err = EncryptIfSecret(42.0, true, key)
	require.NoError(t, err)
	assert.Equal(t, 42.0, out)
}

func TestEncryptIfSecretIsIdempotent(t *testing.T) {
	key := testKey(t)
	once, err := EncryptIfSecret("value", true, key)
	require.NoError(t, err)
	twice, err := EncryptIfSecret(once, true, key)
	require.NoError(t, err)
	assert.Equal(t, once, twice, "re-encrypting ciphertext must not nest envelopes")

	plain, msg := DecryptIfCiphertext(twice, key)
	assert.Empty(t, msg)
	assert.Equal(t, "value", plain)
}

func TestDecryptIgnoresMarkers(t *testing.T) {
	key := testKey(t)
	enc, err := EncryptIfSecret("secret-value", true, key)
	require.NoError(t, err)

	// Decryption has no marker argument at all: any ciphertext decrypts.
	plain, msg := DecryptIfCiphertext(enc, key)
	assert.Empty(t, msg)
	assert.Equal(t, "secret-value", plain)
}

func TestDecryptIfCiphertextReportsPerField(t *testing.T) {
	key := testKey(t)
	other := testKey(t)
	enc, err := EncryptIfSecret("v", true, key)
	require.NoError(t, err)

	// Wrong key: original value is preserved alongside the message.
	got, msg := DecryptIfCiphertext(enc, other)
	assert.NotEmpty(t, msg)
	assert.Equal(t, enc, got)

	// Plaintext and non-strings are untouched and message-free.
	got, msg = DecryptIfCiphertext("plain", key)
	assert.Empty(t, msg)
	assert.Equal(t, "plain", got)
}

func TestEncryptJSONIfSecretHandlesObjects(t *testing.T) {
	key := testKey(t)
	body := map[string]any{"user": "alice", "nested": map[string]any{"n": 1.0}}

	enc, err := EncryptJSONIfSecret(body, true, key)
	require.NoError(t, err)
	require.IsType(t, "", enc)
	assert.True(t, IsCiphertext(enc))

	dec, msg := DecryptBodyIfCiphertext(enc, key)
	assert.Empty(t, msg)
	assert.Equal(t, body, dec)
}

func TestDecryptBodyFallsBackToString(t *testing.T) {
	key := testKey(t)
	enc, err := EncryptJSONIfSecret("not json at all", true, key)
	require.NoError(t, err)

	dec, msg := DecryptBodyIfCiphertext(enc, key)
	assert.Empty(t, msg)
	assert.Equal(t, "not json at all", dec)

	// Values that never were ciphertext are returned untouched, not parsed.
	dec, msg = DecryptBodyIfCiphertext(`{"a":1}`, key)
	assert.Empty(t, msg)
	assert.Equal(t, `{"a":1}`, dec)
}

func TestContainsCiphertextWalksJSON(t *testing.T) {
	key := testKey(t)
	enc, err := crypto.EncryptWithKey("x", key)
	require.NoError(t, err)

	doc := map[string]any{
		"envs": map[string]any{
			"default": map[string]any{
				"variables": map[string]any{"API_KEY": enc},
			},
		},
	}
	assert.True(t, ContainsCiphertext(doc))
	assert.False(t, ContainsCiphertext(map[string]any{"a": []any{"plain", 1.0, nil}}))
}
