package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
)

func TestSetPassphraseInitializesVault(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)

	assert.False(t, s.HasVault())
	assert.False(t, s.Locked())
	assert.False(t, s.Unlocked())

	require.NoError(t, s.SetPassphrase("hunter2"))
	assert.True(t, s.HasVault())
	assert.True(t, s.Unlocked())
	assert.False(t, s.Locked())

	// Record is the documented JSON shape, never the raw key.
	raw, err := os.ReadFile(filepath.Join(dir, ".litefetch", "vault.key"))
	require.NoError(t, err)
	var rec struct {
		V    int    `json:"v"`
		Data string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, 1, rec.V)
	assert.NotEmpty(t, rec.Data)
}

func TestUnlockWithWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)
	require.NoError(t, s.SetPassphrase("correct horse"))
	s.Clear()
	assert.True(t, s.Locked())

	err := s.SetPassphrase("battery staple")
	assert.ErrorIs(t, err, ErrIncorrectPassphrase)
	assert.True(t, s.Locked())
	_, err = s.Key()
	assert.ErrorIs(t, err, ErrWorkspaceLocked)

	require.NoError(t, s.SetPassphrase("correct horse"))
	assert.True(t, s.Unlocked())
}

func TestKeySurvivesLockUnlockCycle(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)
	require.NoError(t, s.SetPassphrase("p1"))

	buf, err := s.Key()
	require.NoError(t, err)
	first := append([]byte(nil), buf.Bytes()...)
	buf.Destroy()
	require.Len(t, first, crypto.KeyLen)

	s.Clear()
	require.NoError(t, s.SetPassphrase("p1"))
	buf, err = s.Key()
	require.NoError(t, err)
	assert.Equal(t, first, buf.Bytes())
	buf.Destroy()
}

func TestRotatePreservesMasterKey(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)
	require.NoError(t, s.SetPassphrase("old pass"))
	buf, err := s.Key()
	require.NoError(t, err)
	before := append([]byte(nil), buf.Bytes()...)
	buf.Destroy()

	// Wrong old passphrase must not rotate.
	assert.ErrorIs(t, s.Rotate("nope", "new pass"), ErrIncorrectPassphrase)

	require.NoError(t, s.Rotate("old pass", "new pass"))
	assert.True(t, s.Unlocked())

	s.Clear()
	assert.ErrorIs(t, s.SetPassphrase("old pass"), ErrIncorrectPassphrase)
	require.NoError(t, s.SetPassphrase("new pass"))

	buf, err = s.Key()
	require.NoError(t, err)
	assert.Equal(t, before, buf.Bytes(), "rotation must preserve the master key")
	buf.Destroy()
}

func TestRotateWithoutVault(t *testing.T) {
	s := NewSession(t.TempDir())
	assert.ErrorIs(t, s.Rotate("old", "new"), ErrNoVault)
	assert.False(t, s.HasVault())
	assert.False(t, s.Unlocked())
}

func TestEmptyPassphraseLocks(t *testing.T) {
	dir := t.TempDir()
	s := NewSession(dir)

	// No record yet: clearing is a no-op in NoVault state.
	require.NoError(t, s.SetPassphrase(""))
	assert.False(t, s.HasVault())

	require.NoError(t, s.SetPassphrase("pw"))
	require.NoError(t, s.SetPassphrase(""))
	assert.True(t, s.Locked())
}
