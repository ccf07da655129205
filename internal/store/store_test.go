package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

func newStore(t *testing.T) (*Store, *vault.Session) {
	t.Helper()
	dir := t.TempDir()
	sess := vault.NewSession(dir)
	st, err := Open(dir, sess, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return st, sess
}

func secretRequest() *model.Request {
	return &model.Request{
		ID:            "r1",
		Name:          "login",
		Method:        "GET",
		URL:           "https://example.com",
		Headers:       map[string]string{"Authorization": "Bearer token"},
		SecretHeaders: map[string]bool{"Authorization": true},
	}
}

func TestOpenBootstrapsDefaultCollection(t *testing.T) {
	st, _ := newStore(t)

	metas, err := st.ListCollections()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "default", metas[0].ID)
	assert.Equal(t, "Default", metas[0].Name)

	// Every per-collection document exists from the start.
	for _, p := range []string{
		st.metaPath("default"), st.collectionPath("default"), st.envPath("default"),
		st.uiStatePath("default"), st.lastResultsPath("default"),
		st.historyPath("default"), st.cookiesPath("default"),
	} {
		assert.True(t, exists(p), p)
	}
}

func TestGitignoreMaintenance(t *testing.T) {
	st, _ := newStore(t)

	b, err := os.ReadFile(st.baseDir + "/.gitignore")
	require.NoError(t, err)
	for _, p := range gitignorePatterns {
		assert.Contains(t, string(b), p)
	}

	// User content survives and patterns are not duplicated.
	require.NoError(t, os.WriteFile(st.baseDir+"/.gitignore", []byte("node_modules/\n"+gitignorePatterns[0]+"\n"), 0o644))
	assert.True(t, st.RefreshGitignore())
	b, err = os.ReadFile(st.baseDir + "/.gitignore")
	require.NoError(t, err)
	assert.Contains(t, string(b), "node_modules/")
	assert.Equal(t, 1, strings.Count(string(b), gitignorePatterns[0]))
}

func TestUnlockCreatesVault(t *testing.T) {
	st, sess := newStore(t)

	status := st.Status()
	assert.False(t, status.HasVault)
	assert.False(t, status.Locked)

	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)
	assert.True(t, sess.HasVault())

	status = st.Status()
	assert.True(t, status.HasVault)
	assert.False(t, status.Locked)
}

func TestSecretHeaderRoundTrip(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	col := model.NewCollection("default", "Default")
	col.Items = []model.Node{model.RequestNode(secretRequest())}
	require.NoError(t, st.SaveCollection("default", col))

	// On disk the marked header is an envelope, and only that header.
	raw, err := os.ReadFile(st.collectionPath("default"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "enc:")
	assert.NotContains(t, string(raw), "Bearer token")

	// The caller's document was not mutated by the save.
	assert.Equal(t, "Bearer token", col.Items[0].Request.Headers["Authorization"])

	loaded, diags, err := st.LoadCollection("default")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "Bearer token", loaded.Items[0].Request.Headers["Authorization"])
}

func TestLockedAccessFails(t *testing.T) {
	st, sess := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	col := model.NewCollection("default", "Default")
	col.Items = []model.Node{model.RequestNode(secretRequest())}
	require.NoError(t, st.SaveCollection("default", col))

	sess.Clear()

	_, _, err = st.LoadCollection("default")
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)
	assert.ErrorIs(t, st.SaveCollection("default", col), vault.ErrWorkspaceLocked)
	_, _, err = st.LoadEnvironment("default")
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)
	_, err = st.LoadHistory("default")
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)
	assert.ErrorIs(t, st.AppendHistory("default", model.RequestResult{}), vault.ErrWorkspaceLocked)
	_, err = st.LoadEnvCookies("default", "default")
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)
	_, err = st.ReencryptSensitive()
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)

	// Wrong passphrase leaves the workspace locked.
	_, err = st.UnlockWorkspace("wrong")
	assert.ErrorIs(t, err, vault.ErrIncorrectPassphrase)
	_, _, err = st.LoadCollection("default")
	assert.ErrorIs(t, err, vault.ErrWorkspaceLocked)
	assert.True(t, st.Status().Locked)

	// Correct passphrase restores access to the original plaintext.
	_, err = st.UnlockWorkspace("hunter2")
	require.NoError(t, err)
	loaded, _, err := st.LoadCollection("default")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", loaded.Items[0].Request.Headers["Authorization"])
}

func TestSensitiveDocsPlainBeforeVault(t *testing.T) {
	st, _ := newStore(t)

	require.NoError(t, st.AppendHistory("default", model.RequestResult{RequestID: "r1", StatusCode: 200}))
	raw, err := os.ReadFile(st.historyPath("default"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ciphertext")

	_, err = st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	// Pre-vault plain files still read after unlock; reencryption rewraps
	// them as whole-document ciphertext.
	hist, err := st.LoadHistory("default")
	require.NoError(t, err)
	require.Len(t, hist, 1)

	stats, err := st.ReencryptSensitive()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.History)
	assert.Equal(t, 1, stats.Collections)

	raw, err = os.ReadFile(st.historyPath("default"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ciphertext")
	assert.NotContains(t, string(raw), "r1")

	hist, err = st.LoadHistory("default")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "r1", hist[0].RequestID)
}

func TestHistoryCapMostRecentFirst(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	for i := 0; i < historyCap+5; i++ {
		require.NoError(t, st.AppendHistory("default", model.RequestResult{RequestID: fmt.Sprintf("r%d", i)}))
	}
	hist, err := st.LoadHistory("default")
	require.NoError(t, err)
	require.Len(t, hist, historyCap)
	assert.Equal(t, fmt.Sprintf("r%d", historyCap+4), hist[0].RequestID)
}

func TestLastResultsUpsert(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	require.NoError(t, st.UpsertLastResult("default", model.RequestResult{RequestID: "r1", StatusCode: 200}))
	require.NoError(t, st.UpsertLastResult("default", model.RequestResult{RequestID: "r1", StatusCode: 404}))
	require.NoError(t, st.UpsertLastResult("default", model.RequestResult{RequestID: "r2", StatusCode: 201}))

	results, err := st.LoadLastResults("default")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 404, results["r1"].StatusCode)
}

func TestCookieExpiryPruning(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	past := model.Now() - 60
	future := model.Now() + 3600
	require.NoError(t, st.SaveEnvCookies("default", "default", []model.StoredCookie{
		{Name: "stale", Value: "x", Expires: &past},
		{Name: "fresh", Value: "y", Expires: &future},
		{Name: "session", Value: "z"},
	}))

	cookies, err := st.LoadEnvCookies("default", "default")
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	// The prune was written back, not just filtered in memory.
	cookies, err = st.LoadEnvCookies("default", "default")
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	require.NoError(t, st.ClearEnvCookies("default", "default"))
	cookies, err = st.LoadEnvCookies("default", "default")
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestLegacyWholeDocumentUnwrap(t *testing.T) {
	st, sess := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	buf, err := sess.Key()
	require.NoError(t, err)
	defer buf.Destroy()

	inner := `{"id":"default","name":"Default","items":[{"id":"r1","name":"old","method":"GET","url":"u"}]}`
	ct, err := crypto.EncryptWithKey(inner, buf.Bytes())
	require.NoError(t, err)
	blob, err := json.Marshal(sensitiveWrapper{V: 1, Ciphertext: ct})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(st.collectionPath("default"), blob, 0o600))

	col, diags, err := st.LoadCollection("default")
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, col.Items, 1)
	assert.Equal(t, "old", col.Items[0].Request.Name)

	// The load rewrote the file in the field-level format.
	raw, err := os.ReadFile(st.collectionPath("default"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ciphertext")
	assert.Contains(t, string(raw), `"items"`)
}

func TestLegacyEnvironmentMigrationOnUnlock(t *testing.T) {
	st, _ := newStore(t)

	legacy, err := crypto.EncryptWithPassphrase("k-123", "hunter2")
	require.NoError(t, err)
	envFile := model.NewEnvironmentFile()
	envFile.Envs["default"].Variables["API_KEY"] = legacy
	envFile.Envs["default"].Secrets["API_KEY"] = true
	require.NoError(t, st.SaveEnvironment("default", envFile))

	assert.True(t, st.HasLegacyInlineEncryption())
	assert.True(t, st.Status().Legacy)

	stats, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Collections)
	assert.False(t, st.HasLegacyInlineEncryption())

	// Migrated to master mode on disk, plaintext through the vault.
	raw, err := os.ReadFile(st.envPath("default"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "enc:v1|master|")

	loaded, diags, err := st.LoadEnvironment("default")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "k-123", loaded.Envs["default"].Variables["API_KEY"])

	// A second unlock finds nothing left to migrate.
	stats, err = st.UnlockWorkspace("hunter2")
	require.NoError(t, err)
	assert.Zero(t, stats.Updated)
}

func TestStatusFlagsOrphanedCiphertext(t *testing.T) {
	st, _ := newStore(t)

	other, err := crypto.EncryptWithKey("x", make([]byte, crypto.KeyLen))
	require.NoError(t, err)
	envFile := model.NewEnvironmentFile()
	envFile.Envs["default"].Variables["TOKEN"] = other
	require.NoError(t, st.SaveEnvironment("default", envFile))

	// Ciphertext present with no vault record still reads as locked so
	// clients prompt for a passphrase instead of showing raw envelopes.
	status := st.Status()
	assert.False(t, status.HasVault)
	assert.True(t, status.Ciphertext)
	assert.True(t, status.Locked)
}

func TestDeleteCollectionRemovesSubtree(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	meta, err := st.CreateCollection("Scratch", "")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)

	require.NoError(t, st.DeleteCollection(meta.ID))
	_, err = st.LoadMeta(meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	metas, err := st.ListCollections()
	require.NoError(t, err)
	require.Len(t, metas, 1)
}

func TestBundleAggregatesDocuments(t *testing.T) {
	st, _ := newStore(t)
	_, err := st.UnlockWorkspace("hunter2")
	require.NoError(t, err)

	col := model.NewCollection("default", "Default")
	col.Items = []model.Node{model.RequestNode(secretRequest())}
	require.NoError(t, st.SaveCollection("default", col))
	require.NoError(t, st.AppendHistory("default", model.RequestResult{RequestID: "r1"}))

	bundle, diags, err := st.LoadBundle("default")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "default", bundle.Meta.ID)
	assert.Equal(t, "Bearer token", bundle.Collection.Items[0].Request.Headers["Authorization"])
	require.Len(t, bundle.History, 1)
	assert.NotNil(t, bundle.Environment)
}
