package store

import (
	"encoding/json"
	"errors"
	"os"
	"sort"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
	"github.com/jordandevai/LiteFetch-API-Client/internal/secret"
	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

// sensitiveWrapper is the whole-document ciphertext format: the serialized
// document is one envelope string inside a versioned JSON shell.
type sensitiveWrapper struct {
	V          int    `json:"v"`
	Ciphertext string `json:"ciphertext"`
}

// CreateCollection lays down the full document set for a new collection.
// An empty id gets a generated one. Fails with ErrWorkspaceLocked when a
// vault exists and no key is loaded, so a locked workspace never gains
// plaintext documents.
func (s *Store) CreateCollection(name, id string) (model.CollectionMeta, error) {
	if id == "" {
		id = model.NewID()
	}
	// Check the lock before touching the filesystem so a locked workspace
	// is left exactly as found.
	if s.session.HasVault() && !s.session.Unlocked() {
		return model.CollectionMeta{}, vault.ErrWorkspaceLocked
	}
	if err := os.MkdirAll(s.collectionDir(id), 0o755); err != nil {
		return model.CollectionMeta{}, err
	}
	now := model.Now()
	meta := model.CollectionMeta{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}

	if err := s.SaveCollection(id, model.NewCollection(id, name)); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.writeAtomic(s.metaPath(id), meta); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.SaveEnvironment(id, model.NewEnvironmentFile()); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.writeAtomic(s.uiStatePath(id), model.UIState{OpenFolders: []string{}}); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.writeSensitive(s.lastResultsPath(id), map[string]model.RequestResult{}); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.writeSensitive(s.historyPath(id), []model.RequestResult{}); err != nil {
		return model.CollectionMeta{}, err
	}
	if err := s.writeSensitive(s.cookiesPath(id), map[string][]model.StoredCookie{}); err != nil {
		return model.CollectionMeta{}, err
	}
	return meta, nil
}

// ListCollections returns every collection's metadata, oldest first.
func (s *Store) ListCollections() ([]model.CollectionMeta, error) {
	entries, err := os.ReadDir(s.collectionsDir)
	if err != nil {
		return nil, err
	}
	metas := []model.CollectionMeta{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta model.CollectionMeta
		if err := readJSON(s.metaPath(e.Name()), &meta); err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].CreatedAt < metas[j].CreatedAt })
	return metas, nil
}

// DeleteCollection removes the whole document subtree for a collection.
func (s *Store) DeleteCollection(id string) error {
	return os.RemoveAll(s.collectionDir(id))
}

// LoadMeta reads a collection's metadata document.
func (s *Store) LoadMeta(id string) (model.CollectionMeta, error) {
	var meta model.CollectionMeta
	if err := readJSON(s.metaPath(id), &meta); err != nil {
		if os.IsNotExist(err) {
			return meta, ErrNotFound
		}
		return meta, err
	}
	return meta, nil
}

// touchMeta bumps the updated_at stamp, optionally renaming.
func (s *Store) touchMeta(id, name string) error {
	meta, err := s.LoadMeta(id)
	if err != nil {
		return err
	}
	if name != "" {
		meta.Name = name
	}
	meta.UpdatedAt = model.Now()
	return s.writeAtomic(s.metaPath(id), meta)
}

// unwrapLegacy detects the older whole-document `{"ciphertext": ...}`
// format on a field-level document and decrypts it once, returning the
// inner document JSON. Requires the master key when a wrapper is found.
func (s *Store) unwrapLegacy(raw, key []byte) ([]byte, bool, error) {
	var probe struct {
		Ciphertext *string `json:"ciphertext"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Ciphertext == nil {
		return raw, false, nil
	}
	if key == nil {
		return nil, false, vault.ErrWorkspaceLocked
	}
	pt, err := crypto.DecryptWithKey(*probe.Ciphertext, key)
	if err != nil {
		return nil, false, err
	}
	return []byte(pt), true, nil
}

// LoadCollection reads a collection tree, decrypting every detected
// ciphertext when a key is loaded. Per-field decrypt failures come back as
// diagnostics, not an error. Legacy whole-document blobs are unwrapped and
// rewritten in the field-level format, best-effort.
func (s *Store) LoadCollection(id string) (*model.Collection, secret.Diagnostics, error) {
	buf, err := s.masterKey()
	if err != nil {
		return nil, nil, err
	}
	var key []byte
	if buf != nil {
		defer buf.Destroy()
		key = buf.Bytes()
	}

	raw, err := os.ReadFile(s.collectionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	inner, wrapped, err := s.unwrapLegacy(raw, key)
	if err != nil {
		return nil, nil, err
	}

	var col model.Collection
	if err := json.Unmarshal(inner, &col); err != nil {
		return nil, nil, err
	}
	var diags secret.Diagnostics
	secret.DecryptTree(col.Items, key, &diags)

	if wrapped {
		if err := s.SaveCollection(id, &col); err != nil {
			s.logger.Printf("collection %s: legacy rewrite failed: %v", id, err)
		}
	}
	return &col, diags, nil
}

// SaveCollection writes a collection tree, encrypting marked fields on a
// deep copy so the caller's document stays plaintext. Fails with
// ErrWorkspaceLocked when a vault exists and no key is loaded.
func (s *Store) SaveCollection(id string, col *model.Collection) error {
	buf, err := s.masterKey()
	if err != nil {
		return err
	}
	out := col
	if buf != nil {
		defer buf.Destroy()
		cp, err := col.Clone()
		if err != nil {
			return err
		}
		if err := secret.EncryptTree(cp.Items, buf.Bytes()); err != nil {
			return err
		}
		out = cp
	}
	if err := s.writeAtomic(s.collectionPath(id), out); err != nil {
		return err
	}
	if err := s.touchMeta(id, col.Name); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// LoadEnvironment reads the environment file, decrypting every variable
// that looks like ciphertext regardless of its secret marker.
func (s *Store) LoadEnvironment(id string) (*model.EnvironmentFile, secret.Diagnostics, error) {
	buf, err := s.masterKey()
	if err != nil {
		return nil, nil, err
	}
	var key []byte
	if buf != nil {
		defer buf.Destroy()
		key = buf.Bytes()
	}

	raw, err := os.ReadFile(s.envPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	inner, wrapped, err := s.unwrapLegacy(raw, key)
	if err != nil {
		return nil, nil, err
	}

	var f model.EnvironmentFile
	if err := json.Unmarshal(inner, &f); err != nil {
		return nil, nil, err
	}
	var diags secret.Diagnostics
	secret.DecryptEnvironments(&f, key, &diags)

	if wrapped {
		if err := s.SaveEnvironment(id, &f); err != nil {
			s.logger.Printf("environment %s: legacy rewrite failed: %v", id, err)
		}
	}
	return &f, diags, nil
}

// SaveEnvironment writes the environment file, encrypting secret-marked
// variables on a deep copy.
func (s *Store) SaveEnvironment(id string, f *model.EnvironmentFile) error {
	buf, err := s.masterKey()
	if err != nil {
		return err
	}
	out := f
	if buf != nil {
		defer buf.Destroy()
		cp, err := f.Clone()
		if err != nil {
			return err
		}
		if err := secret.EncryptEnvironments(cp, buf.Bytes()); err != nil {
			return err
		}
		out = cp
	}
	if err := s.writeAtomic(s.envPath(id), out); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// LoadUIState reads per-collection UI state. Never sensitive.
func (s *Store) LoadUIState(id string) (model.UIState, error) {
	var ui model.UIState
	if err := readJSON(s.uiStatePath(id), &ui); err != nil {
		if os.IsNotExist(err) {
			return model.UIState{OpenFolders: []string{}}, nil
		}
		return ui, err
	}
	if ui.OpenFolders == nil {
		ui.OpenFolders = []string{}
	}
	return ui, nil
}

// SaveUIState writes per-collection UI state.
func (s *Store) SaveUIState(id string, ui model.UIState) error {
	if ui.OpenFolders == nil {
		ui.OpenFolders = []string{}
	}
	if err := s.writeAtomic(s.uiStatePath(id), ui); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// readSensitive loads a whole-document-mode file into v. Pre-vault
// workspaces read plain JSON; with a loaded key the ciphertext wrapper is
// opened, and plain JSON still parses so pre-vault files survive an
// unlock. A missing file leaves v at its zero value.
func (s *Store) readSensitive(path string, v any) error {
	buf, err := s.masterKey()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if buf != nil {
			buf.Destroy()
		}
		return nil
	}
	if err != nil {
		if buf != nil {
			buf.Destroy()
		}
		return err
	}
	if buf == nil {
		return json.Unmarshal(raw, v)
	}
	defer buf.Destroy()

	var wrapper struct {
		Ciphertext *string `json:"ciphertext"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Ciphertext != nil {
		pt, err := crypto.DecryptWithKey(*wrapper.Ciphertext, buf.Bytes())
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(pt), v)
	}
	return json.Unmarshal(raw, v)
}

// writeSensitive stores a whole-document-mode file: plain JSON before a
// vault exists, one ciphertext wrapper afterwards, ErrWorkspaceLocked in
// between.
func (s *Store) writeSensitive(path string, v any) error {
	buf, err := s.masterKey()
	if err != nil {
		return err
	}
	if buf == nil {
		return s.writeAtomic(path, v)
	}
	defer buf.Destroy()

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ct, err := crypto.EncryptWithKey(string(raw), buf.Bytes())
	if err != nil {
		return err
	}
	return s.writeAtomic(path, sensitiveWrapper{V: 1, Ciphertext: ct})
}

// LoadHistory returns the run history, most recent first.
func (s *Store) LoadHistory(id string) ([]model.RequestResult, error) {
	var hist []model.RequestResult
	if err := s.readSensitive(s.historyPath(id), &hist); err != nil {
		return nil, err
	}
	if hist == nil {
		hist = []model.RequestResult{}
	}
	return hist, nil
}

// AppendHistory prepends one result and trims to the cap.
func (s *Store) AppendHistory(id string, result model.RequestResult) error {
	hist, err := s.LoadHistory(id)
	if err != nil {
		return err
	}
	hist = append([]model.RequestResult{result}, hist...)
	if len(hist) > historyCap {
		hist = hist[:historyCap]
	}
	if err := s.writeSensitive(s.historyPath(id), hist); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// LoadLastResults returns the per-request latest results map.
func (s *Store) LoadLastResults(id string) (map[string]model.RequestResult, error) {
	var results map[string]model.RequestResult
	if err := s.readSensitive(s.lastResultsPath(id), &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = map[string]model.RequestResult{}
	}
	return results, nil
}

// SaveLastResults replaces the latest-results map.
func (s *Store) SaveLastResults(id string, results map[string]model.RequestResult) error {
	if results == nil {
		results = map[string]model.RequestResult{}
	}
	if err := s.writeSensitive(s.lastResultsPath(id), results); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// UpsertLastResult records one request's latest result.
func (s *Store) UpsertLastResult(id string, result model.RequestResult) error {
	results, err := s.LoadLastResults(id)
	if err != nil {
		return err
	}
	results[result.RequestID] = result
	return s.SaveLastResults(id, results)
}

func (s *Store) loadCookieJar(id string) (map[string][]model.StoredCookie, error) {
	var jar map[string][]model.StoredCookie
	if err := s.readSensitive(s.cookiesPath(id), &jar); err != nil {
		return nil, err
	}
	if jar == nil {
		jar = map[string][]model.StoredCookie{}
	}
	return jar, nil
}

func pruneExpired(cookies []model.StoredCookie) []model.StoredCookie {
	now := model.Now()
	cleaned := make([]model.StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Expires != nil && *c.Expires < now {
			continue
		}
		cleaned = append(cleaned, c)
	}
	return cleaned
}

// LoadEnvCookies returns one environment's cookies with expired entries
// pruned; a prune rewrites the jar so expiry is durable.
func (s *Store) LoadEnvCookies(id, envID string) ([]model.StoredCookie, error) {
	jar, err := s.loadCookieJar(id)
	if err != nil {
		return nil, err
	}
	entries := jar[envID]
	cleaned := pruneExpired(entries)
	if len(cleaned) != len(entries) {
		jar[envID] = cleaned
		if err := s.writeSensitive(s.cookiesPath(id), jar); err != nil {
			return nil, err
		}
		if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return cleaned, nil
}

// SaveEnvCookies replaces one environment's cookie list.
func (s *Store) SaveEnvCookies(id, envID string, cookies []model.StoredCookie) error {
	jar, err := s.loadCookieJar(id)
	if err != nil {
		return err
	}
	if cookies == nil {
		cookies = []model.StoredCookie{}
	}
	jar[envID] = cookies
	if err := s.writeSensitive(s.cookiesPath(id), jar); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// ClearEnvCookies empties one environment's cookie list if present.
func (s *Store) ClearEnvCookies(id, envID string) error {
	jar, err := s.loadCookieJar(id)
	if err != nil {
		return err
	}
	if _, ok := jar[envID]; !ok {
		return nil
	}
	jar[envID] = []model.StoredCookie{}
	if err := s.writeSensitive(s.cookiesPath(id), jar); err != nil {
		return err
	}
	if err := s.touchMeta(id, ""); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// LoadBundle aggregates every per-collection document in one call.
func (s *Store) LoadBundle(id string) (*model.CollectionBundle, secret.Diagnostics, error) {
	meta, err := s.LoadMeta(id)
	if err != nil {
		return nil, nil, err
	}
	col, diags, err := s.LoadCollection(id)
	if err != nil {
		return nil, nil, err
	}
	env, envDiags, err := s.LoadEnvironment(id)
	if err != nil {
		return nil, nil, err
	}
	diags = append(diags, envDiags...)
	ui, err := s.LoadUIState(id)
	if err != nil {
		return nil, nil, err
	}
	lastResults, err := s.LoadLastResults(id)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.LoadHistory(id)
	if err != nil {
		return nil, nil, err
	}
	return &model.CollectionBundle{
		Meta:        meta,
		Collection:  col,
		Environment: env,
		UIState:     ui,
		LastResults: lastResults,
		History:     history,
	}, diags, nil
}
