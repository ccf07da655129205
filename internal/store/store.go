// Package store persists workspace documents under the workspace root:
// collections/<id>/{meta,collection,environment,ui_state,last_results,history,cookies}.json.
// Collections and environments are stored field-level (structured JSON with
// individual values possibly encrypted); history, last results and cookies
// are stored as one whole-document ciphertext once a vault exists. All
// writes are atomic so readers never observe a partial document.
package store

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

// ErrNotFound reports a collection id with no document on disk.
var ErrNotFound = errors.New("store: collection not found")

const historyCap = 50

// Runtime artifacts that should not end up in a user's version control.
var gitignorePatterns = []string{
	"collections/*/history.json",
	"collections/*/last_results.json",
	"collections/*/cookies.json",
}

// Store owns one workspace directory. All sensitive operations consult the
// vault session; lock state changes are visible to every caller immediately.
type Store struct {
	baseDir        string
	collectionsDir string
	session        *vault.Session
	logger         *log.Logger
}

// Open binds a store to a workspace directory, creates the layout,
// refreshes the workspace .gitignore and bootstraps a default collection
// when the workspace is empty and not locked.
func Open(workspaceDir string, session *vault.Session, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Store{
		baseDir:        workspaceDir,
		collectionsDir: filepath.Join(workspaceDir, "collections"),
		session:        session,
		logger:         logger,
	}
	if err := os.MkdirAll(s.collectionsDir, 0o755); err != nil {
		return nil, err
	}
	s.RefreshGitignore()
	if err := s.bootstrapDefault(); err != nil {
		return nil, err
	}
	return s, nil
}

// bootstrapDefault creates a "Default" collection in an empty workspace. A
// locked workspace skips the bootstrap until it is unlocked.
func (s *Store) bootstrapDefault() error {
	entries, err := os.ReadDir(s.collectionsDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			return nil
		}
	}
	if _, err := s.CreateCollection("Default", "default"); err != nil {
		if errors.Is(err, vault.ErrWorkspaceLocked) {
			return nil
		}
		return err
	}
	return nil
}

// RefreshGitignore ensures runtime artifacts are ignored when users version
// their workspace. Best-effort: failures are logged, never propagated.
func (s *Store) RefreshGitignore() bool {
	path := filepath.Join(s.baseDir, ".gitignore")
	var existing []string
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		existing = strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	}
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		have[l] = true
	}
	updated := existing
	changed := false
	for _, p := range gitignorePatterns {
		if !have[p] {
			updated = append(updated, p)
			changed = true
		}
	}
	if !changed {
		return true
	}
	if err := os.WriteFile(path, []byte(strings.Join(updated, "\n")+"\n"), 0o644); err != nil {
		s.logger.Printf("gitignore refresh failed: %v", err)
		return false
	}
	return true
}

// masterKey opens the session key for the duration of one operation. A nil
// buffer with nil error means a pre-vault workspace, where plaintext
// persistence is still allowed. Callers must Destroy a non-nil buffer.
func (s *Store) masterKey() (*memguard.LockedBuffer, error) {
	buf, err := s.session.Key()
	if err == nil {
		return buf, nil
	}
	if s.session.HasVault() {
		return nil, vault.ErrWorkspaceLocked
	}
	return nil, nil
}

func (s *Store) collectionDir(id string) string {
	return filepath.Join(s.collectionsDir, id)
}

func (s *Store) metaPath(id string) string        { return filepath.Join(s.collectionDir(id), "meta.json") }
func (s *Store) collectionPath(id string) string  { return filepath.Join(s.collectionDir(id), "collection.json") }
func (s *Store) envPath(id string) string         { return filepath.Join(s.collectionDir(id), "environment.json") }
func (s *Store) uiStatePath(id string) string     { return filepath.Join(s.collectionDir(id), "ui_state.json") }
func (s *Store) lastResultsPath(id string) string { return filepath.Join(s.collectionDir(id), "last_results.json") }
func (s *Store) historyPath(id string) string     { return filepath.Join(s.collectionDir(id), "history.json") }
func (s *Store) cookiesPath(id string) string     { return filepath.Join(s.collectionDir(id), "cookies.json") }

// writeAtomic serializes v and writes it via a temporary sibling file,
// forced to stable storage before the rename over the target.
func (s *Store) writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
