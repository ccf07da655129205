package store

import (
	"os"
	"path/filepath"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
	"github.com/jordandevai/LiteFetch-API-Client/internal/secret"
	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

// MigrationStats reports one legacy-migration pass: values rewritten and
// environment files touched.
type MigrationStats struct {
	Updated     int `json:"updated"`
	Collections int `json:"collections"`
}

// ReencryptStats counts documents successfully rewritten per category. A
// count short of the collection total signals a partial failure without
// aborting the batch.
type ReencryptStats struct {
	Collections  int `json:"collections"`
	Environments int `json:"environments"`
	History      int `json:"history"`
	LastResults  int `json:"last_results"`
	Cookies      int `json:"cookies"`
}

// environmentPaths lists every environment.json in the workspace.
func (s *Store) environmentPaths() []string {
	entries, err := os.ReadDir(s.collectionsDir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(s.collectionsDir, e.Name(), "environment.json")
		if exists(p) {
			paths = append(paths, p)
		}
	}
	return paths
}

// HasLegacyInlineEncryption reports whether any secret-marked environment
// variable in the workspace still carries passphrase-derived ciphertext.
// Works on raw files, so it answers while locked.
func (s *Store) HasLegacyInlineEncryption() bool {
	for _, path := range s.environmentPaths() {
		var f model.EnvironmentFile
		if readJSON(path, &f) != nil {
			continue
		}
		for _, env := range f.Envs {
			if env == nil {
				continue
			}
			for name, marked := range env.Secrets {
				if !marked {
					continue
				}
				v, _ := env.Variables[name].(string)
				if !crypto.IsEncrypted(v) {
					continue
				}
				parsed, err := crypto.Parse(v)
				if err != nil {
					continue
				}
				if parsed.KDF == crypto.KDFLegacy {
					return true
				}
			}
		}
	}
	return false
}

// MigrateLegacyEnvironments re-encrypts every secret-marked legacy value
// under the master key. Values that fail to decrypt are left untouched and
// never abort the scan of other variables or files.
func (s *Store) MigrateLegacyEnvironments(passphrase string, master []byte) MigrationStats {
	var stats MigrationStats
	for _, path := range s.environmentPaths() {
		var f model.EnvironmentFile
		if readJSON(path, &f) != nil {
			continue
		}
		changed := 0
		for _, env := range f.Envs {
			if env == nil {
				continue
			}
			for name, marked := range env.Secrets {
				if !marked {
					continue
				}
				v, _ := env.Variables[name].(string)
				if !crypto.IsEncrypted(v) {
					continue
				}
				parsed, err := crypto.Parse(v)
				if err != nil || parsed.KDF != crypto.KDFLegacy {
					continue
				}
				pt, err := crypto.DecryptWithPassphrase(v, passphrase)
				if err != nil {
					continue
				}
				enc, err := crypto.EncryptWithKey(pt, master)
				if err != nil {
					continue
				}
				env.Variables[name] = enc
				changed++
			}
		}
		if changed == 0 {
			continue
		}
		if err := s.writeAtomic(path, &f); err != nil {
			s.logger.Printf("legacy migration %s: %v", path, err)
			continue
		}
		stats.Updated += changed
		stats.Collections++
	}
	return stats
}

// UnlockWorkspace unlocks the vault (or initializes it on first use) and
// migrates any legacy passphrase-encrypted environment values to the master
// key. Migration is best-effort: a partial pass reports what it managed and
// the rest is picked up on the next unlock.
func (s *Store) UnlockWorkspace(passphrase string) (MigrationStats, error) {
	if err := s.session.SetPassphrase(passphrase); err != nil {
		return MigrationStats{}, err
	}
	buf, err := s.session.Key()
	if err != nil {
		return MigrationStats{}, err
	}
	defer buf.Destroy()
	stats := s.MigrateLegacyEnvironments(passphrase, buf.Bytes())
	if err := s.bootstrapDefault(); err != nil {
		s.logger.Printf("default bootstrap after unlock: %v", err)
	}
	return stats, nil
}

// ReencryptSensitive reloads and resaves every document under the current
// master key: collections and environments through the field-level walkers,
// history, last results and cookies as fresh whole-document ciphertext.
// Per-document failures are logged and skipped.
func (s *Store) ReencryptSensitive() (ReencryptStats, error) {
	var stats ReencryptStats
	if !s.session.Unlocked() {
		return stats, vault.ErrWorkspaceLocked
	}
	s.RefreshGitignore()

	entries, err := os.ReadDir(s.collectionsDir)
	if err != nil {
		return stats, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if exists(s.collectionPath(id)) {
			if col, _, err := s.LoadCollection(id); err == nil {
				if err := s.SaveCollection(id, col); err == nil {
					stats.Collections++
				} else {
					s.logger.Printf("reencrypt collection %s: %v", id, err)
				}
			} else {
				s.logger.Printf("reencrypt collection %s: %v", id, err)
			}
		}
		if exists(s.envPath(id)) {
			if env, _, err := s.LoadEnvironment(id); err == nil {
				if err := s.SaveEnvironment(id, env); err == nil {
					stats.Environments++
				} else {
					s.logger.Printf("reencrypt environment %s: %v", id, err)
				}
			} else {
				s.logger.Printf("reencrypt environment %s: %v", id, err)
			}
		}
		if exists(s.historyPath(id)) {
			if hist, err := s.LoadHistory(id); err == nil {
				if err := s.writeSensitive(s.historyPath(id), hist); err == nil {
					stats.History++
				} else {
					s.logger.Printf("reencrypt history %s: %v", id, err)
				}
			} else {
				s.logger.Printf("reencrypt history %s: %v", id, err)
			}
		}
		if exists(s.lastResultsPath(id)) {
			if lr, err := s.LoadLastResults(id); err == nil {
				if err := s.writeSensitive(s.lastResultsPath(id), lr); err == nil {
					stats.LastResults++
				} else {
					s.logger.Printf("reencrypt last results %s: %v", id, err)
				}
			} else {
				s.logger.Printf("reencrypt last results %s: %v", id, err)
			}
		}
		if exists(s.cookiesPath(id)) {
			if jar, err := s.loadCookieJar(id); err == nil {
				if err := s.writeSensitive(s.cookiesPath(id), jar); err == nil {
					stats.Cookies++
				} else {
					s.logger.Printf("reencrypt cookies %s: %v", id, err)
				}
			} else {
				s.logger.Printf("reencrypt cookies %s: %v", id, err)
			}
		}
	}
	return stats, nil
}

// workspaceHasCiphertext scans raw collection and environment files for
// envelope values. Raw reads, so it answers while locked.
func (s *Store) workspaceHasCiphertext() bool {
	entries, err := os.ReadDir(s.collectionsDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, path := range []string{s.collectionPath(e.Name()), s.envPath(e.Name())} {
			var doc any
			if readJSON(path, &doc) == nil && secret.ContainsCiphertext(doc) {
				return true
			}
		}
	}
	return false
}

// Status reports vault health. Locked also covers the orphaned-ciphertext
// case: encrypted data with no loaded key should prompt for a passphrase
// even if the vault record itself is missing.
func (s *Store) Status() model.WorkspaceStatus {
	unlocked := s.session.Unlocked()
	hasVault := s.session.HasVault()
	ciphertext := s.workspaceHasCiphertext()
	return model.WorkspaceStatus{
		HasVault:   hasVault,
		Locked:     !unlocked && (hasVault || ciphertext),
		Legacy:     s.HasLegacyInlineEncryption(),
		Ciphertext: ciphertext,
	}
}
