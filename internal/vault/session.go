// Package vault owns the workspace master key lifecycle. A Session moves
// through three states: no vault record on disk, record present but key
// not in memory (locked), and record present with the key held in a
// guarded enclave (unlocked). Exactly one Session exists per workspace.
package vault

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jordandevai/LiteFetch-API-Client/internal/crypto"
	"github.com/jordandevai/LiteFetch-API-Client/internal/secure"
)

var (
	ErrWorkspaceLocked     = errors.New("vault: workspace locked")
	ErrIncorrectPassphrase = errors.New("vault: incorrect passphrase")
	ErrNoVault             = errors.New("vault: no vault record")
)

const (
	recordDir  = ".litefetch"
	recordFile = "vault.key"
)

// Session is the explicit vault state shared by every storage operation.
// Lock/unlock performed through one handle is immediately visible to all
// concurrent callers.
type Session struct {
	mu   sync.RWMutex
	path string
	key  *secure.KeyBuffer // nil while locked
}

// NewSession binds a session to a workspace directory. No I/O happens
// until a passphrase is supplied.
func NewSession(workspaceDir string) *Session {
	return &Session{path: filepath.Join(workspaceDir, recordDir, recordFile)}
}

// RecordPath returns the on-disk location of the vault record.
func (s *Session) RecordPath() string { return s.path }

// HasVault reports whether a vault record exists on disk.
func (s *Session) HasVault() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Locked reports whether sensitive access is currently denied: a record
// exists but no key is loaded.
func (s *Session) Locked() bool {
	return s.HasVault() && !s.Unlocked()
}

// Unlocked reports whether a master key is held in memory.
func (s *Session) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// SetPassphrase drives the state machine. An empty passphrase drops the
// in-memory key (lock). Otherwise: if a record exists it is unwrapped with
// the passphrase (ErrIncorrectPassphrase on AEAD failure); if none exists
// a fresh random master key is generated, wrapped and persisted. Either
// way the session ends up unlocked on success.
func (s *Session) SetPassphrase(passphrase string) error {
	if passphrase == "" {
		s.Clear()
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		master, err := readRecord(s.path, passphrase)
		if err != nil {
			return err
		}
		s.holdKey(master)
		return nil
	}

	master := make([]byte, crypto.KeyLen)
	if _, err := rand.Read(master); err != nil {
		return err
	}
	if err := writeRecord(s.path, master, passphrase); err != nil {
		crypto.Zero(master)
		return err
	}
	s.holdKey(master)
	return nil
}

// Clear drops the in-memory master key. The record on disk is untouched,
// so the vault transitions to locked (or stays absent).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		s.key.Destroy()
		s.key = nil
	}
}

// Rotate rewraps the same master key under a new passphrase. The key
// itself is preserved, so existing field ciphertexts stay valid. Fails
// with ErrIncorrectPassphrase unless the old passphrase unwraps the
// current record. Leaves the session unlocked.
func (s *Session) Rotate(oldPassphrase, newPassphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return ErrNoVault
	}
	master, err := readRecord(s.path, oldPassphrase)
	if err != nil {
		return err
	}
	if err := writeRecord(s.path, master, newPassphrase); err != nil {
		crypto.Zero(master)
		return err
	}
	s.holdKey(master)
	return nil
}

// Key opens the master key for the duration of one operation. Callers
// must Destroy the returned buffer. ErrWorkspaceLocked when no key is
// loaded.
func (s *Session) Key() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, ErrWorkspaceLocked
	}
	return s.key.Open()
}

// holdKey seals master into a fresh enclave; memguard wipes the input.
// Caller holds s.mu.
func (s *Session) holdKey(master []byte) {
	if s.key != nil {
		s.key.Destroy()
	}
	s.key = secure.NewKeyBuffer(master)
}
