package server

import (
	"net/http"
	"path/filepath"
)

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	abs, err := filepath.Abs(s.cfg.WorkspaceDir)
	if err != nil {
		abs = s.cfg.WorkspaceDir
	}
	writeJSON(w, map[string]string{"path": abs})
}

func (s *Server) handleWorkspaceStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, s.store.Status())
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.rlPassphraseIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Passphrase == "" {
		writeDetail(w, http.StatusBadRequest, "passphrase required")
		return
	}
	stats, err := s.store.UnlockWorkspace(req.Passphrase)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "unlocked", "migrated": stats})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.session.Clear()
	writeJSON(w, map[string]string{"status": "locked"})
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.rlPassphraseIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}
	var req struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Old == "" || req.New == "" {
		writeDetail(w, http.StatusBadRequest, "old and new passphrases required")
		return
	}
	if err := s.session.Rotate(req.Old, req.New); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "rotated"})
}

// handlePassphrase is the legacy-shaped setter kept for older clients: an
// empty or missing passphrase locks, anything else unlocks.
func (s *Server) handlePassphrase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Passphrase string `json:"passphrase"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Passphrase == "" {
		s.session.Clear()
		writeJSON(w, map[string]string{"status": "cleared"})
		return
	}
	if !s.rlPassphraseIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}
	if _, err := s.store.UnlockWorkspace(req.Passphrase); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.store.RefreshGitignore()
	if s.session.Unlocked() {
		stats, err := s.store.ReencryptSensitive()
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]any{"status": "migrated", "stats": stats})
		return
	}
	if s.session.Locked() {
		writeDetail(w, http.StatusLocked, "workspace locked")
		return
	}
	// No vault yet: gitignore refreshed, nothing to re-encrypt.
	writeJSON(w, map[string]string{"status": "updated"})
}

func (s *Server) handleGitignore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.store.RefreshGitignore() {
		writeDetail(w, http.StatusInternalServerError, "gitignore update failed")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
