package server

import "net/http"

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)

	s.mux.HandleFunc("/api/workspace", s.handleWorkspace)
	s.mux.HandleFunc("/api/workspace/status", s.handleWorkspaceStatus)
	s.mux.HandleFunc("/api/workspace/unlock", s.handleUnlock)
	s.mux.HandleFunc("/api/workspace/lock", s.handleLock)
	s.mux.HandleFunc("/api/workspace/rotate", s.handleRotate)
	s.mux.HandleFunc("/api/workspace/passphrase", s.handlePassphrase)
	s.mux.HandleFunc("/api/workspace/migrate", s.handleMigrate)
	s.mux.HandleFunc("/api/workspace/gitignore", s.handleGitignore)

	s.mux.HandleFunc("/api/collections", s.handleCollections)
	s.mux.HandleFunc("/api/collections/", s.handleCollectionByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
