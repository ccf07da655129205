// Package server exposes the workspace vault and its documents over a
// local HTTP API. Every handler goes through the store, which enforces the
// lock; the server only translates errors into status codes (423 locked,
// 401 incorrect passphrase) and rate-limits passphrase attempts.
package server

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jordandevai/LiteFetch-API-Client/internal/store"
	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

type Server struct {
	cfg     Config
	mux     *http.ServeMux
	session *vault.Session
	store   *store.Store
	logger  *log.Logger

	rlPassphraseIP *multiLimiter
}

func New(cfg Config) (*Server, error) {
	cfg.setDefaults()

	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return nil, err
	}

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)
	session := vault.NewSession(cfg.WorkspaceDir)
	st, err := store.Open(cfg.WorkspaceDir, session, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		session: session,
		store:   st,
		logger:  logger,
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }
	s.rlPassphraseIP = newMultiLimiter(rate.Limit(perWindow(cfg.UnlockBurst, cfg.UnlockWindow)), cfg.UnlockBurst, 1*time.Hour)

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s
}

func (s *Server) Addr() string {
	return s.cfg.Addr
}

// addDefaultHeaders permits the local UI, which runs on its own origin.
func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}
