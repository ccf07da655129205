package server

import (
	"net/http"
	"strings"

	"github.com/jordandevai/LiteFetch-API-Client/internal/model"
	"github.com/jordandevai/LiteFetch-API-Client/internal/secret"
)

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metas, err := s.store.ListCollections()
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, metas)
	case http.MethodPost:
		var req struct {
			Name        string                 `json:"name"`
			Collection  *model.Collection      `json:"collection"`
			Environment *model.EnvironmentFile `json:"environment"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			req.Name = "New Collection"
		}
		meta, err := s.store.CreateCollection(req.Name, "")
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		if req.Collection != nil {
			req.Collection.ID = meta.ID
			if err := s.store.SaveCollection(meta.ID, req.Collection); err != nil {
				s.writeStoreError(w, err)
				return
			}
		}
		if req.Environment != nil {
			if err := s.store.SaveEnvironment(meta.ID, req.Environment); err != nil {
				s.writeStoreError(w, err)
				return
			}
		}
		writeJSON(w, meta)
	default:
		methodNotAllowed(w)
	}
}

// handleCollectionByID dispatches /api/collections/<id>[/<subresource>].
func (s *Server) handleCollectionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/collections/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeDetail(w, http.StatusNotFound, "collection not found")
		return
	}
	switch sub {
	case "":
		s.handleBundle(w, r, id)
	case "collection":
		s.handleCollectionDoc(w, r, id)
	case "environment":
		s.handleEnvironmentDoc(w, r, id)
	case "ui-state":
		s.handleUIState(w, r, id)
	case "last-results":
		s.handleLastResults(w, r, id)
	case "history":
		s.handleHistory(w, r, id)
	case "cookies":
		s.handleCookies(w, r, id)
	default:
		if reqID, ok := strings.CutPrefix(sub, "last-results/"); ok && reqID != "" {
			s.handleUpsertLastResult(w, r, id, reqID)
			return
		}
		writeDetail(w, http.StatusNotFound, "not found")
	}
}

// logDiags records per-field decrypt failures. The document still loads;
// affected fields keep their ciphertext for a later retry.
func (s *Server) logDiags(id string, diags secret.Diagnostics) {
	for _, d := range diags {
		s.logger.Printf("collection %s: decrypt %s: %s", id, d.Path, d.Message)
	}
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		bundle, diags, err := s.store.LoadBundle(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.logDiags(id, diags)
		writeJSON(w, bundle)
	case http.MethodDelete:
		if err := s.store.DeleteCollection(id); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCollectionDoc(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		col, diags, err := s.store.LoadCollection(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.logDiags(id, diags)
		writeJSON(w, col)
	case http.MethodPost:
		var col model.Collection
		if !decodeBody(w, r, &col) {
			return
		}
		if err := s.store.SaveCollection(id, &col); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEnvironmentDoc(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		env, diags, err := s.store.LoadEnvironment(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.logDiags(id, diags)
		writeJSON(w, env)
	case http.MethodPost:
		var env model.EnvironmentFile
		if !decodeBody(w, r, &env) {
			return
		}
		if err := s.store.SaveEnvironment(id, &env); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUIState(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		ui, err := s.store.LoadUIState(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, ui)
	case http.MethodPost:
		var ui model.UIState
		if !decodeBody(w, r, &ui) {
			return
		}
		if err := s.store.SaveUIState(id, ui); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleLastResults(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		results, err := s.store.LoadLastResults(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, results)
	case http.MethodPost:
		var results map[string]model.RequestResult
		if !decodeBody(w, r, &results) {
			return
		}
		if err := s.store.SaveLastResults(id, results); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpsertLastResult(w http.ResponseWriter, r *http.Request, id, requestID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var result model.RequestResult
	if !decodeBody(w, r, &result) {
		return
	}
	result.RequestID = requestID
	if err := s.store.UpsertLastResult(id, result); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		hist, err := s.store.LoadHistory(id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, hist)
	case http.MethodPost:
		var result model.RequestResult
		if !decodeBody(w, r, &result) {
			return
		}
		if err := s.store.AppendHistory(id, result); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	default:
		methodNotAllowed(w)
	}
}

// resolveEnvID picks the cookie jar bucket: an explicit, known env id wins,
// otherwise the file's active environment.
func (s *Server) resolveEnvID(id, envID string) (string, error) {
	f, _, err := s.store.LoadEnvironment(id)
	if err != nil {
		return "", err
	}
	if envID != "" {
		if _, ok := f.Envs[envID]; ok {
			return envID, nil
		}
	}
	return f.ActiveEnv, nil
}

func (s *Server) handleCookies(w http.ResponseWriter, r *http.Request, id string) {
	envID, err := s.resolveEnvID(id, r.URL.Query().Get("env"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cookies, err := s.store.LoadEnvCookies(id, envID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, cookies)
	case http.MethodPost:
		var cookie model.StoredCookie
		if !decodeBody(w, r, &cookie) {
			return
		}
		cookies, err := s.store.LoadEnvCookies(id, envID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		replaced := false
		for i, c := range cookies {
			if c.Name == cookie.Name && c.Domain == cookie.Domain && c.Path == cookie.Path {
				cookies[i] = cookie
				replaced = true
			}
		}
		if !replaced {
			cookies = append(cookies, cookie)
		}
		if err := s.store.SaveEnvCookies(id, envID, cookies); err != nil {
			s.writeStoreError(w, err)
			return
		}
		cookies, err = s.store.LoadEnvCookies(id, envID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, cookies)
	case http.MethodDelete:
		q := r.URL.Query()
		domain, path, name := q.Get("domain"), q.Get("path"), q.Get("name")
		if domain == "" && path == "" && name == "" {
			if err := s.store.ClearEnvCookies(id, envID); err != nil {
				s.writeStoreError(w, err)
				return
			}
			writeJSON(w, []model.StoredCookie{})
			return
		}
		cookies, err := s.store.LoadEnvCookies(id, envID)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		kept := make([]model.StoredCookie, 0, len(cookies))
		for _, c := range cookies {
			matches := true
			if domain != "" && c.Domain != domain {
				matches = false
			}
			if path != "" && c.Path != path {
				matches = false
			}
			if name != "" && c.Name != name {
				matches = false
			}
			if !matches {
				kept = append(kept, c)
			}
		}
		if err := s.store.SaveEnvCookies(id, envID, kept); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, kept)
	default:
		methodNotAllowed(w)
	}
}
