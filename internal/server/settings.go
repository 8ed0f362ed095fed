package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hourinbox/webmail/internal/model"
)

// handleGetSettings serves the account's preferences, falling back to
// defaults for accounts that never saved any.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	settings, err := s.store.SettingsByEmail(r.Context(), auth.data.Email)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if settings == nil {
		defaults := model.DefaultSettings(auth.data.Email, s.draftAutosaveSec)
		settings = &defaults
	}

	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// handlePutSettings replaces the account's preferences.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var settings model.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	settings.Email = auth.data.Email
	if settings.DraftAutosaveSec < 1 {
		settings.DraftAutosaveSec = s.draftAutosaveSec
	}

	if err := s.store.UpsertSettings(r.Context(), &settings); err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	signatures, err := s.store.SignaturesByEmail(r.Context(), auth.data.Email)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"signatures": signatures})
}

type signatureRequest struct {
	Name      string `json:"name"`
	HTML      string `json:"html"`
	IsDefault bool   `json:"isDefault"`
}

func (s *Server) handleCreateSignature(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var req signatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if req.Name == "" {
		s.writeError(w, s.log, errBadRequest("signature name is required"))
		return
	}

	sig := model.Signature{
		Email:     auth.data.Email,
		Name:      req.Name,
		HTML:      req.HTML,
		IsDefault: req.IsDefault,
	}
	if err := s.store.CreateSignature(r.Context(), &sig); err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"signature": sig})
}

func (s *Server) handleUpdateSignature(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	var req signatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}

	sig := model.Signature{
		ID:        r.PathValue("id"),
		Email:     auth.data.Email,
		Name:      req.Name,
		HTML:      req.HTML,
		IsDefault: req.IsDefault,
	}
	err = s.store.UpdateSignature(r.Context(), &sig)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, s.log, errNotFound("signature not found"))
		return
	}
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"signature": sig})
}

func (s *Server) handleDeleteSignature(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	err = s.store.DeleteSignature(r.Context(), auth.data.Email, r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, s.log, errNotFound("signature not found"))
		return
	}
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
