package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hourinbox/webmail/internal/model"
)

type orgRequest struct {
	Domain             string `json:"domain"`
	Name               string `json:"name"`
	IMAPHost           string `json:"imapHost"`
	IMAPPort           int    `json:"imapPort"`
	SMTPHost           string `json:"smtpHost"`
	SMTPPort           int    `json:"smtpPort"`
	TLSMode            string `json:"tlsMode"`
	RejectUnauthorized *bool  `json:"rejectUnauthorized"`
}

func (req *orgRequest) validate() error {
	if req.Domain == "" || req.IMAPHost == "" || req.SMTPHost == "" {
		return errBadRequest("domain, imapHost and smtpHost are required")
	}
	if req.IMAPPort < 1 || req.IMAPPort > 65535 || req.SMTPPort < 1 || req.SMTPPort > 65535 {
		return errBadRequest("ports must be between 1 and 65535")
	}
	switch req.TLSMode {
	case "", model.TLSModeTLS, model.TLSModeStartTLS:
	default:
		return errBadRequest("tlsMode must be tls or starttls")
	}
	return nil
}

func (req *orgRequest) toModel() *model.Organization {
	org := &model.Organization{
		Domain:             strings.ToLower(req.Domain),
		Name:               req.Name,
		IMAPHost:           req.IMAPHost,
		IMAPPort:           req.IMAPPort,
		SMTPHost:           req.SMTPHost,
		SMTPPort:           req.SMTPPort,
		TLSMode:            req.TLSMode,
		RejectUnauthorized: true,
	}
	if org.TLSMode == "" {
		org.TLSMode = model.TLSModeTLS
	}
	if req.RejectUnauthorized != nil {
		org.RejectUnauthorized = *req.RejectUnauthorized
	}
	return org
}

// handleGetOrg serves one organization's connection profile.
func (s *Server) handleGetOrg(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(r.PathValue("domain"))

	org, err := s.store.OrganizationByDomain(r.Context(), domain)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if org == nil {
		s.writeError(w, s.log, errNotFound("no organization registered for "+domain))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

// handleUpdateOrg replaces an organization's connection profile.
func (s *Server) handleUpdateOrg(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(r.PathValue("domain"))

	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	req.Domain = domain
	if err := req.validate(); err != nil {
		s.writeError(w, s.log, err)
		return
	}

	existing, err := s.store.OrganizationByDomain(r.Context(), domain)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if existing == nil {
		s.writeError(w, s.log, errNotFound("no organization registered for "+domain))
		return
	}

	org := req.toModel()
	org.ID = existing.ID
	err = s.store.UpdateOrganization(r.Context(), org)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, s.log, errNotFound("no organization registered for "+domain))
		return
	}
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

// handleRegisterOrg registers a new organization after probing that
// both upstream servers are reachable. An unreachable server fails the
// registration with 422 so typos surface immediately.
func (s *Server) handleRegisterOrg(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, s.log, err)
		return
	}
	org := req.toModel()

	eg, ctx := errgroup.WithContext(r.Context())
	eg.Go(func() error {
		if err := s.prober.Check(
			ctx, org.IMAPHost, org.IMAPPort, org.TLSMode, org.RejectUnauthorized,
		); err != nil {
			return fmt.Errorf("IMAP server unreachable: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		if err := s.prober.Check(
			ctx, org.SMTPHost, org.SMTPPort, org.TLSMode, org.RejectUnauthorized,
		); err != nil {
			return fmt.Errorf("SMTP server unreachable: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		s.writeError(w, s.log, errUnprocessable(err.Error()))
		return
	}

	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		s.writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"organization": org})
}
