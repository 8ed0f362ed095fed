package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hourinbox/webmail/internal/session"
)

const loginRateKeyPrefix = "ratelimit:login:"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
	Domain       string `json:"domain,omitempty"`
}

// handleLogin validates credentials against the organization's IMAP
// server and issues a session. Every attempt counts against the rate
// limit before the password is even looked at, so the 429 cannot be
// probed around with valid credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		s.writeError(w, s.log, errBadRequest("email and password are required"))
		return
	}
	at := strings.LastIndex(req.Email, "@")
	if at <= 0 || at == len(req.Email)-1 {
		s.writeError(w, s.log, errBadRequest("invalid email address"))
		return
	}

	limited, err := s.registerLoginAttempt(req.Email)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if limited {
		s.writeError(w, s.log, errRateLimited())
		return
	}

	domain := req.Email[at+1:]
	org, err := s.store.OrganizationByDomain(r.Context(), domain)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if org == nil {
		s.writeError(w, s.log, errNotFound("no organization registered for "+domain))
		return
	}

	data := session.Data{
		Email:              req.Email,
		OrgID:              org.ID,
		IMAPHost:           org.IMAPHost,
		IMAPPort:           org.IMAPPort,
		SMTPHost:           org.SMTPHost,
		SMTPPort:           org.SMTPPort,
		TLSMode:            org.TLSMode,
		RejectUnauthorized: org.RejectUnauthorized,
	}

	acct := accountFromSession(&data)
	if err := s.gateway.VerifyCredentials(r.Context(), acct, req.Password); err != nil {
		s.writeError(w, s.log, err)
		return
	}

	// Successful login clears the attempt counter.
	if err := s.kv.Del(loginRateKeyPrefix + req.Email); err != nil {
		s.log.Warn().Err(err).Msg("clearing login rate counter failed")
	}

	encrypted, err := s.vault.Encrypt(req.Password)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	token, tokens, err := s.sessions.Create(data, encrypted, accountTokens(r))
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.setSessionCookies(w, token, tokens)
	writeJSON(w, http.StatusOK, map[string]any{"user": userResponse{
		Email:        req.Email,
		Organization: org.Name,
		Domain:       org.Domain,
	}})
}

// registerLoginAttempt bumps the per-email counter and reports whether
// the limit is exceeded. The window starts at the first attempt.
func (s *Server) registerLoginAttempt(email string) (bool, error) {
	key := loginRateKeyPrefix + email

	count, err := s.kv.Incr(key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := s.kv.Expire(key, s.rateLimitWindow); err != nil {
			return false, err
		}
	}
	return count > s.rateLimitMax, nil
}

// handleLogout destroys the active session and promotes the next
// account, if any.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := activeToken(r)
	if token == "" {
		s.writeError(w, s.log, errUnauthenticated())
		return
	}

	remaining, next, err := s.sessions.Destroy(token, accountTokens(r))
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	s.setSessionCookies(w, next, remaining)
	writeJSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

type switchRequest struct {
	Email string `json:"email"`
}

// handleSwitch makes another logged-in account the active one.
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, s.log, errBadRequest("invalid JSON body"))
		return
	}
	if req.Email == "" {
		s.writeError(w, s.log, errBadRequest("email is required"))
		return
	}

	tokens := accountTokens(r)
	token, err := s.sessions.SwitchActive(tokens, strings.ToLower(req.Email))
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if token == "" {
		s.writeError(w, s.log, errNotFound("no session for "+req.Email))
		return
	}

	s.setSessionCookies(w, token, tokens)
	writeJSON(w, http.StatusOK, map[string]any{"active": req.Email})
}

// handleMe returns the active account's identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	auth, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}

	resp := userResponse{Email: auth.data.Email}
	org, err := s.store.OrganizationByID(r.Context(), auth.data.OrgID)
	if err == nil && org != nil {
		resp.Organization = org.Name
		resp.Domain = org.Domain
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": resp})
}

// handleAccounts lists every logged-in account for this browser.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.sessions.ListAccounts(
		r.Context(), accountTokens(r), activeToken(r), s.store,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// handleRemoveAccount logs one account out of the multi-account list,
// whether or not it is the active one.
func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(r.PathValue("email"))

	remaining, next, removed, err := s.sessions.RemoveAccount(
		accountTokens(r), activeToken(r), email,
	)
	if err != nil {
		s.writeError(w, s.log, err)
		return
	}
	if !removed {
		s.writeError(w, s.log, errNotFound("no session for "+email))
		return
	}

	s.setSessionCookies(w, next, remaining)
	writeJSON(w, http.StatusOK, map[string]any{"removed": email})
}
