package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const (
	sessionCookie  = "hourinbox_session"
	accountsCookie = "hourinbox_accounts"
)

// activeToken reads the active session token from the request, "" when
// absent.
func activeToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// accountTokens reads the ordered multi-account token list. The cookie
// carries a base64url-wrapped JSON array; anything unreadable counts
// as an empty list.
func accountTokens(r *http.Request) []string {
	c, err := r.Cookie(accountsCookie)
	if err != nil {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}

	var tokens []string
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil
	}
	return tokens
}

// setSessionCookies writes both cookies. An empty active token clears
// the session cookie; an empty list clears the accounts cookie.
func (s *Server) setSessionCookies(w http.ResponseWriter, active string, tokens []string) {
	s.setCookie(w, sessionCookie, active)

	encoded := ""
	if len(tokens) > 0 {
		raw, err := json.Marshal(tokens)
		if err == nil {
			encoded = base64.RawURLEncoding.EncodeToString(raw)
		}
	}
	s.setCookie(w, accountsCookie, encoded)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookies,
		MaxAge:   int(s.sessionTTL / time.Second),
	}
	if value == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
