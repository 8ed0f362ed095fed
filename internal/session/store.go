// Package session maps opaque browser tokens to account connection
// parameters and to the encrypted account password. One browser may
// hold several tokens (multi-account); exactly one is active at a time,
// tracked by the HTTP layer's session cookie. The ordered token list
// itself travels in a separate cookie, so every operation takes the
// caller's current list and returns the updated one.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hourinbox/webmail/internal/kv"
	"github.com/hourinbox/webmail/internal/model"
)

const (
	sessionKeyPrefix  = "session:"
	passwordKeyPrefix = "password:"
)

// Data is the connection profile bound to one session token. Records
// are never mutated in place; a re-login replaces the token wholesale.
type Data struct {
	Email              string `json:"email"`
	OrgID              string `json:"orgId"`
	IMAPHost           string `json:"imapHost"`
	IMAPPort           int    `json:"imapPort"`
	SMTPHost           string `json:"smtpHost"`
	SMTPPort           int    `json:"smtpPort"`
	TLSMode            string `json:"tlsMode"`
	RejectUnauthorized bool   `json:"rejectUnauthorized"`
}

// Account is one entry of the multi-account list shown to the browser.
type Account struct {
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Active       bool   `json:"active"`
}

// OrgResolver joins organization display data onto account listings.
type OrgResolver interface {
	OrganizationByID(ctx context.Context, id string) (*model.Organization, error)
}

// Store persists sessions and their encrypted passwords in the
// ephemeral kv layer with a shared TTL.
type Store struct {
	kv  kv.Store
	ttl time.Duration
}

// NewStore creates a session store with the given session TTL.
func NewStore(kvStore kv.Store, ttl time.Duration) *Store {
	return &Store{kv: kvStore, ttl: ttl}
}

// GenerateToken returns a cryptographically random session token.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create persists a new session plus its encrypted password and returns
// the new token together with the updated token list. Any existing
// token for the same email is a stale duplicate login: it is destroyed,
// password entry included, while tokens for other emails are preserved.
func (s *Store) Create(
	data Data,
	encryptedPassword string,
	existing []string,
) (string, []string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("encoding session: %w", err)
	}

	if err := s.kv.Set(sessionKeyPrefix+token, string(payload), s.ttl); err != nil {
		return "", nil, fmt.Errorf("storing session: %w", err)
	}
	if err := s.kv.Set(passwordKeyPrefix+token, encryptedPassword, s.ttl); err != nil {
		return "", nil, fmt.Errorf("storing session password: %w", err)
	}

	cleaned := make([]string, 0, len(existing)+1)
	for _, t := range existing {
		sess, err := s.Get(t)
		if err != nil {
			return "", nil, err
		}
		if sess == nil {
			// Expired token; drop it from the list.
			continue
		}
		if sess.Email == data.Email {
			if err := s.destroyRecords(t); err != nil {
				return "", nil, err
			}
			continue
		}
		cleaned = append(cleaned, t)
	}
	cleaned = append(cleaned, token)

	return token, cleaned, nil
}

// Get resolves a token to its session data. A nil result means the
// token is expired or was never issued; the two are indistinguishable.
func (s *Store) Get(token string) (*Data, error) {
	raw, ok, err := s.kv.Get(sessionKeyPrefix + token)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &data, nil
}

// Password returns the encrypted password stored alongside a session.
// An empty result means the password entry has expired or been purged.
func (s *Store) Password(token string) (string, error) {
	raw, ok, err := s.kv.Get(passwordKeyPrefix + token)
	if err != nil {
		return "", fmt.Errorf("reading session password: %w", err)
	}
	if !ok {
		return "", nil
	}
	return raw, nil
}

// Destroy deletes a session and its password, removes the token from
// the list, and returns the remaining list plus the token to promote to
// active ("" when none remain). A destroyed token is never resurrected.
func (s *Store) Destroy(token string, tokens []string) ([]string, string, error) {
	if err := s.destroyRecords(token); err != nil {
		return nil, "", err
	}

	remaining := removeToken(tokens, token)
	next := ""
	if len(remaining) > 0 {
		next = remaining[0]
	}
	return remaining, next, nil
}

// SwitchActive scans the token list for a session matching email and
// returns its token. An empty result means the account is unknown to
// this browser; callers must surface that, not silently no-op.
func (s *Store) SwitchActive(tokens []string, email string) (string, error) {
	for _, t := range tokens {
		sess, err := s.Get(t)
		if err != nil {
			return "", err
		}
		if sess != nil && sess.Email == email {
			return t, nil
		}
	}
	return "", nil
}

// RemoveAccount destroys the session for email regardless of whether it
// is active. It returns the remaining token list, the token that should
// be active afterwards, and whether a session was actually removed.
func (s *Store) RemoveAccount(
	tokens []string,
	activeToken, email string,
) ([]string, string, bool, error) {
	for _, t := range tokens {
		sess, err := s.Get(t)
		if err != nil {
			return nil, "", false, err
		}
		if sess == nil || sess.Email != email {
			continue
		}

		if err := s.destroyRecords(t); err != nil {
			return nil, "", false, err
		}

		remaining := removeToken(tokens, t)
		next := activeToken
		if t == activeToken {
			next = ""
			if len(remaining) > 0 {
				next = remaining[0]
			}
		}
		return remaining, next, true, nil
	}

	return tokens, activeToken, false, nil
}

// ListAccounts resolves every token to its session, joining
// organization display data. Expired tokens are skipped.
func (s *Store) ListAccounts(
	ctx context.Context,
	tokens []string,
	activeToken string,
	orgs OrgResolver,
) ([]Account, error) {
	accounts := make([]Account, 0, len(tokens))
	for _, t := range tokens {
		sess, err := s.Get(t)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			continue
		}

		acct := Account{
			Email:  sess.Email,
			Active: t == activeToken,
		}
		if orgs != nil {
			org, err := orgs.OrganizationByID(ctx, sess.OrgID)
			if err != nil {
				return nil, err
			}
			if org != nil {
				acct.Organization = org.Name
				acct.Domain = org.Domain
			}
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// destroyRecords deletes the kv entries backing a token.
func (s *Store) destroyRecords(token string) error {
	if err := s.kv.Del(sessionKeyPrefix+token, passwordKeyPrefix+token); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}

func removeToken(tokens []string, token string) []string {
	remaining := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != token {
			remaining = append(remaining, t)
		}
	}
	return remaining
}
