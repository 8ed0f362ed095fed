// Package server is the HTTP surface: session cookies in, JSON out,
// every mailbox operation delegated to the gateway with the cache
// consulted first. Mutations follow a strict order: upstream success,
// then invalidation (failures logged, never surfaced), then response.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/rs/zerolog"

	"github.com/hourinbox/webmail/internal/cache"
	"github.com/hourinbox/webmail/internal/config"
	"github.com/hourinbox/webmail/internal/kv"
	"github.com/hourinbox/webmail/internal/mail"
	"github.com/hourinbox/webmail/internal/session"
	"github.com/hourinbox/webmail/internal/store"
	"github.com/hourinbox/webmail/internal/vault"
)

// MailGateway is the slice of the mail gateway the HTTP layer uses.
type MailGateway interface {
	VerifyCredentials(ctx context.Context, acct mail.Account, password string) error
	ListFolders(ctx context.Context, acct mail.Account, password string) ([]mail.Folder, error)
	ListMessages(ctx context.Context, acct mail.Account, password, folder string, page, limit int) (*mail.MessagePage, error)
	SearchMessages(ctx context.Context, acct mail.Account, password, folder string, query mail.SearchQuery, limit int) (*mail.MessagePage, error)
	GetMessage(ctx context.Context, acct mail.Account, password, folder string, uid uint32) (*mail.MessageFull, error)
	GetAttachment(ctx context.Context, acct mail.Account, password, folder string, uid uint32, filename string) (*mail.AttachmentContent, error)
	ResolveMessageID(ctx context.Context, acct mail.Account, password, folder, messageID string) (uint32, error)
	UpdateFlags(ctx context.Context, acct mail.Account, password, folder string, uids []uint32, add, remove []string) error
	MoveMessage(ctx context.Context, acct mail.Account, password, folder string, uid uint32, target string) error
	DeleteMessage(ctx context.Context, acct mail.Account, password, folder string, uid uint32) error
	SpecialUseFolder(ctx context.Context, acct mail.Account, password string, attr imap.MailboxAttr, fallback string) (string, error)
	AppendDraft(ctx context.Context, acct mail.Account, password string, draft mail.DraftOptions, replaceUID uint32) (uint32, string, error)
	GetDraft(ctx context.Context, acct mail.Account, password, folder string, uid uint32) (*mail.DraftContent, error)
	CollectAddresses(ctx context.Context, acct mail.Account, password string) ([]mail.Address, error)
	SendMail(ctx context.Context, acct mail.Account, password string, opts mail.SendOptions) (string, error)
}

// ConnectionProber checks reachability of one upstream endpoint.
type ConnectionProber interface {
	Check(ctx context.Context, host string, port int, tlsMode string, rejectUnauthorized bool) error
}

// Server wires the HTTP routes to their backing components.
type Server struct {
	store    *store.SQLiteStore
	sessions *session.Store
	cache    *cache.MailCache
	gateway  MailGateway
	prober   ConnectionProber
	vault    *vault.Vault
	kv       kv.Store
	log      zerolog.Logger

	sessionTTL       time.Duration
	secureCookies    bool
	rateLimitMax     int64
	rateLimitWindow  time.Duration
	draftAutosaveSec int
}

// New assembles a server from its components.
func New(
	cfg *config.AppConfig,
	st *store.SQLiteStore,
	sessions *session.Store,
	mailCache *cache.MailCache,
	gateway MailGateway,
	prober ConnectionProber,
	v *vault.Vault,
	kvStore kv.Store,
	log zerolog.Logger,
) *Server {
	return &Server{
		store:            st,
		sessions:         sessions,
		cache:            mailCache,
		gateway:          gateway,
		prober:           prober,
		vault:            v,
		kv:               kvStore,
		log:              log,
		sessionTTL:       cfg.SessionTTL(),
		secureCookies:    cfg.Server.SecureCookies,
		rateLimitMax:     int64(cfg.RateLimit.MaxAttempts),
		rateLimitWindow:  time.Duration(cfg.RateLimit.WindowSec) * time.Second,
		draftAutosaveSec: cfg.Mail.DraftAutosaveSec,
	}
}

// Handler builds the route table wrapped in the logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /auth/switch", s.handleSwitch)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("GET /auth/accounts", s.handleAccounts)
	mux.HandleFunc("DELETE /auth/accounts/{email}", s.handleRemoveAccount)

	mux.HandleFunc("GET /mail/folders", s.handleFolders)
	mux.HandleFunc("GET /mail/messages", s.handleMessages)
	mux.HandleFunc("GET /mail/messages/{identifier}", s.handleMessage)
	mux.HandleFunc("GET /mail/messages/{uid}/attachments/{filename}", s.handleAttachment)
	mux.HandleFunc("PUT /mail/messages/batch-flags", s.handleBatchFlags)
	mux.HandleFunc("PUT /mail/messages/{uid}", s.handleFlags)
	mux.HandleFunc("DELETE /mail/messages/{uid}", s.handleDelete)
	mux.HandleFunc("POST /mail/archive", s.handleArchive)
	mux.HandleFunc("POST /mail/junk", s.handleJunk)
	mux.HandleFunc("GET /mail/search", s.handleSearch)
	mux.HandleFunc("GET /mail/starred", s.handleStarred)
	mux.HandleFunc("POST /mail/send", s.handleSend)
	mux.HandleFunc("GET /mail/draft", s.handleGetDraft)
	mux.HandleFunc("POST /mail/draft", s.handleSaveDraft)
	mux.HandleFunc("GET /mail/contacts", s.handleContacts)
	mux.HandleFunc("GET /mail/contacts/export", s.handleContactsExport)
	mux.HandleFunc("POST /mail/contacts/import", s.handleContactsImport)

	mux.HandleFunc("GET /settings", s.handleGetSettings)
	mux.HandleFunc("PUT /settings", s.handlePutSettings)
	mux.HandleFunc("GET /settings/signatures", s.handleListSignatures)
	mux.HandleFunc("POST /settings/signatures", s.handleCreateSignature)
	mux.HandleFunc("PUT /settings/signatures/{id}", s.handleUpdateSignature)
	mux.HandleFunc("DELETE /settings/signatures/{id}", s.handleDeleteSignature)

	mux.HandleFunc("GET /org/{domain}", s.handleGetOrg)
	mux.HandleFunc("PUT /org/{domain}", s.handleUpdateOrg)
	mux.HandleFunc("POST /org/register", s.handleRegisterOrg)

	return s.requestLogger(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs method, path, status, and duration per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// authed resolves the request's active session: token, session data,
// decrypted password, and the gateway account. A token without a
// backing record is treated exactly like no token at all.
type authed struct {
	token    string
	tokens   []string
	data     *session.Data
	password string
	account  mail.Account
}

func (s *Server) authenticate(r *http.Request) (*authed, error) {
	token := activeToken(r)
	if token == "" {
		return nil, errUnauthenticated()
	}

	data, err := s.sessions.Get(token)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errUnauthenticated()
	}

	encrypted, err := s.sessions.Password(token)
	if err != nil {
		return nil, err
	}
	if encrypted == "" {
		return nil, errUnauthenticated()
	}

	password, err := s.vault.Decrypt(encrypted)
	if err != nil {
		return nil, errUnauthenticated()
	}

	return &authed{
		token:    token,
		tokens:   accountTokens(r),
		data:     data,
		password: password,
		account:  accountFromSession(data),
	}, nil
}

func accountFromSession(data *session.Data) mail.Account {
	return mail.Account{
		Email:              data.Email,
		IMAPHost:           data.IMAPHost,
		IMAPPort:           data.IMAPPort,
		SMTPHost:           data.SMTPHost,
		SMTPPort:           data.SMTPPort,
		TLSMode:            data.TLSMode,
		RejectUnauthorized: data.RejectUnauthorized,
	}
}

// invalidateFolder runs a folder invalidation after a successful
// mutation. Cache failures degrade to staleness, never to a failed
// request.
func (s *Server) invalidateFolder(email, folder string) {
	if err := s.cache.InvalidateFolder(email, folder); err != nil {
		s.log.Warn().Err(err).Str("email", email).Str("folder", folder).
			Msg("folder invalidation failed")
	}
}

func (s *Server) invalidateAccount(email string) {
	if err := s.cache.InvalidateAccount(email); err != nil {
		s.log.Warn().Err(err).Str("email", email).
			Msg("account invalidation failed")
	}
}
