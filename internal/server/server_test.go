package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourinbox/webmail/internal/cache"
	"github.com/hourinbox/webmail/internal/config"
	"github.com/hourinbox/webmail/internal/kv"
	"github.com/hourinbox/webmail/internal/mail"
	"github.com/hourinbox/webmail/internal/model"
	"github.com/hourinbox/webmail/internal/session"
	"github.com/hourinbox/webmail/internal/vault"
	"github.com/hourinbox/webmail/tests/testutil"
)

// stubGateway records gateway calls and serves canned responses, so
// handler behavior can be tested without an IMAP server.
type stubGateway struct {
	verifyErr  error
	folders    []mail.Folder
	page       *mail.MessagePage
	message    *mail.MessageFull
	resolved   map[string]uint32
	specialUse map[imap.MailboxAttr]string

	verifyCalls  int
	moves        []string
	deletes      []string
	flagCalls    []string
	draftReplace []uint32
	searchCalls  int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		page:       &mail.MessagePage{Messages: []mail.MessageSummary{}, Total: 0},
		resolved:   map[string]uint32{},
		specialUse: map[imap.MailboxAttr]string{},
	}
}

func (g *stubGateway) VerifyCredentials(context.Context, mail.Account, string) error {
	g.verifyCalls++
	return g.verifyErr
}

func (g *stubGateway) ListFolders(context.Context, mail.Account, string) ([]mail.Folder, error) {
	return g.folders, nil
}

func (g *stubGateway) ListMessages(
	_ context.Context, _ mail.Account, _, _ string, _, _ int,
) (*mail.MessagePage, error) {
	return g.page, nil
}

func (g *stubGateway) SearchMessages(
	_ context.Context, _ mail.Account, _, _ string, _ mail.SearchQuery, _ int,
) (*mail.MessagePage, error) {
	g.searchCalls++
	return g.page, nil
}

func (g *stubGateway) GetMessage(
	_ context.Context, _ mail.Account, _, _ string, _ uint32,
) (*mail.MessageFull, error) {
	return g.message, nil
}

func (g *stubGateway) GetAttachment(
	_ context.Context, _ mail.Account, _, _ string, _ uint32, _ string,
) (*mail.AttachmentContent, error) {
	return nil, mail.ErrNotFound
}

func (g *stubGateway) ResolveMessageID(
	_ context.Context, _ mail.Account, _, _, messageID string,
) (uint32, error) {
	return g.resolved[messageID], nil
}

func (g *stubGateway) UpdateFlags(
	_ context.Context, _ mail.Account, _, folder string, uids []uint32, _, _ []string,
) error {
	g.flagCalls = append(g.flagCalls, fmt.Sprintf("%s:%d", folder, len(uids)))
	return nil
}

func (g *stubGateway) MoveMessage(
	_ context.Context, _ mail.Account, _, folder string, uid uint32, target string,
) error {
	g.moves = append(g.moves, fmt.Sprintf("%s->%s:%d", folder, target, uid))
	return nil
}

func (g *stubGateway) DeleteMessage(
	_ context.Context, _ mail.Account, _, folder string, uid uint32,
) error {
	g.deletes = append(g.deletes, fmt.Sprintf("%s:%d", folder, uid))
	return nil
}

func (g *stubGateway) SpecialUseFolder(
	_ context.Context, _ mail.Account, _ string, attr imap.MailboxAttr, _ string,
) (string, error) {
	return g.specialUse[attr], nil
}

func (g *stubGateway) AppendDraft(
	_ context.Context, _ mail.Account, _ string, _ mail.DraftOptions, replaceUID uint32,
) (uint32, string, error) {
	g.draftReplace = append(g.draftReplace, replaceUID)
	return 101, "Drafts", nil
}

func (g *stubGateway) GetDraft(
	_ context.Context, _ mail.Account, _, _ string, _ uint32,
) (*mail.DraftContent, error) {
	return &mail.DraftContent{Subject: "draft"}, nil
}

func (g *stubGateway) CollectAddresses(
	context.Context, mail.Account, string,
) ([]mail.Address, error) {
	return []mail.Address{{Name: "Ada", Address: "ada@example.com"}}, nil
}

func (g *stubGateway) SendMail(
	_ context.Context, _ mail.Account, _ string, _ mail.SendOptions,
) (string, error) {
	return "<generated@example.com>", nil
}

type stubProber struct{ err error }

func (p stubProber) Check(context.Context, string, int, string, bool) error {
	return p.err
}

type testEnv struct {
	server  *Server
	handler http.Handler
	gateway *stubGateway
	prober  *stubProber
	mem     *kv.MemoryStore
	store   interface {
		CreateOrganization(ctx context.Context, org *model.Organization) error
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{
		Session:   config.SessionConfig{Secret: "test-secret", TTLHours: 24},
		Mail:      config.MailConfig{ConnectTimeoutSec: 1, DraftAutosaveSec: 3},
		RateLimit: config.RateLimitConfig{MaxAttempts: 5, WindowSec: 900},
	}

	st := testutil.NewTestStore(t)
	mem := kv.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })

	gateway := newStubGateway()
	prober := &stubProber{}

	srv := New(
		cfg, st,
		session.NewStore(mem, cfg.SessionTTL()),
		cache.New(mem, zerolog.Nop()),
		gateway, prober,
		vault.New("test-secret"),
		mem, zerolog.Nop(),
	)

	return &testEnv{
		server:  srv,
		handler: srv.Handler(),
		gateway: gateway,
		prober:  prober,
		mem:     mem,
		store:   st,
	}
}

func (e *testEnv) registerOrg(t *testing.T, domain string) *model.Organization {
	t.Helper()
	org := &model.Organization{
		Domain:   domain,
		Name:     "Example Corp",
		IMAPHost: "imap." + domain, IMAPPort: 993,
		SMTPHost: "smtp." + domain, SMTPPort: 465,
		TLSMode: model.TLSModeTLS, RejectUnauthorized: true,
	}
	require.NoError(t, e.store.CreateOrganization(context.Background(), org))
	return org
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login creates a session directly and returns the cookies to attach
// to authenticated requests.
func (e *testEnv) login(t *testing.T, email string) []*http.Cookie {
	t.Helper()

	encrypted, err := e.server.vault.Encrypt("secret-password")
	require.NoError(t, err)

	token, tokens, err := e.server.sessions.Create(session.Data{
		Email:    email,
		IMAPHost: "imap.example.com", IMAPPort: 993,
		SMTPHost: "smtp.example.com", SMTPPort: 465,
		TLSMode: model.TLSModeTLS, RejectUnauthorized: true,
	}, encrypted, nil)
	require.NoError(t, err)

	raw, _ := json.Marshal(tokens)
	return []*http.Cookie{
		{Name: sessionCookie, Value: token},
		{Name: accountsCookie, Value: base64.RawURLEncoding.EncodeToString(raw)},
	}
}

func attach(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestLoginSuccessSetsCookies(t *testing.T) {
	env := newTestEnv(t)
	env.registerOrg(t, "example.com")

	rec := env.do(jsonRequest("POST", "/auth/login", map[string]string{
		"email": "user@example.com", "password": "correct",
	}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, env.gateway.verifyCalls)

	cookies := rec.Result().Cookies()
	names := make(map[string]string)
	for _, c := range cookies {
		names[c.Name] = c.Value
	}
	assert.NotEmpty(t, names[sessionCookie])
	assert.NotEmpty(t, names[accountsCookie])

	// Success clears the rate-limit counter.
	_, ok, err := env.mem.Get(loginRateKeyPrefix + "user@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerOrg(t, "example.com")
	env.gateway.verifyErr = &mail.AuthError{Message: "authentication failed for user@example.com"}

	rec := env.do(jsonRequest("POST", "/auth/login", map[string]string{
		"email": "user@example.com", "password": "wrong",
	}))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")

	// The failed attempt stays on the counter.
	count, ok, err := env.mem.Get(loginRateKeyPrefix + "user@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", count)
}

func TestLoginRateLimitedOnSixthAttempt(t *testing.T) {
	env := newTestEnv(t)
	env.registerOrg(t, "example.com")
	env.gateway.verifyErr = &mail.AuthError{Message: "authentication failed"}

	body := map[string]string{"email": "user@example.com", "password": "wrong"}
	for i := 0; i < 5; i++ {
		rec := env.do(jsonRequest("POST", "/auth/login", body))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}

	// Sixth attempt is rejected before credentials are checked, even
	// with the correct password.
	env.gateway.verifyErr = nil
	verifyBefore := env.gateway.verifyCalls

	rec := env.do(jsonRequest("POST", "/auth/login", map[string]string{
		"email": "user@example.com", "password": "correct",
	}))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, verifyBefore, env.gateway.verifyCalls, "no credential check after limit")
}

func TestLoginUnknownDomain(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest("POST", "/auth/login", map[string]string{
		"email": "user@nowhere.example", "password": "pw",
	}))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnauthenticatedRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest("GET", "/mail/folders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteMovesToTrash(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")
	env.gateway.specialUse[imap.MailboxAttrTrash] = "Trash"

	rec := env.do(attach(
		httptest.NewRequest("DELETE", "/mail/messages/42?folder=INBOX", nil), cookies,
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"INBOX->Trash:42"}, env.gateway.moves)
	assert.Empty(t, env.gateway.deletes)
	assert.Contains(t, rec.Body.String(), `"moved":true`)
}

func TestDeleteInTrashExpunges(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")
	env.gateway.specialUse[imap.MailboxAttrTrash] = "Trash"

	rec := env.do(attach(
		httptest.NewRequest("DELETE", "/mail/messages/42?folder=Trash", nil), cookies,
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.gateway.moves, "no Trash-of-Trash")
	assert.Equal(t, []string{"Trash:42"}, env.gateway.deletes)
}

func TestDeleteWithoutTrashFolderExpunges(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	rec := env.do(attach(
		httptest.NewRequest("DELETE", "/mail/messages/7?folder=INBOX", nil), cookies,
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"INBOX:7"}, env.gateway.deletes)
}

func TestFlagUpdateInvalidatesOnlyThatFolder(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	mailCache := env.server.cache
	require.NoError(t, mailCache.Set("user@example.com",
		cache.MessagesKey("user@example.com", "INBOX", 1, 50),
		mail.MessagePage{Total: 1}, cache.MessagePageTTL))
	require.NoError(t, mailCache.Set("user@example.com",
		cache.MessagesKey("user@example.com", "Archive", 1, 50),
		mail.MessagePage{Total: 2}, cache.MessagePageTTL))

	rec := env.do(attach(jsonRequest("PUT", "/mail/messages/42", map[string]any{
		"folder":   "INBOX",
		"addFlags": []string{"\\Seen"},
	}), cookies))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"INBOX:1"}, env.gateway.flagCalls)

	var page mail.MessagePage
	assert.False(t, mailCache.Get(
		cache.MessagesKey("user@example.com", "INBOX", 1, 50), &page))
	assert.True(t, mailCache.Get(
		cache.MessagesKey("user@example.com", "Archive", 1, 50), &page))
}

func TestBatchFlagsSingleGatewayCall(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	rec := env.do(attach(jsonRequest("PUT", "/mail/messages/batch-flags", map[string]any{
		"folder":      "INBOX",
		"uids":        []uint32{1, 2, 3},
		"removeFlags": []string{"\\Seen"},
	}), cookies))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"INBOX:3"}, env.gateway.flagCalls)
}

func TestMessageBySlugResolvesMessageID(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	env.gateway.resolved["abc@example.com"] = 77
	env.gateway.message = &mail.MessageFull{
		MessageSummary: mail.MessageSummary{UID: 77, Subject: "resolved"},
	}

	slug := base64.RawURLEncoding.EncodeToString([]byte("abc@example.com"))
	rec := env.do(attach(
		httptest.NewRequest("GET", "/mail/messages/"+slug+"?folder=INBOX", nil), cookies,
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"subject":"resolved"`)
}

func TestMessageByUnknownSlugIs404(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	slug := base64.RawURLEncoding.EncodeToString([]byte("ghost@example.com"))
	rec := env.do(attach(
		httptest.NewRequest("GET", "/mail/messages/"+slug, nil), cookies,
	))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftSavePassesReplaceUID(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	rec := env.do(attach(jsonRequest("POST", "/mail/draft", map[string]any{
		"subject":    "wip",
		"html":       "<p>wip</p>",
		"replaceUid": 55,
	}), cookies))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint32{55}, env.gateway.draftReplace)
	assert.Contains(t, rec.Body.String(), `"uid":101`)
}

func TestSendRequiresRecipient(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	rec := env.do(attach(jsonRequest("POST", "/mail/send", map[string]any{
		"subject": "no recipients",
	}), cookies))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFoldersRefreshBypassesCache(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")
	env.gateway.folders = []mail.Folder{{Path: "INBOX", Name: "INBOX"}}

	rec := env.do(attach(httptest.NewRequest("GET", "/mail/folders", nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)

	// Second call with refresh must hit the gateway again even though
	// the list is now cached.
	env.gateway.folders = []mail.Folder{
		{Path: "INBOX", Name: "INBOX"},
		{Path: "New", Name: "New"},
	}

	rec = env.do(attach(httptest.NewRequest("GET", "/mail/folders?refresh=true", nil), cookies))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"New"`)
}

func TestRegisterOrgProbeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.err = fmt.Errorf("connection refused")

	rec := env.do(jsonRequest("POST", "/org/register", map[string]any{
		"domain":   "example.com",
		"imapHost": "imap.example.com", "imapPort": 993,
		"smtpHost": "smtp.example.com", "smtpPort": 465,
	}))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestRegisterOrgDuplicateDomain(t *testing.T) {
	env := newTestEnv(t)
	env.registerOrg(t, "example.com")

	rec := env.do(jsonRequest("POST", "/org/register", map[string]any{
		"domain":   "example.com",
		"imapHost": "imap.example.com", "imapPort": 993,
		"smtpHost": "smtp.example.com", "smtpPort": 465,
	}))

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogoutPromotesNextAccount(t *testing.T) {
	env := newTestEnv(t)

	encrypted, err := env.server.vault.Encrypt("pw")
	require.NoError(t, err)
	tokenA, tokens, err := env.server.sessions.Create(session.Data{Email: "a@example.com"}, encrypted, nil)
	require.NoError(t, err)
	tokenB, tokens, err := env.server.sessions.Create(session.Data{Email: "b@example.com"}, encrypted, tokens)
	require.NoError(t, err)
	_ = tokenB

	raw, _ := json.Marshal(tokens)
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: tokenA})
	req.AddCookie(&http.Cookie{Name: accountsCookie, Value: base64.RawURLEncoding.EncodeToString(raw)})

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var next string
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			next = c.Value
		}
	}
	assert.Equal(t, tokenB, next, "next account becomes active")

	data, err := env.server.sessions.Get(tokenA)
	require.NoError(t, err)
	assert.Nil(t, data, "logged-out session is destroyed")
}

func TestSettingsDefaultsWhenUnset(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	rec := env.do(attach(httptest.NewRequest("GET", "/settings", nil), cookies))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"draftAutosaveSec":3`)
	assert.Contains(t, rec.Body.String(), `"displayDensity":"comfortable"`)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t, "user@example.com")

	// Force-expire the backing records; the cookie alone is worthless.
	require.NoError(t, env.mem.Expire("session:"+cookies[0].Value, time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	rec := env.do(attach(httptest.NewRequest("GET", "/mail/folders", nil), cookies))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
