package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourinbox/webmail/internal/kv"
	"github.com/hourinbox/webmail/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mem := kv.NewMemoryStore()
	t.Cleanup(func() { _ = mem.Close() })
	return NewStore(mem, 24*time.Hour)
}

func testData(email string) Data {
	return Data{
		Email:              email,
		OrgID:              "org-1",
		IMAPHost:           "imap.example.com",
		IMAPPort:           993,
		SMTPHost:           "smtp.example.com",
		SMTPPort:           465,
		TLSMode:            model.TLSModeTLS,
		RejectUnauthorized: true,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	token, tokens, err := s.Create(testData("a@example.com"), "enc-pw", nil)
	require.NoError(t, err)
	require.Len(t, token, 64, "token is 32 random bytes hex")
	assert.Equal(t, []string{token}, tokens)

	got, err := s.Get(token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, 993, got.IMAPPort)

	pw, err := s.Password(token)
	require.NoError(t, err)
	assert.Equal(t, "enc-pw", pw)
}

func TestGetUnknownToken(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get("deadbeef")
	require.NoError(t, err)
	assert.Nil(t, got, "expired and never-issued are indistinguishable")
}

func TestCreateReplacesDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	first, tokens, err := s.Create(testData("a@example.com"), "pw-1", nil)
	require.NoError(t, err)
	other, tokens, err := s.Create(testData("b@example.com"), "pw-2", tokens)
	require.NoError(t, err)

	// Logging in again as a@example.com destroys the stale token but
	// preserves b's.
	second, tokens, err := s.Create(testData("a@example.com"), "pw-3", tokens)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{other, second}, tokens)

	gone, err := s.Get(first)
	require.NoError(t, err)
	assert.Nil(t, gone, "stale duplicate session is destroyed")

	pw, err := s.Password(first)
	require.NoError(t, err)
	assert.Empty(t, pw, "stale duplicate password is purged")

	pw, err = s.Password(second)
	require.NoError(t, err)
	assert.Equal(t, "pw-3", pw)
}

func TestDestroyPromotesNext(t *testing.T) {
	s := newTestStore(t)

	tokenA, tokens, err := s.Create(testData("a@example.com"), "pw", nil)
	require.NoError(t, err)
	tokenB, tokens, err := s.Create(testData("b@example.com"), "pw", tokens)
	require.NoError(t, err)

	remaining, next, err := s.Destroy(tokenA, tokens)
	require.NoError(t, err)
	assert.Equal(t, []string{tokenB}, remaining)
	assert.Equal(t, tokenB, next)

	remaining, next, err = s.Destroy(tokenB, remaining)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Empty(t, next)

	// Destroyed tokens stay destroyed.
	got, err := s.Get(tokenA)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSwitchActive(t *testing.T) {
	s := newTestStore(t)

	tokenA, tokens, err := s.Create(testData("a@example.com"), "pw", nil)
	require.NoError(t, err)
	_, tokens, err = s.Create(testData("b@example.com"), "pw", tokens)
	require.NoError(t, err)

	got, err := s.SwitchActive(tokens, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, tokenA, got)

	got, err = s.SwitchActive(tokens, "stranger@example.com")
	require.NoError(t, err)
	assert.Empty(t, got, "unknown account must be reported, not ignored")
}

func TestRemoveAccount(t *testing.T) {
	s := newTestStore(t)

	tokenA, tokens, err := s.Create(testData("a@example.com"), "pw", nil)
	require.NoError(t, err)
	tokenB, tokens, err := s.Create(testData("b@example.com"), "pw", tokens)
	require.NoError(t, err)

	// Removing the active account promotes the next one.
	remaining, next, removed, err := s.RemoveAccount(tokens, tokenA, "a@example.com")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{tokenB}, remaining)
	assert.Equal(t, tokenB, next)

	// Removing an inactive account leaves the active token alone.
	tokenC, tokens, err := s.Create(testData("c@example.com"), "pw", remaining)
	require.NoError(t, err)
	remaining, next, removed, err = s.RemoveAccount(tokens, tokenC, "b@example.com")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{tokenC}, remaining)
	assert.Equal(t, tokenC, next)

	// Unknown account: nothing changes.
	remaining2, next2, removed, err := s.RemoveAccount(remaining, tokenC, "ghost@example.com")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, remaining, remaining2)
	assert.Equal(t, next, next2)
}

// stubOrgs resolves every org ID to a fixed organization.
type stubOrgs struct{ org *model.Organization }

func (s stubOrgs) OrganizationByID(context.Context, string) (*model.Organization, error) {
	return s.org, nil
}

func TestListAccounts(t *testing.T) {
	s := newTestStore(t)

	tokenA, tokens, err := s.Create(testData("a@example.com"), "pw", nil)
	require.NoError(t, err)
	_, tokens, err = s.Create(testData("b@example.com"), "pw", tokens)
	require.NoError(t, err)

	orgs := stubOrgs{org: &model.Organization{Name: "Example Corp", Domain: "example.com"}}

	accounts, err := s.ListAccounts(context.Background(), tokens, tokenA, orgs)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "a@example.com", accounts[0].Email)
	assert.True(t, accounts[0].Active)
	assert.Equal(t, "Example Corp", accounts[0].Organization)
	assert.Equal(t, "example.com", accounts[0].Domain)

	assert.Equal(t, "b@example.com", accounts[1].Email)
	assert.False(t, accounts[1].Active)
}
