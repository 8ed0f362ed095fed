package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourinbox/webmail/internal/model"
	"github.com/hourinbox/webmail/internal/store"
	"github.com/hourinbox/webmail/tests/testutil"
)

func testOrg(domain string) *model.Organization {
	return &model.Organization{
		Domain:             domain,
		Name:               "Example Corp",
		IMAPHost:           "imap.example.com",
		IMAPPort:           993,
		SMTPHost:           "smtp.example.com",
		SMTPPort:           465,
		TLSMode:            model.TLSModeTLS,
		RejectUnauthorized: true,
	}
}

func TestOrganizationLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	org := testOrg("Example.COM")
	require.NoError(t, s.CreateOrganization(ctx, org))
	assert.NotEmpty(t, org.ID)
	assert.Equal(t, "example.com", org.Domain, "domain is normalized")

	got, err := s.OrganizationByDomain(ctx, "EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, org.ID, got.ID)
	assert.True(t, got.RejectUnauthorized)

	byID, err := s.OrganizationByID(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "example.com", byID.Domain)

	got.Name = "Renamed"
	got.IMAPPort = 143
	got.TLSMode = model.TLSModeStartTLS
	require.NoError(t, s.UpdateOrganization(ctx, got))

	updated, err := s.OrganizationByDomain(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 143, updated.IMAPPort)
	assert.Equal(t, model.TLSModeStartTLS, updated.TLSMode)
}

func TestCreateOrganizationDuplicateDomain(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrganization(ctx, testOrg("example.com")))

	err := s.CreateOrganization(ctx, testOrg("example.com"))
	assert.ErrorIs(t, err, store.ErrDuplicateDomain)
}

func TestOrganizationAbsent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	got, err := s.OrganizationByDomain(ctx, "nowhere.test")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.UpdateOrganization(ctx, testOrg("nowhere.test"))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSettingsUpsert(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	got, err := s.SettingsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Nil(t, got, "unsaved settings read as nil")

	settings := model.DefaultSettings("User@Example.com", 3)
	settings.DisplayDensity = "compact"
	settings.NotificationSound = false
	require.NoError(t, s.UpsertSettings(ctx, &settings))

	got, err = s.SettingsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "compact", got.DisplayDensity)
	assert.False(t, got.NotificationSound)
	assert.Equal(t, 3, got.DraftAutosaveSec)

	settings.DraftAutosaveSec = 2
	require.NoError(t, s.UpsertSettings(ctx, &settings))
	got, err = s.SettingsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.DraftAutosaveSec)
}

func TestSignatureLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first := &model.Signature{
		Email:     "user@example.com",
		Name:      "Work",
		HTML:      "<p>Regards</p>",
		IsDefault: true,
	}
	require.NoError(t, s.CreateSignature(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &model.Signature{
		Email:     "user@example.com",
		Name:      "Casual",
		HTML:      "<p>Cheers</p>",
		IsDefault: true,
	}
	require.NoError(t, s.CreateSignature(ctx, second))

	sigs, err := s.SignaturesByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "Casual", sigs[0].Name, "default sorts first")
	assert.True(t, sigs[0].IsDefault)
	assert.False(t, sigs[1].IsDefault, "only one default at a time")

	second.HTML = "<p>Later</p>"
	require.NoError(t, s.UpdateSignature(ctx, second))

	got, err := s.SignatureByID(ctx, "user@example.com", second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "<p>Later</p>", got.HTML)

	// Signatures are owner-scoped.
	foreign, err := s.SignatureByID(ctx, "other@example.com", second.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)

	require.NoError(t, s.DeleteSignature(ctx, "user@example.com", second.ID))
	err = s.DeleteSignature(ctx, "user@example.com", second.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestImportContactsDeduplicates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	batch := []model.Contact{
		{Name: "Ana", Address: "ana@example.org"},
		{Name: "Bo", Address: "BO@example.org"},
		{Name: "", Address: "not-an-address"},
	}

	n, err := s.ImportContacts(ctx, "user@example.com", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-importing the same addresses adds nothing.
	n, err = s.ImportContacts(ctx, "user@example.com", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	contacts, err := s.ContactsByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "ana@example.org", contacts[0].Address)
	assert.Equal(t, "bo@example.org", contacts[1].Address)
}
