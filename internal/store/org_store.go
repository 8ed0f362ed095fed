package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hourinbox/webmail/internal/model"
)

// ErrDuplicateDomain is returned when registering a domain that
// already has an organization.
var ErrDuplicateDomain = errors.New("store: domain already registered")

// orgRow mirrors the organizations table. SQLite stores booleans as
// integers, so flags are scanned as ints and converted.
type orgRow struct {
	ID                 string    `db:"id"`
	Domain             string    `db:"domain"`
	Name               string    `db:"name"`
	IMAPHost           string    `db:"imap_host"`
	IMAPPort           int       `db:"imap_port"`
	SMTPHost           string    `db:"smtp_host"`
	SMTPPort           int       `db:"smtp_port"`
	TLSMode            string    `db:"tls_mode"`
	RejectUnauthorized int       `db:"reject_unauthorized"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r orgRow) toModel() *model.Organization {
	return &model.Organization{
		ID:                 r.ID,
		Domain:             r.Domain,
		Name:               r.Name,
		IMAPHost:           r.IMAPHost,
		IMAPPort:           r.IMAPPort,
		SMTPHost:           r.SMTPHost,
		SMTPPort:           r.SMTPPort,
		TLSMode:            r.TLSMode,
		RejectUnauthorized: r.RejectUnauthorized != 0,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// OrganizationByDomain retrieves the connection profile for an email
// domain. Returns (nil, nil) when the domain is not registered.
func (s *SQLiteStore) OrganizationByDomain(
	ctx context.Context,
	domain string,
) (*model.Organization, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM organizations WHERE domain = ?",
		strings.ToLower(domain),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting organization for %s: %w", domain, err)
	}
	return row.toModel(), nil
}

// OrganizationByID retrieves an organization by its ID. Returns
// (nil, nil) when absent.
func (s *SQLiteStore) OrganizationByID(
	ctx context.Context,
	id string,
) (*model.Organization, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM organizations WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting organization %s: %w", id, err)
	}
	return row.toModel(), nil
}

// CreateOrganization registers a new organization. The domain is
// normalized to lower case; a duplicate domain yields
// ErrDuplicateDomain.
func (s *SQLiteStore) CreateOrganization(
	ctx context.Context,
	org *model.Organization,
) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.Domain = strings.ToLower(org.Domain)
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	existing, err := s.OrganizationByDomain(ctx, org.Domain)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateDomain
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO organizations (
			id, domain, name, imap_host, imap_port,
			smtp_host, smtp_port, tls_mode, reject_unauthorized,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Domain, org.Name, org.IMAPHost, org.IMAPPort,
		org.SMTPHost, org.SMTPPort, org.TLSMode,
		boolToInt(org.RejectUnauthorized),
		org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating organization %s: %w", org.Domain, err)
	}

	return nil
}

// UpdateOrganization replaces the connection profile of an existing
// organization. The domain itself cannot change; updating an unknown
// domain yields sql.ErrNoRows.
func (s *SQLiteStore) UpdateOrganization(
	ctx context.Context,
	org *model.Organization,
) error {
	org.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET
			name = ?, imap_host = ?, imap_port = ?,
			smtp_host = ?, smtp_port = ?, tls_mode = ?,
			reject_unauthorized = ?, updated_at = ?
		WHERE domain = ?`,
		org.Name, org.IMAPHost, org.IMAPPort,
		org.SMTPHost, org.SMTPPort, org.TLSMode,
		boolToInt(org.RejectUnauthorized), org.UpdatedAt,
		strings.ToLower(org.Domain),
	)
	if err != nil {
		return fmt.Errorf("updating organization %s: %w", org.Domain, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating organization %s: %w", org.Domain, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
