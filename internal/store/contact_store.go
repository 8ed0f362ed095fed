package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hourinbox/webmail/internal/model"
)

// ContactsByEmail lists a user's imported contacts sorted by name.
func (s *SQLiteStore) ContactsByEmail(
	ctx context.Context,
	email string,
) ([]model.Contact, error) {
	var contacts []model.Contact
	err := s.db.SelectContext(ctx, &contacts,
		"SELECT * FROM contacts WHERE email = ? ORDER BY name, address",
		strings.ToLower(email),
	)
	if err != nil {
		return nil, fmt.Errorf("querying contacts for %s: %w", email, err)
	}
	return contacts, nil
}

// ImportContacts inserts a batch of contacts, skipping addresses the
// user already has. Returns the number of newly imported entries.
func (s *SQLiteStore) ImportContacts(
	ctx context.Context,
	email string,
	contacts []model.Contact,
) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	email = strings.ToLower(email)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO contacts (id, email, name, address, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing contact insert: %w", err)
	}
	defer stmt.Close()

	imported := 0
	now := time.Now().UTC()
	for _, c := range contacts {
		address := strings.ToLower(strings.TrimSpace(c.Address))
		if address == "" || !strings.Contains(address, "@") {
			continue
		}

		res, err := stmt.ExecContext(ctx,
			uuid.New().String(), email, strings.TrimSpace(c.Name), address, now,
		)
		if err != nil {
			return 0, fmt.Errorf("importing contact %s: %w", address, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing contact import: %w", err)
	}
	return imported, nil
}
