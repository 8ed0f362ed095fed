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

// signatureRow mirrors the signatures table.
type signatureRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	HTML      string    `db:"html"`
	IsDefault int       `db:"is_default"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r signatureRow) toModel() model.Signature {
	return model.Signature{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		HTML:      r.HTML,
		IsDefault: r.IsDefault != 0,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// SignaturesByEmail lists a user's signatures, default first.
func (s *SQLiteStore) SignaturesByEmail(
	ctx context.Context,
	email string,
) ([]model.Signature, error) {
	var rows []signatureRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM signatures WHERE email = ? ORDER BY is_default DESC, name",
		strings.ToLower(email),
	)
	if err != nil {
		return nil, fmt.Errorf("querying signatures for %s: %w", email, err)
	}

	signatures := make([]model.Signature, 0, len(rows))
	for _, r := range rows {
		signatures = append(signatures, r.toModel())
	}
	return signatures, nil
}

// SignatureByID retrieves one signature, scoped to its owner. Returns
// (nil, nil) when absent or owned by someone else.
func (s *SQLiteStore) SignatureByID(
	ctx context.Context,
	email, id string,
) (*model.Signature, error) {
	var row signatureRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM signatures WHERE id = ? AND email = ?",
		id, strings.ToLower(email),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting signature %s: %w", id, err)
	}
	m := row.toModel()
	return &m, nil
}

// CreateSignature inserts a new signature. Marking it default clears
// the flag on the user's other signatures.
func (s *SQLiteStore) CreateSignature(
	ctx context.Context,
	sig *model.Signature,
) error {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	sig.Email = strings.ToLower(sig.Email)
	now := time.Now().UTC()
	sig.CreatedAt = now
	sig.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if sig.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE signatures SET is_default = 0 WHERE email = ?", sig.Email,
		); err != nil {
			return fmt.Errorf("clearing default signatures: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO signatures (id, email, name, html, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Email, sig.Name, sig.HTML,
		boolToInt(sig.IsDefault), sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating signature %s: %w", sig.ID, err)
	}

	return tx.Commit()
}

// UpdateSignature replaces an existing signature's content. Updating an
// unknown or foreign signature yields sql.ErrNoRows.
func (s *SQLiteStore) UpdateSignature(
	ctx context.Context,
	sig *model.Signature,
) error {
	sig.Email = strings.ToLower(sig.Email)
	sig.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if sig.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE signatures SET is_default = 0 WHERE email = ?", sig.Email,
		); err != nil {
			return fmt.Errorf("clearing default signatures: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE signatures SET name = ?, html = ?, is_default = ?, updated_at = ?
		WHERE id = ? AND email = ?`,
		sig.Name, sig.HTML, boolToInt(sig.IsDefault), sig.UpdatedAt,
		sig.ID, sig.Email,
	)
	if err != nil {
		return fmt.Errorf("updating signature %s: %w", sig.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating signature %s: %w", sig.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

// DeleteSignature removes a signature, scoped to its owner. Deleting an
// unknown signature yields sql.ErrNoRows.
func (s *SQLiteStore) DeleteSignature(
	ctx context.Context,
	email, id string,
) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM signatures WHERE id = ? AND email = ?",
		id, strings.ToLower(email),
	)
	if err != nil {
		return fmt.Errorf("deleting signature %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting signature %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
