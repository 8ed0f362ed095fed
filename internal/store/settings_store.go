package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hourinbox/webmail/internal/model"
)

// settingsRow mirrors the settings table.
type settingsRow struct {
	Email              string    `db:"email"`
	DisplayDensity     string    `db:"display_density"`
	DraftAutosaveSec   int       `db:"draft_autosave_sec"`
	NotificationSound  int       `db:"notification_sound"`
	DefaultSignatureID string    `db:"default_signature_id"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r settingsRow) toModel() *model.Settings {
	return &model.Settings{
		Email:              r.Email,
		DisplayDensity:     r.DisplayDensity,
		DraftAutosaveSec:   r.DraftAutosaveSec,
		NotificationSound:  r.NotificationSound != 0,
		DefaultSignatureID: r.DefaultSignatureID,
		UpdatedAt:          r.UpdatedAt,
	}
}

// SettingsByEmail retrieves a user's settings. Returns (nil, nil) when
// the user has never saved any; callers apply defaults.
func (s *SQLiteStore) SettingsByEmail(
	ctx context.Context,
	email string,
) (*model.Settings, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM settings WHERE email = ?",
		strings.ToLower(email),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting settings for %s: %w", email, err)
	}
	return row.toModel(), nil
}

// UpsertSettings inserts or replaces a user's settings row.
func (s *SQLiteStore) UpsertSettings(
	ctx context.Context,
	settings *model.Settings,
) error {
	settings.Email = strings.ToLower(settings.Email)
	settings.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (
			email, display_density, draft_autosave_sec,
			notification_sound, default_signature_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		settings.Email, settings.DisplayDensity, settings.DraftAutosaveSec,
		boolToInt(settings.NotificationSound), settings.DefaultSignatureID,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting settings for %s: %w", settings.Email, err)
	}

	return nil
}
