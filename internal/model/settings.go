package model

import "time"

// Settings holds per-user preferences. Rows are keyed by account email
// and created lazily with defaults on first read.
type Settings struct {
	Email              string    `db:"email" json:"email"`
	DisplayDensity     string    `db:"display_density" json:"displayDensity"`
	DraftAutosaveSec   int       `db:"draft_autosave_sec" json:"draftAutosaveSec"`
	NotificationSound  bool      `db:"notification_sound" json:"notificationSound"`
	DefaultSignatureID string    `db:"default_signature_id" json:"defaultSignatureId"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultSettings returns the settings applied to an account that has
// never saved any.
func DefaultSettings(email string, draftAutosaveSec int) Settings {
	return Settings{
		Email:             email,
		DisplayDensity:    "comfortable",
		DraftAutosaveSec:  draftAutosaveSec,
		NotificationSound: true,
	}
}

// Signature is a reusable block appended to outgoing mail.
type Signature struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	HTML      string    `db:"html" json:"html"`
	IsDefault bool      `db:"is_default" json:"isDefault"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Contact is an imported address-book entry owned by one account.
// Contacts harvested from mailbox traffic are not stored; only
// explicit imports land here.
type Contact struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"-"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
