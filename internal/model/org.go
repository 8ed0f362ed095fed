package model

import "time"

// TLS modes for upstream connections.
const (
	TLSModeTLS      = "tls"      // implicit TLS
	TLSModeStartTLS = "starttls" // plaintext connect, upgrade via STARTTLS
)

// Organization is a per-domain mail server connection profile. One
// organization serves every account under its email domain.
type Organization struct {
	ID                 string    `db:"id" json:"id"`
	Domain             string    `db:"domain" json:"domain"`
	Name               string    `db:"name" json:"name"`
	IMAPHost           string    `db:"imap_host" json:"imapHost"`
	IMAPPort           int       `db:"imap_port" json:"imapPort"`
	SMTPHost           string    `db:"smtp_host" json:"smtpHost"`
	SMTPPort           int       `db:"smtp_port" json:"smtpPort"`
	TLSMode            string    `db:"tls_mode" json:"tlsMode"`
	RejectUnauthorized bool      `db:"reject_unauthorized" json:"rejectUnauthorized"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}
