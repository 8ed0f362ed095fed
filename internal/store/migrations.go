package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
	id                  TEXT PRIMARY KEY,
	domain              TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	imap_host           TEXT NOT NULL,
	imap_port           INTEGER NOT NULL DEFAULT 993,
	smtp_host           TEXT NOT NULL,
	smtp_port           INTEGER NOT NULL DEFAULT 465,
	tls_mode            TEXT NOT NULL DEFAULT 'tls',
	reject_unauthorized INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
	email                TEXT PRIMARY KEY,
	display_density      TEXT NOT NULL DEFAULT 'comfortable',
	draft_autosave_sec   INTEGER NOT NULL DEFAULT 3,
	notification_sound   INTEGER NOT NULL DEFAULT 1,
	default_signature_id TEXT NOT NULL DEFAULT '',
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS signatures (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL,
	html       TEXT NOT NULL DEFAULT '',
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_signatures_email ON signatures(email);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email_address
	ON contacts(email, address);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
