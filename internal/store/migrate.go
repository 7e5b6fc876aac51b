package store

import "database/sql"

// Migrate brings the schema to the current version using PRAGMA
// user_version, the same discipline for dev and prod databases.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS leads (
  lead_id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  contact TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  score INTEGER NOT NULL DEFAULT 0,
  possible_duplicate INTEGER NOT NULL DEFAULT 0,
  posted_at TEXT,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  raw_json TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_first_seen ON leads(first_seen_at);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_contact ON leads(contact);`,

		`CREATE TABLE IF NOT EXISTS lead_sources (
  source_id TEXT NOT NULL,
  external_id TEXT NOT NULL,
  lead_id TEXT NOT NULL,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL,
  PRIMARY KEY (source_id, external_id),
  FOREIGN KEY (lead_id) REFERENCES leads(lead_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_lead_sources_lead ON lead_sources(lead_id);`,

		`CREATE TABLE IF NOT EXISTS contact_events (
  event_id INTEGER PRIMARY KEY AUTOINCREMENT,
  lead_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  outcome TEXT NOT NULL,
  attempted_at TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT '',
  FOREIGN KEY (lead_id) REFERENCES leads(lead_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_contact_events_lead ON contact_events(lead_id);`,
		`CREATE INDEX IF NOT EXISTS idx_contact_events_time ON contact_events(attempted_at);`,
		// The at-most-once guarantee, enforced at the storage layer.
		// Manual audit entries are exempt: an operator may override twice.
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_contact_sent
ON contact_events(lead_id, channel)
WHERE outcome = 'sent' AND channel != 'manual';`,

		`CREATE TABLE IF NOT EXISTS sources (
  source_id TEXT PRIMARY KEY,
  cursor TEXT NOT NULL DEFAULT '',
  last_scan_at TEXT NOT NULL DEFAULT ''
);`,

		`CREATE TABLE IF NOT EXISTS payments (
  payment_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  paid_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id);`,

		`CREATE TABLE IF NOT EXISTS entitlement_accounts (
  user_id TEXT PRIMARY KEY,
  chat_id INTEGER NOT NULL DEFAULT 0,
  plan TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'no_access',
  access_until TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);`,

		`CREATE TABLE IF NOT EXISTS delivery_log (
  delivery_id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  plan TEXT NOT NULL DEFAULT '',
  lead_id TEXT NOT NULL,
  delivered_at TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT ''
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_delivery ON delivery_log(user_id, lead_id);`,

		`CREATE TABLE IF NOT EXISTS blocklist (
  contact TEXT PRIMARY KEY,
  reason TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);`,
	}

	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}
