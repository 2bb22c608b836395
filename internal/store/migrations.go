package store

// migrations are applied in order; index i holds schema version i+1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS challenges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		token       TEXT NOT NULL,
		remote_addr TEXT NOT NULL DEFAULT '',
		received_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_challenges_received_at ON challenges(received_at)`,
}
