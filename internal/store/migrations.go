package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per placed card, plus enrichment results that could not be anchored.
		`CREATE TABLE IF NOT EXISTS annotations (
			id TEXT PRIMARY KEY,
			anchored INTEGER NOT NULL DEFAULT 1,
			path TEXT NOT NULL DEFAULT '' CHECK(path IN ('', 'surface', 'ray')),
			transform TEXT,
			kind TEXT NOT NULL CHECK(kind IN ('placeholder', 'rendered', 'failed')),
			text TEXT NOT NULL DEFAULT '',
			scores TEXT,
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			cleared_at DATETIME
		)`,

		// Clear requests that were processed, and the card each one removed.
		`CREATE TABLE IF NOT EXISTS clear_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal INTEGER NOT NULL,
			annotation_id TEXT REFERENCES annotations(id) ON DELETE SET NULL,
			cleared_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_annotations_created_at ON annotations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_clear_events_annotation_id ON clear_events(annotation_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
