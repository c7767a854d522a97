package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per camera run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			camera INTEGER NOT NULL DEFAULT 0,
			readings INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Readings table - one row per tick with a selected emotion
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			label TEXT NOT NULL CHECK(label IN ('happy', 'angry', 'surprise', 'sad', 'disgust', 'fear', 'neutral')),
			score REAL NOT NULL,
			box_x INTEGER NOT NULL,
			box_y INTEGER NOT NULL,
			box_w INTEGER NOT NULL,
			box_h INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_readings_session_id ON readings(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_label ON readings(label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
