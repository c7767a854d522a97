package store

import (
	"database/sql"
	"time"
)

// Reading is one selected emotion recorded during a session.
type Reading struct {
	ID        int64
	SessionID string
	Label     string
	Score     float64
	BoxX      int
	BoxY      int
	BoxW      int
	BoxH      int
	CreatedAt time.Time
}

// LabelSummary aggregates the readings of one label.
type LabelSummary struct {
	Label    string
	Count    int
	AvgScore float64
	MaxScore float64
}

// ReadingRepository provides access to recorded readings.
type ReadingRepository struct {
	db *sql.DB
}

// Readings returns the reading repository for this store.
func (s *Store) Readings() *ReadingRepository {
	return &ReadingRepository{db: s.db}
}

// Create inserts a reading and bumps the session's reading count in a
// single transaction.
func (r *ReadingRepository) Create(rd *Reading) error {
	if rd.CreatedAt.IsZero() {
		rd.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO readings (session_id, label, score, box_x, box_y, box_w, box_h, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rd.SessionID, rd.Label, rd.Score, rd.BoxX, rd.BoxY, rd.BoxW, rd.BoxH, rd.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	res, err := tx.Exec(`UPDATE sessions SET readings = readings + 1 WHERE id = ?`, rd.SessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	rd.ID = id
	return nil
}

// ListBySession retrieves a session's readings in recording order.
// A limit of zero or less returns all readings.
func (r *ReadingRepository) ListBySession(sessionID string, limit int) ([]Reading, error) {
	query := `SELECT id, session_id, label, score, box_x, box_y, box_w, box_h, created_at
		 FROM readings
		 WHERE session_id = ?
		 ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.ID, &rd.SessionID, &rd.Label, &rd.Score,
			&rd.BoxX, &rd.BoxY, &rd.BoxW, &rd.BoxH, &rd.CreatedAt); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// Summary counts readings per label, most frequent first. An empty
// sessionID summarises every session.
func (r *ReadingRepository) Summary(sessionID string) ([]LabelSummary, error) {
	query := `SELECT label, COUNT(*), AVG(score), MAX(score) FROM readings`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` GROUP BY label ORDER BY COUNT(*) DESC, label`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []LabelSummary
	for rows.Next() {
		var s LabelSummary
		if err := rows.Scan(&s.Label, &s.Count, &s.AvgScore, &s.MaxScore); err != nil {
			return nil, err
		}
		summary = append(summary, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}
