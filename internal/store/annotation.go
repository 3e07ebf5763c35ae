package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/handcard/internal/annotation"
	"github.com/ayusman/handcard/internal/placement"
	"github.com/ayusman/handcard/internal/spatial"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Record is one entry in the annotation history.
// Unanchored records hold enrichment results whose placement failed.
type Record struct {
	ID        string             `json:"id"`
	Anchored  bool               `json:"anchored"`
	Path      placement.Path     `json:"path,omitempty"`
	Transform *spatial.Transform `json:"transform,omitempty"`
	Content   annotation.Content `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	ClearedAt *time.Time         `json:"cleared_at,omitempty"`
}

// RecordFromAnnotation builds an anchored record for a placed card.
func RecordFromAnnotation(a annotation.Annotation) *Record {
	tr := a.Transform
	return &Record{
		ID:        a.ID,
		Anchored:  true,
		Path:      a.Path,
		Transform: &tr,
		Content:   a.Content,
		CreatedAt: a.PlacedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AnnotationRepository reads and writes annotation history.
type AnnotationRepository struct {
	db *sql.DB
}

// Annotations returns the annotation repository for this store.
func (s *Store) Annotations() *AnnotationRepository {
	return &AnnotationRepository{db: s.db}
}

const recordColumns = `id, anchored, path, transform, kind, text, scores, reason, created_at, updated_at, cleared_at`

// Create inserts a record. Zero timestamps are set to now.
func (r *AnnotationRepository) Create(rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	var transform sql.NullString
	if rec.Transform != nil {
		data, err := json.Marshal(rec.Transform)
		if err != nil {
			return fmt.Errorf("encode transform: %w", err)
		}
		transform = sql.NullString{String: string(data), Valid: true}
	}

	scores, err := encodeScores(rec.Content.Scores)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO annotations (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		rec.ID, rec.Anchored, string(rec.Path), transform,
		string(rec.Content.Kind), rec.Content.Text, scores, rec.Content.Reason,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// UpdateContent replaces the content of an existing record.
func (r *AnnotationRepository) UpdateContent(id string, c annotation.Content, at time.Time) error {
	scores, err := encodeScores(c.Scores)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(
		`UPDATE annotations SET kind = ?, text = ?, scores = ?, reason = ?, updated_at = ?
		 WHERE id = ?`,
		string(c.Kind), c.Text, scores, c.Reason, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkCleared logs a processed clear signal. id names the card it removed and
// may be empty when no card was active.
func (r *AnnotationRepository) MarkCleared(id string, signal int, at time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var annotationID sql.NullString
	if id != "" {
		res, err := tx.Exec(
			`UPDATE annotations SET cleared_at = ? WHERE id = ? AND cleared_at IS NULL`,
			at.UTC(), id,
		)
		if err != nil {
			return err
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		annotationID = sql.NullString{String: id, Valid: true}
	}

	if _, err := tx.Exec(
		`INSERT INTO clear_events (signal, annotation_id, cleared_at) VALUES (?, ?, ?)`,
		signal, annotationID, at.UTC(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a record by its id.
func (r *AnnotationRepository) GetByID(id string) (*Record, error) {
	row := r.db.QueryRow(`SELECT `+recordColumns+` FROM annotations WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, newest first.
func (r *AnnotationRepository) List(limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT `+recordColumns+` FROM annotations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes all but the newest keep records and returns how many were removed.
func (r *AnnotationRepository) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.Exec(
		`DELETE FROM annotations WHERE id NOT IN (
			SELECT id FROM annotations ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	rec := &Record{}
	var (
		path      string
		kind      string
		transform sql.NullString
		scores    sql.NullString
		clearedAt sql.NullTime
	)

	err := s.Scan(
		&rec.ID, &rec.Anchored, &path, &transform,
		&kind, &rec.Content.Text, &scores, &rec.Content.Reason,
		&rec.CreatedAt, &rec.UpdatedAt, &clearedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Path = placement.Path(path)
	rec.Content.Kind = annotation.Kind(kind)

	if transform.Valid {
		var tr spatial.Transform
		if err := json.Unmarshal([]byte(transform.String), &tr); err != nil {
			return nil, fmt.Errorf("decode transform for %s: %w", rec.ID, err)
		}
		rec.Transform = &tr
	}
	if scores.Valid {
		var sc annotation.Scores
		if err := json.Unmarshal([]byte(scores.String), &sc); err != nil {
			return nil, fmt.Errorf("decode scores for %s: %w", rec.ID, err)
		}
		rec.Content.Scores = &sc
	}
	if clearedAt.Valid {
		t := clearedAt.Time
		rec.ClearedAt = &t
	}

	return rec, nil
}

func encodeScores(s *annotation.Scores) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode scores: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
