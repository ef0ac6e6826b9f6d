// Package history archives terminal batches into SQLite so cleanup of
// live state files does not erase the record of what ran.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed batch history persistence
type Store struct {
	db *sql.DB
}

// BatchRecord is one archived batch
type BatchRecord struct {
	BatchID         string
	Status          domain.BatchStatus
	FeatureCount    int
	CompletedCount  int
	FailedCount     int
	SkippedCount    int
	CheckpointCount int
	CreatedAt       time.Time
	FinishedAt      time.Time
	ArchivedAt      time.Time
}

// FeatureRecord is one archived feature disposition
type FeatureRecord struct {
	Index         int
	Feature       string
	Disposition   domain.Disposition
	FailureReason string
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Archive stores the final accounting of a batch. Re-archiving the same
// batch replaces the previous record.
func (s *Store) Archive(state *domain.BatchState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var completed, failed, skipped int
	for i := range state.Features {
		switch state.Disposition(i) {
		case domain.DispositionCompleted:
			completed++
		case domain.DispositionFailed:
			failed++
		default:
			skipped++
		}
	}

	_, err = tx.Exec(`
		INSERT INTO batches (batch_id, status, feature_count, completed_count, failed_count, skipped_count, checkpoint_count, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			status = excluded.status,
			completed_count = excluded.completed_count,
			failed_count = excluded.failed_count,
			skipped_count = excluded.skipped_count,
			checkpoint_count = excluded.checkpoint_count,
			finished_at = excluded.finished_at
	`,
		state.BatchID,
		string(state.Status),
		len(state.Features),
		completed,
		failed,
		skipped,
		len(state.CheckpointEvents),
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM batch_features WHERE batch_id = ?`, state.BatchID); err != nil {
		return err
	}
	for i, feature := range state.Features {
		reason := ""
		if entry, ok := state.FailureFor(i); ok {
			reason = entry.ErrorMessage
		}
		_, err := tx.Exec(`
			INSERT INTO batch_features (batch_id, feature_index, feature, disposition, failure_reason)
			VALUES (?, ?, ?, ?, ?)
		`, state.BatchID, i, feature, string(state.Disposition(i)), reason)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBatches returns archived batches, most recently archived first
func (s *Store) ListBatches(limit int) ([]*BatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT batch_id, status, feature_count, completed_count, failed_count, skipped_count, checkpoint_count, created_at, finished_at, archived_at
		FROM batches ORDER BY archived_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*BatchRecord
	for rows.Next() {
		var r BatchRecord
		var status string
		if err := rows.Scan(&r.BatchID, &status, &r.FeatureCount, &r.CompletedCount, &r.FailedCount, &r.SkippedCount, &r.CheckpointCount, &r.CreatedAt, &r.FinishedAt, &r.ArchivedAt); err != nil {
			return nil, err
		}
		r.Status = domain.BatchStatus(status)
		records = append(records, &r)
	}
	return records, rows.Err()
}

// GetFeatures returns the archived feature dispositions for a batch
func (s *Store) GetFeatures(batchID string) ([]*FeatureRecord, error) {
	rows, err := s.db.Query(`
		SELECT feature_index, feature, disposition, failure_reason
		FROM batch_features WHERE batch_id = ? ORDER BY feature_index
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*FeatureRecord
	for rows.Next() {
		var r FeatureRecord
		var disposition string
		var reason sql.NullString
		if err := rows.Scan(&r.Index, &r.Feature, &disposition, &reason); err != nil {
			return nil, err
		}
		r.Disposition = domain.Disposition(disposition)
		if reason.Valid {
			r.FailureReason = reason.String
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
