package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"

	"go.uber.org/zap"
)

// Journal mirrors the in-memory analytics store into sqlite so pending
// records survive a restart. Inserts happen on append, deletes on confirmed
// submission, and LoadPending rebuilds the store at startup.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJournal creates a new journal
func NewJournal(db *sql.DB, logger *zap.Logger) *Journal {
	return &Journal{
		db:     db,
		logger: logger,
	}
}

// Insert persists records to the journal
func (j *Journal) Insert(records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO pending_records (record_id, kind, record_data, created_at, retry_count)
		VALUES (?, ?, ?, ?, 0)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		recordData, err := json.Marshal(record)
		if err != nil {
			j.logger.Error("Failed to marshal record", zap.Error(err), zap.String("record_id", record.ID))
			continue
		}

		if _, err := stmt.Exec(record.ID, string(record.Kind), string(recordData), record.CreatedAt); err != nil {
			j.logger.Error("Failed to journal record", zap.Error(err), zap.String("record_id", record.ID))
			continue
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	j.logger.Debug("Records journaled",
		zap.Int("count", len(records)),
	)

	return nil
}

// LoadPending returns all journaled records of a kind, oldest first
func (j *Journal) LoadPending(kind models.Kind) ([]models.Record, error) {
	rows, err := j.db.Query(`
		SELECT id, record_data
		FROM pending_records
		WHERE kind = ?
		ORDER BY created_at ASC
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending records: %w", err)
	}
	defer rows.Close()

	var records []models.Record

	for rows.Next() {
		var id int64
		var recordData string

		if err := rows.Scan(&id, &recordData); err != nil {
			j.logger.Error("Failed to scan row", zap.Error(err))
			continue
		}

		var record models.Record
		if err := json.Unmarshal([]byte(recordData), &record); err != nil {
			j.logger.Error("Failed to unmarshal record", zap.Error(err), zap.Int64("id", id))
			// Remove corrupted record
			j.db.Exec("DELETE FROM pending_records WHERE id = ?", id)
			continue
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// Delete removes journaled records by their record ids
func (j *Journal) Delete(recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	var query strings.Builder
	query.WriteString("DELETE FROM pending_records WHERE record_id IN (")
	args := make([]interface{}, len(recordIDs))
	for i, id := range recordIDs {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString("?")
		args[i] = id
	}
	query.WriteString(")")

	result, err := j.db.Exec(query.String(), args...)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	j.logger.Debug("Records removed from journal",
		zap.Int64("count", rowsAffected),
	)

	return nil
}

// MarkAttempt increments the retry count for records after a failed
// submission cycle
func (j *Journal) MarkAttempt(recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	var query strings.Builder
	query.WriteString("UPDATE pending_records SET retry_count = retry_count + 1, last_attempt = ? WHERE record_id IN (")
	args := make([]interface{}, len(recordIDs)+1)
	args[0] = time.Now()
	for i, id := range recordIDs {
		if i > 0 {
			query.WriteString(",")
		}
		query.WriteString("?")
		args[i+1] = id
	}
	query.WriteString(")")

	if _, err := j.db.Exec(query.String(), args...); err != nil {
		return fmt.Errorf("failed to mark attempt: %w", err)
	}

	return nil
}

// PendingCount returns the number of journaled records for a kind
func (j *Journal) PendingCount(kind models.Kind) (int, error) {
	var count int
	err := j.db.QueryRow(`
		SELECT COUNT(*) FROM pending_records WHERE kind = ?
	`, string(kind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return count, nil
}

// CleanupOld removes records older than the given duration that have been
// retried past the give-up threshold, plus ancient rows that were never
// attempted at all — those are orphans whose in-memory record was pruned
// before any flush reached it.
func (j *Journal) CleanupOld(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	result, err := j.db.Exec(`
		DELETE FROM pending_records
		WHERE created_at < ? AND (retry_count > 10 OR last_attempt IS NULL)
	`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old records: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		j.logger.Info("Cleaned up old journaled records",
			zap.Int64("count", rowsAffected),
		)
	}

	return nil
}
