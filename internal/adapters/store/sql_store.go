package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"go.uber.org/zap"
)

// dialect holds the driver-specific parts of a SQL feedback store
type dialect struct {
	name   string
	schema []string
}

var sqliteDialect = dialect{
	name: "SQLite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			final_duration INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_expires_at ON feedback(expires_at)`,
	},
}

var mysqlDialect = dialect{
	name: "MySQL",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id VARCHAR(64) PRIMARY KEY,
			method VARCHAR(32) NOT NULL,
			final_duration INT NOT NULL,
			payload JSON NOT NULL,
			created_at DATETIME(6) NOT NULL,
			expires_at DATETIME(6) NULL,
			INDEX idx_feedback_created_at (created_at),
			INDEX idx_feedback_expires_at (expires_at)
		)`,
	},
}

// SQLStore is a database/sql implementation of the FeedbackRepository interface
type SQLStore struct {
	db       *sql.DB
	dialect  dialect
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	s := &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(s, cleanupFreq, s.stopCh, logger)
	}

	return s, nil
}

// Save stores a feedback record
func (s *SQLStore) Save(ctx context.Context, record *core.FeedbackRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode feedback record: %w", err)
	}

	var expiresAt sql.NullTime
	if !record.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: record.ExpiresAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO feedback (id, method, final_duration, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.ID, string(record.Result.Method), record.Result.FinalDuration, string(payload), record.CreatedAt.UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback record: %w", err)
	}

	return nil
}

// List returns the most recent unexpired records, newest first
func (s *SQLStore) List(ctx context.Context, limit int) ([]*core.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM feedback
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY created_at DESC
		LIMIT ?
	`, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []*core.FeedbackRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}

		var record core.FeedbackRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			s.logger.Warn("Skipping undecodable feedback row", zap.Error(err))
			continue
		}
		out = append(out, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback rows: %w", err)
	}

	return out, nil
}

// Delete removes a feedback record
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup removes expired records
func (s *SQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM feedback
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to clean up expired feedback: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired feedback records",
			zap.String("store", s.dialect.name),
			zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close feedback database",
				zap.String("store", s.dialect.name), zap.Error(err))
		}
	})
}
