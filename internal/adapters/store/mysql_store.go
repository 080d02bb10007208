package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// NewMySQLStore creates a feedback store backed by MySQL
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	s, err := newSQLStore(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
