package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calendaria/duration-engine/internal/adapters/store"
	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/ports"
	"go.uber.org/zap"
)

// StoreFactory creates feedback stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateFeedbackStore creates a feedback store based on the configuration
func (f *StoreFactory) CreateFeedbackStore() (ports.FeedbackStore, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}

	f.logger.Info("Creating feedback store", zap.String("type", storeCfg.Type))

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, storeCfg.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, f.logger, storeCfg.CleanupFrequency)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, f.logger, storeCfg.CleanupFrequency)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.NewRedisStore(ctx, storeCfg.RedisAddr, storeCfg.RedisDB, f.logger, storeCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// GetRetention returns how long feedback records are kept
func (f *StoreFactory) GetRetention() (time.Duration, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return 0, err
	}
	return storeCfg.Retention, nil
}
