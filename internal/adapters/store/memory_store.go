package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a feedback record is not found
var ErrNotFound = core.ErrFeedbackNotFound

// MemoryStore is an in-memory implementation of the FeedbackRepository interface
type MemoryStore struct {
	records     map[string]*core.FeedbackRecord
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a new in-memory feedback store
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:     make(map[string]*core.FeedbackRecord),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(s, cleanupFreq, s.stopCh, logger)
	}

	return s
}

// Save stores a feedback record
func (s *MemoryStore) Save(_ context.Context, record *core.FeedbackRecord) error {
	copied := *record

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = &copied
	return nil
}

// List returns the most recent unexpired records, newest first
func (s *MemoryStore) List(_ context.Context, limit int) ([]*core.FeedbackRecord, error) {
	now := time.Now()

	s.mu.RLock()
	out := make([]*core.FeedbackRecord, 0, len(s.records))
	for _, r := range s.records {
		if expired(r, now) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a feedback record
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Cleanup removes expired records
func (s *MemoryStore) Cleanup(_ context.Context) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, r := range s.records {
		if expired(r, now) {
			delete(s.records, id)
			count++
		}
	}

	s.logger.Debug("Cleaned up expired feedback records", zap.Int("expired_count", count))
	return nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func expired(r *core.FeedbackRecord, now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// runCleanup periodically removes expired records until stopCh is closed
func runCleanup(repo core.FeedbackRepository, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := repo.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up feedback store", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
