package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// recordKeyPrefix namespaces feedback records in Redis
	recordKeyPrefix = "duration-engine:feedback:"
	// indexKey is a sorted set of record IDs scored by creation time
	indexKey = "duration-engine:feedback:index"

	redisScanBatch = 100
)

// RedisStore is a Redis implementation of the FeedbackRepository interface.
// Records expire through key TTLs; the index is pruned lazily.
type RedisStore struct {
	rdb      *redis.Client
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRedisStore creates a feedback store backed by Redis
func NewRedisStore(ctx context.Context, addr string, db int, logger *zap.Logger, cleanupFreq time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, logger, cleanupFreq), nil
}

// NewRedisStoreFromClient creates a feedback store on an existing client
func NewRedisStoreFromClient(rdb *redis.Client, logger *zap.Logger, cleanupFreq time.Duration) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go runCleanup(s, cleanupFreq, s.stopCh, logger)
	}

	return s
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

// Save stores a feedback record
func (s *RedisStore) Save(ctx context.Context, record *core.FeedbackRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode feedback record: %w", err)
	}

	var ttl time.Duration
	if !record.ExpiresAt.IsZero() {
		ttl = time.Until(record.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(record.ID), payload, ttl)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(record.CreatedAt.UnixNano()),
			Member: record.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store feedback record: %w", err)
	}

	return nil
}

// List returns the most recent unexpired records, newest first
func (s *RedisStore) List(ctx context.Context, limit int) ([]*core.FeedbackRecord, error) {
	var out []*core.FeedbackRecord
	var stale []interface{}

	for start := int64(0); len(out) < limit; start += int64(limit) {
		ids, err := s.rdb.ZRevRange(ctx, indexKey, start, start+int64(limit)-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read feedback index: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		records, missing, err := s.fetch(ctx, ids)
		if err != nil {
			return nil, err
		}
		stale = append(stale, missing...)

		for _, r := range records {
			if len(out) == limit {
				break
			}
			out = append(out, r)
		}

		if len(ids) < limit {
			break
		}
	}

	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			s.logger.Warn("Failed to prune feedback index", zap.Error(err))
		}
	}

	return out, nil
}

// fetch loads the records for ids, preserving order, and reports ids whose
// record has expired
func (s *RedisStore) fetch(ctx context.Context, ids []string) ([]*core.FeedbackRecord, []interface{}, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load feedback records: %w", err)
	}

	var records []*core.FeedbackRecord
	var missing []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}

		var record core.FeedbackRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Warn("Skipping undecodable feedback record",
				zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		records = append(records, &record)
	}
	return records, missing, nil
}

// Delete removes a feedback record
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, recordKey(id))
		pipe.ZRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete feedback record: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup prunes index entries whose records have expired
func (s *RedisStore) Cleanup(ctx context.Context) error {
	var pruned int
	for start := int64(0); ; start += redisScanBatch {
		ids, err := s.rdb.ZRange(ctx, indexKey, start, start+redisScanBatch-1).Result()
		if err != nil {
			return fmt.Errorf("failed to read feedback index: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		_, missing, err := s.fetch(ctx, ids)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			if err := s.rdb.ZRem(ctx, indexKey, missing...).Err(); err != nil {
				return fmt.Errorf("failed to prune feedback index: %w", err)
			}
			pruned += len(missing)
			// removed members shift the remaining range
			start -= int64(len(missing))
		}

		if len(ids) < redisScanBatch {
			break
		}
	}

	s.logger.Debug("Cleaned up expired feedback records", zap.Int("expired_count", pruned))
	return nil
}

// Stop stops the background cleanup task and closes the client
func (s *RedisStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			s.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	})
}
