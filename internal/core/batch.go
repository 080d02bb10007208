package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize caps the number of emails analyzed concurrently
const DefaultBatchSize = 10

// BatchItemResult is the outcome of processing one email of a batch
type BatchItemResult struct {
	Email   ProcessedEmail  `json:"email"`
	Success bool            `json:"success"`
	Result  *DurationResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BatchStats summarizes a processed batch
type BatchStats struct {
	Total              int            `json:"total"`
	Successful         int            `json:"successful"`
	Failed             int            `json:"failed"`
	AverageDuration    float64        `json:"averageDuration"`
	AverageConfidence  float64        `json:"averageConfidence"`
	MethodDistribution map[Method]int `json:"methodDistribution"`
}

// BatchResponse holds per-email results in input order plus statistics
type BatchResponse struct {
	Results []BatchItemResult `json:"results"`
	Stats   BatchStats        `json:"stats"`
}

// BatchCoordinator runs the engine over many emails in bounded chunks
type BatchCoordinator struct {
	processor DurationProcessor
	batchSize int
	logger    *zap.Logger
}

// NewBatchCoordinator creates a new batch coordinator
func NewBatchCoordinator(processor DurationProcessor, batchSize int, logger *zap.Logger) *BatchCoordinator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchCoordinator{
		processor: processor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ProcessBatch processes emails chunk by chunk. Emails within a chunk run
// concurrently and every chunk completes before the next one starts. A
// failing email is recorded and never aborts its siblings.
func (b *BatchCoordinator) ProcessBatch(ctx context.Context, emails []ProcessedEmail, cfg EmailProcessingConfig) *BatchResponse {
	results := make([]BatchItemResult, len(emails))

	for start := 0; start < len(emails); start += b.batchSize {
		end := start + b.batchSize
		if end > len(emails) {
			end = len(emails)
		}

		if err := ctx.Err(); err != nil {
			for i := start; i < len(emails); i++ {
				results[i] = BatchItemResult{Email: emails[i], Error: err.Error()}
			}
			b.logger.Warn("Batch cancelled", zap.Int("remaining", len(emails)-start), zap.Error(err))
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = b.processOne(ctx, emails[i], cfg)
				return nil
			})
		}
		// items never return errors; Wait is the chunk barrier
		_ = g.Wait()

		b.logger.Debug("Batch chunk processed", zap.Int("from", start), zap.Int("to", end))
	}

	stats := summarize(results)
	b.logger.Info("Batch processed",
		zap.Int("total", stats.Total),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed))

	return &BatchResponse{Results: results, Stats: stats}
}

func (b *BatchCoordinator) processOne(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) (item BatchItemResult) {
	item.Email = email
	defer func() {
		if r := recover(); r != nil {
			item = BatchItemResult{Email: email, Error: fmt.Sprintf("processing panicked: %v", r)}
		}
	}()

	result, err := b.processor.Process(ctx, email, cfg)
	if err != nil {
		b.logger.Warn("Failed to process email in batch",
			zap.String("subject", email.Subject),
			zap.Error(err))
		item.Error = err.Error()
		return item
	}
	if result == nil {
		item.Error = "no result produced"
		return item
	}

	item.Success = true
	item.Result = result
	return item
}

func summarize(results []BatchItemResult) BatchStats {
	stats := BatchStats{
		Total:              len(results),
		MethodDistribution: make(map[Method]int),
	}

	var durationSum, confidenceSum float64
	for _, r := range results {
		if !r.Success {
			stats.Failed++
			continue
		}
		stats.Successful++
		durationSum += float64(r.Result.FinalDuration)
		confidenceSum += r.Result.Confidence
		stats.MethodDistribution[r.Result.Method]++
	}

	if stats.Successful > 0 {
		stats.AverageDuration = durationSum / float64(stats.Successful)
		stats.AverageConfidence = confidenceSum / float64(stats.Successful)
	}
	return stats
}
