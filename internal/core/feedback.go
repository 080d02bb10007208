package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidFeedback is returned when a feedback submission is malformed
	ErrInvalidFeedback = errors.New("invalid feedback")
	// ErrFeedbackNotFound is returned when a feedback record does not exist
	ErrFeedbackNotFound = errors.New("feedback record not found")
)

const (
	defaultFeedbackLimit = 50
	maxFeedbackLimit     = 500
)

// FeedbackSubmission is an operator's assessment of a decision
type FeedbackSubmission struct {
	Email           ProcessedEmail  `json:"email"`
	Result          *DurationResult `json:"result"`
	CorrectDuration *int            `json:"correctDuration,omitempty"`
	Rating          int             `json:"rating,omitempty"`
	Comment         string          `json:"comment,omitempty"`
}

// FeedbackSummary aggregates stored feedback
type FeedbackSummary struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"averageRating"`
	// Accuracy is the share of records with a correct duration that
	// agreed with the engine's decision
	Accuracy          float64        `json:"accuracy"`
	MethodBreakdown   map[Method]int `json:"methodBreakdown"`
	CorrectionsLogged int            `json:"correctionsLogged"`
}

// FeedbackService records and reports operator feedback on decisions
type FeedbackService struct {
	repo      FeedbackRepository
	logger    *zap.Logger
	retention time.Duration
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(repo FeedbackRepository, logger *zap.Logger, retention time.Duration) *FeedbackService {
	return &FeedbackService{
		repo:      repo,
		logger:    logger,
		retention: retention,
	}
}

// Submit validates and stores a feedback submission
func (s *FeedbackService) Submit(ctx context.Context, sub *FeedbackSubmission) (*FeedbackRecord, error) {
	if sub == nil || sub.Result == nil {
		return nil, fmt.Errorf("%w: result is required", ErrInvalidFeedback)
	}
	if strings.TrimSpace(sub.Email.Subject) == "" && strings.TrimSpace(sub.Email.Content) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidFeedback)
	}
	if sub.Rating < 0 || sub.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5 (0 = unrated)", ErrInvalidFeedback)
	}
	if sub.CorrectDuration != nil && *sub.CorrectDuration <= 0 {
		return nil, fmt.Errorf("%w: correctDuration must be greater than 0", ErrInvalidFeedback)
	}

	now := time.Now().UTC()
	record := &FeedbackRecord{
		ID:              uuid.NewString(),
		Email:           sub.Email,
		Result:          *sub.Result,
		CorrectDuration: sub.CorrectDuration,
		Rating:          sub.Rating,
		Comment:         strings.TrimSpace(sub.Comment),
		CreatedAt:       now,
	}
	if s.retention > 0 {
		record.ExpiresAt = now.Add(s.retention)
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	s.logger.Info("Feedback recorded",
		zap.String("id", record.ID),
		zap.String("method", string(record.Result.Method)),
		zap.Int("rating", record.Rating))

	return record, nil
}

// Recent returns the most recent feedback with an aggregate summary
func (s *FeedbackService) Recent(ctx context.Context, limit int) ([]*FeedbackRecord, FeedbackSummary, error) {
	if limit <= 0 {
		limit = defaultFeedbackLimit
	}
	if limit > maxFeedbackLimit {
		limit = maxFeedbackLimit
	}

	records, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, FeedbackSummary{}, fmt.Errorf("failed to list feedback: %w", err)
	}
	return records, SummarizeFeedback(records), nil
}

// Delete removes a feedback record
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidFeedback)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete feedback %s: %w", id, err)
	}
	s.logger.Info("Feedback deleted", zap.String("id", id))
	return nil
}

// SummarizeFeedback aggregates ratings and corrections
func SummarizeFeedback(records []*FeedbackRecord) FeedbackSummary {
	summary := FeedbackSummary{
		Count:           len(records),
		MethodBreakdown: make(map[Method]int),
	}

	var ratingSum, rated, accurate int
	for _, r := range records {
		summary.MethodBreakdown[r.Result.Method]++
		if r.Rating > 0 {
			ratingSum += r.Rating
			rated++
		}
		if r.CorrectDuration != nil {
			summary.CorrectionsLogged++
			if *r.CorrectDuration == r.Result.FinalDuration {
				accurate++
			}
		}
	}

	if rated > 0 {
		summary.AverageRating = float64(ratingSum) / float64(rated)
	}
	if summary.CorrectionsLogged > 0 {
		summary.Accuracy = float64(accurate) / float64(summary.CorrectionsLogged)
	}
	return summary
}
