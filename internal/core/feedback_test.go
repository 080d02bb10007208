package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFeedbackRepo struct {
	mu      sync.Mutex
	records map[string]*FeedbackRecord
	saveErr error
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{records: make(map[string]*FeedbackRecord)}
}

func (r *fakeFeedbackRepo) Save(ctx context.Context, record *FeedbackRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
	return nil
}

func (r *fakeFeedbackRepo) List(ctx context.Context, limit int) ([]*FeedbackRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*FeedbackRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeFeedbackRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrFeedbackNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeFeedbackRepo) Cleanup(ctx context.Context) error { return nil }

func intPtr(v int) *int { return &v }

func TestFeedbackService_Submit(t *testing.T) {
	repo := newFakeFeedbackRepo()
	svc := NewFeedbackService(repo, zap.NewNop(), time.Hour)

	record, err := svc.Submit(context.Background(), &FeedbackSubmission{
		Email:           testEmail,
		Result:          &DurationResult{FinalDuration: 30, Method: MethodAIAnalysis, Confidence: 0.9},
		CorrectDuration: intPtr(45),
		Rating:          4,
		Comment:         "  too short  ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "too short", record.Comment)
	assert.WithinDuration(t, record.CreatedAt.Add(time.Hour), record.ExpiresAt, time.Millisecond)
	assert.Contains(t, repo.records, record.ID)
}

func TestFeedbackService_SubmitWithoutRetention(t *testing.T) {
	svc := NewFeedbackService(newFakeFeedbackRepo(), zap.NewNop(), 0)
	record, err := svc.Submit(context.Background(), &FeedbackSubmission{
		Email:  testEmail,
		Result: &DurationResult{FinalDuration: 30, Method: MethodFixed},
	})
	require.NoError(t, err)
	assert.True(t, record.ExpiresAt.IsZero())
}

func TestFeedbackService_SubmitInvalid(t *testing.T) {
	svc := NewFeedbackService(newFakeFeedbackRepo(), zap.NewNop(), 0)
	result := &DurationResult{FinalDuration: 30}

	tests := []struct {
		name string
		sub  *FeedbackSubmission
	}{
		{"nil", nil},
		{"no result", &FeedbackSubmission{Email: testEmail}},
		{"no email", &FeedbackSubmission{Result: result}},
		{"rating", &FeedbackSubmission{Email: testEmail, Result: result, Rating: 6}},
		{"correction", &FeedbackSubmission{Email: testEmail, Result: result, CorrectDuration: intPtr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.sub)
			assert.ErrorIs(t, err, ErrInvalidFeedback)
			if tt.name == "rating" {
				assert.ErrorContains(t, err, "between 0 and 5 (0 = unrated)")
			}
		})
	}
}

func TestFeedbackService_SaveError(t *testing.T) {
	repo := newFakeFeedbackRepo()
	repo.saveErr = errors.New("disk full")
	svc := NewFeedbackService(repo, zap.NewNop(), 0)

	_, err := svc.Submit(context.Background(), &FeedbackSubmission{Email: testEmail, Result: &DurationResult{}})
	assert.ErrorContains(t, err, "disk full")
}

func TestFeedbackService_RecentAndDelete(t *testing.T) {
	repo := newFakeFeedbackRepo()
	svc := NewFeedbackService(repo, zap.NewNop(), 0)
	ctx := context.Background()

	first, err := svc.Submit(ctx, &FeedbackSubmission{Email: testEmail, Result: &DurationResult{FinalDuration: 30, Method: MethodFixed}, Rating: 5, CorrectDuration: intPtr(30)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, &FeedbackSubmission{Email: testEmail, Result: &DurationResult{FinalDuration: 60, Method: MethodFallback}, Rating: 2, CorrectDuration: intPtr(45)})
	require.NoError(t, err)

	records, summary, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 3.5, summary.AverageRating)
	assert.Equal(t, 0.5, summary.Accuracy)
	assert.Equal(t, 2, summary.CorrectionsLogged)
	assert.Equal(t, map[Method]int{MethodFixed: 1, MethodFallback: 1}, summary.MethodBreakdown)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.ErrorIs(t, svc.Delete(ctx, first.ID), ErrFeedbackNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, " "), ErrInvalidFeedback)
}

func TestSummarizeFeedback_Empty(t *testing.T) {
	summary := SummarizeFeedback(nil)
	assert.Equal(t, 0, summary.Count)
	assert.Equal(t, 0.0, summary.AverageRating)
	assert.Equal(t, 0.0, summary.Accuracy)
	assert.NotNil(t, summary.MethodBreakdown)
}
