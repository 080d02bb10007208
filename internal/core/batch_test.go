package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProcessor struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	delay       time.Duration
}

func (p *stubProcessor) Process(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) (*DurationResult, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		cur := p.maxInFlight.Load()
		if n <= cur || p.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(p.delay)

	switch {
	case strings.HasPrefix(email.Subject, "fail"):
		return nil, errors.New("analysis unavailable")
	case strings.HasPrefix(email.Subject, "panic"):
		panic("processor exploded")
	case strings.HasPrefix(email.Subject, "nil"):
		return nil, nil
	}

	var duration int
	fmt.Sscanf(email.Content, "%d", &duration)
	return &DurationResult{FinalDuration: duration, Method: MethodAIAnalysis, Confidence: 0.8}, nil
}

func batchEmails(n int, failures map[int]string) []ProcessedEmail {
	emails := make([]ProcessedEmail, n)
	for i := range emails {
		subject := fmt.Sprintf("email %d", i)
		if prefix, ok := failures[i]; ok {
			subject = prefix + " " + subject
		}
		emails[i] = ProcessedEmail{Subject: subject, Content: fmt.Sprintf("%d", 30+i)}
	}
	return emails
}

func TestProcessBatch_StatsAndOrder(t *testing.T) {
	processor := &stubProcessor{delay: 5 * time.Millisecond}
	coordinator := NewBatchCoordinator(processor, 0, zap.NewNop())

	failures := map[int]string{3: "fail", 11: "panic", 20: "nil"}
	emails := batchEmails(23, failures)

	res := coordinator.ProcessBatch(context.Background(), emails, DefaultProcessingConfig())
	require.Len(t, res.Results, 23)
	assert.Equal(t, 23, res.Stats.Total)
	assert.Equal(t, 20, res.Stats.Successful)
	assert.Equal(t, 3, res.Stats.Failed)

	var sum int
	for i, item := range res.Results {
		assert.Equal(t, emails[i].Subject, item.Email.Subject)
		if _, failed := failures[i]; failed {
			assert.False(t, item.Success)
			assert.NotEmpty(t, item.Error)
			assert.Nil(t, item.Result)
			continue
		}
		require.True(t, item.Success, "email %d", i)
		assert.Equal(t, 30+i, item.Result.FinalDuration)
		sum += 30 + i
	}

	assert.InDelta(t, float64(sum)/20, res.Stats.AverageDuration, 1e-9)
	assert.InDelta(t, 0.8, res.Stats.AverageConfidence, 1e-9)
	assert.Equal(t, map[Method]int{MethodAIAnalysis: 20}, res.Stats.MethodDistribution)
	assert.Contains(t, res.Results[11].Error, "panicked")
	assert.Equal(t, "analysis unavailable", res.Results[3].Error)
}

func TestProcessBatch_BoundedConcurrency(t *testing.T) {
	processor := &stubProcessor{delay: 10 * time.Millisecond}
	coordinator := NewBatchCoordinator(processor, DefaultBatchSize, zap.NewNop())

	coordinator.ProcessBatch(context.Background(), batchEmails(35, nil), DefaultProcessingConfig())
	assert.Equal(t, int32(35), processor.calls.Load())
	assert.LessOrEqual(t, processor.maxInFlight.Load(), int32(DefaultBatchSize))
	assert.Greater(t, processor.maxInFlight.Load(), int32(1))

	processor = &stubProcessor{delay: time.Millisecond}
	NewBatchCoordinator(processor, 3, zap.NewNop()).ProcessBatch(context.Background(), batchEmails(10, nil), DefaultProcessingConfig())
	assert.LessOrEqual(t, processor.maxInFlight.Load(), int32(3))
}

type orderedProcessor struct {
	mu     sync.Mutex
	events []string
	slow   string
}

func (p *orderedProcessor) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *orderedProcessor) Process(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) (*DurationResult, error) {
	p.record("start " + email.Subject)
	if email.Subject == p.slow {
		time.Sleep(50 * time.Millisecond)
	}
	p.record("end " + email.Subject)
	return &DurationResult{FinalDuration: 30, Method: MethodFixed, Confidence: 1}, nil
}

func TestProcessBatch_ChunksRunOneAfterAnother(t *testing.T) {
	processor := &orderedProcessor{slow: "email 0"}
	emails := batchEmails(7, nil)

	res := NewBatchCoordinator(processor, 3, zap.NewNop()).ProcessBatch(context.Background(), emails, DefaultProcessingConfig())
	require.Equal(t, 7, res.Stats.Successful)

	position := make(map[string]int, len(processor.events))
	for i, event := range processor.events {
		position[event] = i
	}
	require.Len(t, position, 14)

	chunks := [][]int{{0, 1, 2}, {3, 4, 5}, {6}}
	for c := 1; c < len(chunks); c++ {
		for _, prev := range chunks[c-1] {
			for _, next := range chunks[c] {
				assert.Less(t, position[fmt.Sprintf("end email %d", prev)], position[fmt.Sprintf("start email %d", next)],
					"email %d started before email %d of the previous chunk finished", next, prev)
			}
		}
	}
}

func TestProcessBatch_Empty(t *testing.T) {
	res := NewBatchCoordinator(&stubProcessor{}, 10, zap.NewNop()).ProcessBatch(context.Background(), nil, DefaultProcessingConfig())
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Stats.Total)
	assert.Equal(t, 0.0, res.Stats.AverageDuration)
	assert.Equal(t, 0.0, res.Stats.AverageConfidence)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := &stubProcessor{}
	res := NewBatchCoordinator(processor, 5, zap.NewNop()).ProcessBatch(ctx, batchEmails(12, nil), DefaultProcessingConfig())
	assert.Equal(t, int32(0), processor.calls.Load())
	assert.Equal(t, 12, res.Stats.Failed)
	for _, item := range res.Results {
		assert.Equal(t, context.Canceled.Error(), item.Error)
	}
}
