package core

import (
	"context"
)

// Prompt is a provider-neutral completion request
type Prompt struct {
	System string
	User   string
}

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends the prompt and returns the raw model text
	Complete(ctx context.Context, prompt *Prompt) (string, error)
}

// ContentAnalyzer produces a duration suggestion for an email
type ContentAnalyzer interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (*ContentAnalysisResult, error)
}

// DurationProcessor runs the engine for a single email
type DurationProcessor interface {
	Process(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) (*DurationResult, error)
}

// DecisionRecorder receives observations about engine decisions
type DecisionRecorder interface {
	ObserveDecision(method Method, finalDuration int, confidence float64)
	ObserveAnalysis(outcome string, seconds float64)
}

// FeedbackRepository defines the interface for storing decision feedback
type FeedbackRepository interface {
	// Save stores a feedback record
	Save(ctx context.Context, record *FeedbackRecord) error

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]*FeedbackRecord, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error
}
