package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyEmail is returned when an email has no subject or content
	ErrEmptyEmail = errors.New("email subject and content are required")
	// ErrInvalidConfig is returned when a configuration fails validation
	ErrInvalidConfig = errors.New("invalid email processing configuration")
)

// Engine determines appointment durations from inbound emails
type Engine struct {
	analyzer ContentAnalyzer
	logger   *zap.Logger
	timeout  time.Duration
	recorder DecisionRecorder
}

// NewEngine creates a new duration engine
func NewEngine(
	analyzer ContentAnalyzer,
	logger *zap.Logger,
	analysisTimeout time.Duration,
	recorder DecisionRecorder,
) *Engine {
	return &Engine{
		analyzer: analyzer,
		logger:   logger,
		timeout:  analysisTimeout,
		recorder: recorder,
	}
}

// DetermineAppointmentDuration decides the appointment duration for an
// email. It always returns a result: analysis failures resolve to the
// configured fallback duration.
func (e *Engine) DetermineAppointmentDuration(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) *DurationResult {
	var result *DurationResult

	switch cfg.AppointmentDurationMode {
	case ModeFixed:
		result = &DurationResult{
			FinalDuration: cfg.DefaultAppointmentDuration,
			Method:        MethodFixed,
			Confidence:    1.0,
			Reasoning:     fmt.Sprintf("Fixed duration configured: %d minutes", cfg.DefaultAppointmentDuration),
		}
	case ModeAutomatic:
		result = e.determineAutomatic(ctx, email, cfg)
	default:
		result = &DurationResult{
			FinalDuration: cfg.DefaultAppointmentDuration,
			Method:        MethodFixed,
			Confidence:    1.0,
			Reasoning:     fmt.Sprintf("Using system default duration: %d minutes", cfg.DefaultAppointmentDuration),
		}
	}

	e.logger.Info("Appointment duration determined",
		zap.String("sender", email.SenderEmail),
		zap.String("mode", string(cfg.AppointmentDurationMode)),
		zap.String("method", string(result.Method)),
		zap.Int("duration", result.FinalDuration),
		zap.Float64("confidence", result.Confidence))

	if e.recorder != nil {
		e.recorder.ObserveDecision(result.Method, result.FinalDuration, result.Confidence)
	}

	return result
}

// Process runs the engine for one email, rejecting emails without subject
// or content
func (e *Engine) Process(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) (*DurationResult, error) {
	if strings.TrimSpace(email.Subject) == "" || strings.TrimSpace(email.Content) == "" {
		return nil, ErrEmptyEmail
	}
	return e.DetermineAppointmentDuration(ctx, email, cfg), nil
}

func (e *Engine) determineAutomatic(ctx context.Context, email ProcessedEmail, cfg EmailProcessingConfig) *DurationResult {
	req := &AnalysisRequest{
		Subject:     email.Subject,
		Content:     email.Content,
		SenderEmail: email.SenderEmail,
		Rules:       ActiveRules(cfg.AutomaticDurationRules),
	}
	if cfg.EnableAIAnalysis {
		req.CustomPrompt = cfg.AIAnalysisPrompt
	}

	analysis, err := e.analyze(ctx, req)
	if err != nil {
		e.logger.Warn("Content analysis failed, using fallback duration",
			zap.Error(err),
			zap.String("kind", string(AnalysisErrorKindOf(err))),
			zap.String("sender", email.SenderEmail))

		return &DurationResult{
			FinalDuration: cfg.FallbackDuration,
			Method:        MethodFallback,
			Confidence:    0,
			Reasoning:     fmt.Sprintf("Content analysis failed (%v); using fallback duration of %d minutes", err, cfg.FallbackDuration),
		}
	}

	if analysis.Confidence < cfg.ConfidenceThreshold {
		return &DurationResult{
			FinalDuration: cfg.FallbackDuration,
			Method:        MethodFallback,
			Confidence:    analysis.Confidence,
			Reasoning: fmt.Sprintf("AI confidence %.0f%% is below the configured threshold of %.0f%%; using fallback duration of %d minutes",
				analysis.Confidence*100, cfg.ConfidenceThreshold*100, cfg.FallbackDuration),
			AIAnalysis: analysis,
		}
	}

	result := &DurationResult{
		FinalDuration: analysis.SuggestedDuration,
		Method:        MethodAIAnalysis,
		Confidence:    analysis.Confidence,
		Reasoning:     analysis.Reasoning,
		AIAnalysis:    analysis,
	}

	if rule := FindOverlappingRule(analysis.MatchedKeywords, cfg.AutomaticDurationRules); rule != nil {
		result.Method = MethodKeywordMatch
		result.MatchedRule = &MatchedRule{
			ID:       rule.ID,
			Name:     rule.DisplayName(),
			Keywords: SplitKeywords(rule.Keywords),
		}
	}

	return result
}

// analyze calls the analyzer under the engine's timeout. A panic inside the
// analyzer is reported as an error.
func (e *Engine) analyze(ctx context.Context, req *AnalysisRequest) (result *ContentAnalysisResult, err error) {
	if e.analyzer == nil {
		return nil, &AnalysisError{Kind: AnalysisErrTransport, Err: errors.New("content analysis is not configured")}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("content analysis panicked: %v", r)
		}
		if e.recorder != nil {
			outcome := "ok"
			if err != nil {
				outcome = string(AnalysisErrorKindOf(err))
				if outcome == "" {
					outcome = "error"
				}
			}
			e.recorder.ObserveAnalysis(outcome, time.Since(start).Seconds())
		}
	}()

	result, err = e.analyzer.Analyze(ctx, req)
	if err == nil && result == nil {
		err = &AnalysisError{Kind: AnalysisErrEmpty, Err: errors.New("analyzer returned no result")}
	}
	return result, err
}
