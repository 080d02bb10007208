package core

import (
	"strings"
	"time"
)

// DurationMode selects which strategy governs the appointment duration
type DurationMode string

const (
	ModeFixed             DurationMode = "fixed"
	ModeByServiceCategory DurationMode = "by_service_category"
	ModeAutomatic         DurationMode = "automatic"
)

// Method records which decision path produced the final duration
type Method string

const (
	MethodFixed        Method = "fixed"
	MethodAIAnalysis   Method = "ai_analysis"
	MethodKeywordMatch Method = "keyword_match"
	MethodFallback     Method = "fallback"
)

// Email represents a raw inbound email message
type Email struct {
	From       string
	To         []string
	Subject    string
	Body       string
	Headers    map[string][]string
	ReceivedAt time.Time
}

// Processed normalizes a raw email into the engine's input unit
func (e *Email) Processed() ProcessedEmail {
	pe := ProcessedEmail{
		Subject:     strings.TrimSpace(e.Subject),
		Content:     e.Body,
		SenderEmail: strings.TrimSpace(e.From),
	}
	if !e.ReceivedAt.IsZero() {
		receivedAt := e.ReceivedAt
		pe.ReceivedAt = &receivedAt
	}
	return pe
}

// ProcessedEmail is the normalized input unit of the duration engine
type ProcessedEmail struct {
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	SenderEmail string     `json:"senderEmail,omitempty"`
	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
}

// DurationRule maps a keyword set to an appointment duration
type DurationRule struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name,omitempty" mapstructure:"name"`
	Keywords string `json:"keywords" mapstructure:"keywords"`
	Duration int    `json:"duration" mapstructure:"duration"`
	Priority int    `json:"priority" mapstructure:"priority"`
	Active   bool   `json:"active" mapstructure:"active"`
	Category string `json:"category,omitempty" mapstructure:"category"`
}

// DisplayName returns the most descriptive label available for the rule
func (r DurationRule) DisplayName() string {
	switch {
	case strings.TrimSpace(r.Name) != "":
		return r.Name
	case strings.TrimSpace(r.Category) != "":
		return r.Category
	default:
		return r.ID
	}
}

// EmailProcessingConfig is the tenant-level configuration of the engine
type EmailProcessingConfig struct {
	AppointmentDurationMode    DurationMode   `json:"appointmentDurationMode"`
	AutomaticDurationRules     []DurationRule `json:"automaticDurationRules"`
	EnableAIAnalysis           bool           `json:"enableAIAnalysis"`
	AIAnalysisPrompt           string         `json:"aiAnalysisPrompt,omitempty"`
	FallbackDuration           int            `json:"fallbackDuration"`
	ConfidenceThreshold        float64        `json:"confidenceThreshold"`
	DefaultAppointmentDuration int            `json:"defaultAppointmentDuration"`
}

// ContentAnalysisResult is the structured output of the language model call
type ContentAnalysisResult struct {
	SuggestedDuration int      `json:"suggestedDuration"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	MatchedKeywords   []string `json:"matchedKeywords"`
	Category          string   `json:"category"`
	UrgencyLevel      string   `json:"urgencyLevel"`
	IsFirstVisit      bool     `json:"isFirstVisit"`
	Complexity        string   `json:"complexity"`
}

// MatchedRule is the rule evidence attached to an accepted decision
type MatchedRule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// DurationResult is the engine's final decision for one email
type DurationResult struct {
	FinalDuration int                    `json:"finalDuration"`
	Method        Method                 `json:"method"`
	Confidence    float64                `json:"confidence"`
	Reasoning     string                 `json:"reasoning"`
	AIAnalysis    *ContentAnalysisResult `json:"aiAnalysis,omitempty"`
	MatchedRule   *MatchedRule           `json:"matchedRule,omitempty"`
}

// FeedbackRecord is an operator's assessment of an engine decision
type FeedbackRecord struct {
	ID              string         `json:"id"`
	Email           ProcessedEmail `json:"email"`
	Result          DurationResult `json:"result"`
	CorrectDuration *int           `json:"correctDuration,omitempty"`
	Rating          int            `json:"rating,omitempty"`
	Comment         string         `json:"comment,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	ExpiresAt       time.Time      `json:"expiresAt"`
}
