package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/calendaria/duration-engine/internal/utils"
	"go.uber.org/zap"
)

// AnalysisErrorKind classifies content analysis failures
type AnalysisErrorKind string

const (
	AnalysisErrTransport AnalysisErrorKind = "transport"
	AnalysisErrTimeout   AnalysisErrorKind = "timeout"
	AnalysisErrEmpty     AnalysisErrorKind = "empty_response"
	AnalysisErrParse     AnalysisErrorKind = "parse"
	AnalysisErrSchema    AnalysisErrorKind = "schema"
)

// AnalysisError is returned by the content analysis client on failure
type AnalysisError struct {
	Kind AnalysisErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("content analysis %s error: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// AnalysisErrorKindOf returns the kind of a content analysis error,
// or an empty kind when err is not one
func AnalysisErrorKindOf(err error) AnalysisErrorKind {
	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return analysisErr.Kind
	}
	return ""
}

const (
	// blendConfidenceFloor is the model confidence above which a direct
	// keyword match is averaged with the model suggestion
	blendConfidenceFloor = 0.7
	blendConfidenceBoost = 0.1
	// directMatchConfidence is reported when a direct keyword match
	// overrides a low-confidence model suggestion
	directMatchConfidence = 0.8
)

// AnalysisRequest is the input of the content analysis client
type AnalysisRequest struct {
	Subject      string
	Content      string
	SenderEmail  string
	CustomPrompt string
	Rules        []DurationRule
}

const analysisSystemPrompt = `You are a scheduling assistant for a professional practice. You read client emails and decide how long the requested appointment should be. Respond only with JSON.`

const analysisPromptFormat = `Analyze the following email and determine the appropriate appointment duration.

Email:
From: %s
Subject: %s
Content:
%s
%s%s
Instructions:
- Pick a duration in minutes between 15 and 120.
- Use a confidence between 0.8 and 1.0 when the request is clear, and between 0.5 and 0.7 when it is ambiguous.
- List the specific words or phrases from the email that support your decision.
- Classify the urgency (low, medium or high), the service category, whether this is the client's first visit and the complexity (simple, moderate or complex).

Respond with a JSON object containing:
- suggestedDuration: integer (minutes)
- confidence: number between 0 and 1
- reasoning: string (brief explanation of the decision)
- matchedKeywords: array of strings
- category: string
- urgencyLevel: "low" | "medium" | "high"
- isFirstVisit: boolean
- complexity: "simple" | "moderate" | "complex"

Respond only with the JSON object and nothing else.`

// ContentAnalysisClient turns an email into a validated duration suggestion
// using a language model, then blends it with direct keyword rule matches
type ContentAnalysisClient struct {
	llmClient     LLMClient
	textProcessor *utils.TextProcessor
	maxBodySize   int
	logger        *zap.Logger
}

// NewContentAnalysisClient creates a new content analysis client
func NewContentAnalysisClient(
	llmClient LLMClient,
	textProcessor *utils.TextProcessor,
	maxBodySize int,
	logger *zap.Logger,
) *ContentAnalysisClient {
	return &ContentAnalysisClient{
		llmClient:     llmClient,
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

// BuildPrompt renders the model prompt for a request
func (c *ContentAnalysisClient) BuildPrompt(req *AnalysisRequest) *Prompt {
	sender := req.SenderEmail
	if sender == "" {
		sender = "unknown"
	}

	content := req.Content
	if c.textProcessor != nil {
		content = c.textProcessor.ProcessText(content, c.maxBodySize)
	}

	var custom string
	if strings.TrimSpace(req.CustomPrompt) != "" {
		custom = fmt.Sprintf("\nAdditional instructions from the practice:\n%s\n", strings.TrimSpace(req.CustomPrompt))
	}

	return &Prompt{
		System: analysisSystemPrompt,
		User:   fmt.Sprintf(analysisPromptFormat, sender, req.Subject, content, custom, formatRules(req.Rules)),
	}
}

// formatRules lists the configured rules as grounding context for the model
func formatRules(rules []DurationRule) string {
	if len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nConfigured duration rules (keywords -> duration):\n")
	for _, rule := range rules {
		fmt.Fprintf(&b, "- %q -> %d minutes (priority %d)\n", rule.Keywords, rule.Duration, rule.Priority)
	}
	return b.String()
}

// Analyze runs the model analysis and blends it with direct keyword matches
func (c *ContentAnalysisClient) Analyze(ctx context.Context, req *AnalysisRequest) (*ContentAnalysisResult, error) {
	if c.llmClient == nil {
		return nil, &AnalysisError{Kind: AnalysisErrTransport, Err: errors.New("no LLM client configured")}
	}

	prompt := c.BuildPrompt(req)

	start := time.Now()
	responseText, err := c.llmClient.Complete(ctx, prompt)
	if err != nil {
		kind := AnalysisErrTransport
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = AnalysisErrTimeout
		}
		return nil, &AnalysisError{Kind: kind, Err: err}
	}

	c.logger.Debug("Model response received",
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_size", len(responseText)))

	result, err := ParseAnalysisResponse(responseText)
	if err != nil {
		return nil, err
	}

	match := FindMatchingRule(EmailText(req.Subject, req.Content), req.Rules)
	return BlendWithKeywordMatch(result, match), nil
}

// analysisPayload mirrors the expected model JSON; pointers detect absent fields
type analysisPayload struct {
	SuggestedDuration *float64  `json:"suggestedDuration"`
	Confidence        *float64  `json:"confidence"`
	Reasoning         *string   `json:"reasoning"`
	MatchedKeywords   *[]string `json:"matchedKeywords"`
	Category          *string   `json:"category"`
	UrgencyLevel      *string   `json:"urgencyLevel"`
	IsFirstVisit      *bool     `json:"isFirstVisit"`
	Complexity        *string   `json:"complexity"`
}

// ParseAnalysisResponse extracts and validates the model's JSON answer
func ParseAnalysisResponse(responseText string) (*ContentAnalysisResult, error) {
	if strings.TrimSpace(responseText) == "" {
		return nil, &AnalysisError{Kind: AnalysisErrEmpty, Err: errors.New("model returned no content")}
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(responseText), &payload); err != nil {
		jsonStart := strings.Index(responseText, "{")
		jsonEnd := strings.LastIndex(responseText, "}")
		if jsonStart < 0 || jsonEnd <= jsonStart {
			return nil, &AnalysisError{Kind: AnalysisErrParse, Err: fmt.Errorf("no JSON object in model response: %w", err)}
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &payload); err != nil {
			return nil, &AnalysisError{Kind: AnalysisErrParse, Err: fmt.Errorf("failed to parse model response as JSON: %w", err)}
		}
	}

	result, err := payload.validate()
	if err != nil {
		return nil, &AnalysisError{Kind: AnalysisErrSchema, Err: err}
	}
	return result, nil
}

func (p *analysisPayload) validate() (*ContentAnalysisResult, error) {
	var problems []string

	if p.SuggestedDuration == nil {
		problems = append(problems, "suggestedDuration is required")
	} else if *p.SuggestedDuration <= 0 || *p.SuggestedDuration != math.Trunc(*p.SuggestedDuration) {
		problems = append(problems, fmt.Sprintf("suggestedDuration must be a positive integer, got %v", *p.SuggestedDuration))
	}
	if p.Confidence == nil {
		problems = append(problems, "confidence is required")
	} else if *p.Confidence < 0 || *p.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence must be between 0 and 1, got %v", *p.Confidence))
	}
	if p.Reasoning == nil || strings.TrimSpace(*p.Reasoning) == "" {
		problems = append(problems, "reasoning is required")
	}
	if p.MatchedKeywords == nil {
		problems = append(problems, "matchedKeywords is required")
	}
	if p.Category == nil || strings.TrimSpace(*p.Category) == "" {
		problems = append(problems, "category is required")
	}
	if p.UrgencyLevel == nil {
		problems = append(problems, "urgencyLevel is required")
	} else if !oneOf(*p.UrgencyLevel, "low", "medium", "high") {
		problems = append(problems, fmt.Sprintf("urgencyLevel must be low, medium or high, got %q", *p.UrgencyLevel))
	}
	if p.IsFirstVisit == nil {
		problems = append(problems, "isFirstVisit is required")
	}
	if p.Complexity == nil {
		problems = append(problems, "complexity is required")
	} else if !oneOf(*p.Complexity, "simple", "moderate", "complex") {
		problems = append(problems, fmt.Sprintf("complexity must be simple, moderate or complex, got %q", *p.Complexity))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid model output: %s", strings.Join(problems, "; "))
	}

	return &ContentAnalysisResult{
		SuggestedDuration: int(*p.SuggestedDuration),
		Confidence:        *p.Confidence,
		Reasoning:         strings.TrimSpace(*p.Reasoning),
		MatchedKeywords:   dedupeKeywords(*p.MatchedKeywords),
		Category:          strings.TrimSpace(*p.Category),
		UrgencyLevel:      *p.UrgencyLevel,
		IsFirstVisit:      *p.IsFirstVisit,
		Complexity:        *p.Complexity,
	}, nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// BlendWithKeywordMatch combines a model result with a direct keyword match.
// Without a match the model result is returned unchanged.
func BlendWithKeywordMatch(result *ContentAnalysisResult, match *KeywordMatch) *ContentAnalysisResult {
	if match == nil || result == nil {
		return result
	}

	rule := match.Rule
	label := rule.Category
	if strings.TrimSpace(label) == "" {
		label = rule.Keywords
	}

	if result.Confidence > blendConfidenceFloor {
		return &ContentAnalysisResult{
			SuggestedDuration: int(math.Round(float64(rule.Duration+result.SuggestedDuration) / 2)),
			Confidence:        math.Min(result.Confidence+blendConfidenceBoost, 1.0),
			Reasoning: fmt.Sprintf("Combined analysis: keyword rule %q (%s) suggests %d minutes. AI analysis: %s",
				label, strings.Join(match.MatchedKeywords, ", "), rule.Duration, result.Reasoning),
			MatchedKeywords: dedupeKeywords(match.MatchedKeywords, result.MatchedKeywords),
			Category:        result.Category,
			UrgencyLevel:    result.UrgencyLevel,
			IsFirstVisit:    result.IsFirstVisit,
			Complexity:      result.Complexity,
		}
	}

	// Duration, confidence and reasoning come from the rule while the
	// classification fields stay with the model.
	return &ContentAnalysisResult{
		SuggestedDuration: rule.Duration,
		Confidence:        directMatchConfidence,
		Reasoning: fmt.Sprintf("Rule %q set %d minutes by direct keyword rule match (%s)",
			label, rule.Duration, strings.Join(match.MatchedKeywords, ", ")),
		MatchedKeywords: dedupeKeywords(match.MatchedKeywords),
		Category:        result.Category,
		UrgencyLevel:    result.UrgencyLevel,
		IsFirstVisit:    result.IsFirstVisit,
		Complexity:      result.Complexity,
	}
}
