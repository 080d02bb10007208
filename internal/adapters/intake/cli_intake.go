package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/calendaria/duration-engine/internal/core"
	"go.uber.org/zap"
)

// CLIIntake decides durations for emails given on the command line and
// prints a report
type CLIIntake struct {
	processor  core.DurationProcessor
	processing core.EmailProcessingConfig
	out        io.Writer
	logger     *zap.Logger
	verbose    bool
	jsonOutput bool
}

// NewCLIIntake creates a new CLI intake
func NewCLIIntake(
	processor core.DurationProcessor,
	processing core.EmailProcessingConfig,
	out io.Writer,
	logger *zap.Logger,
	verbose bool,
	jsonOutput bool,
) *CLIIntake {
	return &CLIIntake{
		processor:  processor,
		processing: processing,
		out:        out,
		logger:     logger,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// cliReport is the JSON form of the report
type cliReport struct {
	Email                  core.ProcessedEmail         `json:"email"`
	Result                 *core.DurationResult        `json:"result"`
	SuggestedCalendarEvent core.SuggestedCalendarEvent `json:"suggestedCalendarEvent"`
}

// ProcessEmail processes an email and displays the results
func (c *CLIIntake) ProcessEmail(ctx context.Context, email *core.Email) (*core.DurationResult, error) {
	c.logger.Debug("Processing email", zap.String("sender", email.From))
	processed := email.Processed()

	startTime := time.Now()
	result, err := c.processor.Process(ctx, processed, c.processing)
	if err != nil {
		c.logger.Error("Failed to process email", zap.Error(err))
		return nil, err
	}
	elapsed := time.Since(startTime)
	event := core.BuildCalendarEvent(processed, result)

	if c.jsonOutput {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cliReport{Email: processed, Result: result, SuggestedCalendarEvent: event}); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		return result, nil
	}

	fmt.Fprintf(c.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(c.out, "From: %s\n", email.From)
	fmt.Fprintf(c.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(c.out, "Subject: %s\n", processed.Subject)
	fmt.Fprintf(c.out, "Body length: %d bytes\n", len(email.Body))

	if c.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(c.out, "\nBody preview:\n%s\n", string(preview))
	}

	fmt.Fprintf(c.out, "\n=== Decision ===\n")
	fmt.Fprintf(c.out, "Duration: %d minutes\n", result.FinalDuration)
	fmt.Fprintf(c.out, "Method: %s\n", result.Method)
	fmt.Fprintf(c.out, "Confidence: %.2f\n", result.Confidence)
	fmt.Fprintf(c.out, "Reasoning: %s\n", result.Reasoning)
	if result.MatchedRule != nil {
		fmt.Fprintf(c.out, "Matched rule: %s (%s)\n", result.MatchedRule.Name, strings.Join(result.MatchedRule.Keywords, ", "))
	}
	if a := result.AIAnalysis; a != nil && c.verbose {
		fmt.Fprintf(c.out, "\n=== Analysis ===\n")
		fmt.Fprintf(c.out, "Suggested duration: %d minutes\n", a.SuggestedDuration)
		fmt.Fprintf(c.out, "Category: %s\n", a.Category)
		fmt.Fprintf(c.out, "Urgency: %s\n", a.UrgencyLevel)
		fmt.Fprintf(c.out, "Complexity: %s\n", a.Complexity)
		fmt.Fprintf(c.out, "Keywords: %s\n", strings.Join(a.MatchedKeywords, ", "))
	}

	fmt.Fprintf(c.out, "\n=== Suggested Calendar Event ===\n")
	fmt.Fprintf(c.out, "Title: %s\n", event.Title)
	fmt.Fprintf(c.out, "Duration: %d minutes\n", event.Duration)
	fmt.Fprintf(c.out, "%s\n", event.Description)
	fmt.Fprintf(c.out, "\nProcessing time: %v\n", elapsed)

	return result, nil
}

// Start is a no-op for the CLI intake
func (c *CLIIntake) Start() error {
	return nil
}

// Stop is a no-op for the CLI intake
func (c *CLIIntake) Stop() error {
	return nil
}
