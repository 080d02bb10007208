package core

import (
	"fmt"
	"strings"
)

// SuggestedCalendarEvent is a calendar entry derived from a decision
type SuggestedCalendarEvent struct {
	Title       string `json:"title"`
	Duration    int    `json:"duration"`
	Description string `json:"description"`
}

// BuildCalendarEvent derives the suggested calendar event for an email
func BuildCalendarEvent(email ProcessedEmail, result *DurationResult) SuggestedCalendarEvent {
	who := strings.TrimSpace(email.SenderEmail)
	if who == "" {
		who = "New client"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Appointment scheduled from email: %s\n", email.Subject)
	fmt.Fprintf(&b, "Reasoning: %s\n", result.Reasoning)
	fmt.Fprintf(&b, "Method: %s\n", result.Method)
	fmt.Fprintf(&b, "Confidence: %.0f%%", result.Confidence*100)
	if a := result.AIAnalysis; a != nil {
		fmt.Fprintf(&b, "\nCategory: %s", a.Category)
		fmt.Fprintf(&b, "\nUrgency: %s", a.UrgencyLevel)
		fmt.Fprintf(&b, "\nFirst visit: %s", yesNo(a.IsFirstVisit))
	}

	return SuggestedCalendarEvent{
		Title:       fmt.Sprintf("Appointment - %s", who),
		Duration:    result.FinalDuration,
		Description: b.String(),
	}
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
