package ports

import (
	"context"

	"github.com/calendaria/duration-engine/internal/core"
)

// EmailIntake defines the interface for components that receive booking
// request emails and decide their appointment duration
type EmailIntake interface {
	// ProcessEmail decides the appointment duration for an email
	ProcessEmail(ctx context.Context, email *core.Email) (*core.DurationResult, error)

	// Start starts the intake service
	Start() error

	// Stop stops the intake service
	Stop() error
}

// FeedbackStore is a feedback repository that owns background resources
type FeedbackStore interface {
	core.FeedbackRepository

	// Stop releases the store's resources
	Stop()
}
