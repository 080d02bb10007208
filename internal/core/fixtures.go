package core

import "time"

// DefaultProcessingConfig returns the configuration new tenants start with
func DefaultProcessingConfig() EmailProcessingConfig {
	return EmailProcessingConfig{
		AppointmentDurationMode: ModeAutomatic,
		AutomaticDurationRules: []DurationRule{
			{
				ID:       "quick-consult",
				Name:     "Quick consult",
				Keywords: "quick consult|quick question|brief call|consulta rápida|pregunta rápida",
				Duration: 15,
				Priority: 2,
				Active:   true,
				Category: "quick consult",
			},
			{
				ID:       "standard-consult",
				Name:     "Standard consult",
				Keywords: "consultation|appointment|follow-up|consulta|cita|seguimiento",
				Duration: 30,
				Priority: 1,
				Active:   true,
				Category: "standard consult",
			},
			{
				ID:       "first-visit",
				Name:     "First visit",
				Keywords: "first visit|first time|new patient|new client|primera vez|primera visita",
				Duration: 60,
				Priority: 3,
				Active:   true,
				Category: "first visit",
			},
		},
		EnableAIAnalysis:           true,
		AIAnalysisPrompt:           "Consider that first visits need extra time for intake and history.",
		FallbackDuration:           30,
		ConfidenceThreshold:        0.7,
		DefaultAppointmentDuration: 30,
	}
}

// SampleEmails returns example emails for exercising the engine
func SampleEmails() []ProcessedEmail {
	now := time.Now().UTC().Truncate(time.Second)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	return []ProcessedEmail{
		{
			Subject:     "Quick question about my prescription",
			Content:     "Hi, I just have a quick question about the dosage you prescribed last week. Could we do a brief call?",
			SenderEmail: "maria.lopez@example.com",
			ReceivedAt:  at(2 * time.Hour),
		},
		{
			Subject:     "New patient - first visit",
			Content:     "Hello, this would be my first time at your practice. I'd like a complete evaluation, I have several concerns about my back and shoulders.",
			SenderEmail: "john.smith@example.com",
			ReceivedAt:  at(time.Hour),
		},
		{
			Subject:     "Follow-up appointment",
			Content:     "Good morning, I need to schedule the follow-up consultation we discussed at my last appointment.",
			SenderEmail: "ana.garcia@example.com",
			ReceivedAt:  at(30 * time.Minute),
		},
	}
}
