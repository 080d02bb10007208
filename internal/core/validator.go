package core

import (
	"fmt"
	"sort"
	"strings"
)

// strictThreshold is the confidence threshold above which most analyses
// are expected to fall back
const strictThreshold = 0.9

// ValidationResult is the outcome of validating an EmailProcessingConfig
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateConfig checks an EmailProcessingConfig before it is used. Errors
// make the configuration unusable; warnings only flag reduced decision
// quality.
func ValidateConfig(cfg EmailProcessingConfig) ValidationResult {
	res := ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	if cfg.DefaultAppointmentDuration <= 0 {
		res.Errors = append(res.Errors, "defaultAppointmentDuration must be greater than 0")
	}
	if cfg.FallbackDuration <= 0 {
		res.Errors = append(res.Errors, "fallbackDuration must be greater than 0")
	}
	if !(cfg.ConfidenceThreshold >= 0 && cfg.ConfidenceThreshold <= 1) {
		res.Errors = append(res.Errors, "confidenceThreshold must be between 0 and 1")
	} else if cfg.ConfidenceThreshold > strictThreshold {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("confidenceThreshold %.2f is very high; most analyses will use the fallback duration", cfg.ConfidenceThreshold))
	}

	switch cfg.AppointmentDurationMode {
	case ModeFixed, ModeByServiceCategory, ModeAutomatic:
	default:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unknown appointmentDurationMode %q; the system default duration will be used", cfg.AppointmentDurationMode))
	}

	automatic := cfg.AppointmentDurationMode == ModeAutomatic
	activeCount := 0
	priorities := make(map[int][]string)

	for i, rule := range cfg.AutomaticDurationRules {
		if !rule.Active {
			continue
		}
		activeCount++
		label := ruleLabel(rule, i)

		if automatic && rule.Duration <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("rule %s: duration must be greater than 0", label))
		}
		if len(SplitKeywords(rule.Keywords)) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rule %s has no keywords and will never match", label))
		}
		priorities[rule.Priority] = append(priorities[rule.Priority], label)
	}

	if automatic && activeCount == 0 && !cfg.EnableAIAnalysis {
		res.Warnings = append(res.Warnings,
			"automatic mode has no active rules and AI analysis is disabled; the engine has no rules or instructions to decide with")
	}

	dupes := make([]int, 0)
	for priority, labels := range priorities {
		if len(labels) > 1 {
			dupes = append(dupes, priority)
		}
	}
	sort.Ints(dupes)
	for _, priority := range dupes {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("duplicate priorities: rules %s share priority %d; the earlier rule wins ties",
				strings.Join(priorities[priority], ", "), priority))
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func ruleLabel(rule DurationRule, index int) string {
	if rule.ID != "" {
		return fmt.Sprintf("%q", rule.ID)
	}
	return fmt.Sprintf("#%d", index+1)
}
