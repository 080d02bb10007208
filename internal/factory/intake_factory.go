package factory

import (
	"fmt"
	"io"
	"strings"

	"github.com/calendaria/duration-engine/internal/adapters/intake"
	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/domains"
	"go.uber.org/zap"
)

// IntakeFactory creates email intakes based on configuration
type IntakeFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	processor core.DurationProcessor
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(cfg *config.Config, logger *zap.Logger, processor core.DurationProcessor) *IntakeFactory {
	return &IntakeFactory{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
	}
}

// CreateSMTPIntake creates the SMTP intake, or nil when it is disabled
func (f *IntakeFactory) CreateSMTPIntake() (*intake.SMTPIntake, error) {
	smtpCfg := f.cfg.GetSMTP()
	if !smtpCfg.Enabled {
		return nil, nil
	}

	processing, err := f.Processing()
	if err != nil {
		return nil, err
	}
	checker := domains.NewChecker(smtpCfg.AcceptedDomains, f.logger)

	return intake.NewSMTPIntake(f.processor, processing, checker, smtpCfg, f.logger), nil
}

// CreateCLIIntake creates an intake that writes reports to out
func (f *IntakeFactory) CreateCLIIntake(out io.Writer, verbose, jsonOutput bool) (*intake.CLIIntake, error) {
	processing, err := f.Processing()
	if err != nil {
		return nil, err
	}
	return intake.NewCLIIntake(f.processor, processing, out, f.logger, verbose, jsonOutput), nil
}

// Processing returns the validated processing configuration of the
// intakes. Validation warnings are logged; errors are returned.
func (f *IntakeFactory) Processing() (core.EmailProcessingConfig, error) {
	processing, err := f.cfg.GetProcessing()
	if err != nil {
		return core.EmailProcessingConfig{}, err
	}

	validation := core.ValidateConfig(processing)
	for _, warning := range validation.Warnings {
		f.logger.Warn("Processing configuration warning", zap.String("warning", warning))
	}
	if !validation.IsValid {
		return core.EmailProcessingConfig{}, fmt.Errorf("%w: %s", core.ErrInvalidConfig, strings.Join(validation.Errors, "; "))
	}

	return processing, nil
}
