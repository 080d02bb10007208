package factory

import (
	"fmt"

	"github.com/calendaria/duration-engine/internal/adapters/bedrock"
	"github.com/calendaria/duration-engine/internal/adapters/gemini"
	"github.com/calendaria/duration-engine/internal/adapters/openai"
	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	llmConfig := f.cfg.GetLLM()

	f.logger.Info("Creating LLM client", zap.String("provider", llmConfig.Provider))

	var (
		client core.LLMClient
		err    error
	)
	switch llmConfig.Provider {
	case "bedrock":
		client, err = asLLMClient(bedrock.NewFactory(f.cfg, f.logger).CreateClient())
	case "gemini":
		client, err = asLLMClient(gemini.NewFactory(f.cfg, f.logger).CreateClient())
	case "openai":
		client, err = asLLMClient(openai.NewFactory(f.cfg, f.logger).CreateClient())
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", llmConfig.Provider, err)
	}
	return client, nil
}

// asLLMClient keeps a failed constructor from yielding a typed nil client
func asLLMClient[C core.LLMClient](client C, err error) (core.LLMClient, error) {
	if err != nil {
		return nil, err
	}
	return client, nil
}
