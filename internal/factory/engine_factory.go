package factory

import (
	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/utils"
	"go.uber.org/zap"
)

// EngineFactory assembles the content analysis client, the duration
// engine and the batch coordinator from configuration
type EngineFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder core.DecisionRecorder
}

// NewEngineFactory creates a new engine factory
func NewEngineFactory(cfg *config.Config, logger *zap.Logger, recorder core.DecisionRecorder) *EngineFactory {
	return &EngineFactory{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *EngineFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateEngine creates the duration engine on top of the given LLM client
func (f *EngineFactory) CreateEngine(llmClient core.LLMClient) (*core.Engine, error) {
	engineCfg, err := f.cfg.GetEngine()
	if err != nil {
		return nil, err
	}

	analyzer := core.NewContentAnalysisClient(
		llmClient,
		f.CreateTextProcessor(),
		engineCfg.MaxBodySize,
		f.logger,
	)

	return core.NewEngine(analyzer, f.logger, engineCfg.AnalysisTimeout, f.recorder), nil
}

// CreateBatchCoordinator creates a batch coordinator running the engine
func (f *EngineFactory) CreateBatchCoordinator(engine *core.Engine) (*core.BatchCoordinator, error) {
	engineCfg, err := f.cfg.GetEngine()
	if err != nil {
		return nil, err
	}
	return core.NewBatchCoordinator(engine, engineCfg.BatchSize, f.logger), nil
}
