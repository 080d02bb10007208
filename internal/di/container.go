package di

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/calendaria/duration-engine/internal/adapters/intake"
	"github.com/calendaria/duration-engine/internal/api"
	"github.com/calendaria/duration-engine/internal/config"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/factory"
	"github.com/calendaria/duration-engine/internal/logging"
	"github.com/calendaria/duration-engine/internal/metrics"
	"github.com/calendaria/duration-engine/internal/ports"
)

// BuildContainer creates and configures a dependency injection container
// for the server. An empty configFile searches the default locations.
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideMetrics(container); err != nil {
		return nil, err
	}
	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// Register feedback store and service
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (ports.FeedbackStore, error) {
		return f.CreateFeedbackStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		store ports.FeedbackStore,
		f *factory.StoreFactory,
		logger *zap.Logger,
	) (*core.FeedbackService, error) {
		retention, err := f.GetRetention()
		if err != nil {
			return nil, err
		}
		return core.NewFeedbackService(store, logger, retention), nil
	}); err != nil {
		return nil, err
	}

	// Register HTTP API
	if err := container.Provide(func(
		engine *core.Engine,
		batch *core.BatchCoordinator,
		feedback *core.FeedbackService,
		logger *zap.Logger,
	) *api.Handler {
		return api.NewHandler(engine, batch, feedback, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		h *api.Handler,
		logger *zap.Logger,
		m *metrics.DurationMetrics,
		reg *prometheus.Registry,
	) http.Handler {
		return api.NewRouter(&api.RouterConfig{
			Handler:  h,
			Logger:   logger,
			Metrics:  m,
			Gatherer: reg,
		})
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, handler http.Handler, logger *zap.Logger) (*api.Server, error) {
		httpCfg, err := cfg.GetHTTP()
		if err != nil {
			return nil, err
		}
		return api.NewServer(httpCfg, handler, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register SMTP intake
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IntakeFactory) (*intake.SMTPIntake, error) {
		return f.CreateSMTPIntake()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideMetrics registers the Prometheus registry and the decision metrics
func provideMetrics(container *dig.Container) error {
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return err
	}
	if err := container.Provide(func(reg *prometheus.Registry) *metrics.DurationMetrics {
		return metrics.NewDurationMetrics(reg)
	}); err != nil {
		return err
	}
	return container.Provide(func(m *metrics.DurationMetrics) core.DecisionRecorder {
		return m
	})
}

// provideEngine registers the LLM client, the engine and the batch
// coordinator
func provideEngine(container *dig.Container) error {
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewEngineFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EngineFactory, llm core.LLMClient) (*core.Engine, error) {
		return f.CreateEngine(llm)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(e *core.Engine) core.DurationProcessor {
		return e
	}); err != nil {
		return err
	}
	return container.Provide(func(f *factory.EngineFactory, e *core.Engine) (*core.BatchCoordinator, error) {
		return f.CreateBatchCoordinator(e)
	})
}
