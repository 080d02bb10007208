package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calendaria/duration-engine/internal/adapters/intake"
	"github.com/calendaria/duration-engine/internal/api"
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/calendaria/duration-engine/internal/di"
	"github.com/calendaria/duration-engine/internal/ports"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (searches the default locations if empty)")
	flag.Parse()

	// Build the dependency injection container
	container, err := di.BuildContainer(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	server *api.Server,
	smtpIntake *intake.SMTPIntake,
	llmClient core.LLMClient,
	store ports.FeedbackStore,
) error {
	defer logger.Sync()
	defer store.Stop()

	if err := server.Start(); err != nil {
		logger.Error("Failed to start HTTP API", zap.Error(err))
		return err
	}

	// The SMTP intake is optional
	var intakes []ports.EmailIntake
	if smtpIntake != nil {
		intakes = append(intakes, smtpIntake)
	}
	for _, in := range intakes {
		if err := in.Start(); err != nil {
			logger.Error("Failed to start intake", zap.Error(err))
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	for _, in := range intakes {
		if err := in.Stop(); err != nil {
			logger.Error("Failed to stop intake", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP API", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
