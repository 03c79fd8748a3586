package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/agent"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/config"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/llm"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/operators"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/prompts"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/server"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tools"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tracing"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(settings.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(settings, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func run(settings *config.Settings, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutdown signal received")
		cancel()
	}()

	var tracer *tracing.Tracer
	if settings.LangfuseEnabled() {
		lfCfg := config.LoadLangfuseConfig(settings.SettingsDir)
		tracer = tracing.New(tracing.Config{
			Host:          settings.LangfuseHost,
			PublicKey:     settings.LangfusePublicKey,
			SecretKey:     settings.LangfuseSecretKey,
			FlushAt:       lfCfg.FlushAt,
			FlushInterval: time.Duration(lfCfg.FlushInterval * float64(time.Second)),
		}, logger)
		defer tracer.Close()
		logger.Info("langfuse tracing enabled", zap.String("host", settings.LangfuseHost))
	} else {
		logger.Info("langfuse tracing disabled, keys not configured")
	}

	promptStore := prompts.NewStore(settings.PromptsDir, logger)
	weatherClient := tools.NewWeatherClient(logger)
	digidatesClient := tools.NewDigidatesClient(logger)

	// Fresh orchestrator per request: settings files are re-read on every
	// build, so budget and model edits apply without a restart.
	factory := func() (*agent.Executor, error) {
		modelCfg := config.LoadModelConfig(settings.SettingsDir)
		agentCfg := config.LoadAgentConfig(settings.SettingsDir)

		completions := llm.NewClient(llm.Config{
			APIKey:      settings.MistralAPIKey,
			Model:       modelCfg.ModelName,
			Temperature: modelCfg.Temperature,
			MaxTokens:   modelCfg.MaxTokens,
			Timeout:     time.Duration(modelCfg.Timeout) * time.Second,
			Logger:      logger,
			DebugHTTP:   settings.Debug(),
		})

		operatorFactory := operators.NewFactory(completions, promptStore, agent.Config{
			MaxIterations:     agentCfg.Operator.MaxIterations,
			MaxExecutionTime:  agentCfg.Operator.MaxExecutionTime(),
			HandleParseErrors: true,
		}, logger)

		registry, err := agent.NewRegistry(operators.All(operatorFactory, weatherClient, digidatesClient)...)
		if err != nil {
			return nil, err
		}

		systemPrompt, err := promptStore.Get("main_orchestrator_system")
		if err != nil {
			return nil, err
		}

		return agent.NewExecutor("main_orchestrator", completions, registry, systemPrompt,
			agent.Config{
				MaxIterations:     agentCfg.Orchestrator.MaxIterations,
				MaxExecutionTime:  agentCfg.Orchestrator.MaxExecutionTime(),
				HandleParseErrors: true,
			},
			agent.NewObserver("main_orchestrator", logger), logger)
	}

	// Fail fast on broken wiring before accepting traffic.
	if _, err := factory(); err != nil {
		return fmt.Errorf("orchestrator wiring failed: %w", err)
	}

	modelName := func() string {
		return config.LoadModelConfig(settings.SettingsDir).ModelName
	}
	srv := server.New(factory, tracer, modelName, settings.Debug(), logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: srv.Handler(),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", zap.Int("port", settings.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
