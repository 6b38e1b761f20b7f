package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acontext-run/runtime/internal/config"
	"github.com/acontext-run/runtime/internal/coordination"
	"github.com/acontext-run/runtime/internal/llm"
	"github.com/acontext-run/runtime/internal/logging"
	"github.com/acontext-run/runtime/internal/mq"
	"github.com/acontext-run/runtime/internal/server"
	"github.com/acontext-run/runtime/internal/sessionmessage"
	"github.com/acontext-run/runtime/internal/skilllearn"
	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/internal/taskagent"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and its background MQ consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP listen port (default: ACONTEXT_HTTP_PORT or 8080)")
	return cmd
}

// runServe wires every package into one process: the Persistence Gateway,
// the coordination Store, the MQ Bus, the pipeline's four consumers, and
// the HTTP layer driving them — then blocks until SIGINT/SIGTERM.
// It refuses to start against a dirty or unversioned schema (SchemaStatus),
// the same startup gate the teacher's storage layer exposes for its own
// migration-status check.
func runServe(portFlag int) error {
	cfg, err := config.Load(resolveEnvFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if portFlag != 0 {
		cfg.HTTPPort = portFlag
	}

	status, err := storage.CheckSchema(resolveMigrationsDir(), cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if status.Dirty || status.Version == 0 {
		return fmt.Errorf("refusing to start: %s", status.FormatError())
	}
	logging.Logger.Info().Uint("version", status.Version).Msg("schema check passed")

	db, err := storage.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping storage: %w", err)
	}

	coord := coordination.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	bus, err := mq.New()
	if err != nil {
		return fmt.Errorf("new mq bus: %w", err)
	}
	defer bus.Close()

	llmClient := llm.New(cfg.LLM)

	buffer := &sessionmessage.Controller{DB: db, Coord: coord, MQ: bus, Defaults: cfg.Defaults}
	agent := &taskagent.Agent{
		DB:              db,
		LLM:             llmClient,
		MQ:              bus,
		DefaultProvider: cfg.DefaultLLMProvider,
		DefaultModel:    cfg.DefaultLLMModel,
	}
	consumer := &sessionmessage.Consumer{DB: db, Coord: coord, MQ: bus, Agent: agent, Defaults: cfg.Defaults}
	distiller := &skilllearn.Distiller{
		DB:              db,
		LLM:             llmClient,
		MQ:              bus,
		DefaultProvider: cfg.DefaultLLMProvider,
		DefaultModel:    cfg.DefaultLLMModel,
	}
	skillAgent := &skilllearn.Agent{
		DB:              db,
		Coord:           coord,
		LLM:             llmClient,
		MQ:              bus,
		DefaultProvider: cfg.DefaultLLMProvider,
		DefaultModel:    cfg.DefaultLLMModel,
		Defaults:        cfg.Defaults,
	}

	bus.Subscribe("buffer-controller", mq.TopicNewMessage, buffer.HandleNewMessage)
	bus.Subscribe("session-message-consumer", mq.TopicBufferedMessage, consumer.HandleBufferedMessage)
	bus.Subscribe("skill-learn-distiller", mq.TopicSkillLearnTask, distiller.HandleSkillLearnTask)
	bus.Subscribe("skill-learn-agent", mq.TopicSkillLearnDistilled, skillAgent.HandleSkillLearnDistilled)

	srvCfg := server.DefaultConfig()
	srvCfg.Port = cfg.HTTPPort
	httpSrv := server.New(srvCfg, db, coord, bus, consumer, cfg.Defaults)

	errCh := make(chan error, 2)
	go func() {
		logging.Logger.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := bus.Run(ctx); err != nil {
			errCh <- fmt.Errorf("mq router: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logging.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		logging.Logger.Error().Err(err).Msg("fatal error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error().Err(err).Msg("http shutdown error")
	}

	return nil
}
