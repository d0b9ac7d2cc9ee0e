// Command server runs the palaver chat orchestration server.
//
// Configuration is read from a YAML file (--config, PALAVER_CONFIG,
// ./config.yaml or /etc/palaver/config.yaml) and PALAVER_* environment
// variables. The most common overrides:
//
//	PALAVER_BACKEND_PROVIDER - openai, azure, bedrock or gemini (default: openai)
//	PALAVER_BACKEND_ENDPOINT - Backend base URL (required for openai and azure)
//	PALAVER_BACKEND_API_KEY  - Backend API key (optional)
//	PALAVER_MODEL            - Model or deployment name (required)
//	PALAVER_PORT             - Listen port (default: 8080)
//	PALAVER_TIMEOUT          - Completion timeout (default: 120s)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/palaver/pkg/backend/providers"
	"github.com/rhuss/palaver/pkg/config"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/observability"
	"github.com/rhuss/palaver/pkg/orchestrator"
	transporthttp "github.com/rhuss/palaver/pkg/transport/http"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "palaver-server",
		Short:         "Serve chat completions with capability calling",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.DebugOptions())

	shutdownTracing, err := observability.InitTracing(cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		err = errors.Join(err, shutdownTracing(context.Background()))
	}()

	reg, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, reg.Close())
	}()

	handle, err := providers.NewFactory().Build(cfg.FactoryConfig())
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	defer func() {
		err = errors.Join(err, handle.Close())
	}()

	orch, err := orchestrator.New(handle, reg, orchestrator.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	handler := orchestrator.NewChatHandler(orch, cfg.Policy)

	srv := transporthttp.NewServer(handler, handler,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithValidation(cfg.Validation()),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
		transporthttp.WithMaxConcurrent(cfg.Server.MaxConcurrent),
	)

	slog.Info("palaver configured",
		"port", cfg.Server.Port,
		"provider", handle.Provider(),
		"model", handle.Model(),
		"capabilities", reg.Names(),
		"allow_autonomous_calls", cfg.Policy.AllowAutonomousCalls,
		"return_scope", cfg.Policy.ReturnScope.String(),
	)
	return srv.Run(ctx)
}
