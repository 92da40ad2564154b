package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hovel-sh/hovel/internal/compose"
	"github.com/hovel-sh/hovel/internal/config"
	"github.com/hovel-sh/hovel/internal/engine"
	"github.com/hovel-sh/hovel/internal/gemini"
	"github.com/hovel-sh/hovel/internal/logging"
	"github.com/hovel-sh/hovel/internal/port"
	"github.com/hovel-sh/hovel/internal/registry"
	"github.com/hovel-sh/hovel/internal/server"
	"github.com/hovel-sh/hovel/internal/template"
	"github.com/hovel-sh/hovel/internal/terminal"
	"github.com/hovel-sh/hovel/internal/vcs"
)

// NewServeCommand runs the control plane until interrupted.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the branch orchestrator control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
			log := logging.WithComponent("serve")

			reg, err := registry.New(cfg.WorkspacesRoot, logging.WithComponent("registry"))
			if err != nil {
				return err
			}

			reporter, err := compose.NewDockerStatus()
			if err != nil {
				return err
			}
			defer func() { _ = reporter.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// A dead engine is not fatal at boot: branches can still be
			// created (and inspected) without auto-start, and the
			// engine may come up later.
			if err := reporter.Ping(ctx); err != nil {
				log.Warn().Err(err).Msg("container engine unreachable at startup")
			}

			controller := compose.NewController(
				compose.ExecRunner{},
				reporter,
				compose.Timeouts{Build: cfg.BuildTimeout, Up: cfg.UpTimeout, Op: cfg.OpTimeout},
				logging.WithComponent("compose"),
			)

			eng := engine.New(
				cfg,
				reg,
				port.NewAllocator(cfg.BasePort, cfg.MaxPort),
				template.NewRenderer(logging.WithComponent("template")),
				gemini.NewValidator(cfg.GeminiBaseURL, logging.WithComponent("gemini")),
				vcs.NewGit(cfg.RepoPath, logging.WithComponent("vcs")),
				controller,
				terminal.NewManager(controller, cfg.AdvertiseHost, cfg.TTYDCommand, logging.WithComponent("terminal")),
				logging.WithComponent("engine"),
			)

			if err := eng.Recover(ctx); err != nil {
				return err
			}

			srv := server.New(cfg, eng, Version, logging.WithComponent("http"))
			return srv.Run(ctx)
		},
	}
}
