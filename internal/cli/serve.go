package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-clipscribe/internal/api"
	"github.com/alnah/go-clipscribe/internal/config"
	"github.com/alnah/go-clipscribe/internal/storage"
)

// ServeCmd creates the serve command.
func ServeCmd(env *Env, g *globals) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

A background sweeper removes managed files older than storage.sweep_max_age.
On SIGINT or SIGTERM the server drains in-flight requests and pending deferred
deletions are cancelled.`,
		Example: `  clipscribe serve
  clipscribe serve --host 127.0.0.1 --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(env)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), env, g, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config)")

	return cmd
}

func runServe(ctx context.Context, env *Env, g *globals, cfg config.Config) error {
	logger := serverLogger(env, g, cfg)

	app, err := env.AppFactory.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	sweeper := storage.NewSweeper(app.Store,
		storage.WithInterval(cfg.Storage.SweepInterval.Std()),
		storage.WithMaxAge(cfg.Storage.SweepMaxAge.Std()),
		storage.WithSweeperLogger(logger),
	)
	srv := api.New(app.Service,
		api.WithDebug(cfg.Server.Debug),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRateLimit(cfg.Server.RateLimit),
		api.WithBodyLimitMB(cfg.Storage.MaxFileSizeMB),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout.Std()),
		api.WithLogger(logger),
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		sweeper.Run(egCtx)
		return nil
	})
	eg.Go(func() error {
		return srv.Run(egCtx, cfg.Addr())
	})
	err = eg.Wait()

	logger.Info("server stopped", "pending_deletions_cancelled", app.Store.Pending())
	return err
}

// serverLogger honours server.log_format; --verbose or server.debug lower the level.
func serverLogger(env *Env, g *globals, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if g.verbose || cfg.Server.Debug {
		opts.Level = slog.LevelDebug
	}
	if cfg.Server.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(env.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(env.Stderr, opts))
}
