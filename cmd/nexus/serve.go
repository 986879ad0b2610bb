package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexus/config"
	"nexus/game"
	"nexus/hub"
	"nexus/network"
	"nexus/presence"
	"nexus/room"
)

type serveOptions struct {
	envFile  string
	addr     string
	logLevel string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitConfig(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Addr = opts.addr
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides NEXUS_ADDR)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides NEXUS_LOG_LEVEL)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	h := hub.New(
		presence.NewRegistry(),
		room.NewManager(room.WithDefaultMaxPlayers(cfg.Sessions.DefaultMaxPlayers)),
		game.NewStore(),
		hub.WithLogger(log),
	)
	go h.RunReaper(ctx, cfg.Sessions.ReapInterval, cfg.Sessions.IdleTTL)

	gin.SetMode(gin.ReleaseMode)
	srv := network.NewServer(cfg.Addr, network.NewRouter(h, cfg.Network, log), cfg.ShutdownTimeout, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
