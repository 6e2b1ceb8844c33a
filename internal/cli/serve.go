package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/bazaar/internal/feed"
	"github.com/mesh-intelligence/bazaar/internal/httpapi"
	"github.com/mesh-intelligence/bazaar/internal/logging"
	"github.com/mesh-intelligence/bazaar/internal/uploads"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the market HTTP API",
		Long:  "Attach the market store and serve the HTTP API, image uploads and live feed until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: port from config, BAZAAR_PORT or PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, flags *rootFlags, port int) error {
	backend, s, err := flags.attachMarket()
	if err != nil {
		return err
	}
	defer backend.Detach()

	if port != 0 {
		s.Port = port
		if err := s.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	if s.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := uploads.NewStore(s.UploadDir, s.MaxUploadBytes())
	if err != nil {
		return sysErr("prepare uploads: %w", err)
	}
	hub := feed.NewHub(logger, s.AllowedOrigins)
	server := httpapi.New(backend, httpapi.Options{
		Logger:         logger,
		Uploads:        store,
		Feed:           hub,
		AllowedOrigins: s.AllowedOrigins,
		WebDir:         s.WebDir,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bazaar", "version", cmd.Root().Version, "db", s.DBPath, "addr", s.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, s.Addr())
	})
	if err := g.Wait(); err != nil {
		return sysErr("serve: %w", err)
	}

	logger.Info("stopped")
	fmt.Fprintln(cmd.OutOrStdout(), "Bazaar stopped")
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
