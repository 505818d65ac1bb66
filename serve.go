package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"aumchat/internal/api"
	"aumchat/internal/service/assistant"
	"aumchat/internal/session"
	"aumchat/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat API",
	Long: `Run the HTTP chat API. Replies are streamed to clients as
server-sent events (ack, warning, done, error).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log, false)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := session.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer store.Close()
		logger.Info().Str("driver", cfg.Session.Driver).Msg("session store ready")

		responder, cleanup, err := newResponder(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		dispatcher := worker.NewDispatcher(worker.Config{
			MinWorkers:  cfg.Workers.MinWorkers,
			MaxWorkers:  cfg.Workers.MaxWorkers,
			QueueSize:   cfg.Workers.QueueSize,
			IdleTimeout: cfg.Workers.IdleTimeout,
		}, logger)
		defer dispatcher.Close()

		assistantService := assistant.NewService(store, worker.NewResponder(dispatcher, responder), logger)
		handlers := api.NewHandler(assistantService, cfg.Server.AccessToken, logger)

		if logger.GetLevel() > zerolog.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.New()
		router.Use(gin.Recovery(), api.RequestLogger(logger))
		handlers.RegisterRoutes(router)

		srv := &http.Server{Addr: cfg.Server.Address, Handler: router}
		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.Server.Address).Msg("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
