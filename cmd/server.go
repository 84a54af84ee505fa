package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/auto-reply/internal/db"
	"github.com/ziadkadry99/auto-reply/internal/logging"
	"github.com/ziadkadry99/auto-reply/internal/metrics"
	"github.com/ziadkadry99/auto-reply/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the reply server",
	Long:  `Starts the HTTP server with the channel webhooks, the web chat socket, the management API and the reply workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serverPort > 0 {
			cfg.Server.Port = serverPort
		}
		log := logging.WithComponent("server")

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err := openIndex(cmd.Context(), cfg, embedder)
		if err != nil {
			return err
		}
		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		sessions, closeSessions, err := createSessionStore(cfg)
		if err != nil {
			return fmt.Errorf("creating session store: %w", err)
		}
		defer closeSessions()

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		database, err := db.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		app, err := server.NewApp(server.Stack{
			Config:   cfg,
			DB:       database,
			Provider: provider,
			Embedder: embedder,
			Index:    index,
			Images:   createImageEmbedder(cfg),
			Sessions: sessions,
			Mailer:   createMailer(cfg),
			Metrics:  metrics.NewProm("autoreply"),
			Energy:   createEnergyTracker(cfg),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout()+5*time.Second)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("shutdown incomplete")
			}
		}()

		log.WithField("database", cfg.DBPath()).
			WithField("index", cfg.IndexDir()).
			WithField("version", Version).
			Info("autoreply server starting")

		if err := app.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
