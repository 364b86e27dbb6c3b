package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/logger"
	"github.com/Virginia-Zhang/resume-match-pro-sub001/internal/server"
)

const defaultListenAddr = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the match API over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	coordinator, err := newCoordinator(ctx, config, logger)
	if err != nil {
		logger.Fatal("building batch coordinator", zap.Error(err))
	}

	addr := defaultListenAddr
	if config.Server != nil && config.Server.Listen != "" {
		addr = config.Server.Listen
	}

	logger.Info("starting "+app+" api", zap.String("version", version))

	if err := server.New(coordinator, addr, logger).Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("server stopped")
}
