package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/quote-revision/internal/config"
	"github.com/garyjia/quote-revision/internal/container"
	"github.com/garyjia/quote-revision/internal/infrastructure/external/lark"
	httpapi "github.com/garyjia/quote-revision/internal/interfaces/http"
	"github.com/garyjia/quote-revision/internal/interfaces/websocket"
	"github.com/garyjia/quote-revision/pkg/utils"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML config file")
	flag.Parse()

	// The default file is optional; an explicit path must exist
	path := *configPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "quote-revision",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting quote revision service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("quote_store", cfg.Store.Driver))

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	services := c.Services()

	if sdk := c.LarkClient(); sdk != nil {
		processor := lark.NewEventProcessor(services.Conversation, logger)
		creds := sdk.Credentials()
		adapter := websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
			AppID:     creds.AppID,
			AppSecret: creds.AppSecret,
			BaseURL:   creds.BaseURL,
		}, processor, logger)

		go func() {
			if err := adapter.Start(ctx); err != nil {
				logger.Error("Lark WebSocket adapter stopped", zap.Error(err))
			}
		}()
		defer adapter.Stop()
	}

	var opts []httpapi.ServerOption
	if m := c.Metrics(); m != nil {
		opts = append(opts, httpapi.WithMetrics(m.Handler(), m))
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, services.Quote, services.Review, utils.NewKVLogger(logger), opts...)

	// Blocks until a signal arrives, then drains in-flight requests
	return server.Start(ctx)
}
