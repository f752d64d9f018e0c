package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/blockbattle/tetris-server/internal/config"
	"github.com/blockbattle/tetris-server/internal/httpapi"
	"github.com/blockbattle/tetris-server/internal/hub"
	"github.com/blockbattle/tetris-server/internal/registry"
	"github.com/blockbattle/tetris-server/internal/store"
	"github.com/blockbattle/tetris-server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

var configPath = flag.String("config", "", "path to an optional configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, history.Close()) }()

	h := hub.New(cfg.SendBuffer, logger)
	reg := registry.New(ctx, registry.Options{
		DefaultMaxPlayers: cfg.DefaultMaxPlayers,
		MaxPlayersLimit:   cfg.MaxPlayersLimit,
		Rows:              cfg.BoardRows,
		Cols:              cfg.BoardCols,
		TickInterval:      cfg.TickInterval,
		Sender:            h,
		Recorder:          history,
		Logger:            logger,
	})
	defer reg.Close()

	dispatcher := ws.NewDispatcher(reg, h, logger)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Rooms:        reg,
			Matches:      history,
			WS:           ws.NewHandler(h, dispatcher, cfg.WriteTimeout, logger),
			HistoryLimit: cfg.HistoryLimit,
			Logger:       logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.Duration("tick_interval", cfg.TickInterval),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("match history kept in memory", zap.Int("limit", cfg.HistoryLimit))
		return store.NewMemoryStore(cfg.HistoryLimit), nil
	}
	octx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.OpenGorm(octx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open match history: %w", err)
	}
	return st, nil
}

// initLogger builds the process logger; json selects the production
// encoder, anything else a coloured console encoder.
func initLogger(levelName, format string) (*zap.Logger, error) {
	var level zapcore.Level
	switch levelName {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
