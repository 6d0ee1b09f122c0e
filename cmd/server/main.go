package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/GlucoRisk/internal/api"
	"github.com/Skufu/GlucoRisk/internal/config"
	"github.com/Skufu/GlucoRisk/internal/history"
	"github.com/Skufu/GlucoRisk/internal/logging"
	"github.com/Skufu/GlucoRisk/internal/metrics"
	"github.com/Skufu/GlucoRisk/internal/model"
	"github.com/Skufu/GlucoRisk/internal/predictor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.Any("error", err))
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	logger.Info("server listening", slog.String("addr", cfg.Addr()))
	waitForShutdown(server, logger)
}

type app struct {
	router *gin.Engine
	close  []func()
}

func (a *app) Close() {
	for _, fn := range a.close {
		fn()
	}
}

// newApp loads the models, connects the optional history database and builds
// the router.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	created, err := model.EnsureDir(cfg.ModelDir)
	if err != nil {
		logger.Warn("could not create model directory", slog.String("dir", cfg.ModelDir), slog.Any("error", err))
	} else if created {
		logger.Info("created model directory, add trained model artifacts here", slog.String("dir", cfg.ModelDir))
	}

	store := model.LoadStore(ctx, cfg.ModelStore(), logger)
	m := metrics.New()
	pred := predictor.New(store, logger, predictor.WithObserver(m))

	deps := api.Deps{
		Predictor:  pred,
		Models:     store,
		Metrics:    m.Handler(),
		StaticRoot: cfg.StaticDir,
		Logger:     logger,
	}
	if deps.StaticRoot == "" {
		deps.StaticRoot = api.DetectStaticRoot()
	}

	if cfg.EnableDB {
		if cfg.RunMigrations {
			if err := history.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := history.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.close = append(a.close, pool.Close)

		repo := history.NewRepository(pool)
		deps.DB = repo
		deps.Recorder = repo
		deps.History = repo
	}

	a.router = api.NewRouter(deps)
	return a, nil
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
