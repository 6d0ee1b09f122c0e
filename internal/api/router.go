// Package api is the HTTP shell around the risk predictor.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Skufu/GlucoRisk/internal/features"
	"github.com/Skufu/GlucoRisk/internal/history"
	"github.com/Skufu/GlucoRisk/internal/model"
	"github.com/Skufu/GlucoRisk/internal/predictor"
)

// HealthChecker is satisfied by the database pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Predictor is the prediction procedure the shell calls.
type Predictor interface {
	Predict(ctx context.Context, f features.PatientFeatures) predictor.Result
}

// Deps are the collaborators the router wires together. Only Predictor and
// Logger are required.
type Deps struct {
	Predictor  Predictor
	Models     model.Store
	DB         HealthChecker
	Recorder   history.Recorder
	History    history.Reader
	Metrics    http.Handler
	StaticRoot string
	Logger     *slog.Logger
}

type server struct {
	Deps
}

// NewRouter builds the gin engine.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Recorder == nil {
		deps.Recorder = history.Noop{}
	}
	s := &server{Deps: deps}

	router := gin.New()
	router.Use(
		requestLogger(deps.Logger),
		gin.CustomRecovery(s.recover),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	if deps.StaticRoot != "" && fileExists(filepath.Join(deps.StaticRoot, "index.html")) {
		router.Static("/static", deps.StaticRoot)
		router.StaticFile("/", filepath.Join(deps.StaticRoot, "index.html"))
	} else {
		router.GET("/", s.index)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)

	router.GET("/choice", s.choice)
	router.GET("/quick", s.form(features.ModeQuick))
	router.GET("/full", s.form(features.ModeFull))
	router.GET("/predict", s.predictQuery)
	router.GET("/analysis", s.analysis)
	router.GET("/result", s.result)

	api := router.Group("/api")
	{
		api.POST("/predict", s.predictJSON)
		api.GET("/models", s.models)
		api.GET("/history", s.history)
	}

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

func (s *server) recover(c *gin.Context, rec any) {
	s.Logger.Error("panic while serving request",
		slog.String("path", c.Request.URL.Path),
		slog.Any("panic", rec),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func (s *server) readyz(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.DB.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unhealthy: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// DetectStaticRoot looks for an index.html in the working directory and its
// two parents.
func DetectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "."
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return startDir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
