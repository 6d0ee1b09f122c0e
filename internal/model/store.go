package model

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skufu/GlucoRisk/internal/features"
)

// Store holds the models available to the predictor. A nil entry means the
// mode has no trained model and uses its heuristic.
type Store struct {
	Quick *Model
	Full  *Model
}

// Source locates a single model. URL takes precedence over Path.
type Source struct {
	Path string
	URL  string
}

// StoreConfig describes where to load each mode's model from.
type StoreConfig struct {
	Quick   Source
	Full    Source
	Timeout time.Duration
}

// LoadStore loads both models concurrently. It never fails: a missing or
// broken model is logged and left nil.
func LoadStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) Store {
	var store Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store.Quick = loadOne(gctx, features.ModeQuick, cfg.Quick, cfg.Timeout, logger)
		return nil
	})
	g.Go(func() error {
		store.Full = loadOne(gctx, features.ModeFull, cfg.Full, cfg.Timeout, logger)
		return nil
	})
	_ = g.Wait()
	return store
}

func loadOne(ctx context.Context, mode features.Mode, src Source, timeout time.Duration, logger *slog.Logger) *Model {
	log := logger.With(slog.String("mode", string(mode)))

	var (
		m   *Model
		err error
	)
	switch {
	case src.URL != "":
		log = log.With(slog.String("url", src.URL))
		m, err = NewRemote(ctx, src.URL, timeout)
	case src.Path != "":
		log = log.With(slog.String("path", src.Path))
		var a Artifact
		a, err = ReadArtifact(src.Path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("model not found, using heuristic")
			return nil
		}
		if err == nil {
			m, err = FromArtifact(a)
		}
	default:
		log.Info("no model configured, using heuristic")
		return nil
	}
	if err != nil {
		log.Error("failed to load model, using heuristic", slog.Any("error", err))
		return nil
	}
	if m.Width() != 0 && m.Width() != mode.Width() {
		log.Error("model has wrong input width, using heuristic",
			slog.Int("width", m.Width()), slog.Int("expected", mode.Width()))
		return nil
	}

	log.Info("model loaded",
		slog.String("name", m.Name()),
		slog.String("capability", m.Capability().String()),
	)
	return m
}

// EnsureDir creates the model directory if it is missing and reports whether
// it had to be created.
func EnsureDir(dir string) (bool, error) {
	if dir == "" {
		return false, nil
	}
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
		return false, err
	}
	return true, nil
}

// ModelInfo describes one mode's model for the models endpoint.
type ModelInfo struct {
	Mode       string `json:"mode"`
	Available  bool   `json:"available"`
	Name       string `json:"name,omitempty"`
	Capability string `json:"capability,omitempty"`
	Features   int    `json:"features"`
}

// Describe reports availability for both modes.
func (s Store) Describe() []ModelInfo {
	return []ModelInfo{describe(features.ModeQuick, s.Quick), describe(features.ModeFull, s.Full)}
}

// For returns the model serving mode, or nil.
func (s Store) For(mode features.Mode) *Model {
	if mode == features.ModeFull {
		return s.Full
	}
	return s.Quick
}

func describe(mode features.Mode, m *Model) ModelInfo {
	info := ModelInfo{Mode: string(mode), Features: mode.Width()}
	if m == nil {
		return info
	}
	info.Available = true
	info.Name = m.Name()
	info.Capability = m.Capability().String()
	return info
}
