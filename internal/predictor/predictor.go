// Package predictor turns patient features into a diabetes risk result.
package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Skufu/GlucoRisk/internal/features"
	"github.com/Skufu/GlucoRisk/internal/model"
	"github.com/Skufu/GlucoRisk/internal/risk"
)

// Source records how a result was produced.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
	SourceFallback  Source = "fallback"
)

// Fixed result used when a loaded model fails at inference time.
const (
	FallbackPrediction  = 1
	FallbackProbability = 65.5
)

// Result is the outcome of one prediction. Tier and ResultText always follow
// from Probability.
type Result struct {
	ID             uuid.UUID     `json:"id"`
	Mode           features.Mode `json:"mode"`
	Prediction     int           `json:"prediction"`
	Probability    float64       `json:"probability"`
	Tier           risk.Tier     `json:"risk"`
	ResultText     string        `json:"result_text"`
	Source         Source        `json:"source"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	ModelName      string        `json:"model,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Computed reports whether the result came from a model or heuristic rather
// than the failure fallback.
func (r Result) Computed() bool {
	return r.Source != SourceFallback
}

// Observer is notified of every result.
type Observer interface {
	Observe(Result)
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Predictor) {
		p.observers = append(p.observers, o)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) {
		p.now = now
	}
}

// Predictor is read-only after construction and safe for concurrent use.
type Predictor struct {
	models    model.Store
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time
}

// New creates a Predictor over the loaded models.
func New(models model.Store, logger *slog.Logger, opts ...Option) *Predictor {
	p := &Predictor{
		models: models,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Predict never fails. Missing models fall back to the mode's heuristic and
// model failures to the fixed FallbackPrediction/FallbackProbability pair.
func (p *Predictor) Predict(ctx context.Context, f features.PatientFeatures) Result {
	mode := f.Mode()
	res := Result{
		ID:        uuid.New(),
		Mode:      mode,
		CreatedAt: p.now().UTC(),
	}

	if m := p.models.For(mode); m != nil {
		res.ModelName = m.Name()
		out, err := evaluate(ctx, m, f.Vector(mode))
		if err != nil {
			p.logger.Warn("model prediction failed, using fallback result",
				slog.String("mode", string(mode)),
				slog.String("model", m.Name()),
				slog.Any("error", err),
			)
			res.Source = SourceFallback
			res.FallbackReason = err.Error()
			res.Prediction = FallbackPrediction
			res.Probability = FallbackProbability
		} else {
			res.Source = SourceModel
			res.Prediction = out.Prediction
			res.Probability = risk.Normalize(out.Probability)
		}
	} else {
		res.Source = SourceHeuristic
		res.Probability = Heuristic(mode, f)
		res.Prediction = heuristicLabel(res.Probability)
	}

	res.Tier = risk.Classify(res.Probability)
	res.ResultText = res.Tier.ResultText()

	p.logger.Debug("prediction computed",
		slog.String("id", res.ID.String()),
		slog.String("mode", string(mode)),
		slog.String("source", string(res.Source)),
		slog.Float64("probability", res.Probability),
		slog.String("risk", res.Tier.String()),
	)
	for _, o := range p.observers {
		o.Observe(res)
	}
	return res
}

// evaluate converts a panicking model into an error.
func evaluate(ctx context.Context, m *model.Model, vector []float64) (out model.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Evaluate(ctx, vector)
}

// Heuristic is the linear score used when the mode has no trained model,
// rounded to two decimals and capped at 100.
func Heuristic(mode features.Mode, f features.PatientFeatures) float64 {
	var raw float64
	if mode == features.ModeFull {
		raw = (f.Pregnancies*5 + f.Glucose*0.3 + f.BMI*0.8 + f.Age*0.5 + f.Insulin*0.1) / 2
	} else {
		raw = f.BMI*0.8 + f.Glucose*0.4 + f.Age*0.2
	}
	return risk.Normalize(raw)
}

func heuristicLabel(probability float64) int {
	if probability > 50 {
		return 1
	}
	return 0
}
