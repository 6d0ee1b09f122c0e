package predictor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GlucoRisk/internal/features"
	"github.com/Skufu/GlucoRisk/internal/model"
	"github.com/Skufu/GlucoRisk/internal/risk"
)

type stubClassifier struct {
	label int
	proba float64
	err   error
	panic bool
	seen  *[][]float64
}

func (s stubClassifier) Predict(_ context.Context, rows [][]float64) ([]int, error) {
	if s.panic {
		panic("index out of range")
	}
	if s.seen != nil {
		*s.seen = append(*s.seen, rows...)
	}
	if s.err != nil {
		return nil, s.err
	}
	return []int{s.label}, nil
}

type stubProbClassifier struct {
	stubClassifier
}

func (s stubProbClassifier) PredictProba(context.Context, [][]float64) ([][]float64, error) {
	return [][]float64{{1 - s.proba, s.proba}}, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []Result
}

func (o *recordingObserver) Observe(r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func newPredictor(store model.Store, opts ...Option) *Predictor {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestQuickHeuristic(t *testing.T) {
	res := newPredictor(model.Store{}).Predict(context.Background(),
		features.PatientFeatures{BMI: 30, Glucose: 100, Age: 40})

	assert.Equal(t, features.ModeQuick, res.Mode)
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, 72.0, res.Probability)
	assert.Equal(t, 1, res.Prediction)
	assert.True(t, risk.TierHigh.Equal(res.Tier))
	assert.Equal(t, "Diabetic", res.ResultText)
	assert.True(t, res.Computed())
}

func TestFullHeuristic(t *testing.T) {
	res := newPredictor(model.Store{}).Predict(context.Background(), features.PatientFeatures{
		Pregnancies: 2, Glucose: 120, BMI: 28, Age: 35, Insulin: 80,
	})

	assert.Equal(t, features.ModeFull, res.Mode)
	assert.Equal(t, 46.95, res.Probability)
	assert.Equal(t, 0, res.Prediction)
	assert.True(t, risk.TierMedium.Equal(res.Tier))
	assert.Equal(t, "Pre-Diabetic", res.ResultText)
}

func TestHeuristicClampedTo100(t *testing.T) {
	p := newPredictor(model.Store{})

	quick := p.Predict(context.Background(), features.PatientFeatures{BMI: 90, Glucose: 400, Age: 90})
	assert.Equal(t, 100.0, quick.Probability)

	full := p.Predict(context.Background(), features.PatientFeatures{Pregnancies: 17, Glucose: 400, BMI: 90, Age: 90, Insulin: 800})
	assert.Equal(t, 100.0, full.Probability)
	assert.Equal(t, 1, full.Prediction)
}

func TestHeuristicNeverNegative(t *testing.T) {
	res := newPredictor(model.Store{}).Predict(context.Background(),
		features.PatientFeatures{BMI: -30, Glucose: -100, Age: -40})
	assert.Equal(t, 0.0, res.Probability)
	assert.True(t, risk.TierLow.Equal(res.Tier))
}

func TestHeuristicBoundaryLabel(t *testing.T) {
	// 50 exactly is not positive.
	res := newPredictor(model.Store{}).Predict(context.Background(),
		features.PatientFeatures{BMI: 0, Glucose: 125, Age: 0})
	assert.Equal(t, 50.0, res.Probability)
	assert.Equal(t, 0, res.Prediction)
}

func TestHeuristicExtremeInputs(t *testing.T) {
	tests := []struct {
		name   string
		in     features.PatientFeatures
		mode   features.Mode
		want   float64
		label  int
		tier   risk.Tier
		result string
	}{
		{
			name: "quick huge", in: features.PatientFeatures{BMI: 1.7e308, Glucose: 1.7e308, Age: 1.7e308},
			mode: features.ModeQuick, want: 100, label: 1, tier: risk.TierHigh, result: "Diabetic",
		},
		{
			name: "quick negative huge", in: features.PatientFeatures{BMI: -1.7e308, Glucose: -1.7e308, Age: -1.7e308},
			mode: features.ModeQuick, want: 0, label: 0, tier: risk.TierLow, result: "Non-Diabetic",
		},
		{
			name: "full huge pregnancies", in: features.PatientFeatures{Pregnancies: 1e308, Glucose: 120, BMI: 28, Age: 35},
			mode: features.ModeFull, want: 100, label: 1, tier: risk.TierHigh, result: "Diabetic",
		},
		{
			name: "full negative huge pregnancies", in: features.PatientFeatures{Pregnancies: -1e308, BloodPressure: 70, Glucose: 120},
			mode: features.ModeFull, want: 0, label: 0, tier: risk.TierLow, result: "Non-Diabetic",
		},
		{
			name: "full max float", in: features.PatientFeatures{Insulin: math.MaxFloat64, BMI: math.MaxFloat64},
			mode: features.ModeFull, want: 100, label: 1, tier: risk.TierHigh, result: "Diabetic",
		},
	}
	p := newPredictor(model.Store{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() { res = p.Predict(context.Background(), tt.in) })

			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, SourceHeuristic, res.Source)
			assert.Equal(t, tt.want, res.Probability)
			assert.Equal(t, tt.label, res.Prediction)
			assert.True(t, tt.tier.Equal(res.Tier))
			assert.Equal(t, tt.result, res.ResultText)
		})
	}
}

func TestAllZeroInputs(t *testing.T) {
	res := newPredictor(model.Store{}).Predict(context.Background(), features.PatientFeatures{})
	assert.Equal(t, features.ModeQuick, res.Mode)
	assert.Equal(t, 0.0, res.Probability)
	assert.Equal(t, "Non-Diabetic", res.ResultText)
}

func TestQuickModelWithProbability(t *testing.T) {
	var seen [][]float64
	store := model.Store{
		Quick: model.New("quick", 3, stubProbClassifier{stubClassifier{label: 1, proba: 0.87654, seen: &seen}}),
	}
	res := newPredictor(store).Predict(context.Background(),
		features.PatientFeatures{BMI: 33.6, Glucose: 148, Age: 50})

	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, "quick", res.ModelName)
	assert.Equal(t, 87.65, res.Probability)
	assert.Equal(t, 1, res.Prediction)
	assert.Equal(t, "Diabetic", res.ResultText)
	assert.Equal(t, [][]float64{{33.6, 148, 50}}, seen)
}

func TestFullModelReceivesTrainingOrder(t *testing.T) {
	var seen [][]float64
	store := model.Store{
		Full: model.New("full", 8, stubClassifier{label: 0, seen: &seen}),
	}
	f := features.PatientFeatures{
		Pregnancies: 6, Glucose: 148, BloodPressure: 72, SkinThickness: 35,
		Insulin: 0, BMI: 33.6, DPF: 0.627, Age: 50,
	}
	res := newPredictor(store).Predict(context.Background(), f)

	require.Len(t, seen, 1)
	assert.Equal(t, []float64{6, 148, 72, 35, 0, 33.6, 0.627, 50}, seen[0])
	assert.Equal(t, features.ModeFull, res.Mode)
	assert.Equal(t, 0.0, res.Probability)
	assert.Equal(t, 0, res.Prediction)
	assert.True(t, risk.TierLow.Equal(res.Tier))
}

func TestClassifierOnlyModelScalesLabel(t *testing.T) {
	store := model.Store{Quick: model.New("quick", 3, stubClassifier{label: 1})}
	res := newPredictor(store).Predict(context.Background(), features.PatientFeatures{BMI: 20})
	assert.Equal(t, 100.0, res.Probability)
	assert.Equal(t, "Diabetic", res.ResultText)
}

func TestOtherModeUsesHeuristic(t *testing.T) {
	store := model.Store{Full: model.New("full", 8, stubClassifier{err: errors.New("unused")})}
	res := newPredictor(store).Predict(context.Background(), features.PatientFeatures{BMI: 30, Glucose: 100, Age: 40})
	assert.Equal(t, SourceHeuristic, res.Source)
	assert.Equal(t, 72.0, res.Probability)
}

func TestModelFailureFallback(t *testing.T) {
	tests := map[string]*model.Model{
		"predict error": model.New("quick", 3, stubClassifier{err: errors.New("shape mismatch")}),
		"panic":         model.New("quick", 3, stubClassifier{panic: true}),
		"wrong width":   model.New("quick", 5, stubClassifier{label: 0}),
		"nan proba":     model.New("quick", 3, stubProbClassifier{stubClassifier{label: 0, proba: math.NaN()}}),
		"huge proba":    model.New("quick", 3, stubProbClassifier{stubClassifier{label: 1, proba: 1e307}}),
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			res := newPredictor(model.Store{Quick: m}).Predict(context.Background(),
				features.PatientFeatures{BMI: 22, Glucose: 90, Age: 30})

			assert.Equal(t, SourceFallback, res.Source)
			assert.False(t, res.Computed())
			assert.NotEmpty(t, res.FallbackReason)
			assert.Equal(t, 1, res.Prediction)
			assert.Equal(t, 65.5, res.Probability)
			assert.True(t, risk.TierMedium.Equal(res.Tier))
			assert.Equal(t, "Pre-Diabetic", res.ResultText)
		})
	}
}

func TestObserverAndClock(t *testing.T) {
	obs := &recordingObserver{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := newPredictor(model.Store{}, WithObserver(obs), WithClock(func() time.Time { return fixed }))

	res := p.Predict(context.Background(), features.PatientFeatures{BMI: 30, Glucose: 100, Age: 40})
	require.Len(t, obs.results, 1)
	assert.Equal(t, res.ID, obs.results[0].ID)
	assert.Equal(t, fixed, res.CreatedAt)
}

func TestConcurrentPredict(t *testing.T) {
	store := model.Store{Quick: model.New("quick", 3, stubProbClassifier{stubClassifier{label: 0, proba: 0.25}})}
	p := newPredictor(store)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := p.Predict(context.Background(), features.PatientFeatures{BMI: 25, Glucose: 95, Age: 31})
			assert.Equal(t, 25.0, res.Probability)
		}()
	}
	wg.Wait()
}

func TestHeuristic(t *testing.T) {
	assert.Equal(t, 72.0, Heuristic(features.ModeQuick, features.PatientFeatures{BMI: 30, Glucose: 100, Age: 40}))
	assert.Equal(t, 46.95, Heuristic(features.ModeFull, features.PatientFeatures{Pregnancies: 2, Glucose: 120, BMI: 28, Age: 35, Insulin: 80}))
}
