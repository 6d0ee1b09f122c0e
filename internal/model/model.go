// Package model wraps the trained diabetes classifiers used by the predictor.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Capability tells whether a model can report class probabilities. It is
// resolved once when the model is constructed.
type Capability int

const (
	ClassifierOnly Capability = iota
	ClassifierWithProbability
)

func (c Capability) String() string {
	if c == ClassifierWithProbability {
		return "classifier_with_probability"
	}
	return "classifier_only"
}

// Classifier returns a discrete label (0 or 1) per input row.
type Classifier interface {
	Predict(ctx context.Context, rows [][]float64) ([]int, error)
}

// ProbabilityEstimator returns per-row class probabilities, indexed by label.
type ProbabilityEstimator interface {
	PredictProba(ctx context.Context, rows [][]float64) ([][]float64, error)
}

// JointEstimator returns labels and probabilities from a single inference
// call. Evaluate prefers it over separate Predict and PredictProba calls.
type JointEstimator interface {
	PredictWithProba(ctx context.Context, rows [][]float64) ([]int, [][]float64, error)
}

var (
	ErrWidthMismatch = errors.New("feature vector width mismatch")
	ErrEmptyOutput   = errors.New("model returned no output")
)

// Model is a loaded classifier with its resolved capability. It is safe for
// concurrent use as long as the underlying classifier is.
type Model struct {
	name       string
	width      int
	capability Capability
	classifier Classifier
	estimator  ProbabilityEstimator
	joint      JointEstimator
}

// New wraps clf. A width of zero disables the input width check.
func New(name string, width int, clf Classifier) *Model {
	m := &Model{
		name:       name,
		width:      width,
		capability: ClassifierOnly,
		classifier: clf,
	}
	if est, ok := clf.(ProbabilityEstimator); ok {
		m.capability = ClassifierWithProbability
		m.estimator = est
		if j, ok := clf.(JointEstimator); ok {
			m.joint = j
		}
	}
	return m
}

func (m *Model) Name() string           { return m.name }
func (m *Model) Width() int             { return m.width }
func (m *Model) Capability() Capability { return m.capability }

// Output is a single-row inference result. Probability is a percentage of the
// positive class, not yet rounded.
type Output struct {
	Prediction  int
	Probability float64
}

// Evaluate runs the model on one feature vector. Without probability support
// the label itself scaled to 100 stands in for the probability.
func (m *Model) Evaluate(ctx context.Context, vector []float64) (Output, error) {
	if m.width > 0 && len(vector) != m.width {
		return Output{}, fmt.Errorf("%s: %w: got %d, want %d", m.name, ErrWidthMismatch, len(vector), m.width)
	}
	rows := [][]float64{vector}

	var (
		labels []int
		probs  [][]float64
		err    error
	)
	if m.joint != nil {
		labels, probs, err = m.joint.PredictWithProba(ctx, rows)
		if err != nil {
			return Output{}, fmt.Errorf("%s: predict: %w", m.name, err)
		}
	} else {
		labels, err = m.classifier.Predict(ctx, rows)
		if err != nil {
			return Output{}, fmt.Errorf("%s: predict: %w", m.name, err)
		}
	}
	if len(labels) == 0 {
		return Output{}, fmt.Errorf("%s: predict: %w", m.name, ErrEmptyOutput)
	}
	label := labels[0]
	if label != 0 && label != 1 {
		return Output{}, fmt.Errorf("%s: predict: unexpected label %d", m.name, label)
	}

	if m.capability == ClassifierOnly {
		return Output{Prediction: label, Probability: float64(label) * 100}, nil
	}

	if m.joint == nil {
		probs, err = m.estimator.PredictProba(ctx, rows)
		if err != nil {
			return Output{}, fmt.Errorf("%s: predict_proba: %w", m.name, err)
		}
	}
	if len(probs) == 0 || len(probs[0]) < 2 {
		return Output{}, fmt.Errorf("%s: predict_proba: %w", m.name, ErrEmptyOutput)
	}
	pct := probs[0][1] * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Output{}, fmt.Errorf("%s: predict_proba: invalid probability %v", m.name, probs[0][1])
	}
	return Output{Prediction: label, Probability: pct}, nil
}
