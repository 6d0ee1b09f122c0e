package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Artifact kinds.
const (
	KindLogistic = "logistic"
	KindLinear   = "linear"
)

// Artifact is the on-disk description of a trained linear classifier.
type Artifact struct {
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Features     []string  `json:"features,omitempty"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    *float64  `json:"threshold,omitempty"`
}

// Validate checks the artifact is usable.
func (a Artifact) Validate() error {
	if len(a.Coefficients) == 0 {
		return fmt.Errorf("artifact %q: no coefficients", a.Name)
	}
	if len(a.Features) > 0 && len(a.Features) != len(a.Coefficients) {
		return fmt.Errorf("artifact %q: %d features but %d coefficients", a.Name, len(a.Features), len(a.Coefficients))
	}
	switch a.Kind {
	case KindLogistic, KindLinear:
	default:
		return fmt.Errorf("artifact %q: unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

// ReadArtifact decodes and validates the artifact at path.
func ReadArtifact(path string) (Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

// FromArtifact builds a Model. Logistic artifacts support probabilities;
// linear ones only classify.
func FromArtifact(a Artifact) (*Model, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	lin := &linearClassifier{
		coefficients: append([]float64(nil), a.Coefficients...),
		intercept:    a.Intercept,
	}
	switch a.Kind {
	case KindLogistic:
		lin.threshold = 0.5
		if a.Threshold != nil {
			lin.threshold = *a.Threshold
		}
		return New(a.Name, len(a.Coefficients), &logisticClassifier{lin}), nil
	default:
		if a.Threshold != nil {
			lin.threshold = *a.Threshold
		}
		return New(a.Name, len(a.Coefficients), lin), nil
	}
}

type linearClassifier struct {
	coefficients []float64
	intercept    float64
	threshold    float64
}

func (c *linearClassifier) decision(row []float64) (float64, error) {
	if len(row) != len(c.coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrWidthMismatch, len(row), len(c.coefficients))
	}
	z := c.intercept
	for i, w := range c.coefficients {
		z += w * row[i]
	}
	return z, nil
}

func (c *linearClassifier) Predict(_ context.Context, rows [][]float64) ([]int, error) {
	out := make([]int, 0, len(rows))
	for _, row := range rows {
		z, err := c.decision(row)
		if err != nil {
			return nil, err
		}
		out = append(out, label(z >= c.threshold))
	}
	return out, nil
}

type logisticClassifier struct {
	*linearClassifier
}

func (c *logisticClassifier) Predict(ctx context.Context, rows [][]float64) ([]int, error) {
	probs, err := c.PredictProba(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(probs))
	for _, p := range probs {
		out = append(out, label(p[1] >= c.threshold))
	}
	return out, nil
}

func (c *logisticClassifier) PredictProba(_ context.Context, rows [][]float64) ([][]float64, error) {
	out := make([][]float64, 0, len(rows))
	for _, row := range rows {
		z, err := c.decision(row)
		if err != nil {
			return nil, err
		}
		p := sigmoid(z)
		out = append(out, []float64{1 - p, p})
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func label(positive bool) int {
	if positive {
		return 1
	}
	return 0
}
