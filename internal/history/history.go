// Package history stores served predictions in PostgreSQL.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skufu/GlucoRisk/internal/features"
	"github.com/Skufu/GlucoRisk/internal/predictor"
)

// Record is one stored prediction with the inputs that produced it.
type Record struct {
	ID             uuid.UUID                `json:"id"`
	Mode           string                   `json:"mode"`
	Source         string                   `json:"source"`
	ModelName      string                   `json:"model,omitempty"`
	FallbackReason string                   `json:"fallback_reason,omitempty"`
	Prediction     int                      `json:"prediction"`
	Probability    float64                  `json:"probability"`
	RiskTier       string                   `json:"risk"`
	ResultText     string                   `json:"result_text"`
	Features       features.PatientFeatures `json:"features"`
	CreatedAt      time.Time                `json:"created_at"`
}

// NewRecord pairs a result with its inputs.
func NewRecord(f features.PatientFeatures, r predictor.Result) Record {
	return Record{
		ID:             r.ID,
		Mode:           string(r.Mode),
		Source:         string(r.Source),
		ModelName:      r.ModelName,
		FallbackReason: r.FallbackReason,
		Prediction:     r.Prediction,
		Probability:    r.Probability,
		RiskTier:       r.Tier.String(),
		ResultText:     r.ResultText,
		Features:       f,
		CreatedAt:      r.CreatedAt,
	}
}

// Recorder persists predictions.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Reader lists recent predictions, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Noop discards records. It is used when the database is disabled.
type Noop struct{}

func (Noop) Record(context.Context, Record) error { return nil }
