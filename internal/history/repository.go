package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaxRecent caps the number of rows Recent returns.
const MaxRecent = 200

// Repository implements Recorder and Reader on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed prediction history.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts rec. Re-recording the same ID is a no-op.
func (r *Repository) Record(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO predictions (
			id, mode, source, model_name, fallback_reason,
			prediction, probability, risk_tier, result_text,
			bmi, glucose, age, pregnancies, blood_pressure,
			skin_thickness, insulin, dpf, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING
	`
	f := rec.Features
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Mode, rec.Source, rec.ModelName, rec.FallbackReason,
		rec.Prediction, rec.Probability, rec.RiskTier, rec.ResultText,
		f.BMI, f.Glucose, f.Age, f.Pregnancies, f.BloodPressure,
		f.SkinThickness, f.Insulin, f.DPF, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit predictions, newest first. limit is clamped to
// [1, MaxRecent].
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, mode, source, model_name, fallback_reason,
			prediction, probability, risk_tier, result_text,
			bmi, glucose, age, pregnancies, blood_pressure,
			skin_thickness, insulin, dpf, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to scan predictions: %w", err)
	}
	return records, nil
}

// Ping reports whether the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var rec Record
	f := &rec.Features
	err := row.Scan(
		&rec.ID, &rec.Mode, &rec.Source, &rec.ModelName, &rec.FallbackReason,
		&rec.Prediction, &rec.Probability, &rec.RiskTier, &rec.ResultText,
		&f.BMI, &f.Glucose, &f.Age, &f.Pregnancies, &f.BloodPressure,
		&f.SkinThickness, &f.Insulin, &f.DPF, &rec.CreatedAt,
	)
	return rec, err
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > MaxRecent:
		return MaxRecent
	default:
		return limit
	}
}
