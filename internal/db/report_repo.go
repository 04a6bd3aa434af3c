package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bloomwatch/internal/types"
)

// PredictionReportRepo provides data access for the prediction_reports table.
// Every served prediction is recorded there so growers can review past
// forecasts and the accuracy of the models can be audited against observed
// bloom dates after the season.
type PredictionReportRepo struct {
	db DBTX
}

// NewPredictionReportRepo creates a new PredictionReportRepo backed by the
// given database connection (pool or transaction).
func NewPredictionReportRepo(db DBTX) *PredictionReportRepo {
	return &PredictionReportRepo{db: db}
}

// Record inserts a prediction report. The caller assigns the ID and
// CreatedAt; the repository never mutates the report.
func (r *PredictionReportRepo) Record(ctx context.Context, report *types.PredictionReport) error {
	query := `
		INSERT INTO prediction_reports (
			id, farm_name, crop, latitude, longitude,
			stage, can_predict, predicted_bloom_date,
			interval_start, interval_end, days_until_bloom,
			agreement_score, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		report.ID,
		report.FarmName,
		report.Crop,
		report.Latitude,
		report.Longitude,
		report.Stage,
		report.CanPredict,
		report.PredictedBloomDate,
		report.IntervalStart,
		report.IntervalEnd,
		report.DaysUntilBloom,
		report.AgreementScore,
		report.Source,
		report.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert prediction report", err)
	}
	return nil
}

// GetByID retrieves a single prediction report.
func (r *PredictionReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.PredictionReport, error) {
	query := `
		SELECT id, farm_name, crop, latitude, longitude,
		       stage, can_predict, predicted_bloom_date,
		       interval_start, interval_end, days_until_bloom,
		       agreement_score, source, created_at
		FROM prediction_reports
		WHERE id = $1`

	var report types.PredictionReport
	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.FarmName,
		&report.Crop,
		&report.Latitude,
		&report.Longitude,
		&report.Stage,
		&report.CanPredict,
		&report.PredictedBloomDate,
		&report.IntervalStart,
		&report.IntervalEnd,
		&report.DaysUntilBloom,
		&report.AgreementScore,
		&report.Source,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundReport, "prediction report not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query prediction report", err)
	}
	return &report, nil
}

// ListRecent returns the most recent prediction reports, newest first,
// optionally filtered by crop. A zero or negative limit defaults to 50.
func (r *PredictionReportRepo) ListRecent(ctx context.Context, crop types.CropType, limit int) ([]types.PredictionReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, farm_name, crop, latitude, longitude,
		       stage, can_predict, predicted_bloom_date,
		       interval_start, interval_end, days_until_bloom,
		       agreement_score, source, created_at
		FROM prediction_reports
		WHERE ($1 = '' OR crop = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, string(crop), limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query prediction reports", err)
	}
	defer rows.Close()

	var results []types.PredictionReport
	for rows.Next() {
		var report types.PredictionReport
		if err := rows.Scan(
			&report.ID,
			&report.FarmName,
			&report.Crop,
			&report.Latitude,
			&report.Longitude,
			&report.Stage,
			&report.CanPredict,
			&report.PredictedBloomDate,
			&report.IntervalStart,
			&report.IntervalEnd,
			&report.DaysUntilBloom,
			&report.AgreementScore,
			&report.Source,
			&report.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan prediction report row", err)
		}
		results = append(results, report)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating prediction report rows", err)
	}

	return results, nil
}

// Compile-time interface compliance check.
var _ types.ReportRecorder = (*PredictionReportRepo)(nil)
