// Package predict orchestrates the full bloom prediction flow: stage
// classification gates whether the regression ensemble runs at all, and
// when it cannot, the classifier's calendar window or a fixed fallback
// horizon answers instead. Batch requests fan out with bounded
// concurrency and per-item error isolation.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bloomwatch/internal/ensemble"
	"bloomwatch/internal/phenology"
	"bloomwatch/internal/types"
)

const (
	// MaxBatchSize bounds a single batch request.
	MaxBatchSize = 50

	// batchConcurrencyLimit bounds parallel per-item work in a batch.
	batchConcurrencyLimit = 8

	// Fallback horizon bounds, used when neither the ensemble nor the
	// calendar has anything to say. The answer is a placeholder and is
	// flagged as such via WindowConfidenceUnknown.
	fallbackHorizonLow  = 30
	fallbackHorizonMid  = 60
	fallbackHorizonHigh = 90
)

// Request is one prediction job: a crop, a location, and the already
// resolved observation history for that location.
type Request struct {
	// ID keys this item in batch results. Optional for single predictions.
	ID       string
	FarmName string
	Crop     types.CropType
	Location types.Location
	Series   types.ObservationSeries
}

// ErrorDetail describes a per-item failure inside a batch.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResult separates per-item successes from per-item failures.
type BatchResult struct {
	Predictions map[string]*types.BloomPrediction `json:"predictions"`
	Errors      map[string]ErrorDetail            `json:"errors"`
}

// ModelProvider supplies a loaded ensemble per crop.
type ModelProvider interface {
	Get(ctx context.Context, crop types.CropType) (*ensemble.Ensemble, error)
}

// Service is the business logic interface for bloom predictions.
type Service interface {
	Predict(ctx context.Context, req Request) (*types.BloomPrediction, error)
	PredictBatch(ctx context.Context, reqs []Request) (*BatchResult, error)
}

// predictionService is the concrete implementation of Service.
type predictionService struct {
	models ModelProvider
	logger *slog.Logger
	clock  types.Clock
}

// NewService creates a prediction service with the provided dependencies.
func NewService(models ModelProvider, logger *slog.Logger, clock types.Clock) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &predictionService{models: models, logger: logger, clock: clock}
}

// Predict classifies the series and answers through whichever path the
// stage allows. Classification is pure in the series; the wall clock
// enters only here, when day counts become calendar dates.
func (s *predictionService) Predict(ctx context.Context, req Request) (*types.BloomPrediction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	classifier, err := phenology.NewClassifier(req.Crop, req.Location.Latitude)
	if err != nil {
		return nil, err
	}
	cls, err := classifier.Classify(req.Series)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	prediction := &types.BloomPrediction{
		Crop:            req.Crop,
		Location:        req.Location,
		Stage:           cls.Stage,
		StageConfidence: cls.Confidence,
		Trend:           cls.Trend,
		CanPredict:      cls.CanPredict,
		Individual:      map[types.ModelName]float64{},
		GeneratedAt:     now,
	}

	switch {
	case cls.CanPredict:
		if err := s.fillFromEnsemble(ctx, req, classifier, prediction, now); err != nil {
			return nil, err
		}
	case cls.BloomWindow != nil:
		fillFromWindow(prediction, cls.BloomWindow, now)
	default:
		fillFallback(prediction, now)
	}

	s.logger.Info("bloom prediction served",
		"crop_type", req.Crop,
		"stage", cls.Stage,
		"source", prediction.Source,
		"days_until_bloom", prediction.DaysUntilBloom)
	return prediction, nil
}

// fillFromEnsemble runs the regression ensemble and converts its day
// counts into dates anchored at now.
func (s *predictionService) fillFromEnsemble(ctx context.Context, req Request, classifier *phenology.Classifier, p *types.BloomPrediction, now time.Time) error {
	ens, err := s.models.Get(ctx, req.Crop)
	if err != nil {
		return err
	}
	res, err := ens.Predict(req.Series, classifier.Config())
	if err != nil {
		return err
	}

	p.Source = types.SourceEnsemble
	p.PredictedBloomDate = now.AddDate(0, 0, res.PredictedDays)
	p.IntervalStart = now.AddDate(0, 0, res.IntervalLow)
	p.IntervalEnd = now.AddDate(0, 0, res.IntervalHigh)
	p.DaysUntilBloom = res.PredictedDays
	p.AgreementScore = res.AgreementScore
	p.Individual = res.Individual
	p.WindowConfidence = types.WindowConfidenceHigh
	return nil
}

// fillFromWindow serves the classifier's calendar window. A window whose
// end has already passed rolls forward a year; a window already underway
// counts as zero days out.
func fillFromWindow(p *types.BloomPrediction, w *types.BloomWindow, now time.Time) {
	window := *w
	if window.End.Before(now) {
		window.Start = window.Start.AddDate(1, 0, 0)
		window.End = window.End.AddDate(1, 0, 0)
	}

	days := int(window.Start.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}

	p.Source = types.SourcePhenology
	p.IntervalStart = window.Start
	p.IntervalEnd = window.End
	p.PredictedBloomDate = window.Start.Add(window.End.Sub(window.Start) / 2)
	p.DaysUntilBloom = days
	p.AgreementScore = 0
	p.WindowConfidence = window.Confidence
}

// fillFallback answers with a fixed placeholder horizon, flagged unknown.
func fillFallback(p *types.BloomPrediction, now time.Time) {
	p.Source = types.SourceFallback
	p.PredictedBloomDate = now.AddDate(0, 0, fallbackHorizonMid)
	p.IntervalStart = now.AddDate(0, 0, fallbackHorizonLow)
	p.IntervalEnd = now.AddDate(0, 0, fallbackHorizonHigh)
	p.DaysUntilBloom = fallbackHorizonMid
	p.AgreementScore = 0
	p.WindowConfidence = types.WindowConfidenceUnknown
}

// PredictBatch fans the items out with bounded concurrency. One item's
// failure never aborts the others; failures land in the Errors map keyed
// the same way as successes.
func (s *predictionService) PredictBatch(ctx context.Context, reqs []Request) (*BatchResult, error) {
	if len(reqs) == 0 {
		return &BatchResult{
			Predictions: map[string]*types.BloomPrediction{},
			Errors:      map[string]ErrorDetail{},
		}, nil
	}
	if len(reqs) > MaxBatchSize {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size %d exceeds limit %d", len(reqs), MaxBatchSize), nil,
			map[string]any{"size": len(reqs), "limit": MaxBatchSize})
	}

	var mu sync.Mutex
	predictions := make(map[string]*types.BloomPrediction, len(reqs))
	errorMap := make(map[string]ErrorDetail)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrencyLimit)

	for i, req := range reqs {
		key := req.ID
		if key == "" {
			key = fmt.Sprintf("item_%d", i)
		}
		req := req

		g.Go(func() error {
			p, err := s.Predict(gCtx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errorMap[key] = toErrorDetail(err)
				// Do not propagate; allow the other items to finish.
				return nil
			}
			predictions[key] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BatchResult{Predictions: predictions, Errors: errorMap}, nil
}

func toErrorDetail(err error) ErrorDetail {
	if appErr, ok := err.(*types.AppError); ok {
		return ErrorDetail{Code: string(appErr.Code), Message: appErr.Message}
	}
	return ErrorDetail{Code: string(types.ErrCodeInternalUnexpected), Message: err.Error()}
}

func validateRequest(req Request) error {
	if !req.Crop.Valid() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidCrop,
			fmt.Sprintf("unsupported crop type %q", req.Crop), nil,
			map[string]any{"supported": types.AllCropTypes})
	}
	if req.Location.Latitude < -90 || req.Location.Latitude > 90 {
		return types.NewAppError(types.ErrCodeValidationInvalidLat,
			"latitude must be between -90 and 90", nil)
	}
	if req.Location.Longitude < -180 || req.Location.Longitude > 180 {
		return types.NewAppError(types.ErrCodeValidationInvalidLon,
			"longitude must be between -180 and 180", nil)
	}
	return nil
}
