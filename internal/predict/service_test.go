package predict

import (
	"context"
	"strings"
	"testing"
	"time"

	"bloomwatch/internal/ensemble"
	"bloomwatch/internal/features"
	"bloomwatch/internal/types"
)

type mockClock struct {
	now time.Time
}

func (c mockClock) Now() time.Time { return c.now }

type stubFeatureModel struct{ value float64 }

func (s stubFeatureModel) Predict(features.Vector) (float64, error) { return s.value, nil }

type stubSequenceModel struct {
	value  float64
	window int
}

func (s stubSequenceModel) PredictSequence([]float64) (float64, error) { return s.value, nil }
func (s stubSequenceModel) Window() int                                { return s.window }

type stubProvider struct {
	ens *ensemble.Ensemble
	err error
}

func (p stubProvider) Get(context.Context, types.CropType) (*ensemble.Ensemble, error) {
	return p.ens, p.err
}

func testEnsemble(t *testing.T, seq, tree, ffn float64) *ensemble.Ensemble {
	t.Helper()
	e, err := ensemble.New(types.CropAlmond, ensemble.DefaultWeights(),
		stubSequenceModel{value: seq, window: 3},
		stubFeatureModel{value: tree},
		stubFeatureModel{value: ffn})
	if err != nil {
		t.Fatalf("ensemble.New: %v", err)
	}
	return e
}

func flatSeries(start time.Time, days int, ndvi float64) types.ObservationSeries {
	s := make(types.ObservationSeries, days)
	for i := range s {
		s[i] = types.Observation{Date: start.AddDate(0, 0, i), NDVI: ndvi, TemperatureC: 12}
	}
	return s
}

func almondRequest(series types.ObservationSeries) Request {
	return Request{
		FarmName: "Orchard One",
		Crop:     types.CropAlmond,
		Location: types.Location{Latitude: 36.7468, Longitude: -119.7726},
		Series:   series,
	}
}

// TestPredictEnsemblePath covers the predictable branch: a pre-bloom
// plateau routes through the ensemble and day counts become dates
// anchored at the injected clock.
func TestPredictEnsemblePath(t *testing.T) {
	now := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{ens: testEnsemble(t, 10, 12, 11)}, nil, mockClock{now})

	// Plateau at 0.70 ending Mar 15: pre-bloom, in season.
	series := flatSeries(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 30, 0.70)
	got, err := svc.Predict(context.Background(), almondRequest(series))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if got.Stage != types.StagePreBloom || !got.CanPredict {
		t.Fatalf("stage = %v, can_predict = %v; want pre_bloom/true", got.Stage, got.CanPredict)
	}
	if got.Source != types.SourceEnsemble {
		t.Errorf("Source = %v, want ensemble", got.Source)
	}
	// Blend of {10, 12, 11} with default weights is 11.4, rounded 11.
	if got.DaysUntilBloom != 11 {
		t.Errorf("DaysUntilBloom = %d, want 11", got.DaysUntilBloom)
	}
	if !got.PredictedBloomDate.Equal(now.AddDate(0, 0, 11)) {
		t.Errorf("PredictedBloomDate = %v, want %v", got.PredictedBloomDate, now.AddDate(0, 0, 11))
	}
	if !got.IntervalStart.Equal(now.AddDate(0, 0, 10)) || !got.IntervalEnd.Equal(now.AddDate(0, 0, 13)) {
		t.Errorf("interval = %v..%v, want now+10..now+13", got.IntervalStart, got.IntervalEnd)
	}
	if len(got.Individual) != 3 {
		t.Errorf("Individual has %d entries, want 3", len(got.Individual))
	}
	if got.WindowConfidence != types.WindowConfidenceHigh {
		t.Errorf("WindowConfidence = %v, want high", got.WindowConfidence)
	}
	if got.AgreementScore <= 0.9 {
		t.Errorf("AgreementScore = %v, want > 0.9 for tight members", got.AgreementScore)
	}
}

// TestPredictDormancyServesCalendarWindow covers the non-predictable
// branch: December dormancy answers with next spring's calendar window
// and zero agreement.
func TestPredictDormancyServesCalendarWindow(t *testing.T) {
	now := time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{}, nil, mockClock{now})

	series := flatSeries(time.Date(2025, 11, 16, 0, 0, 0, 0, time.UTC), 30, 0.20)
	got, err := svc.Predict(context.Background(), almondRequest(series))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if got.Stage != types.StageDormancy || got.CanPredict {
		t.Fatalf("stage = %v, can_predict = %v; want dormancy/false", got.Stage, got.CanPredict)
	}
	if got.Source != types.SourcePhenology {
		t.Errorf("Source = %v, want phenology", got.Source)
	}
	wantStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 4, 28, 0, 0, 0, 0, time.UTC)
	if !got.IntervalStart.Equal(wantStart) || !got.IntervalEnd.Equal(wantEnd) {
		t.Errorf("interval = %v..%v, want %v..%v", got.IntervalStart, got.IntervalEnd, wantStart, wantEnd)
	}
	if got.DaysUntilBloom != 47 {
		t.Errorf("DaysUntilBloom = %d, want 47", got.DaysUntilBloom)
	}
	if got.AgreementScore != 0 {
		t.Errorf("AgreementScore = %v, want 0 on the calendar path", got.AgreementScore)
	}
	if len(got.Individual) != 0 {
		t.Errorf("Individual should be empty on the calendar path, got %v", got.Individual)
	}
	if got.WindowConfidence != types.WindowConfidenceLow {
		t.Errorf("WindowConfidence = %v, want low", got.WindowConfidence)
	}
}

// TestPredictWindowRollsForwardWhenPast verifies an expired calendar
// window advances a year before day counting.
func TestPredictWindowRollsForwardWhenPast(t *testing.T) {
	// In-season dormancy produces this year's window; by June it has
	// fully passed.
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{}, nil, mockClock{now})

	series := flatSeries(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 30, 0.20)
	got, err := svc.Predict(context.Background(), almondRequest(series))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.IntervalStart.Year() != 2026 {
		t.Errorf("window should roll to 2026, got %v", got.IntervalStart)
	}
	wantDays := int(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Sub(now).Hours() / 24)
	if got.DaysUntilBloom != wantDays {
		t.Errorf("DaysUntilBloom = %d, want %d", got.DaysUntilBloom, wantDays)
	}
}

// TestPredictWindowAlreadyUnderway verifies an in-progress window counts
// as zero days out rather than negative.
func TestPredictWindowAlreadyUnderway(t *testing.T) {
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{}, nil, mockClock{now})

	series := flatSeries(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 30, 0.20)
	got, err := svc.Predict(context.Background(), almondRequest(series))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.DaysUntilBloom != 0 {
		t.Errorf("DaysUntilBloom = %d, want 0 inside the window", got.DaysUntilBloom)
	}
}

// TestPredictFallbackPath covers a stage with neither ensemble nor
// calendar: blooming answers with the flagged placeholder horizon.
func TestPredictFallbackPath(t *testing.T) {
	now := time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{}, nil, mockClock{now})

	// High NDVI in season reads as blooming.
	series := flatSeries(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), 30, 0.80)
	got, err := svc.Predict(context.Background(), almondRequest(series))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if got.Stage != types.StageBlooming {
		t.Fatalf("Stage = %v, want blooming", got.Stage)
	}
	if got.Source != types.SourceFallback {
		t.Errorf("Source = %v, want fallback", got.Source)
	}
	if got.DaysUntilBloom != fallbackHorizonMid {
		t.Errorf("DaysUntilBloom = %d, want %d", got.DaysUntilBloom, fallbackHorizonMid)
	}
	if got.WindowConfidence != types.WindowConfidenceUnknown {
		t.Errorf("WindowConfidence = %v, want unknown", got.WindowConfidence)
	}
	if !got.IntervalStart.Equal(now.AddDate(0, 0, fallbackHorizonLow)) ||
		!got.IntervalEnd.Equal(now.AddDate(0, 0, fallbackHorizonHigh)) {
		t.Errorf("interval = %v..%v", got.IntervalStart, got.IntervalEnd)
	}
}

// TestPredictValidation verifies the typed errors for bad input.
func TestPredictValidation(t *testing.T) {
	svc := NewService(stubProvider{}, nil, mockClock{time.Now()})
	series := flatSeries(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 30, 0.5)

	tests := []struct {
		name string
		req  Request
		code types.ErrorCode
	}{
		{
			name: "unknown crop",
			req:  Request{Crop: "banana", Location: types.Location{Latitude: 40}, Series: series},
			code: types.ErrCodeValidationInvalidCrop,
		},
		{
			name: "latitude out of range",
			req:  Request{Crop: types.CropApple, Location: types.Location{Latitude: 95}, Series: series},
			code: types.ErrCodeValidationInvalidLat,
		},
		{
			name: "longitude out of range",
			req:  Request{Crop: types.CropApple, Location: types.Location{Longitude: 200}, Series: series},
			code: types.ErrCodeValidationInvalidLon,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Predict(context.Background(), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			appErr, ok := err.(*types.AppError)
			if !ok {
				t.Fatalf("expected *AppError, got %T", err)
			}
			if appErr.Code != tt.code {
				t.Errorf("Code = %q, want %q", appErr.Code, tt.code)
			}
		})
	}
}

// TestPredictModelLoadFailurePropagates verifies a missing artifact on
// the predictable path surfaces to the caller.
func TestPredictModelLoadFailurePropagates(t *testing.T) {
	loadErr := types.NewAppError(types.ErrCodeNotFoundModelArtifact, "artifact missing", nil)
	svc := NewService(stubProvider{err: loadErr}, nil, mockClock{time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)})

	series := flatSeries(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 30, 0.70)
	_, err := svc.Predict(context.Background(), almondRequest(series))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "artifact missing") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestPredictBatchIsolatesFailures verifies one bad item does not sink
// the batch and results key correctly.
func TestPredictBatchIsolatesFailures(t *testing.T) {
	now := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	svc := NewService(stubProvider{ens: testEnsemble(t, 10, 12, 11)}, nil, mockClock{now})

	good := almondRequest(flatSeries(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), 30, 0.70))
	good.ID = "field_a"
	bad := Request{ID: "field_b", Crop: "banana", Location: types.Location{Latitude: 40}}

	got, err := svc.PredictBatch(context.Background(), []Request{good, bad})
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}

	if len(got.Predictions) != 1 {
		t.Fatalf("Predictions has %d entries, want 1", len(got.Predictions))
	}
	if _, ok := got.Predictions["field_a"]; !ok {
		t.Error("field_a should have a prediction")
	}
	detail, ok := got.Errors["field_b"]
	if !ok {
		t.Fatal("field_b should have an error detail")
	}
	if detail.Code != string(types.ErrCodeValidationInvalidCrop) {
		t.Errorf("error code = %q, want invalid crop", detail.Code)
	}
}

// TestPredictBatchSizeLimit verifies the batch bound.
func TestPredictBatchSizeLimit(t *testing.T) {
	svc := NewService(stubProvider{}, nil, mockClock{time.Now()})

	reqs := make([]Request, MaxBatchSize+1)
	for i := range reqs {
		reqs[i] = almondRequest(flatSeries(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 10, 0.5))
	}
	_, err := svc.PredictBatch(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}
	appErr, ok := err.(*types.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationBatchSize {
		t.Errorf("Code = %q, want %q", appErr.Code, types.ErrCodeValidationBatchSize)
	}
}

// TestPredictBatchEmptyInput verifies the empty batch is a no-op, not an
// error.
func TestPredictBatchEmptyInput(t *testing.T) {
	svc := NewService(stubProvider{}, nil, mockClock{time.Now()})
	got, err := svc.PredictBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(got.Predictions) != 0 || len(got.Errors) != 0 {
		t.Errorf("empty batch should produce empty maps: %+v", got)
	}
}
