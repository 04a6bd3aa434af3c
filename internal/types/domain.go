package types

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Location is a WGS84 point of interest, typically a field centroid.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Southern reports whether the location lies in the southern hemisphere.
func (l Location) Southern() bool { return l.Latitude < 0 }

// Observation is one daily sample of remote-sensing and climate data for
// a location. Missing vegetation index values are represented as NaN.
type Observation struct {
	Date          time.Time `json:"date"`
	NDVI          float64   `json:"ndvi"`
	GNDVI         float64   `json:"gndvi"`
	SAVI          float64   `json:"savi"`
	EVI           float64   `json:"evi"`
	TemperatureC  float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
}

// ObservationSeries is a chronologically ordered run of daily observations.
type ObservationSeries []Observation

// Len returns the number of observations.
func (s ObservationSeries) Len() int { return len(s) }

// Last returns the most recent observation. The series must be non-empty.
func (s ObservationSeries) Last() Observation { return s[len(s)-1] }

// Tail returns the last n observations, or the whole series if shorter.
func (s ObservationSeries) Tail(n int) ObservationSeries {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// NDVIValues extracts the NDVI column.
func (s ObservationSeries) NDVIValues() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.NDVI
	}
	return out
}

// Temperatures extracts the temperature column.
func (s ObservationSeries) Temperatures() []float64 {
	out := make([]float64, len(s))
	for i, o := range s {
		out[i] = o.TemperatureC
	}
	return out
}

// Degenerate reports whether the series carries no usable vegetation
// signal: it is empty, or every NDVI value is NaN.
func (s ObservationSeries) Degenerate() bool {
	for _, o := range s {
		if !math.IsNaN(o.NDVI) {
			return false
		}
	}
	return true
}

// BloomWindow is a calendar interval in which bloom onset is expected,
// derived from the phenology stage rather than the regression models.
type BloomWindow struct {
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Confidence WindowConfidence `json:"confidence"`
}

// EnsembleResult is the output of the regression ensemble for one series.
type EnsembleResult struct {
	// PredictedDays is the weighted consensus, rounded to whole days.
	PredictedDays int `json:"predicted_days"`
	// IntervalLow and IntervalHigh bound the 95% confidence interval.
	IntervalLow  int `json:"interval_low"`
	IntervalHigh int `json:"interval_high"`
	// Individual holds the raw per-model estimates that contributed.
	Individual map[ModelName]float64 `json:"individual"`
	// AgreementScore is 1 minus the coefficient of variation across the
	// member estimates, clamped to [0, 1]. Higher means tighter consensus.
	AgreementScore float64 `json:"agreement_score"`
}

// BloomPrediction is the full answer the service gives for a location:
// the inferred stage plus either a model-backed date or a calendar window.
type BloomPrediction struct {
	Crop            CropType         `json:"crop_type"`
	Location        Location         `json:"location"`
	Stage           PhenologyStage   `json:"phenology_stage"`
	StageConfidence float64          `json:"stage_confidence"`
	Trend           TrendDirection   `json:"ndvi_trend"`
	CanPredict      bool             `json:"can_predict"`
	Source          PredictionSource `json:"prediction_source"`

	PredictedBloomDate time.Time `json:"predicted_bloom_date"`
	IntervalStart      time.Time `json:"interval_start"`
	IntervalEnd        time.Time `json:"interval_end"`
	DaysUntilBloom     int       `json:"days_until_bloom"`

	AgreementScore   float64               `json:"agreement_score"`
	Individual       map[ModelName]float64 `json:"individual_predictions"`
	WindowConfidence WindowConfidence      `json:"window_confidence"`
	GeneratedAt      time.Time             `json:"generated_at"`
}

// PredictionReport is the persisted record of a served prediction.
type PredictionReport struct {
	ID                 uuid.UUID        `json:"id"`
	FarmName           string           `json:"farm_name"`
	Crop               CropType         `json:"crop_type"`
	Latitude           float64          `json:"latitude"`
	Longitude          float64          `json:"longitude"`
	Stage              PhenologyStage   `json:"phenology_stage"`
	CanPredict         bool             `json:"can_predict"`
	PredictedBloomDate time.Time        `json:"predicted_bloom_date"`
	IntervalStart      time.Time        `json:"interval_start"`
	IntervalEnd        time.Time        `json:"interval_end"`
	DaysUntilBloom     int              `json:"days_until_bloom"`
	AgreementScore     float64          `json:"agreement_score"`
	Source             PredictionSource `json:"prediction_source"`
	CreatedAt          time.Time        `json:"created_at"`
}
