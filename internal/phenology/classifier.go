// Package phenology infers the developmental stage of a crop from its
// recent NDVI history and decides whether the regression ensemble is
// applicable. When it is not, the classifier still produces a coarse
// calendar window for bloom onset.
package phenology

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"bloomwatch/internal/types"
)

const (
	// recentWindow is how many trailing days of the series drive the
	// classification.
	recentWindow = 30

	// minTrendPoints is the minimum series length for a trend estimate.
	// Below this the slope of a fit is dominated by noise.
	minTrendPoints = 5

	// relativeSlopeBand is the +/- band of mean-normalized slope inside
	// which the trend counts as stable.
	relativeSlopeBand = 0.01
)

// Classification is the full stage assessment for one series.
type Classification struct {
	Stage      types.PhenologyStage
	Confidence float64
	CanPredict bool
	Trend      types.TrendDirection

	CurrentNDVI float64
	MeanNDVI    float64
	MeanTempC   float64

	// Month is the calendar month of the most recent observation, which
	// anchors all season checks. Using the observation date rather than
	// the wall clock keeps classification reproducible for a given series.
	Month time.Month

	// BloomWindow is a coarse calendar estimate, present only for stages
	// where the ensemble does not apply but the calendar still says
	// something (dormancy, bud break, post-bloom).
	BloomWindow *types.BloomWindow
}

// Classifier assigns phenology stages for one crop at one location.
type Classifier struct {
	cfg types.CropConfig
}

// NewClassifier builds a classifier for the crop, with bloom months
// already adjusted for the hemisphere of the latitude.
func NewClassifier(crop types.CropType, latitude float64) (*Classifier, error) {
	cfg, err := types.ConfigFor(crop, latitude)
	if err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg}, nil
}

// Config exposes the hemisphere-adjusted crop configuration.
func (c *Classifier) Config() types.CropConfig { return c.cfg }

// Classify determines the current phenology stage from the trailing 30
// days of the series. It is a pure function of its input: the same series
// always yields the same classification.
func (c *Classifier) Classify(series types.ObservationSeries) (*Classification, error) {
	if series.Degenerate() {
		return nil, types.NewAppError(types.ErrCodeValidationDegenerateSeries,
			"observation series carries no vegetation signal", nil)
	}

	recent := series.Tail(recentWindow)
	ndvi := recent.NDVIValues()

	current := ndvi[len(ndvi)-1]
	meanNDVI := stat.Mean(ndvi, nil)
	meanTemp := stat.Mean(recent.Temperatures(), nil)
	trend := Trend(ndvi)
	month := recent.Last().Date.Month()

	stage, confidence := c.determineStage(meanNDVI, trend, month)

	return &Classification{
		Stage:       stage,
		Confidence:  confidence,
		CanPredict:  stage.Predictable(),
		Trend:       trend,
		CurrentNDVI: current,
		MeanNDVI:    meanNDVI,
		MeanTempC:   meanTemp,
		Month:       month,
		BloomWindow: c.bloomWindow(stage, recent.Last().Date),
	}, nil
}

// determineStage walks the NDVI thresholds from dormancy upward. The
// trend and the calendar disambiguate the transitional bands.
func (c *Classifier) determineStage(meanNDVI float64, trend types.TrendDirection, month time.Month) (types.PhenologyStage, float64) {
	th := c.cfg.Thresholds

	switch {
	case meanNDVI < th.Dormancy:
		// Low canopy signal out of season is near-certain dormancy.
		if !c.cfg.Bloom.Contains(month) {
			return types.StageDormancy, 0.95
		}
		return types.StageDormancy, 0.8

	case meanNDVI < th.BudBreak:
		if trend == types.TrendIncreasing {
			return types.StageBudBreak, 0.9
		}
		// Low NDVI without growth is still dormancy.
		return types.StageDormancy, 0.7

	case meanNDVI < th.Vegetative:
		return types.StageVegetativeGrowth, 0.85

	case meanNDVI < th.PreBloom:
		// High canopy with growth leveling off during the bloom season
		// means flower buds, not leaves.
		if (trend == types.TrendStable || trend == types.TrendDecreasing) && c.cfg.Bloom.Contains(month) {
			return types.StagePreBloom, 0.95
		}
		return types.StageVegetativeGrowth, 0.8

	case meanNDVI >= th.PreBloom:
		// One month of slack past the nominal end still counts as bloom.
		if c.cfg.Bloom.Contains(month) || month == nextMonth(c.cfg.Bloom.End) {
			return types.StageBlooming, 0.9
		}
		return types.StagePostBloom, 0.85
	}

	return types.StageUnknown, 0.5
}

// bloomWindow derives the coarse calendar window for stages where the
// calendar is the only signal available. ref is the date of the most
// recent observation.
func (c *Classifier) bloomWindow(stage types.PhenologyStage, ref time.Time) *types.BloomWindow {
	switch stage {
	case types.StageDormancy:
		year := ref.Year()
		if ref.Month() > c.cfg.Bloom.End {
			year++
		}
		w := c.calendarWindow(year)
		w.Confidence = types.WindowConfidenceLow
		return w

	case types.StageBudBreak:
		// Bud break runs roughly four weeks to first bloom.
		return &types.BloomWindow{
			Start:      ref.AddDate(0, 0, 21),
			End:        ref.AddDate(0, 0, 42),
			Confidence: types.WindowConfidenceMedium,
		}

	case types.StagePostBloom:
		w := c.calendarWindow(ref.Year() + 1)
		w.Confidence = types.WindowConfidenceLow
		return w
	}
	return nil
}

// calendarWindow spans the configured bloom months in the given year,
// from the 1st of the first month to the 28th of the last.
func (c *Classifier) calendarWindow(year int) *types.BloomWindow {
	endYear := year
	if c.cfg.Bloom.End < c.cfg.Bloom.Start {
		endYear++
	}
	return &types.BloomWindow{
		Start: time.Date(year, c.cfg.Bloom.Start, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, c.cfg.Bloom.End, 28, 0, 0, 0, 0, time.UTC),
	}
}

// Trend classifies the direction of a series by the slope of a linear
// fit, normalized by the series mean so the threshold is scale-free.
// Fewer than five points always reads as stable.
func Trend(values []float64) types.TrendDirection {
	if len(values) < minTrendPoints {
		return types.TrendStable
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, values, nil, false)

	relative := slope / (stat.Mean(values, nil) + 1e-6)
	switch {
	case relative > relativeSlopeBand:
		return types.TrendIncreasing
	case relative < -relativeSlopeBand:
		return types.TrendDecreasing
	default:
		return types.TrendStable
	}
}

func nextMonth(m time.Month) time.Month {
	if m == time.December {
		return time.January
	}
	return m + 1
}
