// Package features turns an observation series into the model inputs the
// regression ensemble was trained on: direct spectral and climate values,
// seasonality encodings, rolling NDVI and temperature statistics, and
// accumulated growing degree days.
package features

import (
	"math"

	"github.com/montanaflynn/stats"

	"bloomwatch/internal/types"
)

// Feature names, in the column order the tree and feedforward models were
// trained with. Artifact scalers reference these names, so the order here
// and the order recorded in a trained artifact must agree.
const (
	NDVI          = "ndvi"
	GNDVI         = "gndvi"
	SAVI          = "savi"
	EVI           = "evi"
	Temperature   = "temperature"
	Precipitation = "precipitation"

	DayOfYear   = "day_of_year"
	SinDOY      = "sin_doy"
	CosDOY      = "cos_doy"
	AnnualPhase = "annual_phase"

	NDVIChange7d     = "ndvi_change_7d"
	NDVIChange14d    = "ndvi_change_14d"
	NDVIChange30d    = "ndvi_change_30d"
	NDVIMA7d         = "ndvi_ma_7d"
	NDVIMA14d        = "ndvi_ma_14d"
	NDVIMA30d        = "ndvi_ma_30d"
	NDVIAcceleration = "ndvi_acceleration"

	TempMA7d  = "temp_ma_7d"
	TempMA14d = "temp_ma_14d"
	TempMA30d = "temp_ma_30d"
	TempTrend = "temp_trend"

	GDDCumsum = "gdd_cumsum"
)

// Names lists every feature in training column order.
var Names = []string{
	NDVI, GNDVI, SAVI, EVI, Temperature, Precipitation,
	DayOfYear, SinDOY, CosDOY, AnnualPhase,
	NDVIChange7d, NDVIChange14d, NDVIChange30d,
	NDVIMA7d, NDVIMA14d, NDVIMA30d, NDVIAcceleration,
	TempMA7d, TempMA14d, TempMA30d, TempTrend,
	GDDCumsum,
}

// Vector is a named feature vector for a single observation day.
type Vector map[string]float64

// Row computes the feature vector for observation index i of the series.
// Lag features that reach before the start of the series are zero, and
// moving averages shorten their window to the available history; this
// matches the training pipeline, so short series degrade the same way at
// inference as they did at fit time.
//
// Returns a degenerate-series error when the series has no usable NDVI.
func Row(series types.ObservationSeries, i int, cfg types.CropConfig) (Vector, error) {
	if series.Degenerate() {
		return nil, types.NewAppError(types.ErrCodeValidationDegenerateSeries,
			"observation series carries no vegetation signal", nil)
	}
	if i < 0 || i >= series.Len() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
			"feature index out of range", nil,
			map[string]any{"index": i, "series_len": series.Len()})
	}

	ndvi := series.NDVIValues()
	temps := series.Temperatures()
	obs := series[i]

	v := Vector{
		NDVI:          obs.NDVI,
		GNDVI:         obs.GNDVI,
		SAVI:          obs.SAVI,
		EVI:           obs.EVI,
		Temperature:   obs.TemperatureC,
		Precipitation: obs.Precipitation,
	}

	doy := float64(obs.Date.YearDay())
	v[DayOfYear] = doy
	v[SinDOY] = math.Sin(2 * math.Pi * doy / 365)
	v[CosDOY] = math.Cos(2 * math.Pi * doy / 365)
	v[AnnualPhase] = math.Mod(doy, 365) / 365

	v[NDVIChange7d] = lagChange(ndvi, i, 7)
	v[NDVIChange14d] = lagChange(ndvi, i, 14)
	v[NDVIChange30d] = lagChange(ndvi, i, 30)

	v[NDVIMA7d] = trailingMean(ndvi, i, 7)
	v[NDVIMA14d] = trailingMean(ndvi, i, 14)
	v[NDVIMA30d] = trailingMean(ndvi, i, 30)

	// Change of the change over two adjacent 7-day lags.
	if i >= 14 {
		now := ndvi[i] - ndvi[i-7]
		prev := ndvi[i-7] - ndvi[i-14]
		v[NDVIAcceleration] = now - prev
	} else {
		v[NDVIAcceleration] = 0
	}

	v[TempMA7d] = trailingMean(temps, i, 7)
	v[TempMA14d] = trailingMean(temps, i, 14)
	v[TempMA30d] = trailingMean(temps, i, 30)
	v[TempTrend] = lagChange(temps, i, 14)

	if i > 0 {
		v[GDDCumsum] = GrowingDegreeDays(temps[:i+1], cfg.BaseTempC)
	} else {
		v[GDDCumsum] = 0
	}

	return v, nil
}

// Latest computes the feature vector for the most recent observation.
func Latest(series types.ObservationSeries, cfg types.CropConfig) (Vector, error) {
	return Row(series, series.Len()-1, cfg)
}

// Ordered flattens the vector into training column order.
func (v Vector) Ordered() []float64 {
	out := make([]float64, len(Names))
	for i, name := range Names {
		out[i] = v[name]
	}
	return out
}

// GrowingDegreeDays accumulates daily heat above the crop's base
// temperature. Days below base contribute zero, never negative.
func GrowingDegreeDays(temps []float64, baseTemp float64) float64 {
	var gdd float64
	for _, t := range temps {
		gdd += math.Max(t-baseTemp, 0)
	}
	return gdd
}

// lagChange returns values[i] - values[i-lag], or 0 when the lag reaches
// before the start of the series.
func lagChange(values []float64, i, lag int) float64 {
	if i < lag {
		return 0
	}
	return values[i] - values[i-lag]
}

// trailingMean averages values[max(0,i-window) : i+1]. The leading edge
// shortens the window rather than padding it.
func trailingMean(values []float64, i, window int) float64 {
	start := i - window
	if start < 0 {
		start = 0
	}
	mean, err := stats.Mean(values[start : i+1])
	if err != nil {
		return 0
	}
	return mean
}
