// Package synth generates realistic synthetic observation series for
// demos, fixtures, and local development when the NASA upstreams are
// unavailable. The seasonal shapes mirror the patterns seen in real
// MODIS/POWER data for the supported orchard crops.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"bloomwatch/internal/types"
)

// Pattern describes the annual NDVI and climate shape for one crop.
type Pattern struct {
	// PeakDOY is the long-term average bloom day of year.
	PeakDOY int
	// Duration is how many days the bloom plateau lasts.
	Duration int
	// NDVIBase is the dormant-season NDVI floor.
	NDVIBase float64
	// NDVIPeak is the NDVI at full bloom.
	NDVIPeak float64
	// MeanTempC is the annual mean temperature at the crop's reference
	// growing region.
	MeanTempC float64
}

// tempAmplitudeC is the seasonal temperature swing around the mean.
const tempAmplitudeC = 12.0

var patterns = map[types.CropType]Pattern{
	types.CropAlmond: {PeakDOY: 50, Duration: 14, NDVIBase: 0.30, NDVIPeak: 0.75, MeanTempC: 18.0},
	types.CropApple:  {PeakDOY: 110, Duration: 10, NDVIBase: 0.25, NDVIPeak: 0.80, MeanTempC: 15.0},
	types.CropCherry: {PeakDOY: 85, Duration: 8, NDVIBase: 0.28, NDVIPeak: 0.78, MeanTempC: 15.0},
}

// PatternFor returns the annual pattern for a crop.
func PatternFor(crop types.CropType) (Pattern, error) {
	p, ok := patterns[crop]
	if !ok {
		return Pattern{}, types.NewAppError(types.ErrCodeValidationInvalidCrop,
			fmt.Sprintf("no synthetic pattern for crop %q", crop), nil)
	}
	return p, nil
}

// Generator produces deterministic synthetic series for one crop.
// The same seed always yields the same series.
type Generator struct {
	crop    types.CropType
	pattern Pattern
	rng     *rand.Rand
}

// NewGenerator creates a generator for the crop seeded for reproducibility.
func NewGenerator(crop types.CropType, seed int64) (*Generator, error) {
	p, err := PatternFor(crop)
	if err != nil {
		return nil, err
	}
	return &Generator{
		crop:    crop,
		pattern: p,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Year generates a full 365-day series for the given calendar year.
// bloomShift moves the bloom peak by that many days, clamped to stay
// between late January and late May.
func (g *Generator) Year(year int, bloomShift int) types.ObservationSeries {
	bloomDOY := g.pattern.PeakDOY + bloomShift
	if bloomDOY < 30 {
		bloomDOY = 30
	}
	if bloomDOY > 150 {
		bloomDOY = 150
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(types.ObservationSeries, 365)
	for i := range series {
		doy := i + 1
		ndvi := clamp01(g.ndviAt(doy, bloomDOY))
		series[i] = types.Observation{
			Date:          start.AddDate(0, 0, i),
			NDVI:          ndvi,
			GNDVI:         clamp01(ndvi*0.9 + g.rng.NormFloat64()*0.02),
			SAVI:          clamp01(ndvi*0.85 + g.rng.NormFloat64()*0.03),
			EVI:           clamp01(ndvi + g.rng.NormFloat64()*0.02),
			TemperatureC:  g.temperatureAt(doy),
			Precipitation: g.precipitationAt(doy),
		}
	}
	return series
}

// Window generates the trailing observation window ending at currentDOY,
// the shape a live prediction request would see. The window is clipped at
// the start of the year.
func (g *Generator) Window(year, currentDOY, windowDays int) types.ObservationSeries {
	full := g.Year(year, 0)
	if currentDOY < 1 {
		currentDOY = 1
	}
	if currentDOY > len(full) {
		currentDOY = len(full)
	}
	startDOY := currentDOY - windowDays
	if startDOY < 1 {
		startDOY = 1
	}
	return full[startDOY-1 : currentDOY]
}

// ndviAt models the annual NDVI curve: flat dormancy, slow bud break,
// accelerating pre-bloom growth, a bloom plateau, a high leafy summer,
// and an autumn decline back to the base.
func (g *Generator) ndviAt(doy, bloomDOY int) float64 {
	base := g.pattern.NDVIBase
	peak := g.pattern.NDVIPeak
	span := peak - base

	switch {
	case doy < bloomDOY-60:
		return base + g.rng.NormFloat64()*0.02
	case doy < bloomDOY-20:
		progress := float64(doy-(bloomDOY-60)) / 40
		return base + progress*span*0.3 + g.rng.NormFloat64()*0.03
	case doy < bloomDOY:
		progress := float64(doy-(bloomDOY-20)) / 20
		return base + 0.3*span + progress*0.4*span + g.rng.NormFloat64()*0.02
	case doy <= bloomDOY+g.pattern.Duration:
		return peak + g.rng.NormFloat64()*0.02
	case doy < bloomDOY+90:
		return peak*0.95 + g.rng.NormFloat64()*0.03
	case doy < 300:
		return peak*0.85 + g.rng.NormFloat64()*0.03
	default:
		progress := float64(doy-300) / 65
		return peak*0.85 - progress*(peak*0.85-base) + g.rng.NormFloat64()*0.03
	}
}

// temperatureAt models a sinusoidal seasonal cycle with daily noise and
// occasional heat or cold snaps.
func (g *Generator) temperatureAt(doy int) float64 {
	temp := g.pattern.MeanTempC + tempAmplitudeC*math.Sin(float64(doy-80)*2*math.Pi/365)
	temp += g.rng.NormFloat64() * 2.5
	if g.rng.Float64() < 0.05 {
		if g.rng.Float64() < 0.5 {
			temp -= 8
		} else {
			temp += 8
		}
	}
	return temp
}

// precipitationAt models wetter winters and springs with exponentially
// distributed rain amounts on rain days.
func (g *Generator) precipitationAt(doy int) float64 {
	seasonal := 1.5 - math.Cos(float64(doy-90)*2*math.Pi/365)
	rainProb := 0.1
	if doy < 150 || doy > 300 {
		rainProb = 0.3 * seasonal
	}
	if g.rng.Float64() < rainProb {
		return g.rng.ExpFloat64() * 5 * seasonal
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
