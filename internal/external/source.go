package external

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"bloomwatch/internal/types"

	"golang.org/x/sync/errgroup"
)

// ClimateSource supplies daily climate readings for a point location.
type ClimateSource interface {
	FetchDaily(ctx context.Context, loc types.Location, start, end time.Time) ([]DailyClimate, error)
}

// VegetationSource supplies satellite vegetation index samples for a point
// location. Samples arrive at the composite cadence of the upstream product
// (16 days for MODIS), not daily.
type VegetationSource interface {
	FetchSamples(ctx context.Context, loc types.Location, start, end time.Time) ([]VegetationSample, error)
}

// Compile-time interface compliance checks.
var (
	_ ClimateSource    = (*PowerHTTPClient)(nil)
	_ VegetationSource = (*VegetationHTTPClient)(nil)
)

// CompositeSource joins climate and vegetation feeds into a single daily
// observation series. The two upstreams are fetched concurrently, merged by
// calendar date, and the sparse vegetation samples are linearly interpolated
// to daily resolution. Remaining gaps at the edges are forward then backward
// filled, mirroring how the training pipeline prepares its input frames.
type CompositeSource struct {
	climate    ClimateSource
	vegetation VegetationSource
	clock      types.Clock
	logger     *slog.Logger
}

// NewCompositeSource wires a CompositeSource from the two upstream feeds.
// A nil clock defaults to the real clock and a nil logger to slog.Default().
func NewCompositeSource(climate ClimateSource, vegetation VegetationSource, clock types.Clock, logger *slog.Logger) *CompositeSource {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompositeSource{
		climate:    climate,
		vegetation: vegetation,
		clock:      clock,
		logger:     logger,
	}
}

// FetchSeries retrieves the trailing `days` of merged observations ending at
// the current date. Days that never receive a temperature or an NDVI value,
// even after interpolation and edge filling, are dropped.
func (s *CompositeSource) FetchSeries(ctx context.Context, loc types.Location, days int) (types.ObservationSeries, error) {
	end := s.clock.Now().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	var (
		climate []DailyClimate
		samples []VegetationSample
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		climate, err = s.climate.FetchDaily(gctx, loc, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.vegetation.FetchSamples(gctx, loc, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeFeeds(climate, samples)

	s.logger.InfoContext(ctx, "observation series assembled",
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
		"climate_days", len(climate),
		"vegetation_samples", len(samples),
		"observations", len(merged),
	)

	return merged, nil
}

// mergeFeeds outer-joins the two feeds on calendar date, interpolates the
// vegetation indices to daily resolution, and fills edge gaps. GNDVI and SAVI
// readings the product does not carry are derived from NDVI with the canopy
// ratios used at training time.
func mergeFeeds(climate []DailyClimate, samples []VegetationSample) types.ObservationSeries {
	byDate := make(map[string]*types.Observation)

	obsFor := func(date time.Time) *types.Observation {
		key := date.Format(time.DateOnly)
		o, ok := byDate[key]
		if !ok {
			o = &types.Observation{
				Date:          date,
				NDVI:          math.NaN(),
				GNDVI:         math.NaN(),
				SAVI:          math.NaN(),
				EVI:           math.NaN(),
				TemperatureC:  math.NaN(),
				Precipitation: 0,
			}
			byDate[key] = o
		}
		return o
	}

	for _, c := range climate {
		o := obsFor(c.Date)
		o.TemperatureC = c.TemperatureC
		o.Precipitation = c.Precipitation
	}
	for _, v := range samples {
		o := obsFor(v.Date)
		o.NDVI = v.NDVI
		o.GNDVI = v.GNDVI
		o.SAVI = v.SAVI
		o.EVI = v.EVI
	}

	series := make(types.ObservationSeries, 0, len(byDate))
	for _, o := range byDate {
		series = append(series, *o)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	interpolateColumn(series, func(o *types.Observation) *float64 { return &o.NDVI })
	interpolateColumn(series, func(o *types.Observation) *float64 { return &o.GNDVI })
	interpolateColumn(series, func(o *types.Observation) *float64 { return &o.SAVI })
	interpolateColumn(series, func(o *types.Observation) *float64 { return &o.EVI })
	fillColumn(series, func(o *types.Observation) *float64 { return &o.TemperatureC })

	for i := range series {
		o := &series[i]
		if math.IsNaN(o.GNDVI) && !math.IsNaN(o.NDVI) {
			o.GNDVI = o.NDVI * 0.9
		}
		if math.IsNaN(o.SAVI) && !math.IsNaN(o.NDVI) {
			o.SAVI = o.NDVI * 0.85
		}
		if math.IsNaN(o.EVI) && !math.IsNaN(o.NDVI) {
			o.EVI = o.NDVI
		}
	}

	out := series[:0]
	for _, o := range series {
		if math.IsNaN(o.NDVI) || math.IsNaN(o.TemperatureC) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// interpolateColumn fills interior NaN gaps linearly, weighting by the number
// of days between the surrounding known values, then fills the leading and
// trailing edges with the nearest known value.
func interpolateColumn(series types.ObservationSeries, col func(*types.Observation) *float64) {
	prev := -1
	for i := range series {
		v := *col(&series[i])
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo := *col(&series[prev])
			span := series[i].Date.Sub(series[prev].Date).Hours() / 24
			for j := prev + 1; j < i; j++ {
				frac := series[j].Date.Sub(series[prev].Date).Hours() / 24 / span
				*col(&series[j]) = lo + frac*(v-lo)
			}
		}
		prev = i
	}
	fillColumn(series, col)
}

// fillColumn forward-fills NaN values from the most recent known value, then
// backward-fills any leading run from the first known value.
func fillColumn(series types.ObservationSeries, col func(*types.Observation) *float64) {
	last := math.NaN()
	for i := range series {
		v := col(&series[i])
		if math.IsNaN(*v) {
			*v = last
		} else {
			last = *v
		}
	}
	next := math.NaN()
	for i := len(series) - 1; i >= 0; i-- {
		v := col(&series[i])
		if math.IsNaN(*v) {
			*v = next
		} else {
			next = *v
		}
	}
}

// Compile-time interface compliance check.
var _ types.ObservationSource = (*CompositeSource)(nil)
