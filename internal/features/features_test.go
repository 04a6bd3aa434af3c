package features

import (
	"math"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

func almondConfig(t *testing.T) types.CropConfig {
	t.Helper()
	cfg, err := types.ConfigFor(types.CropAlmond, 36.75)
	if err != nil {
		t.Fatalf("ConfigFor: %v", err)
	}
	return cfg
}

func makeSeries(start time.Time, ndvi, temps []float64) types.ObservationSeries {
	s := make(types.ObservationSeries, len(ndvi))
	for i := range ndvi {
		s[i] = types.Observation{
			Date:         start.AddDate(0, 0, i),
			NDVI:         ndvi[i],
			TemperatureC: temps[i],
		}
	}
	return s
}

func constants(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestRowSeasonality verifies the day-of-year encodings.
func TestRowSeasonality(t *testing.T) {
	// Single observation on Feb 10 (day 41).
	start := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{0.5}, []float64{12})

	v, err := Row(series, 0, almondConfig(t))
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if v[DayOfYear] != 41 {
		t.Errorf("day_of_year = %v, want 41", v[DayOfYear])
	}
	if !almostEqual(v[SinDOY], math.Sin(2*math.Pi*41/365)) {
		t.Errorf("sin_doy = %v", v[SinDOY])
	}
	if !almostEqual(v[CosDOY], math.Cos(2*math.Pi*41/365)) {
		t.Errorf("cos_doy = %v", v[CosDOY])
	}
	if !almostEqual(v[AnnualPhase], 41.0/365.0) {
		t.Errorf("annual_phase = %v, want %v", v[AnnualPhase], 41.0/365.0)
	}
}

// TestRowShortSeriesLagsAreZero verifies that lag features reaching before
// the start of the series are zero rather than an error.
func TestRowShortSeriesLagsAreZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{0.3, 0.35, 0.4}, []float64{10, 11, 12})

	v, err := Row(series, 2, almondConfig(t))
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	for _, name := range []string{NDVIChange7d, NDVIChange14d, NDVIChange30d, NDVIAcceleration, TempTrend} {
		if v[name] != 0 {
			t.Errorf("%s = %v on a 3-day series, want 0", name, v[name])
		}
	}
}

// TestRowMovingAverageShortensWindow verifies the moving averages use
// whatever history exists instead of padding.
func TestRowMovingAverageShortensWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{0.2, 0.4, 0.6}, constants(3, 10))

	v, err := Row(series, 2, almondConfig(t))
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	want := (0.2 + 0.4 + 0.6) / 3
	for _, name := range []string{NDVIMA7d, NDVIMA14d, NDVIMA30d} {
		if !almostEqual(v[name], want) {
			t.Errorf("%s = %v, want %v", name, v[name], want)
		}
	}
}

// TestRowLagChanges verifies the 7/14 day change features on a long ramp.
func TestRowLagChanges(t *testing.T) {
	// NDVI rises by 0.01 a day for 40 days.
	n := 40
	ndvi := make([]float64, n)
	for i := range ndvi {
		ndvi[i] = 0.2 + 0.01*float64(i)
	}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, ndvi, constants(n, 15))

	v, err := Row(series, n-1, almondConfig(t))
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if !almostEqual(v[NDVIChange7d], 0.07) {
		t.Errorf("ndvi_change_7d = %v, want 0.07", v[NDVIChange7d])
	}
	if !almostEqual(v[NDVIChange14d], 0.14) {
		t.Errorf("ndvi_change_14d = %v, want 0.14", v[NDVIChange14d])
	}
	if !almostEqual(v[NDVIChange30d], 0.30) {
		t.Errorf("ndvi_change_30d = %v, want 0.30", v[NDVIChange30d])
	}
	// A linear ramp has zero acceleration.
	if !almostEqual(v[NDVIAcceleration], 0) {
		t.Errorf("ndvi_acceleration = %v, want 0", v[NDVIAcceleration])
	}
}

// TestGrowingDegreeDays verifies accumulation above base and the clamp at
// zero for cold days.
func TestGrowingDegreeDays(t *testing.T) {
	temps := []float64{8, 10, 12, 15}
	// 0 + 0 + 2 + 5
	if got := GrowingDegreeDays(temps, 10.0); !almostEqual(got, 7) {
		t.Errorf("GrowingDegreeDays = %v, want 7", got)
	}
	if got := GrowingDegreeDays(nil, 10.0); got != 0 {
		t.Errorf("GrowingDegreeDays(nil) = %v, want 0", got)
	}
}

// TestRowGDDCumsum verifies the cumulative GDD feature, including the
// zero at index 0.
func TestRowGDDCumsum(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{0.5, 0.5, 0.5}, []float64{12, 14, 16})
	cfg := almondConfig(t)

	v0, err := Row(series, 0, cfg)
	if err != nil {
		t.Fatalf("Row(0): %v", err)
	}
	if v0[GDDCumsum] != 0 {
		t.Errorf("gdd_cumsum at index 0 = %v, want 0", v0[GDDCumsum])
	}

	v2, err := Row(series, 2, cfg)
	if err != nil {
		t.Fatalf("Row(2): %v", err)
	}
	// (12-10) + (14-10) + (16-10)
	if !almostEqual(v2[GDDCumsum], 12) {
		t.Errorf("gdd_cumsum = %v, want 12", v2[GDDCumsum])
	}
}

// TestRowDegenerateSeries verifies the typed error for an unusable series.
func TestRowDegenerateSeries(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{math.NaN(), math.NaN()}, []float64{10, 10})

	_, err := Latest(series, almondConfig(t))
	if err == nil {
		t.Fatal("expected error for all-NaN series")
	}
	appErr, ok := err.(*types.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationDegenerateSeries {
		t.Errorf("Code = %q, want %q", appErr.Code, types.ErrCodeValidationDegenerateSeries)
	}
}

// TestVectorOrdered verifies the flattening follows training column order.
func TestVectorOrdered(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	series := makeSeries(start, []float64{0.42}, []float64{11})

	v, err := Latest(series, almondConfig(t))
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	ordered := v.Ordered()
	if len(ordered) != len(Names) {
		t.Fatalf("Ordered() length = %d, want %d", len(ordered), len(Names))
	}
	if ordered[0] != v[NDVI] {
		t.Errorf("ordered[0] = %v, want ndvi value %v", ordered[0], v[NDVI])
	}
	if ordered[len(ordered)-1] != v[GDDCumsum] {
		t.Errorf("last ordered value should be gdd_cumsum")
	}
}
