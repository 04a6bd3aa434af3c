package types

import (
	"fmt"
	"time"
)

// NDVIThresholds are the stage boundaries on the 30-day mean NDVI.
// The same boundaries hold for all currently supported crops, but they
// are modeled per crop so calibrated values can diverge later.
type NDVIThresholds struct {
	Dormancy   float64
	BudBreak   float64
	Vegetative float64
	PreBloom   float64
}

// MonthRange is an inclusive range of calendar months. A range may wrap
// around the year boundary (Start > End), for example November-January.
type MonthRange struct {
	Start time.Month
	End   time.Month
}

// Contains reports whether m falls inside the range, inclusive on both
// ends, honoring year wrap.
func (r MonthRange) Contains(m time.Month) bool {
	if r.Start <= r.End {
		return m >= r.Start && m <= r.End
	}
	return m >= r.Start || m <= r.End
}

// CropConfig carries the calibrated phenology parameters for one crop at
// one location. Bloom months are stored already adjusted for hemisphere,
// so all downstream logic works in local calendar terms.
type CropConfig struct {
	Crop               CropType
	Bloom              MonthRange
	Thresholds         NDVIThresholds
	BaseTempC          float64
	ChillHoursRequired float64
	// HistoricalPeakDOY is the long-term average bloom day of year,
	// reported alongside predictions for comparison.
	HistoricalPeakDOY int
}

// Northern-hemisphere crop calendars. Thresholds are shared across crops
// at current calibration.
var cropConfigs = map[CropType]CropConfig{
	CropAlmond: {
		Crop:               CropAlmond,
		Bloom:              MonthRange{time.February, time.April},
		Thresholds:         NDVIThresholds{Dormancy: 0.25, BudBreak: 0.40, Vegetative: 0.60, PreBloom: 0.75},
		BaseTempC:          10.0,
		ChillHoursRequired: 200,
		HistoricalPeakDOY:  50,
	},
	CropApple: {
		Crop:               CropApple,
		Bloom:              MonthRange{time.March, time.May},
		Thresholds:         NDVIThresholds{Dormancy: 0.25, BudBreak: 0.40, Vegetative: 0.60, PreBloom: 0.75},
		BaseTempC:          10.0,
		ChillHoursRequired: 800,
		HistoricalPeakDOY:  110,
	},
	CropCherry: {
		Crop:               CropCherry,
		Bloom:              MonthRange{time.March, time.May},
		Thresholds:         NDVIThresholds{Dormancy: 0.25, BudBreak: 0.40, Vegetative: 0.60, PreBloom: 0.75},
		BaseTempC:          10.0,
		ChillHoursRequired: 900,
		HistoricalPeakDOY:  85,
	},
}

// ConfigFor returns the crop configuration adjusted for the hemisphere of
// the given latitude. For southern latitudes the bloom months are shifted
// by six months; applying the shift here keeps every consumer of the
// config hemisphere-agnostic.
func ConfigFor(crop CropType, latitude float64) (CropConfig, error) {
	cfg, ok := cropConfigs[crop]
	if !ok {
		return CropConfig{}, NewAppError(ErrCodeValidationInvalidCrop,
			fmt.Sprintf("unsupported crop type %q", crop), nil)
	}
	if latitude < 0 {
		cfg.Bloom = MonthRange{Start: ShiftHemisphere(cfg.Bloom.Start), End: ShiftHemisphere(cfg.Bloom.End)}
	}
	return cfg, nil
}

// ShiftHemisphere moves a month six months across the year, mapping the
// northern-hemisphere calendar onto the southern one. The shift is an
// involution: applying it twice returns the original month.
func ShiftHemisphere(m time.Month) time.Month {
	shifted := (int(m) + 6) % 12
	if shifted == 0 {
		shifted = 12
	}
	return time.Month(shifted)
}
