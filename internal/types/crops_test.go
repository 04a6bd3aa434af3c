package types

import (
	"testing"
	"time"
)

// TestShiftHemisphereInvolution verifies that shifting twice returns the
// original month for every month of the year.
func TestShiftHemisphereInvolution(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		if got := ShiftHemisphere(ShiftHemisphere(m)); got != m {
			t.Errorf("ShiftHemisphere(ShiftHemisphere(%v)) = %v, want %v", m, got, m)
		}
	}
}

// TestShiftHemisphereKnownValues verifies a few anchor points of the shift.
func TestShiftHemisphereKnownValues(t *testing.T) {
	tests := []struct {
		in, want time.Month
	}{
		{time.February, time.August},
		{time.April, time.October},
		{time.June, time.December},
		{time.July, time.January},
		{time.December, time.June},
	}
	for _, tt := range tests {
		if got := ShiftHemisphere(tt.in); got != tt.want {
			t.Errorf("ShiftHemisphere(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestConfigForNorthernHemisphere verifies the unshifted almond calendar.
func TestConfigForNorthernHemisphere(t *testing.T) {
	cfg, err := ConfigFor(CropAlmond, 36.75)
	if err != nil {
		t.Fatalf("ConfigFor returned error: %v", err)
	}
	if cfg.Bloom.Start != time.February || cfg.Bloom.End != time.April {
		t.Errorf("almond bloom range = %v-%v, want February-April", cfg.Bloom.Start, cfg.Bloom.End)
	}
	if cfg.BaseTempC != 10.0 {
		t.Errorf("BaseTempC = %v, want 10.0", cfg.BaseTempC)
	}
}

// TestConfigForSouthernHemisphere verifies the six-month shift for a
// southern latitude.
func TestConfigForSouthernHemisphere(t *testing.T) {
	cfg, err := ConfigFor(CropAlmond, -33.87)
	if err != nil {
		t.Fatalf("ConfigFor returned error: %v", err)
	}
	if cfg.Bloom.Start != time.August || cfg.Bloom.End != time.October {
		t.Errorf("southern almond bloom range = %v-%v, want August-October", cfg.Bloom.Start, cfg.Bloom.End)
	}
	// Thresholds must not change with hemisphere.
	if cfg.Thresholds.PreBloom != 0.75 {
		t.Errorf("Thresholds.PreBloom = %v, want 0.75", cfg.Thresholds.PreBloom)
	}
}

// TestConfigForInvalidCrop verifies the typed error for unsupported crops.
func TestConfigForInvalidCrop(t *testing.T) {
	_, err := ConfigFor(CropType("banana"), 40.0)
	if err == nil {
		t.Fatal("expected error for unsupported crop")
	}
	appErr, ok := err.(*AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != ErrCodeValidationInvalidCrop {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeValidationInvalidCrop)
	}
}

// TestMonthRangeContains verifies inclusive bounds and year wrap.
func TestMonthRangeContains(t *testing.T) {
	simple := MonthRange{time.February, time.April}
	if !simple.Contains(time.February) || !simple.Contains(time.April) {
		t.Error("Contains should be inclusive on both ends")
	}
	if simple.Contains(time.May) || simple.Contains(time.January) {
		t.Error("Contains should reject months outside the range")
	}

	wrapped := MonthRange{time.November, time.January}
	if !wrapped.Contains(time.December) || !wrapped.Contains(time.November) || !wrapped.Contains(time.January) {
		t.Error("wrapped range should cover November through January")
	}
	if wrapped.Contains(time.June) {
		t.Error("wrapped range should not contain June")
	}
}
