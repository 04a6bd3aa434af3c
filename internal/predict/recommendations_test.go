package predict

import (
	"strings"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

// TestRecommendationsTiers verifies each urgency tier leads with the
// right guidance.
func TestRecommendationsTiers(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-3, "already occurred"},
		{3, "URGENT"},
		{10, "under two weeks"},
		{20, "four weeks"},
		{45, "roughly 45 days"},
	}
	for _, tt := range tests {
		recs := Recommendations(tt.days, types.CropAlmond)
		if len(recs) == 0 {
			t.Fatalf("Recommendations(%d) returned nothing", tt.days)
		}
		if !strings.Contains(recs[0], tt.want) {
			t.Errorf("Recommendations(%d)[0] = %q, want it to mention %q", tt.days, recs[0], tt.want)
		}
	}
}

// TestRecommendationsCropNotes verifies the per-crop hive density lines.
func TestRecommendationsCropNotes(t *testing.T) {
	tests := []struct {
		crop types.CropType
		want string
	}{
		{types.CropAlmond, "1.5-2.0 hives"},
		{types.CropApple, "1 hive per acre"},
		{types.CropCherry, "2-2.5 hives"},
	}
	for _, tt := range tests {
		recs := Recommendations(10, tt.crop)
		joined := strings.Join(recs, "\n")
		if !strings.Contains(joined, tt.want) {
			t.Errorf("Recommendations for %s missing %q", tt.crop, tt.want)
		}
	}
}

// TestHistoricalAverage verifies the day-of-year projection.
func TestHistoricalAverage(t *testing.T) {
	cfg, err := types.ConfigFor(types.CropAlmond, 36.75)
	if err != nil {
		t.Fatalf("ConfigFor: %v", err)
	}
	got := HistoricalAverage(cfg, 2025)
	want := time.Date(2025, 2, 19, 0, 0, 0, 0, time.UTC) // day 50
	if !got.Equal(want) {
		t.Errorf("HistoricalAverage = %v, want %v", got, want)
	}
}
