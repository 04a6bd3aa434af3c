package predict

import (
	"fmt"
	"time"

	"bloomwatch/internal/types"
)

// Recommendations returns operator guidance tiered by how close bloom
// is, followed by crop-specific pollination notes.
func Recommendations(daysUntil int, crop types.CropType) []string {
	var recs []string

	switch {
	case daysUntil < 0:
		recs = append(recs,
			"Bloom has already occurred; monitor fruit development.",
			"Assess pollination and fruit set rates.")
	case daysUntil < 7:
		recs = append(recs,
			"URGENT: bloom is imminent within the next 7 days.",
			"Confirm hives are positioned in the orchard.",
			"Watch the weather forecast for frost risk.",
			"Avoid heavy irrigation during bloom.")
	case daysUntil < 14:
		recs = append(recs,
			"Bloom expected in under two weeks.",
			"Contact beekeepers now if not already arranged.",
			"Stage hive placement logistics.",
			"Review the weather outlook for the bloom period.")
	case daysUntil < 30:
		recs = append(recs,
			"Bloom expected within the next four weeks.",
			"Coordinate with beekeepers over the coming two weeks.",
			"Track climate trends for the site.",
			"Plan labor and resources for the bloom window.")
	default:
		recs = append(recs,
			fmt.Sprintf("Bloom expected in roughly %d days.", daysUntil),
			"Keep monitoring NDVI evolution.",
			"Revisit the prediction weekly.")
	}

	switch crop {
	case types.CropAlmond:
		recs = append(recs, "Almond: plan for 1.5-2.0 hives per acre.")
	case types.CropApple:
		recs = append(recs, "Apple: plan for 1 hive per acre.")
	case types.CropCherry:
		recs = append(recs, "Cherry: plan for 2-2.5 hives per acre.")
	}

	return recs
}

// HistoricalAverage returns the long-term average bloom date for the
// crop projected onto the given year.
func HistoricalAverage(cfg types.CropConfig, year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, cfg.HistoricalPeakDOY-1)
}
