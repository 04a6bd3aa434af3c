package types

import (
	"context"
	"time"
)

// ObservationSource defines how the service retrieves the daily
// observation history for a location (abstracts the climate and
// vegetation upstreams plus gap filling).
type ObservationSource interface {
	FetchSeries(ctx context.Context, loc Location, days int) (ObservationSeries, error)
}

// ReportRecorder persists served predictions for later retrieval.
type ReportRecorder interface {
	Record(ctx context.Context, report *PredictionReport) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
