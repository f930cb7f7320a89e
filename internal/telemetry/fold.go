// Package telemetry folds flight telemetry reports into a mission's cumulative result.
package telemetry

import (
	"math"
	"time"

	"droneDispatch/internal/apperr"
	"droneDispatch/models"
)

// Report is one interval summary sent by a drone or pilot. Speeds are m/s, distance
// is meters.
type Report struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Distance     float64
	AverageSpeed float64
	MaxSpeed     float64
	MinSpeed     float64
	Latest       *models.TelemetrySnapshot
	Gallery      []models.MediaRef
}

// Validate rejects reports that would make the cumulative result go backwards.
func (r Report) Validate() error {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return apperr.Validation("telemetry report needs start and completion times")
	}
	if r.CompletedAt.Before(r.StartedAt) {
		return apperr.Validation("telemetry report completes at %s before it starts at %s",
			r.CompletedAt.Format(time.RFC3339), r.StartedAt.Format(time.RFC3339))
	}
	for _, v := range []float64{r.Distance, r.AverageSpeed, r.MaxSpeed, r.MinSpeed} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return apperr.Validation("telemetry values must be finite and non-negative")
		}
	}
	return nil
}

// Fold applies r to the mission in place.
//
// The average is a running blend of the previous average and the report's average,
// and the minimum speed keeps the larger of the two values.
func Fold(m *models.Mission, r Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	res := &m.Result
	prior := res.AvgSpeed
	if prior == 0 {
		prior = r.AverageSpeed
	}
	res.Distance += r.Distance
	res.Time += r.CompletedAt.Sub(r.StartedAt).Seconds()
	res.MaxSpeed = math.Max(res.MaxSpeed, r.MaxSpeed)
	res.MinSpeed = math.Max(res.MinSpeed, r.MinSpeed)
	res.AvgSpeed = (prior + r.AverageSpeed) * 0.5

	if r.Latest != nil {
		m.Telemetry = *r.Latest
	}
	m.Gallery = append(m.Gallery, r.Gallery...)
	return nil
}
