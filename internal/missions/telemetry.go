package missions

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/telemetry"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
)

// MaxFoldAttempts bounds the optimistic retries of one telemetry fold.
const MaxFoldAttempts = 16

// RecordTelemetry folds report into the mission result. Concurrent reports for one
// mission are serialized by an optimistic version check: a fold that lost the race
// is recomputed from the fresh row. An empty pilotID skips the pilot check.
func (l *Lifecycle) RecordTelemetry(ctx context.Context, pilotID, id string, report telemetry.Report) (m *models.Mission, err error) {
	ctx, span := tracing.Start(ctx, "missions.RecordTelemetry", attribute.String("mission_id", id))
	defer func() {
		if l.metrics != nil {
			l.metrics.TelemetryFoldsTotal.WithLabelValues(metrics.OutcomeOf(err)).Inc()
		}
		tracing.End(span, err)
	}()

	if err := report.Validate(); err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= MaxFoldAttempts; attempt++ {
		m, err = l.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if pilotID != "" && m.PilotID != pilotID {
			return nil, apperr.NotPermitted("pilot %s is not assigned to mission %s", pilotID, id)
		}
		if m.Status == models.MissionStatusCompleted {
			return nil, apperr.InvalidTransition(entity, id, m.Status, "telemetry")
		}
		if err := telemetry.Fold(m, report); err != nil {
			return nil, err
		}
		ok, err := l.store.Missions.SaveFold(ctx, m)
		if err != nil {
			return nil, apperr.Wrap(err, "save telemetry")
		}
		if ok {
			return m, nil
		}
		if l.metrics != nil {
			l.metrics.TelemetryFoldRetries.Inc()
		}
		l.log.Debug("telemetry fold lost a race, retrying", zap.String("mission_id", id), zap.Int("attempt", attempt))
	}
	return nil, apperr.Unavailable(nil, "mission %s is too contended to fold telemetry", id)
}
