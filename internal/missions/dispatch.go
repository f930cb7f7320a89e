package missions

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/livefeed"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
)

// DroneStatus is what a pilot sees while monitoring a flight.
type DroneStatus struct {
	MissionID string               `json:"missionId"`
	DroneID   string               `json:"droneId"`
	Position  *dronelink.Position  `json:"position"`
	Waypoints []dronelink.Waypoint `json:"waypoints"`
}

// flightTarget checks the guards shared by dispatch and monitoring and returns the
// mission with its drone.
func (l *Lifecycle) flightTarget(ctx context.Context, pilotID, id string) (*models.Mission, *models.Drone, error) {
	m, err := l.loadPiloted(ctx, pilotID, id)
	if err != nil {
		return nil, nil, err
	}
	if m.Status == models.MissionStatusCompleted {
		return nil, nil, apperr.Validation("mission %s is completed", id)
	}
	if m.DroneID == "" {
		return nil, nil, apperr.Validation("mission %s has no drone", id)
	}
	d, err := l.store.Drones.GetByID(ctx, m.DroneID)
	if err != nil {
		return nil, nil, apperr.Wrap(err, "get drone")
	}
	if d == nil {
		return nil, nil, apperr.Validation("drone %s of mission %s no longer exists", m.DroneID, id)
	}
	if d.AccessURL == "" {
		return nil, nil, apperr.Validation("drone %s has no flight-control endpoint", d.ID)
	}
	return m, d, nil
}

// DispatchToDrone uploads the mission's way-points to its drone and starts the
// mission. Only the assigned pilot may dispatch, and only after a completed
// checklist on a scheduled or running request.
func (l *Lifecycle) DispatchToDrone(ctx context.Context, pilotID, id string) (m *models.Mission, err error) {
	ctx, span := tracing.Start(ctx, "missions.DispatchToDrone", attribute.String("mission_id", id))
	defer func() {
		l.metrics.Transition(entity, string(models.MissionStatusInProgress), err)
		tracing.End(span, err)
	}()

	m, d, err := l.flightTarget(ctx, pilotID, id)
	if err != nil {
		return nil, err
	}
	if err := l.link.Ping(ctx, d.AccessURL); err != nil {
		return nil, err
	}
	if !m.Checklist.Completed {
		return nil, apperr.Validation("pre-flight checklist of mission %s is not completed", id)
	}
	req, err := l.store.Requests.GetByID(ctx, m.RequestID)
	if err != nil {
		return nil, apperr.Wrap(err, "get request")
	}
	if req == nil {
		return nil, apperr.Validation("mission %s has no request", id)
	}
	if req.Status != models.RequestStatusScheduled && req.Status != models.RequestStatusInProgress {
		return nil, apperr.Validation("request %s is %s, not scheduled", req.ID, req.Status)
	}
	if len(m.MissionItems) == 0 {
		return nil, apperr.Validation("mission %s has no way-points", id)
	}

	if err := l.link.PostWaypoints(ctx, d.AccessURL, Waypoints(m.MissionItems)); err != nil {
		return nil, err
	}

	started := false
	err = l.store.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		started, err = l.startFlight(ctx, m.ID, req.ID, m.ProviderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m, err = l.load(ctx, id)
	if err != nil {
		return nil, err
	}

	l.log.Info("mission dispatched",
		zap.String("mission_id", m.ID),
		zap.String("drone_id", d.ID),
		zap.Int("waypoints", len(m.MissionItems)),
		zap.Bool("started", started))
	if !started {
		return m, nil
	}
	if err := l.sink.Notify(ctx, req.UserID, models.EventMissionStarted, map[string]any{
		"missionId": m.ID,
		"requestId": req.ID,
	}); err != nil {
		l.log.Warn("notification failed", zap.String("mission_id", m.ID), zap.Error(err))
	}
	if l.feed != nil {
		l.feed.Publish(livefeed.KindMissionState, map[string]any{"missionId": m.ID, "status": m.Status})
	}
	return m, nil
}

// startFlight moves the mission and its request to in-progress. It must run inside
// a transaction: the states checked before the upload may have changed since, and a
// mission or request that left the dispatchable states rolls everything back. A
// mission already in progress is a re-upload and reports started == false.
func (l *Lifecycle) startFlight(ctx context.Context, missionID, requestID, providerID string) (started bool, err error) {
	started, err = l.store.Missions.MarkStarted(ctx, missionID, l.now().UTC())
	if err != nil {
		return false, apperr.Wrap(err, "start mission")
	}
	if !started {
		cur, err := l.load(ctx, missionID)
		if err != nil {
			return false, err
		}
		if cur.Status != models.MissionStatusInProgress {
			return false, apperr.InvalidTransition(entity, missionID, cur.Status, models.MissionStatusInProgress)
		}
	}

	moved, err := l.store.Requests.TransitionStatus(ctx, requestID, providerID,
		[]models.RequestStatus{models.RequestStatusScheduled}, models.RequestStatusInProgress)
	if err != nil {
		return false, apperr.Wrap(err, "start request")
	}
	if moved {
		return started, nil
	}
	req, err := l.store.Requests.GetByID(ctx, requestID)
	if err != nil {
		return false, apperr.Wrap(err, "get request")
	}
	if req == nil {
		return false, apperr.NotFound("request %s not found", requestID)
	}
	if req.Status != models.RequestStatusInProgress {
		return false, apperr.InvalidTransition("request", requestID, req.Status, models.RequestStatusInProgress)
	}
	return started, nil
}

// CheckDroneStatus reads the drone's position and loaded way-points concurrently.
// Nothing is changed.
func (l *Lifecycle) CheckDroneStatus(ctx context.Context, pilotID, id string) (*DroneStatus, error) {
	m, d, err := l.flightTarget(ctx, pilotID, id)
	if err != nil {
		return nil, err
	}
	out := &DroneStatus{MissionID: m.ID, DroneID: d.ID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := l.link.CurrentPosition(gctx, d.AccessURL)
		out.Position = p
		return err
	})
	g.Go(func() error {
		wps, err := l.link.LoadedWaypoints(gctx, d.AccessURL)
		out.Waypoints = wps
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Waypoints converts mission items to the drone's waypoint list. The first item is
// the current one.
func Waypoints(items []models.MissionItem) []dronelink.Waypoint {
	out := make([]dronelink.Waypoint, 0, len(items))
	for i, it := range items {
		out = append(out, dronelink.Waypoint{
			Seq:          i,
			Frame:        it.Frame,
			Command:      it.Command,
			Current:      i == 0,
			AutoContinue: it.AutoContinue,
			Param1:       it.Param1,
			Param2:       it.Param2,
			Param3:       it.Param3,
			Param4:       it.Param4,
			Lat:          it.Coordinate[0],
			Lng:          it.Coordinate[1],
			Alt:          it.Coordinate[2],
		})
	}
	return out
}
