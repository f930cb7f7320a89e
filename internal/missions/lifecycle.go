// Package missions implements the flight lifecycle: planning, checklist, dispatch to
// the drone, telemetry and monitoring.
package missions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/dronelink"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/notify"
	"droneDispatch/models"
	"droneDispatch/repository"
)

const entity = "mission"

// DroneLink is the onboard flight-control client.
type DroneLink interface {
	Ping(ctx context.Context, endpoint string) error
	PostWaypoints(ctx context.Context, endpoint string, wps []dronelink.Waypoint) error
	LoadedWaypoints(ctx context.Context, endpoint string) ([]dronelink.Waypoint, error)
	CurrentPosition(ctx context.Context, endpoint string) (*dronelink.Position, error)
}

// Publisher receives mission state changes for the live feed.
type Publisher interface {
	Publish(kind string, v any)
}

type Lifecycle struct {
	store   *repository.Store
	link    DroneLink
	sink    notify.Sink
	feed    Publisher
	metrics *metrics.MetricsRegistry
	log     *zap.Logger
	now     func() time.Time
}

// New builds a Lifecycle. sink, feed and m may be nil.
func New(store *repository.Store, link DroneLink, sink notify.Sink, feed Publisher, m *metrics.MetricsRegistry, log *zap.Logger) *Lifecycle {
	if sink == nil {
		sink = notify.Nop
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{store: store, link: link, sink: sink, feed: feed, metrics: m, log: log, now: time.Now}
}

func (l *Lifecycle) load(ctx context.Context, id string) (*models.Mission, error) {
	m, err := l.store.Missions.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "get mission")
	}
	if m == nil {
		return nil, apperr.NotFound("mission %s not found", id)
	}
	return m, nil
}

// loadOwned hides missions of other providers.
func (l *Lifecycle) loadOwned(ctx context.Context, providerID, id string) (*models.Mission, error) {
	m, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ProviderID != providerID {
		return nil, apperr.NotFound("mission %s not found", id)
	}
	return m, nil
}

// loadPiloted returns the mission if pilotID is its assigned pilot.
func (l *Lifecycle) loadPiloted(ctx context.Context, pilotID, id string) (*models.Mission, error) {
	m, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.PilotID != pilotID {
		return nil, apperr.NotPermitted("pilot %s is not assigned to mission %s", pilotID, id)
	}
	return m, nil
}

// Get returns a mission to its provider or its assigned pilot.
func (l *Lifecycle) Get(ctx context.Context, callerID, providerID, id string) (*models.Mission, error) {
	m, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.PilotID != callerID && (providerID == "" || m.ProviderID != providerID) {
		return nil, apperr.NotFound("mission %s not found", id)
	}
	return m, nil
}

// Estimate overwrites the pre-flight planning values.
func (l *Lifecycle) Estimate(ctx context.Context, providerID, id string, e models.Estimation) (*models.Mission, error) {
	if e.Speed < 0 || e.Distance < 0 || e.Duration < 0 {
		return nil, apperr.Validation("estimation values must not be negative")
	}
	m, err := l.loadOwned(ctx, providerID, id)
	if err != nil {
		return nil, err
	}
	ok, err := l.store.Missions.UpdateEstimation(ctx, m.ID, e)
	if err != nil {
		return nil, apperr.Wrap(err, "update estimation")
	}
	if !ok {
		return nil, apperr.InvalidTransition(entity, id, models.MissionStatusCompleted, "estimated")
	}
	return l.load(ctx, id)
}

// UpdatePlan stores the mission's way-points and planned home position.
func (l *Lifecycle) UpdatePlan(ctx context.Context, providerID, id, name string, home *models.MissionItem, items []models.MissionItem) (*models.Mission, error) {
	for i, it := range items {
		if !(models.Point{Lat: it.Coordinate[0], Lng: it.Coordinate[1]}).Valid() {
			return nil, apperr.Validation("mission item %d: coordinate out of range", i)
		}
	}
	m, err := l.loadOwned(ctx, providerID, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = m.Name
	}
	ok, err := l.store.Missions.UpdatePlan(ctx, m.ID, name, home, items)
	if err != nil {
		return nil, apperr.Wrap(err, "update plan")
	}
	if !ok {
		return nil, apperr.InvalidTransition(entity, id, models.MissionStatusCompleted, "planned")
	}
	return l.load(ctx, id)
}

// SubmitChecklist stores the assigned pilot's pre-flight checklist.
func (l *Lifecycle) SubmitChecklist(ctx context.Context, pilotID, id string, answers []models.ChecklistAnswer, completed bool) (*models.Mission, error) {
	for i, a := range answers {
		if a.Question == "" {
			return nil, apperr.Validation("checklist answer %d has no question", i)
		}
	}
	m, err := l.loadPiloted(ctx, pilotID, id)
	if err != nil {
		return nil, err
	}
	ok, err := l.store.Missions.UpdateChecklist(ctx, m.ID, models.Checklist{Answers: answers, Completed: completed})
	if err != nil {
		return nil, apperr.Wrap(err, "update checklist")
	}
	if !ok {
		return nil, apperr.InvalidTransition(entity, id, models.MissionStatusCompleted, "checked")
	}
	return l.load(ctx, id)
}

// Download renders the mission as a QGroundControl plan and returns it with the
// mission name.
func (l *Lifecycle) Download(ctx context.Context, callerID, providerID, id string) (*models.MissionFile, string, error) {
	m, err := l.Get(ctx, callerID, providerID, id)
	if err != nil {
		return nil, "", err
	}
	items := m.MissionItems
	if items == nil {
		items = []models.MissionItem{}
	}
	return &models.MissionFile{
		MAVAutopilot:        4,
		ComplexItems:        []any{},
		GroundStation:       "QGroundControl",
		Items:               items,
		PlannedHomePosition: m.PlannedHomePosition,
		Version:             "1.0",
	}, m.Name, nil
}
