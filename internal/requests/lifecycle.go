// Package requests implements the delivery request state machine and drone
// assignment.
package requests

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/geo"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/notify"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
	"droneDispatch/repository"
)

const entity = "request"

// PilotPicker chooses the pilot of a new mission from the drone's eligible pilots.
type PilotPicker func(pilots []string) string

// RandomPilot picks uniformly at random.
func RandomPilot(pilots []string) string {
	return pilots[rand.IntN(len(pilots))]
}

type Lifecycle struct {
	store     *repository.Store
	sink      notify.Sink
	metrics   *metrics.MetricsRegistry
	log       *zap.Logger
	pickPilot PilotPicker
	now       func() time.Time
}

// New builds a Lifecycle. sink may be nil to drop notifications.
func New(store *repository.Store, sink notify.Sink, m *metrics.MetricsRegistry, log *zap.Logger) *Lifecycle {
	if sink == nil {
		sink = notify.Nop
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{store: store, sink: sink, metrics: m, log: log, pickPilot: RandomPilot, now: time.Now}
}

// WithPilotPicker replaces the pilot selection used for new missions.
func (l *Lifecycle) WithPilotPicker(p PilotPicker) *Lifecycle {
	l.pickPilot = p
	return l
}

// CreateInput is a customer's delivery request.
type CreateInput struct {
	UserID           string
	PackageID        string
	ContactInfo      models.ContactInfo
	StartPoint       models.Address
	DestinationPoint models.Address
	LaunchDate       *time.Time
	Weight           float64
	Payout           float64
	Notes            string
}

func (in CreateInput) validate() error {
	switch {
	case in.UserID == "":
		return apperr.Validation("userId is required")
	case in.PackageID == "":
		return apperr.Validation("packageId is required")
	case !in.StartPoint.Coordinates.Valid():
		return apperr.Validation("start point %v out of range", in.StartPoint.Coordinates)
	case !in.DestinationPoint.Coordinates.Valid():
		return apperr.Validation("destination point %v out of range", in.DestinationPoint.Coordinates)
	case in.Weight < 0:
		return apperr.Validation("weight must not be negative")
	case in.Payout < 0:
		return apperr.Validation("payout must not be negative")
	}
	return nil
}

// Create stores a new pending request. The provider is taken from the package.
func (l *Lifecycle) Create(ctx context.Context, in CreateInput) (req *models.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.Create", attribute.String("package_id", in.PackageID))
	defer func() { tracing.End(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}
	pkg, err := l.store.Packages.GetByID(ctx, in.PackageID)
	if err != nil {
		return nil, apperr.Wrap(err, "get package")
	}
	if pkg == nil {
		return nil, apperr.NotFound("package %s not found", in.PackageID)
	}
	req = &models.Request{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		ProviderID:       pkg.ProviderID,
		PackageID:        pkg.ID,
		Status:           models.RequestStatusPending,
		ContactInfo:      in.ContactInfo,
		StartPoint:       in.StartPoint,
		DestinationPoint: in.DestinationPoint,
		LaunchDate:       in.LaunchDate,
		Weight:           in.Weight,
		Payout:           in.Payout,
		Notes:            in.Notes,
		Distance:         geo.Distance(in.StartPoint.Coordinates, in.DestinationPoint.Coordinates),
	}
	if err := l.store.Requests.Create(ctx, req); err != nil {
		return nil, apperr.Wrap(err, "create request")
	}
	l.log.Info("request created",
		zap.String("request_id", req.ID),
		zap.String("provider_id", req.ProviderID),
		zap.Float64("distance_m", req.Distance))
	return req, nil
}

// Accept moves a pending request to scheduled and tells the requester.
func (l *Lifecycle) Accept(ctx context.Context, providerID, id string) (*models.Request, error) {
	return l.transition(ctx, providerID, id,
		[]models.RequestStatus{models.RequestStatusPending}, models.RequestStatusScheduled, models.EventRequestAccepted)
}

// Reject moves a pending request to rejected and tells the requester.
func (l *Lifecycle) Reject(ctx context.Context, providerID, id string) (*models.Request, error) {
	return l.transition(ctx, providerID, id,
		[]models.RequestStatus{models.RequestStatusPending}, models.RequestStatusRejected, models.EventRequestRejected)
}

// Cancel stops a scheduled or in-progress request and tells the requester. The
// linked mission is left as it is.
func (l *Lifecycle) Cancel(ctx context.Context, providerID, id string) (*models.Request, error) {
	return l.transition(ctx, providerID, id,
		[]models.RequestStatus{models.RequestStatusScheduled, models.RequestStatusInProgress},
		models.RequestStatusCancelled, models.EventRequestCancelled)
}

// Complete closes an in-progress request and its mission together. The mission's
// folded result is kept as it is.
func (l *Lifecycle) Complete(ctx context.Context, providerID, id string) (req *models.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.Complete", attribute.String("request_id", id))
	defer func() {
		l.metrics.Transition(entity, string(models.RequestStatusCompleted), err)
		tracing.End(span, err)
	}()

	err = l.store.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.compareAndSwap(ctx, providerID, id,
			[]models.RequestStatus{models.RequestStatusInProgress}, models.RequestStatusCompleted); err != nil {
			return err
		}
		mission, err := l.store.Missions.GetByRequestID(ctx, id)
		if err != nil {
			return apperr.Wrap(err, "get mission")
		}
		if mission != nil {
			if _, err := l.store.Missions.MarkCompleted(ctx, mission.ID, l.now().UTC()); err != nil {
				return apperr.Wrap(err, "complete mission")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.load(ctx, id)
}

func (l *Lifecycle) transition(ctx context.Context, providerID, id string, from []models.RequestStatus, to models.RequestStatus, event models.EventType) (req *models.Request, err error) {
	ctx, span := tracing.Start(ctx, "requests.Transition",
		attribute.String("request_id", id),
		attribute.String("to", string(to)))
	defer func() {
		l.metrics.Transition(entity, string(to), err)
		tracing.End(span, err)
	}()

	if err := l.compareAndSwap(ctx, providerID, id, from, to); err != nil {
		return nil, err
	}
	req, err = l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, req.UserID, event, map[string]any{"requestId": req.ID, "status": string(req.Status)})
	return req, nil
}

// compareAndSwap applies the transition only while the request is in one of from.
// When nothing changed it tells a missing request apart from a wrong state.
func (l *Lifecycle) compareAndSwap(ctx context.Context, providerID, id string, from []models.RequestStatus, to models.RequestStatus) error {
	ok, err := l.store.Requests.TransitionStatus(ctx, id, providerID, from, to)
	if err != nil {
		return apperr.Wrap(err, "transition request")
	}
	if ok {
		return nil
	}
	current, err := l.store.Requests.GetOwned(ctx, id, providerID)
	if err != nil {
		return apperr.Wrap(err, "get request")
	}
	if current == nil {
		return apperr.NotFound("request %s not found", id)
	}
	return apperr.InvalidTransition(entity, id, current.Status, to)
}

func (l *Lifecycle) load(ctx context.Context, id string) (*models.Request, error) {
	req, err := l.store.Requests.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, "get request")
	}
	if req == nil {
		return nil, apperr.NotFound("request %s not found", id)
	}
	return req, nil
}

func (l *Lifecycle) notify(ctx context.Context, userID string, event models.EventType, payload map[string]any) {
	if err := l.sink.Notify(ctx, userID, event, payload); err != nil {
		l.log.Warn("notification failed",
			zap.String("user_id", userID),
			zap.String("event", string(event)),
			zap.Error(err))
	}
}
