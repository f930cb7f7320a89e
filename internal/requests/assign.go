package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"droneDispatch/internal/apperr"
	"droneDispatch/internal/tracing"
	"droneDispatch/models"
	"droneDispatch/repository"
)

// AssignInput describes the drone and schedule a provider assigns to a request.
type AssignInput struct {
	DroneID             string
	ScheduledLaunch     *time.Time
	SpecialRequirements []string
	Notes               string
}

// AssignDrone attaches a drone to a pending or scheduled request. The first call
// creates the request's mission with a pilot drawn from the drone's eligible pilots;
// later calls update that same mission. Either way the mission ends up waiting and
// the request carries the launch date. The whole assignment is one transaction.
func (l *Lifecycle) AssignDrone(ctx context.Context, providerID, requestID string, in AssignInput) (mission *models.Mission, err error) {
	ctx, span := tracing.Start(ctx, "requests.AssignDrone",
		attribute.String("request_id", requestID),
		attribute.String("drone_id", in.DroneID))
	defer func() {
		l.metrics.Transition("mission", string(models.MissionStatusWaiting), err)
		tracing.End(span, err)
	}()

	if in.DroneID == "" {
		return nil, apperr.Validation("droneId is required")
	}

	var created bool
	err = l.store.WithinTx(ctx, func(ctx context.Context) error {
		req, err := l.store.Requests.GetOwned(ctx, requestID, providerID)
		if err != nil {
			return apperr.Wrap(err, "get request")
		}
		if req == nil {
			return apperr.NotFound("request %s not found", requestID)
		}
		if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusScheduled {
			return apperr.InvalidTransition(entity, requestID, req.Status, "assigned")
		}

		drone, err := l.store.Drones.GetByID(ctx, in.DroneID)
		if err != nil {
			return apperr.Wrap(err, "get drone")
		}
		if drone == nil {
			return apperr.NotFound("drone %s not found", in.DroneID)
		}
		if drone.ProviderID != req.ProviderID {
			return apperr.NotPermitted("drone %s does not belong to provider %s", drone.ID, req.ProviderID)
		}

		mission, err = l.store.Missions.GetByRequestID(ctx, req.ID)
		if err != nil {
			return apperr.Wrap(err, "get mission")
		}
		if mission == nil {
			if len(drone.PilotIDs) == 0 {
				return apperr.Validation("drone %s has no eligible pilots", drone.ID)
			}
			mission = &models.Mission{
				ID:                  uuid.NewString(),
				Status:              models.MissionStatusWaiting,
				ProviderID:          req.ProviderID,
				RequestID:           req.ID,
				DroneID:             drone.ID,
				PilotID:             l.pickPilot(drone.PilotIDs),
				Weight:              req.Weight,
				SpecialRequirements: in.SpecialRequirements,
				Notes:               in.Notes,
				ScheduledAt:         in.ScheduledLaunch,
			}
			if err := l.store.Missions.Create(ctx, mission); err != nil {
				return apperr.Wrap(err, "create mission")
			}
			created = true
		} else {
			err := l.store.Missions.UpdateAssignment(ctx, mission.ID, repository.Assignment{
				DroneID:             drone.ID,
				ScheduledAt:         in.ScheduledLaunch,
				Weight:              req.Weight,
				Notes:               in.Notes,
				SpecialRequirements: in.SpecialRequirements,
			})
			if err != nil {
				return apperr.Wrap(err, "update mission assignment")
			}
		}
		if err := l.store.Requests.LinkMission(ctx, req.ID, mission.ID, in.ScheduledLaunch); err != nil {
			return apperr.Wrap(err, "link mission")
		}
		mission, err = l.store.Missions.GetByID(ctx, mission.ID)
		if err != nil {
			return apperr.Wrap(err, "reload mission")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("drone assigned",
		zap.String("request_id", requestID),
		zap.String("mission_id", mission.ID),
		zap.String("drone_id", mission.DroneID),
		zap.String("pilot_id", mission.PilotID),
		zap.Bool("new_mission", created))
	return mission, nil
}
