package requests

import (
	"context"

	"droneDispatch/internal/apperr"
	"droneDispatch/models"
)

// Get returns a request visible to the caller: its requester or its provider.
func (l *Lifecycle) Get(ctx context.Context, callerID, providerID, id string) (*models.Request, error) {
	req, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != callerID && (providerID == "" || req.ProviderID != providerID) {
		return nil, apperr.NotFound("request %s not found", id)
	}
	return req, nil
}

// ListByUser returns one page of a user's requests, newest first.
func (l *Lifecycle) ListByUser(ctx context.Context, userID string, status *models.RequestStatus, offset, limit int, fields []string) (models.Page, error) {
	if status != nil && !status.Valid() {
		return models.Page{}, apperr.Validation("unknown request status %q", *status)
	}
	rows, total, err := l.store.Requests.ListByUser(ctx, userID, status, offset, limit)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "list requests")
	}
	items, err := models.ProjectAll(rows, fields)
	if err != nil {
		return models.Page{}, apperr.Wrap(err, "project requests")
	}
	return models.Page{Total: total, Items: items}, nil
}

// Dashboard summarizes a provider's open work.
type Dashboard struct {
	PendingRequestCount    int `json:"pendingRequestCount"`
	ScheduledMissionCount  int `json:"scheduledMissionCount"`
	InProgressMissionCount int `json:"inProgressMissionCount"`
	CompletedMissionCount  int `json:"completedMissionCount"`
	DroneCount             int `json:"droneCount"`
}

// Dashboard counts pending requests, missions by state and drones for a provider.
// Waiting missions count as scheduled.
func (l *Lifecycle) Dashboard(ctx context.Context, providerID string) (*Dashboard, error) {
	reqs, err := l.store.Requests.CountByStatus(ctx, providerID)
	if err != nil {
		return nil, apperr.Wrap(err, "count requests")
	}
	missions, err := l.store.Missions.CountByStatus(ctx, providerID)
	if err != nil {
		return nil, apperr.Wrap(err, "count missions")
	}
	drones, err := l.store.Drones.CountByProvider(ctx, providerID)
	if err != nil {
		return nil, apperr.Wrap(err, "count drones")
	}
	return &Dashboard{
		PendingRequestCount:    reqs[models.RequestStatusPending],
		ScheduledMissionCount:  missions[models.MissionStatusScheduled] + missions[models.MissionStatusWaiting],
		InProgressMissionCount: missions[models.MissionStatusInProgress],
		CompletedMissionCount:  missions[models.MissionStatusCompleted],
		DroneCount:             drones,
	}, nil
}
