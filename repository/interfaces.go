package repository

import (
	"context"
	"time"

	"droneDispatch/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

// PackageRepositoryI defines operations on Package entities.
type PackageRepositoryI interface {
	Create(ctx context.Context, p *models.Package) (*models.Package, error)
	GetByID(ctx context.Context, id string) (*models.Package, error)
}

// RequestRepositoryI defines operations on Request entities.
type RequestRepositoryI interface {
	Create(ctx context.Context, r *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	GetOwned(ctx context.Context, id, providerID string) (*models.Request, error)
	TransitionStatus(ctx context.Context, id, providerID string, from []models.RequestStatus, to models.RequestStatus) (bool, error)
	LinkMission(ctx context.Context, id, missionID string, launchDate *time.Time) error
	ListByUser(ctx context.Context, userID string, status *models.RequestStatus, offset, limit int) ([]models.Request, int, error)
	CountByStatus(ctx context.Context, providerID string) (map[models.RequestStatus]int, error)
}

// MissionRepositoryI defines operations on Mission entities.
type MissionRepositoryI interface {
	Create(ctx context.Context, m *models.Mission) error
	GetByID(ctx context.Context, id string) (*models.Mission, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.Mission, error)
	UpdateAssignment(ctx context.Context, id string, a Assignment) error
	UpdateEstimation(ctx context.Context, id string, e models.Estimation) (bool, error)
	UpdatePlan(ctx context.Context, id, name string, home *models.MissionItem, items []models.MissionItem) (bool, error)
	UpdateChecklist(ctx context.Context, id string, c models.Checklist) (bool, error)
	SaveFold(ctx context.Context, m *models.Mission) (bool, error)
	MarkStarted(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	CountByStatus(ctx context.Context, providerID string) (map[models.MissionStatus]int, error)
}

// DroneRepositoryI defines operations on Drone entities and their position history.
type DroneRepositoryI interface {
	Create(ctx context.Context, d *models.Drone) (*models.Drone, error)
	GetByID(ctx context.Context, id string) (*models.Drone, error)
	UpdateLocation(ctx context.Context, id string, p models.Point, at time.Time) (bool, error)
	AppendPosition(ctx context.Context, id string, p models.Point, at time.Time) (int64, error)
	ListPositions(ctx context.Context, id string, offset, limit int) ([]models.DronePosition, int, error)
	FindInBox(ctx context.Context, box models.BBox, excludeID string) ([]models.Drone, error)
	ResetStale(ctx context.Context, before time.Time) (int64, error)
	CountByProvider(ctx context.Context, providerID string) (int, error)
}

// NoFlyZoneRepositoryI defines operations on NoFlyZone entities.
type NoFlyZoneRepositoryI interface {
	Create(ctx context.Context, z *models.NoFlyZone) error
	GetByID(ctx context.Context, id string) (*models.NoFlyZone, error)
	Update(ctx context.Context, z *models.NoFlyZone) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, f ZoneFilter, offset, limit int) ([]models.NoFlyZone, error)
	Count(ctx context.Context, f ZoneFilter) (int, error)
}

// NotificationRepositoryI defines operations on persisted notifications.
type NotificationRepositoryI interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}
