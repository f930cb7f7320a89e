package repository

import "database/sql"

// Store groups the repositories that share one connection pool.
type Store struct {
	UnitOfWork
	Users         UserRepositoryI
	Packages      PackageRepositoryI
	Requests      RequestRepositoryI
	Missions      MissionRepositoryI
	Drones        DroneRepositoryI
	Zones         NoFlyZoneRepositoryI
	Notifications NotificationRepositoryI
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		UnitOfWork:    NewUnitOfWork(db),
		Users:         NewUserRepository(db),
		Packages:      NewPackageRepository(db),
		Requests:      NewRequestRepository(db),
		Missions:      NewMissionRepository(db),
		Drones:        NewDroneRepository(db),
		Zones:         NewNoFlyZoneRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}
