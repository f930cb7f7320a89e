package models

import "time"

// DroneStatus represents what a drone is currently doing.
type DroneStatus string

const (
	DroneStatusIdleReady DroneStatus = "idle-ready"
	DroneStatusIdleBusy  DroneStatus = "idle-busy"
	DroneStatusInMotion  DroneStatus = "in-motion"
)

// Drone represents a provider-owned delivery drone.
// A drone is assignable only to requests of the same provider.
type Drone struct {
	ID           string      `db:"id" json:"id"`
	ProviderID   string      `db:"provider_id" json:"providerId"`
	Name         string      `db:"name" json:"name"`
	SerialNumber string      `db:"serial_number" json:"serialNumber,omitempty"`
	Status       DroneStatus `db:"status" json:"status"`
	Location     Point       `db:"location" json:"location"`
	// AccessURL is the base URL of the onboard flight-control endpoint.
	AccessURL  string     `db:"access_url" json:"accessUrl,omitempty"`
	PilotIDs   []string   `db:"-" json:"pilots"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// HasPilot reports whether pilotID is eligible to fly the drone.
func (d *Drone) HasPilot(pilotID string) bool {
	for _, id := range d.PilotIDs {
		if id == pilotID {
			return true
		}
	}
	return false
}

// DronePosition is one append-only position history record.
type DronePosition struct {
	Seq        int64     `db:"seq" json:"seq"`
	DroneID    string    `db:"drone_id" json:"droneId"`
	Lat        float64   `db:"lat" json:"lat"`
	Lng        float64   `db:"lng" json:"lng"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// NearbyDrone is a drone returned by a nearest-drone query with its distance in meters.
type NearbyDrone struct {
	Drone
	Distance float64 `json:"distance"`
}
