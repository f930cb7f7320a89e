package models

import "time"

// NoFlyZone is a restricted-airspace record.
// Temporary zones are in effect only while StartTime <= now <= EndTime; permanent
// zones carry no times.
type NoFlyZone struct {
	ID          string         `db:"id" json:"id"`
	Location    Geometry       `db:"geometry" json:"location"`
	Circle      *Circle        `db:"circle" json:"circle,omitempty"`
	Description string         `db:"description" json:"description"`
	StartTime   *time.Time     `db:"start_time" json:"startTime,omitempty"`
	EndTime     *time.Time     `db:"end_time" json:"endTime,omitempty"`
	Style       map[string]any `db:"style" json:"style,omitempty"`
	IsActive    bool           `db:"is_active" json:"isActive"`
	IsPermanent bool           `db:"is_permanent" json:"isPermanent"`
	MissionID   *string        `db:"mission_id" json:"mission,omitempty"`
	DroneID     *string        `db:"drone_id" json:"drone,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// InEffect reports whether the zone restricts flight at now.
func (z *NoFlyZone) InEffect(now time.Time) bool {
	if z.IsPermanent {
		return true
	}
	if z.StartTime == nil || z.EndTime == nil {
		return false
	}
	return !now.Before(*z.StartTime) && !now.After(*z.EndTime)
}
