package models

import "time"

// MissionStatus represents the progress of a physical flight.
type MissionStatus string

const (
	MissionStatusWaiting    MissionStatus = "waiting"
	MissionStatusScheduled  MissionStatus = "scheduled"
	MissionStatusInProgress MissionStatus = "in-progress"
	MissionStatusCompleted  MissionStatus = "completed"
)

// Estimation holds pre-flight planning values. Speed in m/s, distance in meters,
// duration in seconds.
type Estimation struct {
	LaunchTime *time.Time `json:"launchTime,omitempty"`
	Speed      float64    `json:"speed"`
	Distance   float64    `json:"distance"`
	Duration   float64    `json:"duration"`
}

// MissionResult is the cumulative flight statistics folded from telemetry reports.
// Time is in seconds.
type MissionResult struct {
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
	AvgSpeed float64 `json:"avgSpeed"`
	MinSpeed float64 `json:"minSpeed"`
	MaxSpeed float64 `json:"maxSpeed"`
}

// TelemetrySnapshot is the last known live state of the drone flying the mission.
type TelemetrySnapshot struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Speed    float64 `json:"speed"`
	Distance float64 `json:"distance"`
}

// MediaRef points at an uploaded photo or video of the flight.
type MediaRef struct {
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// MissionItem is one planned way-point in ground-station format.
// Coordinate is [lat, lng, alt].
type MissionItem struct {
	AutoContinue bool       `json:"autoContinue"`
	Command      int        `json:"command"`
	Coordinate   [3]float64 `json:"coordinate"`
	Frame        int        `json:"frame"`
	ID           int        `json:"id"`
	Param1       float64    `json:"param1"`
	Param2       float64    `json:"param2"`
	Param3       float64    `json:"param3"`
	Param4       float64    `json:"param4"`
	Type         string     `json:"type"`
}

// ChecklistAnswer is a pilot's answer to one pre-flight question.
type ChecklistAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Checklist is the pilot's pre-flight checklist for a mission.
type Checklist struct {
	Answers   []ChecklistAnswer `json:"answers"`
	Completed bool              `json:"completed"`
}

// Mission is one physical flight fulfilling a request.
// Result distance and time never decrease across telemetry reports.
type Mission struct {
	ID                  string            `db:"id" json:"id"`
	Name                string            `db:"name" json:"name,omitempty"`
	Status              MissionStatus     `db:"status" json:"status"`
	ProviderID          string            `db:"provider_id" json:"providerId"`
	RequestID           string            `db:"request_id" json:"requestId"`
	DroneID             string            `db:"drone_id" json:"droneId"`
	PilotID             string            `db:"pilot_id" json:"pilotId,omitempty"`
	Weight              float64           `db:"weight" json:"weight"`
	SpecialRequirements []string          `db:"special_requirements" json:"specialRequirements,omitempty"`
	Notes               string            `db:"notes" json:"notes,omitempty"`
	ScheduledAt         *time.Time        `db:"scheduled_at" json:"scheduledAt,omitempty"`
	StartedAt           *time.Time        `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt         *time.Time        `db:"completed_at" json:"completedAt,omitempty"`
	Estimation          Estimation        `db:"estimation" json:"estimation"`
	Result              MissionResult     `db:"result" json:"result"`
	Telemetry           TelemetrySnapshot `db:"telemetry" json:"telemetry"`
	Gallery             []MediaRef        `db:"gallery" json:"gallery"`
	PlannedHomePosition *MissionItem      `db:"planned_home_position" json:"plannedHomePosition,omitempty"`
	MissionItems        []MissionItem     `db:"mission_items" json:"missionItems,omitempty"`
	Checklist           Checklist         `db:"checklist" json:"checklist"`
	// Version increments on every write; telemetry folds use it for optimistic retries.
	Version   int64     `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// MissionFile is the QGroundControl plan produced by mission download.
type MissionFile struct {
	MAVAutopilot        int           `json:"MAV_AUTOPILOT"`
	ComplexItems        []any         `json:"complexItems"`
	GroundStation       string        `json:"groundStation"`
	Items               []MissionItem `json:"items"`
	PlannedHomePosition *MissionItem  `json:"plannedHomePosition"`
	Version             string        `json:"version"`
}
