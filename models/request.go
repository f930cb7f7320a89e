package models

import "time"

// RequestStatus represents the progress of a delivery request.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusScheduled  RequestStatus = "scheduled"
	RequestStatusInProgress RequestStatus = "in-progress"
	RequestStatusRejected   RequestStatus = "rejected"
	RequestStatusCancelled  RequestStatus = "cancelled"
	RequestStatusCompleted  RequestStatus = "completed"
)

// requestTransitions is the full transition graph. States without an entry are terminal.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:    {RequestStatusScheduled, RequestStatusRejected},
	RequestStatusScheduled:  {RequestStatusInProgress, RequestStatusCancelled},
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the request state machine.
func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return len(requestTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusScheduled, RequestStatusInProgress,
		RequestStatusRejected, RequestStatusCancelled, RequestStatusCompleted:
		return true
	}
	return false
}

// Address is a geocoded postal address.
type Address struct {
	Coordinates Point  `json:"coordinates"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
}

// ContactInfo identifies who receives the package.
type ContactInfo struct {
	RecipientName string `json:"recipientName"`
	PhoneNumber   string `json:"phoneNumber"`
}

// Request is a customer's ask for delivery of a package.
// ProviderID is derived from the package on creation and never changes.
// MissionID is set once, when a drone is first assigned.
type Request struct {
	ID               string        `db:"id" json:"id"`
	UserID           string        `db:"user_id" json:"userId"`
	ProviderID       string        `db:"provider_id" json:"providerId"`
	PackageID        string        `db:"package_id" json:"packageId"`
	MissionID        *string       `db:"mission_id" json:"missionId,omitempty"`
	Status           RequestStatus `db:"status" json:"status"`
	ContactInfo      ContactInfo   `db:"contact_info" json:"contactInfo"`
	StartPoint       Address       `db:"start_point" json:"startPoint"`
	DestinationPoint Address       `db:"destination_point" json:"destinationPoint"`
	LaunchDate       *time.Time    `db:"launch_date" json:"launchDate,omitempty"`
	Weight           float64       `db:"weight" json:"weight"`
	Payout           float64       `db:"payout" json:"payout"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	// Distance is the geodesic start-to-destination distance in meters.
	Distance  float64   `db:"distance" json:"distance"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Package is the catalog item a request refers to. Only the fields the dispatch core
// needs are modelled.
type Package struct {
	ID         string  `db:"id" json:"id"`
	ProviderID string  `db:"provider_id" json:"providerId"`
	Name       string  `db:"name" json:"name"`
	Weight     float64 `db:"weight" json:"weight"`
}
