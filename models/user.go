package models

// Role distinguishes what a principal may do.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProvider Role = "provider"
	RolePilot    Role = "pilot"
	RoleAdmin    Role = "admin"
)

// User represents an account in the system.
// Providers and pilots carry the provider they act for in ProviderID.
type User struct {
	ID         string `db:"id" json:"id"`
	Username   string `db:"username" json:"username"`
	Role       Role   `db:"role" json:"role"`
	ProviderID string `db:"provider_id" json:"providerId,omitempty"`
}
