package models

import "strings"

// Role identifies which side of a support conversation a user is on.
type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
)

// ParseRole normalizes a raw role string.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client", "customer", "contact":
		return RoleClient, true
	case "agent", "operator":
		return RoleAgent, true
	default:
	}
	return "", false
}

// User is a chat participant as seen by presence tracking.
type User struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Role Role   `json:"role" yaml:"role"`
}

// DisplayName returns the name to show for the user, falling back to the ID.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.ID
}
