package domain

import "time"

// AgentRole enumerates internal operator roles.
type AgentRole string

const (
	AgentRoleAgent      AgentRole = "AGENT"
	AgentRoleSupervisor AgentRole = "SUPERVISOR"
)

// Agent models a support operator eligible for ticket assignment.
// Deactivation removes an agent from future assignment selection without
// touching tickets already assigned to them.
type Agent struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         AgentRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentWorkload is a derived, read-only aggregate over an agent's tickets.
type AgentWorkload struct {
	AgentID            string
	Name               string
	Email              string
	Active             bool
	OpenCount          int
	ClosedCount        int
	AvgResolutionHours float64
	SLAViolationCount  int
}
