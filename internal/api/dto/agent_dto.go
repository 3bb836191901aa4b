package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateAgentRequest payload.
type CreateAgentRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     domain.AgentRole `json:"role"`
}

// AgentResponse response shape.
type AgentResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.AgentRole `json:"role"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
}

// AgentWorkloadResponse response shape.
type AgentWorkloadResponse struct {
	AgentID            string  `json:"agent_id"`
	Name               string  `json:"name"`
	Active             bool    `json:"active"`
	OpenCount          int     `json:"open_count"`
	ClosedCount        int     `json:"closed_count"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	SLAViolationCount  int     `json:"sla_violations"`
}
