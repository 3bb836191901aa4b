package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest payload. Absent fields are left untouched.
type UpdateTicketRequest struct {
	Status        *domain.TicketStatus   `json:"status"`
	Priority      *domain.TicketPriority `json:"priority"`
	Category      *string                `json:"category"`
	AssigneeID    *string                `json:"assignee_id"`
	ClearAssignee bool                   `json:"clear_assignee"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// TicketSummary response shape.
type TicketSummary struct {
	DisplayKey  string                `json:"display_key"`
	Title       string                `json:"title"`
	Category    string                `json:"category"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssigneeID  *string               `json:"assignee_id,omitempty"`
	SLAViolated bool                  `json:"sla_violated"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse response shape.
type TicketDetailResponse struct {
	DisplayKey    string                  `json:"display_key"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description"`
	Category      string                  `json:"category"`
	Status        domain.TicketStatus     `json:"status"`
	Priority      domain.TicketPriority   `json:"priority"`
	CreatorID     string                  `json:"creator_id"`
	AssigneeID    *string                 `json:"assignee_id,omitempty"`
	SLAViolated   bool                    `json:"sla_violated"`
	ViolationRisk float64                 `json:"violation_risk"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	ResolvedAt    *time.Time              `json:"resolved_at,omitempty"`
	Messages      []TicketMessageResponse `json:"messages,omitempty"`
}

// TicketMessageResponse response shape.
type TicketMessageResponse struct {
	ID         string                   `json:"id"`
	AuthorType domain.MessageAuthorType `json:"author_type"`
	AuthorID   *string                  `json:"author_id,omitempty"`
	Body       string                   `json:"body"`
	CreatedAt  time.Time                `json:"created_at"`
}
