package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// AlertResponse response shape.
type AlertResponse struct {
	ID        string           `json:"id"`
	TicketID  string           `json:"ticket_id"`
	Type      domain.AlertType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// MarkAllReadResponse reports how many alerts were flipped.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
