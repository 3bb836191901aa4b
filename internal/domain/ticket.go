package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "NEW"
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusResolved TicketStatus = "RESOLVED"
	TicketStatusClosed   TicketStatus = "CLOSED"
)

// Closed reports whether the status is terminal. SLA tracking freezes once
// a ticket reaches a closed state.
func (s TicketStatus) Closed() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Valid reports whether the status is a known value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityCritical TicketPriority = "CRITICAL"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityLow      TicketPriority = "LOW"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityCritical, TicketPriorityHigh, TicketPriorityMedium, TicketPriorityLow:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// DisplayKey is the human-facing identifier (TKT-0042); ID is the storage
// key and never leaves the service as the primary handle. ResolvedAt is set
// exactly when the status enters a closed state. SLAViolated is sticky: it
// is only ever set while the ticket is open and never cleared afterwards.
type Ticket struct {
	ID          string
	DisplayKey  string
	CreatorID   string
	AssigneeID  *string
	Title       string
	Description string
	Category    string
	Status      TicketStatus
	Priority    TicketPriority
	SLAViolated bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}
