package domain

import "time"

// AlertType enumerates the ticket events an alert can describe.
type AlertType string

const (
	AlertTicketCreated  AlertType = "ticket_created"
	AlertAssignment     AlertType = "assignment"
	AlertStatusChange   AlertType = "status_change"
	AlertPriorityChange AlertType = "priority_change"
	AlertSLAViolation   AlertType = "sla_violation"
	AlertNewMessage     AlertType = "new_message"
	AlertUnassigned     AlertType = "unassigned"
)

// Alert is a durable notification record delivered to exactly one
// recipient about exactly one ticket event. The read flag moves
// false -> true and never back.
type Alert struct {
	ID            string
	RecipientType SubjectType
	RecipientID   string
	TicketID      string
	Type          AlertType
	Title         string
	Message       string
	Read          bool
	CreatedAt     time.Time
}
