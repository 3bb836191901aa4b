package domain

import "time"

// TicketChangeType captures what changed in an activity entry.
type TicketChangeType string

const (
	ChangeTypeStatus   TicketChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee TicketChangeType = "ASSIGNEE_CHANGE"
	ChangeTypePriority TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeSLA      TicketChangeType = "SLA_VIOLATION"
)

// TicketActivity is an immutable audit trail entry. Activity records are
// owned by their ticket and removed with it.
type TicketActivity struct {
	ID            string
	TicketID      string
	ChangedByType MessageAuthorType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
