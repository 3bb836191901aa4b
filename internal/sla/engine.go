package sla

import (
	"errors"
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// ErrMissingCreatedAt signals a ticket without a creation timestamp. SLA
// arithmetic is undefined for such a record and callers must treat this as
// a hard error.
var ErrMissingCreatedAt = errors.New("sla: ticket has no creation timestamp")

// HoursOpen returns how long the ticket has been open, in hours. Closed
// tickets report their frozen span (resolution minus creation); open
// tickets report the span up to now. The result is clamped at zero when
// now precedes the creation time.
func HoursOpen(ticket *domain.Ticket, now time.Time) (float64, error) {
	if ticket.CreatedAt.IsZero() {
		return 0, ErrMissingCreatedAt
	}
	end := now
	if ticket.Status.Closed() && ticket.ResolvedAt != nil {
		end = *ticket.ResolvedAt
	}
	hours := end.Sub(ticket.CreatedAt).Hours()
	if hours < 0 {
		return 0, nil
	}
	return hours, nil
}

// ViolationRisk returns a saturating indicator in [0, 1] of how much of
// the SLA budget the ticket has consumed. Closed tickets always report
// zero: risk describes pending exposure, not historical overrun.
func ViolationRisk(ticket *domain.Ticket, now time.Time) (float64, error) {
	if ticket.Status.Closed() {
		return 0, nil
	}
	hours, err := HoursOpen(ticket, now)
	if err != nil {
		return 0, err
	}
	risk := hours / TargetHours(ticket.Priority)
	if risk > 1 {
		return 1, nil
	}
	if risk < 0 {
		return 0, nil
	}
	return risk, nil
}

// Violated reports whether the ticket has breached its SLA budget. For
// open tickets this is a saturated risk; for closed tickets it compares
// the frozen open span against the target. The persisted flag is sticky:
// callers only ever use this to move the flag from false to true.
func Violated(ticket *domain.Ticket, now time.Time) (bool, error) {
	hours, err := HoursOpen(ticket, now)
	if err != nil {
		return false, err
	}
	if ticket.Status.Closed() {
		return hours > TargetHours(ticket.Priority), nil
	}
	return hours >= TargetHours(ticket.Priority), nil
}
