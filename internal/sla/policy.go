package sla

import "github.com/spec-kit/servicedesk/internal/domain"

// DefaultTargetHours is the fallback applied when a ticket carries an
// unknown priority. Defaulting keeps the sweep resilient to bad data.
const DefaultTargetHours = 24.0

// targetHoursByPriority is the single source of truth for SLA time budgets.
// Reporting and the sweep both consult this table.
var targetHoursByPriority = map[domain.TicketPriority]float64{
	domain.TicketPriorityCritical: 4,
	domain.TicketPriorityHigh:     8,
	domain.TicketPriorityMedium:   24,
	domain.TicketPriorityLow:      72,
}

// TargetHours returns the SLA time budget for a priority. Unknown
// priorities resolve to the Medium target rather than failing.
func TargetHours(priority domain.TicketPriority) float64 {
	if hours, ok := targetHoursByPriority[priority]; ok {
		return hours
	}
	return DefaultTargetHours
}

// KnownPriority reports whether the priority has an explicit policy entry.
// Callers use this to log configuration gaps without treating them as errors.
func KnownPriority(priority domain.TicketPriority) bool {
	_, ok := targetHoursByPriority[priority]
	return ok
}
