package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AssignmentOutcome reports what auto-assignment did with a ticket.
type AssignmentOutcome struct {
	Assigned bool
	AgentID  string
	Reason   string
}

const (
	// ReasonAlreadyAssigned means the ticket had an assignee before we ran.
	ReasonAlreadyAssigned = "already_assigned"
	// ReasonNoActiveAgents means the pool was empty; the ticket stays
	// unassigned, which is an expected steady state rather than an error.
	ReasonNoActiveAgents = "no_active_agents"
)

// AssignmentService picks an assignee for tickets, minimizing load
// imbalance across active agents.
type AssignmentService struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAssignmentService creates the service.
func NewAssignmentService(logger *zap.Logger, metrics *observability.Metrics) *AssignmentService {
	return &AssignmentService{logger: logger, metrics: metrics}
}

// SelectAgent returns the active agent with the fewest currently open
// tickets. Ties break on agent ID ascending so identical inputs always
// produce identical output. Returns nil for an empty pool.
func (s *AssignmentService) SelectAgent(agents []domain.Agent, openCounts map[string]int) *domain.Agent {
	if len(agents) == 0 {
		return nil
	}
	candidates := make([]domain.Agent, len(agents))
	copy(candidates, agents)
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := openCounts[candidates[i].ID], openCounts[candidates[j].ID]
		if ci != cj {
			return ci < cj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0]
}

// AutoAssign assigns an unassigned ticket to the least-loaded active
// agent. The write is conditioned on the assignee still being null; when a
// concurrent writer wins the race the selection is retried once against a
// fresh workload snapshot before giving up with a conflict.
//
// The ticket's assignee field is the only state this engine mutates; the
// caller owes the assignment notification.
func (s *AssignmentService) AutoAssign(ctx context.Context, store repository.Store, ticket *domain.Ticket) (AssignmentOutcome, error) {
	if ticket.AssigneeID != nil {
		return AssignmentOutcome{Assigned: false, Reason: ReasonAlreadyAssigned}, nil
	}

	retried := false
	for {
		active := true
		agents, err := store.Agents.List(ctx, repository.AgentFilter{Active: &active})
		if err != nil {
			return AssignmentOutcome{}, apperrors.MapError(err)
		}
		if len(agents) == 0 {
			s.logger.Info("no active agents; ticket stays unassigned",
				zap.String("ticket", ticket.DisplayKey))
			return AssignmentOutcome{Assigned: false, Reason: ReasonNoActiveAgents}, nil
		}

		counts, err := store.Tickets.CountOpenByAgent(ctx)
		if err != nil {
			return AssignmentOutcome{}, apperrors.MapError(err)
		}

		assignee := s.SelectAgent(agents, counts)
		ok, err := store.Tickets.AssignIfUnassigned(ctx, ticket.ID, assignee.ID)
		if err != nil {
			return AssignmentOutcome{}, apperrors.MapError(err)
		}
		if ok {
			ticket.AssigneeID = &assignee.ID
			s.metrics.RecordAssignment(retried)
			return AssignmentOutcome{Assigned: true, AgentID: assignee.ID}, nil
		}

		// Lost the compare-and-set. Re-read: a concurrent writer may have
		// assigned this very ticket, which is a no-op for us.
		fresh, err := store.Tickets.GetByID(ctx, ticket.ID)
		if err != nil {
			return AssignmentOutcome{}, apperrors.MapError(err)
		}
		if fresh.AssigneeID != nil {
			*ticket = *fresh
			return AssignmentOutcome{Assigned: false, Reason: ReasonAlreadyAssigned}, nil
		}
		if retried {
			return AssignmentOutcome{}, apperrors.NewConflict("assignment raced and retry failed",
				map[string]any{"ticket_id": ticket.ID})
		}
		retried = true
	}
}
