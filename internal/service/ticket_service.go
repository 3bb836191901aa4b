package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows: creation with
// auto-assignment, per-dimension update detection, message threads and
// cascade deletion. Every mutation and its alert fan-out run in one
// transaction.
type TicketService struct {
	store      repository.Store
	tx         repository.TxRunner
	assignment *AssignmentService
	notifier   *NotificationService
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	TxRunner   repository.TxRunner
	Assignment *AssignmentService
	Notifier   *NotificationService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// TicketUpdateInput describes a partial ticket update. Nil fields are left
// untouched; ClearAssignee removes the current assignee.
type TicketUpdateInput struct {
	Status        *domain.TicketStatus
	Priority      *domain.TicketPriority
	Category      *string
	AssigneeID    *string
	ClearAssignee bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		tx:         deps.TxRunner,
		assignment: deps.Assignment,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket creates a ticket for a user, auto-assigns it and fans out
// the ticket_created broadcast, all in one transaction.
func (s *TicketService) CreateTicket(ctx context.Context, creatorID string, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	if _, err := s.store.Users.GetByID(ctx, creatorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": creatorID})
		}
		return nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		CreatorID:   creatorID,
		Title:       title,
		Description: description,
		Category:    strings.TrimSpace(input.Category),
		Status:      domain.TicketStatusNew,
		Priority:    priority,
	}

	creator := UserRecipient(creatorID)
	var outcome AssignmentOutcome
	err := s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
		if err := store.Tickets.Create(ctx, ticket); err != nil {
			return err
		}
		var err error
		outcome, err = s.assignment.AutoAssign(ctx, store, ticket)
		if err != nil {
			return err
		}
		if outcome.Assigned {
			ticket.Status = domain.TicketStatusOpen
			if err := store.Tickets.Update(ctx, ticket); err != nil {
				return err
			}
			if err := s.recordActivity(ctx, store, nil, ticket.ID, domain.ChangeTypeAssignee,
				map[string]any{"assignee_agent_id": nil},
				map[string]any{"assignee_agent_id": outcome.AgentID}); err != nil {
				return err
			}
		}
		if _, err := s.notifier.FanOut(ctx, store, ticket, domain.AlertTicketCreated, &creator); err != nil {
			return err
		}
		if outcome.Assigned {
			if _, err := s.notifier.FanOut(ctx, store, ticket, domain.AlertAssignment, &creator); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(creatorID),
		Payload: events.TicketCreatedPayload{
			DisplayKey: ticket.DisplayKey,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	if outcome.Assigned {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    userActor(creatorID),
			Payload:  events.TicketAssignedPayload{AssigneeAgentID: ticket.AssigneeID},
		})
	}
	return ticket, nil
}

// UpdateTicket applies a partial update, detecting which of status,
// priority and assignee changed, and fans out one notification per
// changed dimension with the acting party excluded.
func (s *TicketService) UpdateTicket(ctx context.Context, actor Recipient, displayKey string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}
	if input.AssigneeID != nil && input.ClearAssignee {
		return nil, apperrors.NewValidationError("cannot set and clear assignee at once", nil)
	}

	var ticket *domain.Ticket
	var changes []pendingChange
	err := s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		ticket, err = store.Tickets.GetByDisplayKey(ctx, displayKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"display_key": displayKey})
			}
			return err
		}
		changes, err = s.applyUpdate(ctx, store, ticket, input)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		if err := store.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		for _, change := range changes {
			if err := s.recordActivity(ctx, store, &actor, ticket.ID, change.changeType, change.oldValue, change.newValue); err != nil {
				return err
			}
			if _, err := s.notifier.FanOut(ctx, store, ticket, change.alertType, &actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	for _, change := range changes {
		s.publishEvent(ctx, events.Event{
			Type:     change.eventType,
			TicketID: ticket.ID,
			Actor:    actorFor(actor),
			Payload:  change.payload,
		})
	}
	return ticket, nil
}

// pendingChange captures one changed dimension of a ticket update.
type pendingChange struct {
	changeType domain.TicketChangeType
	alertType  domain.AlertType
	eventType  events.EventType
	oldValue   map[string]any
	newValue   map[string]any
	payload    any
}

func (s *TicketService) applyUpdate(ctx context.Context, store repository.Store, ticket *domain.Ticket, input TicketUpdateInput) ([]pendingChange, error) {
	var changes []pendingChange

	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}

	if input.Status != nil && *input.Status != ticket.Status {
		oldStatus := ticket.Status
		newStatus := *input.Status
		if !isValidTransition(oldStatus, newStatus) {
			return nil, apperrors.NewValidationError("invalid status transition",
				map[string]any{"from": oldStatus, "to": newStatus})
		}
		if newStatus.Closed() && !oldStatus.Closed() {
			now := time.Now().UTC()
			ticket.ResolvedAt = &now
		} else if !newStatus.Closed() {
			ticket.ResolvedAt = nil
		}
		ticket.Status = newStatus
		changes = append(changes, pendingChange{
			changeType: domain.ChangeTypeStatus,
			alertType:  domain.AlertStatusChange,
			eventType:  events.EventTicketStatusChanged,
			oldValue:   map[string]any{"status": oldStatus},
			newValue:   map[string]any{"status": newStatus},
			payload:    events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
		})
	}

	if input.Priority != nil && *input.Priority != ticket.Priority {
		oldPriority := ticket.Priority
		ticket.Priority = *input.Priority
		changes = append(changes, pendingChange{
			changeType: domain.ChangeTypePriority,
			alertType:  domain.AlertPriorityChange,
			eventType:  events.EventTicketPriorityChanged,
			oldValue:   map[string]any{"priority": oldPriority},
			newValue:   map[string]any{"priority": ticket.Priority},
			payload:    events.TicketPriorityChangedPayload{OldPriority: oldPriority, NewPriority: ticket.Priority},
		})
	}

	switch {
	case input.ClearAssignee && ticket.AssigneeID != nil:
		oldAssignee := *ticket.AssigneeID
		ticket.AssigneeID = nil
		changes = append(changes, pendingChange{
			changeType: domain.ChangeTypeAssignee,
			alertType:  domain.AlertUnassigned,
			eventType:  events.EventTicketUnassigned,
			oldValue:   map[string]any{"assignee_agent_id": oldAssignee},
			newValue:   map[string]any{"assignee_agent_id": nil},
			payload:    events.TicketAssignedPayload{AssigneeAgentID: nil},
		})
	case input.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *input.AssigneeID):
		agent, err := store.Agents.GetByID(ctx, *input.AssigneeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": *input.AssigneeID})
			}
			return nil, err
		}
		if !agent.Active {
			return nil, apperrors.NewValidationError("assignee inactive", map[string]any{"agent_id": agent.ID})
		}
		var oldAssignee any
		if ticket.AssigneeID != nil {
			oldAssignee = *ticket.AssigneeID
		}
		ticket.AssigneeID = &agent.ID
		if ticket.Status == domain.TicketStatusNew {
			ticket.Status = domain.TicketStatusOpen
		}
		changes = append(changes, pendingChange{
			changeType: domain.ChangeTypeAssignee,
			alertType:  domain.AlertAssignment,
			eventType:  events.EventTicketAssigned,
			oldValue:   map[string]any{"assignee_agent_id": oldAssignee},
			newValue:   map[string]any{"assignee_agent_id": agent.ID},
			payload:    events.TicketAssignedPayload{AssigneeAgentID: ticket.AssigneeID},
		})
	}

	return changes, nil
}

// AddMessage appends a message to a ticket and notifies the thread
// participants, excluding the sender.
func (s *TicketService) AddMessage(ctx context.Context, author Recipient, displayKey, body string) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}

	var msg *domain.TicketMessage
	var ticket *domain.Ticket
	err := s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
		var err error
		ticket, err = store.Tickets.GetByDisplayKey(ctx, displayKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"display_key": displayKey})
			}
			return err
		}
		if author.Type == domain.SubjectTypeUser && ticket.CreatorID != author.ID {
			return apperrors.NewForbidden("access denied")
		}
		authorID := author.ID
		msg = &domain.TicketMessage{
			TicketID:   ticket.ID,
			AuthorType: authorType(author),
			AuthorID:   &authorID,
			Body:       body,
		}
		if err := store.Messages.Create(ctx, msg); err != nil {
			return err
		}
		_, err = s.notifier.FanOut(ctx, store, ticket, domain.AlertNewMessage, &author)
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actorFor(author),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return msg, nil
}

// DeleteTicket removes a ticket and everything it owns: messages,
// activity records and alerts go in the same transaction.
func (s *TicketService) DeleteTicket(ctx context.Context, displayKey string) error {
	err := s.tx.InTx(ctx, func(ctx context.Context, store repository.Store) error {
		ticket, err := store.Tickets.GetByDisplayKey(ctx, displayKey)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("ticket", map[string]any{"display_key": displayKey})
			}
			return err
		}
		if err := store.Messages.DeleteByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if err := store.Activities.DeleteByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if err := store.Alerts.DeleteByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		return store.Tickets.Delete(ctx, ticket.ID)
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// GetTicket fetches a ticket with its message thread.
func (s *TicketService) GetTicket(ctx context.Context, displayKey string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.store.Tickets.GetByDisplayKey(ctx, displayKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"display_key": displayKey})
		}
		return nil, nil, apperrors.MapError(err)
	}
	msgs, err := s.store.Messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListActivity returns the audit trail for a ticket.
func (s *TicketService) ListActivity(ctx context.Context, displayKey string, limit, offset int) ([]domain.TicketActivity, error) {
	ticket, err := s.store.Tickets.GetByDisplayKey(ctx, displayKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"display_key": displayKey})
		}
		return nil, apperrors.MapError(err)
	}
	entries, err := s.store.Activities.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) recordActivity(ctx context.Context, store repository.Store, actor *Recipient, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	entry := &domain.TicketActivity{
		TicketID:      ticketID,
		ChangedByType: domain.AuthorTypeSystem,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if actor != nil {
		actorID := actor.ID
		entry.ChangedByType = authorType(*actor)
		entry.ChangedByID = &actorID
	}
	return store.Activities.Create(ctx, entry)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func authorType(r Recipient) domain.MessageAuthorType {
	if r.Type == domain.SubjectTypeAgent {
		return domain.AuthorTypeAgent
	}
	return domain.AuthorTypeUser
}

func userActor(userID string) *events.Actor {
	return &events.Actor{Type: domain.SubjectTypeUser, UserID: &userID}
}

func agentActor(agentID string) *events.Actor {
	return &events.Actor{Type: domain.SubjectTypeAgent, AgentID: &agentID}
}

func actorFor(r Recipient) *events.Actor {
	if r.Type == domain.SubjectTypeAgent {
		return agentActor(r.ID)
	}
	return userActor(r.ID)
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:      {domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusOpen:     {domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusPending:  {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved: {domain.TicketStatusClosed, domain.TicketStatusOpen},
	domain.TicketStatusClosed:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
