package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// Recipient identifies one member of an alert audience.
type Recipient struct {
	Type domain.SubjectType
	ID   string
}

// UserRecipient builds an end-user recipient.
func UserRecipient(id string) Recipient {
	return Recipient{Type: domain.SubjectTypeUser, ID: id}
}

// AgentRecipient builds an agent recipient.
func AgentRecipient(id string) Recipient {
	return Recipient{Type: domain.SubjectTypeAgent, ID: id}
}

// NotificationService derives the audience for a ticket event and
// materializes one Alert per recipient. It writes through the store the
// caller passes in, so alert fan-out shares the transaction of the ticket
// mutation that triggered it.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	return &NotificationService{logger: logger}
}

// FanOut creates alerts for the event on the given ticket. The actor that
// caused the change is never part of the audience. An empty audience
// produces zero alerts and succeeds.
func (n *NotificationService) FanOut(ctx context.Context, store repository.Store, ticket *domain.Ticket, alertType domain.AlertType, performedBy *Recipient) ([]domain.Alert, error) {
	audience, err := n.audience(ctx, store, ticket, alertType)
	if err != nil {
		return nil, err
	}

	recipients := make([]Recipient, 0, len(audience))
	seen := make(map[Recipient]struct{}, len(audience))
	for _, recipient := range audience {
		if performedBy != nil && recipient == *performedBy {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		recipients = append(recipients, recipient)
	}

	if len(recipients) == 0 {
		n.logger.Debug("no alert recipients",
			zap.String("ticket", ticket.DisplayKey),
			zap.String("alert_type", string(alertType)))
		return nil, nil
	}

	title, message := alertContent(ticket, alertType)
	created := make([]domain.Alert, 0, len(recipients))
	for _, recipient := range recipients {
		alert := domain.Alert{
			RecipientType: recipient.Type,
			RecipientID:   recipient.ID,
			TicketID:      ticket.ID,
			Type:          alertType,
			Title:         title,
			Message:       message,
		}
		if err := store.Alerts.Create(ctx, &alert); err != nil {
			return nil, err
		}
		created = append(created, alert)
	}
	return created, nil
}

// audience returns the candidate recipient set before actor exclusion.
func (n *NotificationService) audience(ctx context.Context, store repository.Store, ticket *domain.Ticket, alertType domain.AlertType) ([]Recipient, error) {
	switch alertType {
	case domain.AlertTicketCreated:
		// Broadcast to the technical pool; no assignee may exist yet.
		return n.activeAgents(ctx, store, nil)
	case domain.AlertAssignment:
		if ticket.AssigneeID == nil {
			return nil, nil
		}
		return []Recipient{AgentRecipient(*ticket.AssigneeID)}, nil
	case domain.AlertSLAViolation:
		// Escalation: broader audience than ordinary updates.
		var audience []Recipient
		if ticket.AssigneeID != nil {
			audience = append(audience, AgentRecipient(*ticket.AssigneeID))
		}
		supervisors, err := n.supervisors(ctx, store)
		if err != nil {
			return nil, err
		}
		return append(audience, supervisors...), nil
	case domain.AlertUnassigned:
		return n.supervisors(ctx, store)
	default:
		// status_change, priority_change, new_message: creator plus the
		// current assignee when present.
		audience := []Recipient{}
		if ticket.CreatorID != "" {
			audience = append(audience, UserRecipient(ticket.CreatorID))
		}
		if ticket.AssigneeID != nil {
			audience = append(audience, AgentRecipient(*ticket.AssigneeID))
		}
		return audience, nil
	}
}

func (n *NotificationService) activeAgents(ctx context.Context, store repository.Store, role *domain.AgentRole) ([]Recipient, error) {
	active := true
	agents, err := store.Agents.List(ctx, repository.AgentFilter{Role: role, Active: &active})
	if err != nil {
		return nil, err
	}
	recipients := make([]Recipient, 0, len(agents))
	for _, agent := range agents {
		recipients = append(recipients, AgentRecipient(agent.ID))
	}
	return recipients, nil
}

func (n *NotificationService) supervisors(ctx context.Context, store repository.Store) ([]Recipient, error) {
	role := domain.AgentRoleSupervisor
	return n.activeAgents(ctx, store, &role)
}

func alertContent(ticket *domain.Ticket, alertType domain.AlertType) (title, message string) {
	switch alertType {
	case domain.AlertTicketCreated:
		return fmt.Sprintf("New ticket %s", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s (%s) was created: %s", ticket.DisplayKey, ticket.Priority, ticket.Title)
	case domain.AlertAssignment:
		return fmt.Sprintf("Ticket %s assigned to you", ticket.DisplayKey),
			fmt.Sprintf("You are now the assignee of ticket %s: %s", ticket.DisplayKey, ticket.Title)
	case domain.AlertStatusChange:
		return fmt.Sprintf("Ticket %s status changed", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s moved to status %s", ticket.DisplayKey, ticket.Status)
	case domain.AlertPriorityChange:
		return fmt.Sprintf("Ticket %s priority changed", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s is now priority %s", ticket.DisplayKey, ticket.Priority)
	case domain.AlertSLAViolation:
		return fmt.Sprintf("SLA breached on ticket %s", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s (%s) exceeded its SLA time budget", ticket.DisplayKey, ticket.Priority)
	case domain.AlertNewMessage:
		return fmt.Sprintf("New message on ticket %s", ticket.DisplayKey),
			fmt.Sprintf("A new message was posted on ticket %s", ticket.DisplayKey)
	case domain.AlertUnassigned:
		return fmt.Sprintf("Ticket %s unassigned", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s no longer has an assignee", ticket.DisplayKey)
	default:
		return fmt.Sprintf("Ticket %s updated", ticket.DisplayKey),
			fmt.Sprintf("Ticket %s was updated", ticket.DisplayKey)
	}
}
