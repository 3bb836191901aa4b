package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func newTicketService(state *fakeState) *TicketService {
	return NewTicketService(TicketDependencies{
		Store:      state.store(),
		TxRunner:   &fakeTxRunner{s: state},
		Assignment: newAssignmentService(),
		Notifier:   NewNotificationService(zap.NewNop()),
		Logger:     zap.NewNop(),
	})
}

func domainErrCode(t *testing.T, err error) string {
	t.Helper()
	domainErr := apperrors.ToDomainError(err)
	require.NotNil(t, domainErr)
	return domainErr.Code
}

func TestCreateTicket(t *testing.T) {
	ctx := context.Background()

	t.Run("creates assigns and notifies", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		state.addAgent("agent-a", domain.AgentRoleAgent, true)
		state.addAgent("agent-b", domain.AgentRoleAgent, true)
		svc := newTicketService(state)

		ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title:       "VPN down",
			Description: "cannot connect since morning",
			Priority:    domain.TicketPriorityCritical,
		})
		require.NoError(t, err)

		assert.Equal(t, "TKT-0001", ticket.DisplayKey)
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
		require.NotNil(t, ticket.AssigneeID)
		assert.Equal(t, "agent-a", *ticket.AssigneeID)

		// Broadcast to the pool plus a personal assignment alert.
		assigneeAlerts := state.alertsFor(AgentRecipient("agent-a"))
		require.Len(t, assigneeAlerts, 2)
		otherAlerts := state.alertsFor(AgentRecipient("agent-b"))
		require.Len(t, otherAlerts, 1)
		assert.Equal(t, domain.AlertTicketCreated, otherAlerts[0].Type)

		// The creator caused the event and gets nothing.
		assert.Empty(t, state.alertsFor(UserRecipient("user-1")))

		// Assignment shows up in the audit trail.
		require.Len(t, state.activities, 1)
		assert.Equal(t, domain.ChangeTypeAssignee, state.activities[0].ChangeType)
	})

	t.Run("no active agents leaves ticket new and unassigned", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		svc := newTicketService(state)

		ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title:       "slow laptop",
			Description: "takes minutes to boot",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusNew, ticket.Status)
		assert.Nil(t, ticket.AssigneeID)
		assert.Empty(t, state.alerts)
	})

	t.Run("priority defaults to medium", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		svc := newTicketService(state)

		ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title:       "request",
			Description: "need a second monitor",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	})

	t.Run("display keys are sequential", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		svc := newTicketService(state)

		first, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{Title: "a", Description: "b"})
		require.NoError(t, err)
		second, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{Title: "c", Description: "d"})
		require.NoError(t, err)
		assert.Equal(t, "TKT-0001", first.DisplayKey)
		assert.Equal(t, "TKT-0002", second.DisplayKey)
	})

	t.Run("rejects blank title", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		svc := newTicketService(state)

		_, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{Title: "  ", Description: "x"})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		state := newFakeState()
		state.addUser("user-1")
		svc := newTicketService(state)

		_, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title: "x", Description: "y", Priority: domain.TicketPriority("URGENT"),
		})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})

	t.Run("rejects unknown creator", func(t *testing.T) {
		state := newFakeState()
		svc := newTicketService(state)

		_, err := svc.CreateTicket(ctx, "ghost", TicketCreateInput{Title: "x", Description: "y"})
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
	})
}

func TestUpdateTicket(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fakeState, *TicketService, *domain.Ticket) {
		t.Helper()
		state := newFakeState()
		state.addUser("user-1")
		state.addAgent("agent-a", domain.AgentRoleAgent, true)
		state.addAgent("agent-sup", domain.AgentRoleSupervisor, true)
		svc := newTicketService(state)
		ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title: "mail bounce", Description: "mails to partners bounce",
			Priority: domain.TicketPriorityHigh,
		})
		require.NoError(t, err)
		state.alerts = nil
		state.activities = nil
		return state, svc, ticket
	}

	t.Run("resolving sets the resolution timestamp", func(t *testing.T) {
		state, svc, ticket := setup(t)
		status := domain.TicketStatusResolved
		actor := AgentRecipient("agent-a")

		updated, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, updated.Status)
		require.NotNil(t, updated.ResolvedAt)

		// Creator is notified, the acting assignee is not.
		creatorAlerts := state.alertsFor(UserRecipient("user-1"))
		require.Len(t, creatorAlerts, 1)
		assert.Equal(t, domain.AlertStatusChange, creatorAlerts[0].Type)
		assert.Empty(t, state.alertsFor(actor))
	})

	t.Run("reopening clears the resolution timestamp", func(t *testing.T) {
		_, svc, ticket := setup(t)
		resolved := domain.TicketStatusResolved
		actor := AgentRecipient("agent-a")
		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &resolved})
		require.NoError(t, err)

		reopened := domain.TicketStatusOpen
		updated, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &reopened})
		require.NoError(t, err)
		assert.Nil(t, updated.ResolvedAt)
	})

	t.Run("closed is terminal", func(t *testing.T) {
		_, svc, ticket := setup(t)
		closed := domain.TicketStatusClosed
		actor := AgentRecipient("agent-a")
		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &closed})
		require.NoError(t, err)

		reopen := domain.TicketStatusOpen
		_, err = svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &reopen})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})

	t.Run("each changed dimension notifies once", func(t *testing.T) {
		state, svc, ticket := setup(t)
		status := domain.TicketStatusPending
		priority := domain.TicketPriorityCritical
		actor := AgentRecipient("agent-a")

		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{
			Status: &status, Priority: &priority,
		})
		require.NoError(t, err)

		creatorAlerts := state.alertsFor(UserRecipient("user-1"))
		require.Len(t, creatorAlerts, 2)
		types := []domain.AlertType{creatorAlerts[0].Type, creatorAlerts[1].Type}
		assert.Contains(t, types, domain.AlertStatusChange)
		assert.Contains(t, types, domain.AlertPriorityChange)
		assert.Len(t, state.activities, 2)
	})

	t.Run("unchanged values produce no notifications", func(t *testing.T) {
		state, svc, ticket := setup(t)
		samePriority := ticket.Priority
		actor := AgentRecipient("agent-a")

		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Priority: &samePriority})
		require.NoError(t, err)
		assert.Empty(t, state.alerts)
		assert.Empty(t, state.activities)
	})

	t.Run("clearing the assignee escalates to supervisors", func(t *testing.T) {
		state, svc, ticket := setup(t)
		actor := AgentRecipient("agent-a")

		updated, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{ClearAssignee: true})
		require.NoError(t, err)
		assert.Nil(t, updated.AssigneeID)

		supAlerts := state.alertsFor(AgentRecipient("agent-sup"))
		require.Len(t, supAlerts, 1)
		assert.Equal(t, domain.AlertUnassigned, supAlerts[0].Type)
	})

	t.Run("reassignment notifies the new assignee", func(t *testing.T) {
		state, svc, ticket := setup(t)
		newAssignee := "agent-sup"
		actor := AgentRecipient("agent-a")

		updated, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{AssigneeID: &newAssignee})
		require.NoError(t, err)
		require.NotNil(t, updated.AssigneeID)
		assert.Equal(t, "agent-sup", *updated.AssigneeID)

		supAlerts := state.alertsFor(AgentRecipient("agent-sup"))
		require.Len(t, supAlerts, 1)
		assert.Equal(t, domain.AlertAssignment, supAlerts[0].Type)
	})

	t.Run("cannot assign to an inactive agent", func(t *testing.T) {
		state, svc, ticket := setup(t)
		state.agents["agent-sup"].Active = false
		newAssignee := "agent-sup"
		actor := AgentRecipient("agent-a")

		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{AssigneeID: &newAssignee})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})

	t.Run("failed fan-out rolls back the whole update", func(t *testing.T) {
		state, svc, ticket := setup(t)
		status := domain.TicketStatusPending
		actor := AgentRecipient("agent-sup")

		// First alert insert succeeds, the second fails mid fan-out.
		inserts := 0
		state.alertCreateErr = func(*domain.Alert) error {
			inserts++
			if inserts == 2 {
				return errors.New("alert insert failed")
			}
			return nil
		}

		_, err := svc.UpdateTicket(ctx, actor, ticket.DisplayKey, TicketUpdateInput{Status: &status})
		require.Error(t, err)
		require.Equal(t, 2, inserts)

		// Neither the partial fan-out nor the status change survives.
		assert.Empty(t, state.alerts)
		assert.Empty(t, state.activities)
		assert.Equal(t, domain.TicketStatusOpen, state.tickets[ticket.ID].Status)
	})

	t.Run("unknown ticket yields not found", func(t *testing.T) {
		_, svc, _ := setup(t)
		status := domain.TicketStatusClosed
		actor := AgentRecipient("agent-a")

		_, err := svc.UpdateTicket(ctx, actor, "TKT-9999", TicketUpdateInput{Status: &status})
		require.Error(t, err)
		assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
	})
}

func TestAddMessage(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fakeState, *TicketService, *domain.Ticket) {
		t.Helper()
		state := newFakeState()
		state.addUser("user-1")
		state.addUser("user-2")
		state.addAgent("agent-a", domain.AgentRoleAgent, true)
		svc := newTicketService(state)
		ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
			Title: "question", Description: "how do I reset my password",
		})
		require.NoError(t, err)
		state.alerts = nil
		return state, svc, ticket
	}

	t.Run("agent reply notifies the creator only", func(t *testing.T) {
		state, svc, ticket := setup(t)
		author := AgentRecipient("agent-a")

		msg, err := svc.AddMessage(ctx, author, ticket.DisplayKey, "try the portal")
		require.NoError(t, err)
		assert.Equal(t, domain.AuthorTypeAgent, msg.AuthorType)

		creatorAlerts := state.alertsFor(UserRecipient("user-1"))
		require.Len(t, creatorAlerts, 1)
		assert.Equal(t, domain.AlertNewMessage, creatorAlerts[0].Type)
		assert.Empty(t, state.alertsFor(author))
	})

	t.Run("other users cannot post to the thread", func(t *testing.T) {
		_, svc, ticket := setup(t)
		_, err := svc.AddMessage(ctx, UserRecipient("user-2"), ticket.DisplayKey, "me too")
		require.Error(t, err)
		assert.Equal(t, "FORBIDDEN", domainErrCode(t, err))
	})

	t.Run("blank body rejected", func(t *testing.T) {
		_, svc, ticket := setup(t)
		_, err := svc.AddMessage(ctx, UserRecipient("user-1"), ticket.DisplayKey, "   ")
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})
}

func TestDeleteTicket(t *testing.T) {
	ctx := context.Background()
	state := newFakeState()
	state.addUser("user-1")
	state.addAgent("agent-a", domain.AgentRoleAgent, true)
	svc := newTicketService(state)

	ticket, err := svc.CreateTicket(ctx, "user-1", TicketCreateInput{
		Title: "obsolete", Description: "duplicate of another ticket",
	})
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, UserRecipient("user-1"), ticket.DisplayKey, "please close")
	require.NoError(t, err)
	require.NotEmpty(t, state.alerts)
	require.NotEmpty(t, state.messages)

	deleteErr := svc.DeleteTicket(ctx, ticket.DisplayKey)
	require.True(t, deleteErr == nil, "expected a nil error interface, got %T: %v", deleteErr, deleteErr)

	assert.Empty(t, state.tickets)
	assert.Empty(t, state.messages)
	assert.Empty(t, state.activities)
	assert.Empty(t, state.alerts)

	err = svc.DeleteTicket(ctx, ticket.DisplayKey)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
}
