package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
)

const testBcryptCost = 4

func TestCreateAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to agent role and active", func(t *testing.T) {
		state := newFakeState()
		svc := NewAgentService(state.store(), testBcryptCost, zap.NewNop())

		agent, err := svc.CreateAgent(ctx, AgentCreateInput{
			Name: "Dana", Email: "Dana@Example.com", Password: "hunter2",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.AgentRoleAgent, agent.Role)
		assert.True(t, agent.Active)
		assert.Equal(t, "dana@example.com", agent.Email)
		assert.NotEqual(t, "hunter2", agent.PasswordHash)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		state := newFakeState()
		svc := NewAgentService(state.store(), testBcryptCost, zap.NewNop())

		_, err := svc.CreateAgent(ctx, AgentCreateInput{
			Name: "Dana", Email: "dana@example.com", Password: "hunter2",
			Role: domain.AgentRole("MANAGER"),
		})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		state := newFakeState()
		svc := NewAgentService(state.store(), testBcryptCost, zap.NewNop())

		_, err := svc.CreateAgent(ctx, AgentCreateInput{Name: "Dana"})
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", domainErrCode(t, err))
	})
}

func TestDeactivateAgent(t *testing.T) {
	ctx := context.Background()
	state := newFakeState()
	state.addAgent("agent-a", domain.AgentRoleAgent, true)
	assignee := "agent-a"
	state.tickets["tkt-1"] = &domain.Ticket{
		ID: "tkt-1", DisplayKey: "TKT-0001", Status: domain.TicketStatusOpen, AssigneeID: &assignee,
	}
	svc := NewAgentService(state.store(), testBcryptCost, zap.NewNop())

	agent, err := svc.DeactivateAgent(ctx, "agent-a")
	require.NoError(t, err)
	assert.False(t, agent.Active)

	// Existing assignments survive deactivation.
	require.NotNil(t, state.tickets["tkt-1"].AssigneeID)
	assert.Equal(t, "agent-a", *state.tickets["tkt-1"].AssigneeID)

	// Deactivating twice is a no-op.
	agent, err = svc.DeactivateAgent(ctx, "agent-a")
	require.NoError(t, err)
	assert.False(t, agent.Active)

	_, err = svc.DeactivateAgent(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", domainErrCode(t, err))
}

func TestListWorkloads(t *testing.T) {
	ctx := context.Background()
	state := newFakeState()
	state.addAgent("agent-a", domain.AgentRoleAgent, true)
	state.addAgent("agent-b", domain.AgentRoleAgent, true)

	a := "agent-a"
	resolved := state.now
	state.tickets["tkt-1"] = &domain.Ticket{ID: "tkt-1", Status: domain.TicketStatusOpen, AssigneeID: &a}
	state.tickets["tkt-2"] = &domain.Ticket{ID: "tkt-2", Status: domain.TicketStatusOpen, AssigneeID: &a, SLAViolated: true}
	state.tickets["tkt-3"] = &domain.Ticket{ID: "tkt-3", Status: domain.TicketStatusClosed, AssigneeID: &a, ResolvedAt: &resolved}

	svc := NewAgentService(state.store(), testBcryptCost, zap.NewNop())
	workloads, err := svc.ListWorkloads(ctx)
	require.NoError(t, err)
	require.Len(t, workloads, 2)

	assert.Equal(t, "agent-a", workloads[0].AgentID)
	assert.Equal(t, 2, workloads[0].OpenCount)
	assert.Equal(t, 1, workloads[0].ClosedCount)
	assert.Equal(t, 1, workloads[0].SLAViolationCount)

	assert.Equal(t, "agent-b", workloads[1].AgentID)
	assert.Zero(t, workloads[1].OpenCount)
}
