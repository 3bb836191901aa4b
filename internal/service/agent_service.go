package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AgentService manages the agent roster and workload reporting.
type AgentService struct {
	store      repository.Store
	bcryptCost int
	logger     *zap.Logger
}

// AgentCreateInput describes the agent creation payload.
type AgentCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.AgentRole
}

// NewAgentService constructs the service.
func NewAgentService(store repository.Store, bcryptCost int, logger *zap.Logger) *AgentService {
	return &AgentService{store: store, bcryptCost: bcryptCost, logger: logger}
}

// CreateAgent registers a new active agent.
func (s *AgentService) CreateAgent(ctx context.Context, input AgentCreateInput) (*domain.Agent, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email, password required", nil)
	}
	role := input.Role
	if role == "" {
		role = domain.AgentRoleAgent
	}
	if role != domain.AgentRoleAgent && role != domain.AgentRoleSupervisor {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	agent := &domain.Agent{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.store.Agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent created", zap.String("agent_id", agent.ID), zap.String("role", string(role)))
	return agent, nil
}

// DeactivateAgent removes an agent from future assignment selection.
// Tickets already assigned to the agent are left untouched.
func (s *AgentService) DeactivateAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.store.Agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.Active {
		return agent, nil
	}
	agent.Active = false
	if err := s.store.Agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent deactivated", zap.String("agent_id", agent.ID))
	return agent, nil
}

// ListWorkloads returns the derived per-agent aggregates for dashboards.
// Purely a read; no side effects.
func (s *AgentService) ListWorkloads(ctx context.Context) ([]domain.AgentWorkload, error) {
	workloads, err := s.store.Agents.ListWorkloads(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return workloads, nil
}
