package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AgentsHandler serves agent login, roster management and workload views.
type AgentsHandler struct {
	agents *service.AgentService
	auth   *service.AuthService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agentService *service.AgentService, authService *service.AuthService) *AgentsHandler {
	return &AgentsHandler{agents: agentService, auth: authService}
}

// Login POST /auth/agents/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, _, err := h.auth.LoginAgent(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}})
}

// Create POST /agents.
func (h *AgentsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.agents.CreateAgent(c.Context(), service.AgentCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agentResponse(agent)})
}

// Deactivate POST /agents/:id/deactivate.
func (h *AgentsHandler) Deactivate(c *fiber.Ctx) error {
	agent, err := h.agents.DeactivateAgent(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// Workload GET /agents/workload.
func (h *AgentsHandler) Workload(c *fiber.Ctx) error {
	workloads, err := h.agents.ListWorkloads(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.AgentWorkloadResponse, 0, len(workloads))
	for _, w := range workloads {
		items = append(items, dto.AgentWorkloadResponse{
			AgentID:            w.AgentID,
			Name:               w.Name,
			Active:             w.Active,
			OpenCount:          w.OpenCount,
			ClosedCount:        w.ClosedCount,
			AvgResolutionHours: w.AvgResolutionHours,
			SLAViolationCount:  w.SLAViolationCount,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func agentResponse(agent *domain.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:        agent.ID,
		Name:      agent.Name,
		Email:     agent.Email,
		Role:      agent.Role,
		Active:    agent.Active,
		CreatedAt: agent.CreatedAt,
	}
}
