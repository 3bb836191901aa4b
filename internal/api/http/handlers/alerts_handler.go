package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AlertsHandler serves per-recipient alert inboxes.
type AlertsHandler struct {
	service *service.AlertService
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(alertService *service.AlertService) *AlertsHandler {
	return &AlertsHandler{service: alertService}
}

// List GET /alerts.
func (h *AlertsHandler) List(c *fiber.Ctx) error {
	recipient, err := recipientFromContext(c)
	if err != nil {
		return err
	}
	filter := repository.AlertFilter{
		UnreadOnly: c.QueryBool("unread_only"),
		Limit:      parseInt(c.Query("limit"), 50),
		Offset:     parseInt(c.Query("offset"), 0),
	}
	alerts, err := h.service.ListAlerts(c.Context(), recipient, filter)
	if err != nil {
		return err
	}
	items := make([]dto.AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		items = append(items, alertResponse(alert))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UnreadCount GET /alerts/unread-count.
func (h *AlertsHandler) UnreadCount(c *fiber.Ctx) error {
	recipient, err := recipientFromContext(c)
	if err != nil {
		return err
	}
	count, err := h.service.UnreadCount(c.Context(), recipient)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /alerts/:id/read.
func (h *AlertsHandler) MarkRead(c *fiber.Ctx) error {
	recipient, err := recipientFromContext(c)
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.Context(), recipient, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"read": true}})
}

// MarkAllRead POST /alerts/read-all.
func (h *AlertsHandler) MarkAllRead(c *fiber.Ctx) error {
	recipient, err := recipientFromContext(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllRead(c.Context(), recipient)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkAllReadResponse{Updated: updated}})
}

func recipientFromContext(c *fiber.Ctx) (service.Recipient, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Recipient{}, apperrors.NewUnauthorized("authentication required")
	}
	switch {
	case principal.User != nil:
		return service.UserRecipient(principal.User.ID), nil
	case principal.Agent != nil:
		return service.AgentRecipient(principal.Agent.ID), nil
	}
	return service.Recipient{}, apperrors.NewUnauthorized("authentication required")
}

func alertResponse(alert domain.Alert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:        alert.ID,
		TicketID:  alert.TicketID,
		Type:      alert.Type,
		Title:     alert.Title,
		Message:   alert.Message,
		Read:      alert.Read,
		CreatedAt: alert.CreatedAt,
	}
}
