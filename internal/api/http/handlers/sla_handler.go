package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/service"
)

// SLAHandler exposes an on-demand breach sweep alongside the periodic one.
type SLAHandler struct {
	service *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(slaService *service.SLAService) *SLAHandler {
	return &SLAHandler{service: slaService}
}

// RunSweep POST /admin/sla/sweep. Safe to trigger at any time; tickets
// already flagged or closed are skipped.
func (h *SLAHandler) RunSweep(c *fiber.Ctx) error {
	flagged, err := h.service.RunSweep(c.Context(), time.Now().UTC())
	if err != nil {
		return err
	}
	if flagged == nil {
		flagged = []string{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"flagged": flagged,
		"count":   len(flagged),
	}})
}
