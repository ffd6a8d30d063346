package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AgentHandler exposes the agent work queue and status updates.
type AgentHandler struct {
	tickets *service.TicketService
}

// NewAgentHandler constructs handler.
func NewAgentHandler(ticketService *service.TicketService) *AgentHandler {
	return &AgentHandler{tickets: ticketService}
}

// ListQueue GET /agent/tickets.
func (h *AgentHandler) ListQueue(c *fiber.Ctx) error {
	principal, err := principalUser(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListAgentQueue(c.Context(), principal.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// UpdateStatus PATCH /agent/tickets/:id/status.
func (h *AgentHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.Context(), principal, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}
