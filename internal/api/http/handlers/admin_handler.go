package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AdminHandler exposes admin ticket views, assignment and reporting.
type AdminHandler struct {
	tickets *service.TicketService
	stats   *service.StatsService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(ticketService *service.TicketService, statsService *service.StatsService) *AdminHandler {
	return &AdminHandler{tickets: ticketService, stats: statsService}
}

// ListAllTickets GET /admin/tickets.
func (h *AdminHandler) ListAllTickets(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	tickets, err := h.tickets.ListAll(c.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListUnassigned GET /admin/tickets/unassigned.
func (h *AdminHandler) ListUnassigned(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListUnassigned(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummaries(tickets)})
}

// ListAgents GET /admin/agents.
func (h *AdminHandler) ListAgents(c *fiber.Ctx) error {
	agents, err := h.tickets.ListAgents(c.Context())
	if err != nil {
		return err
	}
	summaries := make([]dto.AgentSummary, 0, len(agents))
	for i := range agents {
		summaries = append(summaries, dto.AgentSummary{
			ID:    agents[i].ID,
			Name:  agents[i].FullName(),
			Email: agents[i].Email,
		})
	}
	return c.JSON(fiber.Map{"data": summaries})
}

// AssignTicket POST /admin/tickets/:id/assign.
func (h *AdminHandler) AssignTicket(c *fiber.Ctx) error {
	principal, err := principalUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil || req.AgentID == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, err := h.tickets.AssignTicket(c.Context(), principal, c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// OverdueStats GET /admin/stats/overdue.
//
// The response body is the bare snapshot object; its field names are consumed
// as-is by the dashboard.
func (h *AdminHandler) OverdueStats(c *fiber.Ctx) error {
	stats, err := h.stats.OverdueStats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// DashboardMetrics GET /admin/stats/dashboard.
func (h *AdminHandler) DashboardMetrics(c *fiber.Ctx) error {
	metrics, err := h.stats.DashboardMetrics(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": metrics})
}
