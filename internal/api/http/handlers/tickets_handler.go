package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shift-desk/internal/api/dto"
	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/listview"
	"github.com/spec-kit/shift-desk/internal/repository"
	"github.com/spec-kit/shift-desk/internal/service"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// statsFetchLimit caps how many rows the overview stats consider.
const statsFetchLimit = 1000

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// List GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Query:    c.Query("q"),
		Status:   domain.TicketStatus(c.Query("status")),
		CTI:      domain.Category(c.Query("cti")),
		Assignee: c.Query("assignee"),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), repository.DefaultTicketPageSize),
		SortBy:   c.Query("sort_by"),
		SortDir:  c.Query("sort_dir"),
	}
	tickets, total, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.TicketPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}})
}

// Stats GET /tickets/stats summarizes the ticket set for the overview
// cards. Filter params compose the same way the list view does.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	tickets, _, err := h.service.List(c.Context(), repository.TicketFilter{PageSize: statsFetchLimit})
	if err != nil {
		return err
	}

	view := listview.New(listview.DefaultPageSize, nil)
	view.SetTickets(tickets)
	view.SetFilters(listview.ParseFilters(
		c.Query("q"), c.Query("status"), c.Query("cti"), c.Query("assignee")))

	stats := view.Stats()
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Total:         stats.Total,
		Active:        stats.Active,
		Resolved:      stats.Resolved,
		FilteredCount: view.FilteredCount(),
		TotalPages:    view.TotalPages(),
	}})
}

// Get GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Create(c.Context(), service.TicketDraft{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Status:     req.Status,
		Assignee:   req.Assignee,
		CTI:        req.CTI,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Update PATCH /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Update(c.Context(), c.Params("id"), repository.TicketPatch{
		ExternalID:     req.ExternalID,
		Name:           req.Name,
		Status:         req.Status,
		Assignee:       req.Assignee,
		CTI:            req.CTI,
		Notes:          req.Notes,
		LastActivityAt: req.LastActivityAt,
	})
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Upsert POST /tickets/bulk conflict-resolves on external id.
func (h *TicketsHandler) Upsert(c *fiber.Ctx) error {
	var req dto.UpsertTicketsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	drafts := make([]service.TicketDraft, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		if strings.TrimSpace(t.ExternalID) == "" {
			return apperrors.NewValidationError("external_id required for upsert", nil)
		}
		drafts = append(drafts, service.TicketDraft{
			ExternalID: t.ExternalID,
			Name:       t.Name,
			Status:     t.Status,
			Assignee:   t.Assignee,
			CTI:        t.CTI,
			Notes:      t.Notes,
		})
	}
	count, err := h.service.UpsertBatch(c.Context(), drafts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"count": count}})
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
