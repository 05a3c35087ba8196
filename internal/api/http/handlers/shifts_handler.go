package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shift-desk/internal/api/dto"
	"github.com/spec-kit/shift-desk/internal/auth"
	"github.com/spec-kit/shift-desk/internal/service"
	"github.com/spec-kit/shift-desk/internal/shiftsync"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// ShiftsHandler manages shift and shift-ticket endpoints. Mutations on
// the caller's own shift run through the per-user sync loop so the live
// view, optimistic toggles, and completion reconciliation stay coherent.
type ShiftsHandler struct {
	service *service.ShiftService
	sync    *shiftsync.Manager
}

// NewShiftsHandler constructs handler.
func NewShiftsHandler(shiftService *service.ShiftService, sync *shiftsync.Manager) *ShiftsHandler {
	return &ShiftsHandler{service: shiftService, sync: sync}
}

func (h *ShiftsHandler) syncerFor(c *fiber.Ctx) (*shiftsync.Syncer, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return h.sync.For(c.Context(), principal.User.Email)
}

func mapSyncErr(err error) error {
	switch {
	case errors.Is(err, shiftsync.ErrShiftAlreadyActive):
		return apperrors.NewConflict("shift already active", nil)
	case errors.Is(err, shiftsync.ErrNoActiveShift):
		return apperrors.NewNotFound("active shift", nil)
	case errors.Is(err, shiftsync.ErrConfirmationRequired):
		return apperrors.NewValidationError("removal must be confirmed", nil)
	default:
		return err
	}
}

// View GET /shifts/view returns the live read model for the caller's
// shift: phase, ordered linked tickets, and the derived figures.
func (h *ShiftsHandler) View(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": shiftViewResponse(syncer.Snapshot())})
}

// Active GET /shifts/active returns the caller's running shift, null
// when none.
func (h *ShiftsHandler) Active(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	active, err := h.service.ActiveShift(c.Context(), principal.User.Email)
	if err != nil {
		return err
	}
	if active == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": shiftResponse(active)})
}

// Start POST /shifts.
func (h *ShiftsHandler) Start(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	var req dto.StartShiftRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := syncer.Start(c.Context(), req.Notes); err != nil {
		return mapSyncErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": shiftViewResponse(syncer.Snapshot())})
}

// End POST /shifts/:id/end completes the caller's active shift.
func (h *ShiftsHandler) End(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	var req dto.EndShiftRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	current := syncer.Snapshot()
	if current.Shift == nil || current.Shift.ID != c.Params("id") {
		return apperrors.NewNotFound("active shift", map[string]any{"id": c.Params("id")})
	}
	if err := syncer.End(c.Context(), req.Notes); err != nil {
		return mapSyncErr(err)
	}
	return c.JSON(fiber.Map{"data": shiftViewResponse(syncer.Snapshot())})
}

// History GET /shifts lists the caller's recent shifts.
func (h *ShiftsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	shifts, err := h.service.ShiftHistory(c.Context(), principal.User.Email, parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	items := make([]dto.ShiftResponse, 0, len(shifts))
	for i := range shifts {
		items = append(items, shiftResponse(&shifts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Links GET /shifts/:id/tickets returns the shift's linked tickets,
// highest priority first.
func (h *ShiftsHandler) Links(c *fiber.Ctx) error {
	links, err := h.service.ShiftLinks(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ShiftTicketResponse, 0, len(links))
	for i := range links {
		items = append(items, shiftTicketResponse(&links[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddLink POST /shifts/:id/tickets links a ticket to the caller's
// active shift.
func (h *ShiftsHandler) AddLink(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	var req dto.AddShiftTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}
	current := syncer.Snapshot()
	if current.Shift == nil || current.Shift.ID != c.Params("id") {
		return apperrors.NewNotFound("active shift", map[string]any{"id": c.Params("id")})
	}
	if err := syncer.AddTicket(c.Context(), req.TicketID, req.Priority, req.Notes); err != nil {
		return mapSyncErr(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": shiftViewResponse(syncer.Snapshot())})
}

// Toggle POST /shift-tickets/:id/toggle flips a link's completion
// optimistically; a failed persist restores the previous state.
func (h *ShiftsHandler) Toggle(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	if err := syncer.ToggleComplete(c.Context(), c.Params("id")); err != nil {
		return mapSyncErr(err)
	}
	return c.JSON(fiber.Map{"data": shiftViewResponse(syncer.Snapshot())})
}

// SetCompleted PATCH /shift-tickets/:id/completed.
func (h *ShiftsHandler) SetCompleted(c *fiber.Ctx) error {
	var req dto.SetCompletedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	link, err := h.service.SetShiftTicketCompleted(c.Context(), c.Params("id"), req.Completed)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": linkResponse(link)})
}

// SetPriority PATCH /shift-tickets/:id/priority.
func (h *ShiftsHandler) SetPriority(c *fiber.Ctx) error {
	var req dto.SetPriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	link, err := h.service.SetShiftTicketPriority(c.Context(), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": linkResponse(link)})
}

// RemoveLink DELETE /shift-tickets/:id. The client confirms before
// calling; a missing confirm flag is rejected.
func (h *ShiftsHandler) RemoveLink(c *fiber.Ctx) error {
	syncer, err := h.syncerFor(c)
	if err != nil {
		return err
	}
	confirmed := c.Query("confirm") == "true"
	if err := syncer.RemoveTicket(c.Context(), c.Params("id"), confirmed); err != nil {
		return mapSyncErr(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
