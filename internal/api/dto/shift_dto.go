package dto

import (
	"time"

	"github.com/spec-kit/shift-desk/internal/domain"
)

// StartShiftRequest payload.
type StartShiftRequest struct {
	Notes *string `json:"notes"`
}

// EndShiftRequest payload.
type EndShiftRequest struct {
	Notes *string `json:"notes"`
}

// AddShiftTicketRequest payload.
type AddShiftTicketRequest struct {
	TicketID string  `json:"ticket_id"`
	Priority int     `json:"priority"`
	Notes    *string `json:"notes"`
}

// SetCompletedRequest payload.
type SetCompletedRequest struct {
	Completed bool `json:"completed"`
}

// SetPriorityRequest payload.
type SetPriorityRequest struct {
	Priority int `json:"priority"`
}

// ShiftResponse mirrors a shift row plus its rendered duration.
type ShiftResponse struct {
	ID        string             `json:"id"`
	ShiftDate string             `json:"shift_date"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   *time.Time         `json:"ended_at"`
	UserEmail string             `json:"user_email"`
	Status    domain.ShiftStatus `json:"status"`
	Notes     *string            `json:"notes"`
	Duration  string             `json:"duration"`
}

// ShiftViewResponse is the live read model for the caller's shift:
// phase, shift row, ordered linked tickets, and the derived figures.
type ShiftViewResponse struct {
	Phase          string                `json:"phase"`
	Shift          *ShiftResponse        `json:"shift"`
	Tickets        []ShiftTicketResponse `json:"tickets"`
	CompletedCount int                   `json:"completed_count"`
	TotalCount     int                   `json:"total_count"`
	CompletionRate int                   `json:"completion_rate"`
	Duration       string                `json:"duration"`
}

// ShiftTicketResponse mirrors a link joined with its ticket.
type ShiftTicketResponse struct {
	ID          string         `json:"id"`
	ShiftID     string         `json:"shift_id"`
	TicketID    string         `json:"ticket_id"`
	Priority    int            `json:"priority"`
	Completed   bool           `json:"completed"`
	Notes       *string        `json:"notes"`
	AddedAt     time.Time      `json:"added_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Ticket      TicketResponse `json:"ticket"`
}
