package domain

import "time"

// ShiftStatus enumerates shift lifecycle states.
type ShiftStatus string

const (
	ShiftStatusActive    ShiftStatus = "active"
	ShiftStatusCompleted ShiftStatus = "completed"
)

// Shift is one work shift owned by a user. EndedAt is non-nil iff the
// shift is completed.
type Shift struct {
	ID        string      `json:"id"`
	ShiftDate string      `json:"shift_date"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   *time.Time  `json:"ended_at"`
	UserEmail string      `json:"user_email"`
	Status    ShiftStatus `json:"status"`
	Notes     *string     `json:"notes"`
	CreatedAt time.Time   `json:"created_at"`
}

// ShiftTicketLink attaches a ticket to a shift. CompletedAt is non-nil
// iff Completed is true.
type ShiftTicketLink struct {
	ID          string     `json:"id"`
	ShiftID     string     `json:"shift_id"`
	TicketID    string     `json:"ticket_id"`
	Priority    int        `json:"priority"`
	Completed   bool       `json:"completed"`
	Notes       *string    `json:"notes"`
	AddedAt     time.Time  `json:"added_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// LinkedTicket is a link joined with its ticket row.
type LinkedTicket struct {
	ShiftTicketLink
	Ticket Ticket `json:"ticket"`
}
