package dto

import (
	"time"

	"github.com/spec-kit/shift-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ExternalID string              `json:"external_id"`
	Name       string              `json:"ticket_name"`
	Status     domain.TicketStatus `json:"status"`
	Assignee   string              `json:"assignee"`
	CTI        domain.Category     `json:"cti"`
	Notes      *string             `json:"notes"`
}

// UpdateTicketRequest carries a partial update; absent fields are left
// untouched.
type UpdateTicketRequest struct {
	ExternalID     *string              `json:"external_id"`
	Name           *string              `json:"ticket_name"`
	Status         *domain.TicketStatus `json:"status"`
	Assignee       *string              `json:"assignee"`
	CTI            *domain.Category     `json:"cti"`
	Notes          *string              `json:"notes"`
	LastActivityAt *time.Time           `json:"last_activity_at"`
}

// UpsertTicketsRequest payload for bulk import.
type UpsertTicketsRequest struct {
	Tickets []CreateTicketRequest `json:"tickets"`
}

// TicketResponse mirrors a ticket row.
type TicketResponse struct {
	ID             string              `json:"id"`
	ExternalID     string              `json:"external_id"`
	Name           string              `json:"ticket_name"`
	Status         domain.TicketStatus `json:"status"`
	Assignee       string              `json:"assignee"`
	CTI            domain.Category     `json:"cti"`
	Notes          *string             `json:"notes"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TicketStatsResponse summarizes the ticket set for the overview cards,
// plus the figures for the currently filtered view.
type TicketStatsResponse struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Resolved      int `json:"resolved"`
	FilteredCount int `json:"filtered_count"`
	TotalPages    int `json:"total_pages"`
}

// TicketPage wraps one page of tickets with pagination math inputs.
type TicketPage struct {
	Items    []TicketResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
