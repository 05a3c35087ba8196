package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusAssigned       TicketStatus = "assigned"
	TicketStatusPending        TicketStatus = "pending"
	TicketStatusResearching    TicketStatus = "researching"
	TicketStatusWorkInProgress TicketStatus = "work_in_progress"
	TicketStatusEscalated      TicketStatus = "escalated"
	TicketStatusResolved       TicketStatus = "resolved"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusAssigned,
	TicketStatusPending,
	TicketStatusResearching,
	TicketStatusWorkInProgress,
	TicketStatusEscalated,
	TicketStatusResolved,
}

// Valid reports whether the status belongs to the closed set.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Category enumerates CTI classification kinds.
type Category string

const (
	CategoryHardware   Category = "hardware"
	CategoryNetworking Category = "networking"
)

// Categories lists every category.
var Categories = []Category{CategoryHardware, CategoryNetworking}

// Valid reports whether the category belongs to the closed set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for tracked work items.
type Ticket struct {
	ID             string       `json:"id"`
	ExternalID     string       `json:"external_id"`
	Name           string       `json:"ticket_name"`
	Status         TicketStatus `json:"status"`
	Assignee       string       `json:"assignee"`
	CTI            Category     `json:"cti"`
	Notes          *string      `json:"notes"`
	LastActivityAt time.Time    `json:"last_activity_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
