package handlers

import (
	"time"

	"github.com/spec-kit/shift-desk/internal/api/dto"
	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/shift"
	"github.com/spec-kit/shift-desk/internal/shiftsync"
)

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:             t.ID,
		ExternalID:     t.ExternalID,
		Name:           t.Name,
		Status:         t.Status,
		Assignee:       t.Assignee,
		CTI:            t.CTI,
		Notes:          t.Notes,
		LastActivityAt: t.LastActivityAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func shiftResponse(s *domain.Shift) dto.ShiftResponse {
	return dto.ShiftResponse{
		ID:        s.ID,
		ShiftDate: s.ShiftDate,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		UserEmail: s.UserEmail,
		Status:    s.Status,
		Notes:     s.Notes,
		Duration:  shift.Duration(s.StartedAt, s.EndedAt, time.Now()),
	}
}

func shiftTicketResponse(lt *domain.LinkedTicket) dto.ShiftTicketResponse {
	return dto.ShiftTicketResponse{
		ID:          lt.ID,
		ShiftID:     lt.ShiftID,
		TicketID:    lt.TicketID,
		Priority:    lt.Priority,
		Completed:   lt.Completed,
		Notes:       lt.Notes,
		AddedAt:     lt.AddedAt,
		CompletedAt: lt.CompletedAt,
		Ticket:      ticketResponse(&lt.Ticket),
	}
}

func linkResponse(l *domain.ShiftTicketLink) dto.ShiftTicketResponse {
	return dto.ShiftTicketResponse{
		ID:          l.ID,
		ShiftID:     l.ShiftID,
		TicketID:    l.TicketID,
		Priority:    l.Priority,
		Completed:   l.Completed,
		Notes:       l.Notes,
		AddedAt:     l.AddedAt,
		CompletedAt: l.CompletedAt,
	}
}

func shiftViewResponse(v shiftsync.View) dto.ShiftViewResponse {
	resp := dto.ShiftViewResponse{
		Phase:          string(v.Phase),
		CompletedCount: v.CompletedCount,
		TotalCount:     v.TotalCount,
		CompletionRate: v.CompletionRate,
		Duration:       v.Duration,
	}
	if v.Shift != nil {
		shiftResp := shiftResponse(v.Shift)
		resp.Shift = &shiftResp
	}
	resp.Tickets = make([]dto.ShiftTicketResponse, 0, len(v.Links))
	for i := range v.Links {
		resp.Tickets = append(resp.Tickets, shiftTicketResponse(&v.Links[i]))
	}
	return resp
}

func commentResponse(c *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		UserEmail: c.UserEmail,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
