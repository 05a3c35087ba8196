package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/shift-desk/internal/domain"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// DefaultShiftHistoryLimit caps shift history listings.
const DefaultShiftHistoryLimit = 30

// ShiftRepository encapsulates shift and shift-ticket-link persistence.
// Absent rows are returned as nil results, not errors.
type ShiftRepository interface {
	GetActive(ctx context.Context, userEmail string) (*domain.Shift, error)
	Start(ctx context.Context, userEmail, shiftDate string, notes *string) (*domain.Shift, error)
	End(ctx context.Context, shiftID string, notes *string) (*domain.Shift, error)
	ListForUser(ctx context.Context, userEmail string, limit int) ([]domain.Shift, error)
	ListLinks(ctx context.Context, shiftID string) ([]domain.LinkedTicket, error)
	AddLink(ctx context.Context, shiftID, ticketID string, priority int, notes *string) (*domain.ShiftTicketLink, error)
	SetCompleted(ctx context.Context, linkID string, completed bool) (*domain.ShiftTicketLink, error)
	SetPriority(ctx context.Context, linkID string, priority int) (*domain.ShiftTicketLink, error)
	RemoveLink(ctx context.Context, linkID string) (*domain.ShiftTicketLink, error)
}

type shiftRepository struct {
	pool *pgxpool.Pool
}

// NewShiftRepository instantiates repository.
func NewShiftRepository(pool *pgxpool.Pool) ShiftRepository {
	return &shiftRepository{pool: pool}
}

const shiftColumns = `id, shift_date, started_at, ended_at, user_email, status, notes, created_at`

const linkColumns = `id, shift_id, ticket_id, priority, completed, notes, added_at, completed_at`

func (r *shiftRepository) GetActive(ctx context.Context, userEmail string) (*domain.Shift, error) {
	const query = `
        SELECT ` + shiftColumns + ` FROM shifts
        WHERE user_email=$1 AND status='active' AND ended_at IS NULL
        ORDER BY started_at DESC LIMIT 1`
	var s domain.Shift
	if err := r.pool.QueryRow(ctx, query, userEmail).Scan(shiftFields(&s)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &s, nil
}

func (r *shiftRepository) Start(ctx context.Context, userEmail, shiftDate string, notes *string) (*domain.Shift, error) {
	const query = `
        INSERT INTO shifts (shift_date, started_at, user_email, status, notes)
        VALUES ($1, NOW(), $2, 'active', $3)
        RETURNING ` + shiftColumns
	var s domain.Shift
	if err := r.pool.QueryRow(ctx, query, shiftDate, userEmail, notes).Scan(shiftFields(&s)...); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return &s, nil
}

func (r *shiftRepository) End(ctx context.Context, shiftID string, notes *string) (*domain.Shift, error) {
	const query = `
        UPDATE shifts SET ended_at=NOW(), status='completed', notes=$2
        WHERE id=$1
        RETURNING ` + shiftColumns
	var s domain.Shift
	if err := r.pool.QueryRow(ctx, query, shiftID, notes).Scan(shiftFields(&s)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &s, nil
}

func (r *shiftRepository) ListForUser(ctx context.Context, userEmail string, limit int) ([]domain.Shift, error) {
	if limit <= 0 {
		limit = DefaultShiftHistoryLimit
	}
	const query = `
        SELECT ` + shiftColumns + ` FROM shifts
        WHERE user_email=$1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userEmail, limit)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	defer rows.Close()

	var result []domain.Shift
	for rows.Next() {
		var s domain.Shift
		if err := rows.Scan(shiftFields(&s)...); err != nil {
			return nil, apperrors.NewStoreError(err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return result, nil
}

func (r *shiftRepository) ListLinks(ctx context.Context, shiftID string) ([]domain.LinkedTicket, error) {
	// Priority first, earliest-added breaking ties among equals.
	const query = `
        SELECT st.id, st.shift_id, st.ticket_id, st.priority, st.completed, st.notes,
               st.added_at, st.completed_at,
               t.id, t.external_id, t.ticket_name, t.status, t.assignee, t.cti, t.notes,
               t.last_activity_at, t.created_at, t.updated_at
        FROM shift_tickets st
        JOIN tickets t ON t.id = st.ticket_id
        WHERE st.shift_id=$1
        ORDER BY st.priority DESC, st.added_at ASC`
	rows, err := r.pool.Query(ctx, query, shiftID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	defer rows.Close()

	var result []domain.LinkedTicket
	for rows.Next() {
		var lt domain.LinkedTicket
		fields := append(linkFields(&lt.ShiftTicketLink), ticketFields(&lt.Ticket)...)
		if err := rows.Scan(fields...); err != nil {
			return nil, apperrors.NewStoreError(err)
		}
		result = append(result, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return result, nil
}

func (r *shiftRepository) AddLink(ctx context.Context, shiftID, ticketID string, priority int, notes *string) (*domain.ShiftTicketLink, error) {
	const query = `
        INSERT INTO shift_tickets (shift_id, ticket_id, priority, notes)
        VALUES ($1,$2,$3,$4)
        RETURNING ` + linkColumns
	var link domain.ShiftTicketLink
	if err := r.pool.QueryRow(ctx, query, shiftID, ticketID, priority, notes).Scan(linkFields(&link)...); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return &link, nil
}

func (r *shiftRepository) SetCompleted(ctx context.Context, linkID string, completed bool) (*domain.ShiftTicketLink, error) {
	const query = `
        UPDATE shift_tickets
        SET completed=$2, completed_at=CASE WHEN $2 THEN NOW() ELSE NULL END
        WHERE id=$1
        RETURNING ` + linkColumns
	var link domain.ShiftTicketLink
	if err := r.pool.QueryRow(ctx, query, linkID, completed).Scan(linkFields(&link)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &link, nil
}

func (r *shiftRepository) SetPriority(ctx context.Context, linkID string, priority int) (*domain.ShiftTicketLink, error) {
	const query = `
        UPDATE shift_tickets SET priority=$2 WHERE id=$1
        RETURNING ` + linkColumns
	var link domain.ShiftTicketLink
	if err := r.pool.QueryRow(ctx, query, linkID, priority).Scan(linkFields(&link)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &link, nil
}

func (r *shiftRepository) RemoveLink(ctx context.Context, linkID string) (*domain.ShiftTicketLink, error) {
	const query = `DELETE FROM shift_tickets WHERE id=$1 RETURNING ` + linkColumns
	var link domain.ShiftTicketLink
	if err := r.pool.QueryRow(ctx, query, linkID).Scan(linkFields(&link)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &link, nil
}

func shiftFields(s *domain.Shift) []any {
	return []any{
		&s.ID,
		&s.ShiftDate,
		&s.StartedAt,
		&s.EndedAt,
		&s.UserEmail,
		&s.Status,
		&s.Notes,
		&s.CreatedAt,
	}
}

func linkFields(l *domain.ShiftTicketLink) []any {
	return []any{
		&l.ID,
		&l.ShiftID,
		&l.TicketID,
		&l.Priority,
		&l.Completed,
		&l.Notes,
		&l.AddedAt,
		&l.CompletedAt,
	}
}
