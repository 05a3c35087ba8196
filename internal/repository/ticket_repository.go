package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/shift-desk/internal/domain"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// DefaultTicketPageSize applies when a list request omits page size.
const DefaultTicketPageSize = 25

// ticketSortFallback is used when the requested sort column is not in
// the allow-list.
const ticketSortFallback = "last_activity_at"

var allowedTicketSortColumns = map[string]struct{}{
	"external_id":      {},
	"ticket_name":      {},
	"assignee":         {},
	"status":           {},
	"cti":              {},
	"last_activity_at": {},
	"updated_at":       {},
	"created_at":       {},
}

// SafeTicketSortColumn maps a requested sort column onto the allow-list,
// falling back to last activity time.
func SafeTicketSortColumn(col string) string {
	if _, ok := allowedTicketSortColumns[col]; ok {
		return col
	}
	return ticketSortFallback
}

// TicketFilter captures list parameters. Zero values mean "no filter".
type TicketFilter struct {
	Query    string
	Status   domain.TicketStatus
	CTI      domain.Category
	Assignee string
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
}

// TicketPatch holds a partial update; nil fields are left untouched.
// LastActivityAt defaults to now when the caller does not supply one.
type TicketPatch struct {
	ExternalID     *string
	Name           *string
	Status         *domain.TicketStatus
	Assignee       *string
	CTI            *domain.Category
	Notes          *string
	LastActivityAt *time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	UpsertBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_id, ticket_name, status, assignee, cti, notes,
        last_activity_at, created_at, updated_at`

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.CTI != "" && filter.CTI != "all" {
		args = append(args, filter.CTI)
		clauses = append(clauses, fmt.Sprintf("cti=$%d", len(args)))
	}
	if strings.TrimSpace(filter.Assignee) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Assignee)+"%")
		clauses = append(clauses, fmt.Sprintf("assignee ILIKE $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(external_id ILIKE %s OR ticket_name ILIKE %s OR notes ILIKE %s)",
			placeholder, placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM tickets WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewStoreError(err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = DefaultTicketPageSize
	}

	col := SafeTicketSortColumn(filter.SortBy)
	dir := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s
        ORDER BY %s %s NULLS LAST LIMIT %d OFFSET %d`,
		ticketColumns, where, col, dir, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperrors.NewStoreError(err)
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, apperrors.NewStoreError(err)
	}
	return tickets, total, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM tickets WHERE id=$1", ticketColumns)
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketFields(&ticket)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.LastActivityAt.IsZero() {
		ticket.LastActivityAt = time.Now()
	}
	const query = `
        INSERT INTO tickets (external_id, ticket_name, status, assignee, cti, notes, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ExternalID,
		ticket.Name,
		ticket.Status,
		ticket.Assignee,
		ticket.CTI,
		ticket.Notes,
		ticket.LastActivityAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, id string, patch TicketPatch) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}

	addSet := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}

	if patch.ExternalID != nil {
		addSet("external_id", *patch.ExternalID)
	}
	if patch.Name != nil {
		addSet("ticket_name", *patch.Name)
	}
	if patch.Status != nil {
		addSet("status", *patch.Status)
	}
	if patch.Assignee != nil {
		addSet("assignee", *patch.Assignee)
	}
	if patch.CTI != nil {
		addSet("cti", *patch.CTI)
	}
	if patch.Notes != nil {
		addSet("notes", *patch.Notes)
	}
	// Default-touch: every update bumps activity unless the caller pins it.
	if patch.LastActivityAt != nil {
		addSet("last_activity_at", *patch.LastActivityAt)
	} else {
		addSet("last_activity_at", time.Now())
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tickets SET %s WHERE id=$%d RETURNING %s",
		strings.Join(sets, ", "), len(args), ticketColumns)

	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(ticketFields(&ticket)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM tickets WHERE id=$1", id); err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

func (r *ticketRepository) UpsertBatch(ctx context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	if len(tickets) == 0 {
		return nil, nil
	}
	query := `
        INSERT INTO tickets (external_id, ticket_name, status, assignee, cti, notes, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (external_id) DO UPDATE SET
            ticket_name=EXCLUDED.ticket_name,
            status=EXCLUDED.status,
            assignee=EXCLUDED.assignee,
            cti=EXCLUDED.cti,
            notes=EXCLUDED.notes,
            last_activity_at=EXCLUDED.last_activity_at,
            updated_at=NOW()
        RETURNING ` + ticketColumns

	batch := &pgx.Batch{}
	for _, t := range tickets {
		lastActivity := t.LastActivityAt
		if lastActivity.IsZero() {
			lastActivity = time.Now()
		}
		batch.Queue(query, t.ExternalID, t.Name, t.Status, t.Assignee, t.CTI, t.Notes, lastActivity)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck

	upserted := make([]domain.Ticket, 0, len(tickets))
	for range tickets {
		var ticket domain.Ticket
		if err := results.QueryRow().Scan(ticketFields(&ticket)...); err != nil {
			return upserted, apperrors.NewStoreError(err)
		}
		upserted = append(upserted, ticket)
	}
	return upserted, nil
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.ExternalID,
		&t.Name,
		&t.Status,
		&t.Assignee,
		&t.CTI,
		&t.Notes,
		&t.LastActivityAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
