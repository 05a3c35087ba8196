package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/shift-desk/internal/domain"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// CommentRepository encapsulates per-ticket comment persistence.
type CommentRepository interface {
	ListForTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
	Create(ctx context.Context, comment *domain.Comment) error
	Update(ctx context.Context, id, content string) (*domain.Comment, error)
	Delete(ctx context.Context, id string) (*domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

const commentColumns = `id, ticket_id, user_email, content, created_at, updated_at`

func (r *commentRepository) ListForTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	const query = `
        SELECT ` + commentColumns + ` FROM ticket_comments
        WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(commentFields(&c)...); err != nil {
			return nil, apperrors.NewStoreError(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError(err)
	}
	return result, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, user_email, content)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query, comment.TicketID, comment.UserEmail, comment.Content).
		Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return apperrors.NewStoreError(err)
	}
	return nil
}

func (r *commentRepository) Update(ctx context.Context, id, content string) (*domain.Comment, error) {
	const query = `
        UPDATE ticket_comments SET content=$2, updated_at=NOW()
        WHERE id=$1
        RETURNING ` + commentColumns
	var c domain.Comment
	if err := r.pool.QueryRow(ctx, query, id, content).Scan(commentFields(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &c, nil
}

func (r *commentRepository) Delete(ctx context.Context, id string) (*domain.Comment, error) {
	const query = `DELETE FROM ticket_comments WHERE id=$1 RETURNING ` + commentColumns
	var c domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(commentFields(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreError(err)
	}
	return &c, nil
}

func commentFields(c *domain.Comment) []any {
	return []any{
		&c.ID,
		&c.TicketID,
		&c.UserEmail,
		&c.Content,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}
