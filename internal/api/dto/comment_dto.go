package dto

import "time"

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse mirrors a comment row.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	UserEmail string    `json:"user_email"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
