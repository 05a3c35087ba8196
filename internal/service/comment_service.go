package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/repository"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// CommentService coordinates per-ticket comments.
type CommentService struct {
	comments repository.CommentRepository
	feed     feed.Feed
	logger   *zap.Logger
}

// CommentDependencies bundles requirements for the comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	Feed        feed.Feed
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments: deps.CommentRepo,
		feed:     deps.Feed,
		logger:   deps.Logger,
	}
}

// ListForTicket returns comments newest first.
func (s *CommentService) ListForTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return s.comments.ListForTicket(ctx, ticketID)
}

// Create posts a comment on a ticket.
func (s *CommentService) Create(ctx context.Context, ticketID, userEmail, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	comment := &domain.Comment{
		TicketID:  ticketID,
		UserEmail: userEmail,
		Content:   content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.publish(ctx, feed.EventInsert, comment, nil)
	return comment, nil
}

// Update replaces a comment's content.
func (s *CommentService) Update(ctx context.Context, id, content string) (*domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	updated, err := s.comments.Update(ctx, id, content)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NewNotFound("comment", map[string]any{"id": id})
	}
	s.publish(ctx, feed.EventUpdate, updated, nil)
	return updated, nil
}

// Delete removes a comment; removing an absent comment is not an error.
func (s *CommentService) Delete(ctx context.Context, id string) error {
	old, err := s.comments.Delete(ctx, id)
	if err != nil {
		return err
	}
	if old != nil {
		s.publish(ctx, feed.EventDelete, nil, old)
	}
	return nil
}

func (s *CommentService) publish(ctx context.Context, typ feed.EventType, newRow, oldRow *domain.Comment) {
	var newAny, oldAny any
	scope := ""
	if newRow != nil {
		newAny = newRow
		scope = newRow.TicketID
	}
	if oldRow != nil {
		oldAny = oldRow
		scope = oldRow.TicketID
	}
	ev, err := feed.NewEvent(feed.TableComments, typ, newAny, oldAny)
	if err != nil {
		s.logger.Warn("encode comment event", zap.Error(err))
		return
	}
	if err := s.feed.Publish(ctx, ev, scope); err != nil {
		s.logger.Warn("publish comment event", zap.Error(err))
	}
}
