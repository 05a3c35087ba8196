package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/repository"
	"github.com/spec-kit/shift-desk/internal/shift"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// ShiftService coordinates shifts and shift-ticket links; every link
// mutation is announced on the change feed scoped to its shift.
type ShiftService struct {
	shifts       repository.ShiftRepository
	feed         feed.Feed
	logger       *zap.Logger
	boundaryHour int
	now          func() time.Time
}

// ShiftDependencies bundles requirements for the shift service.
type ShiftDependencies struct {
	ShiftRepo    repository.ShiftRepository
	Feed         feed.Feed
	Logger       *zap.Logger
	BoundaryHour int
	Now          func() time.Time
}

// NewShiftService constructs the service.
func NewShiftService(deps ShiftDependencies) *ShiftService {
	if deps.BoundaryHour <= 0 {
		deps.BoundaryHour = shift.DefaultBoundaryHour
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &ShiftService{
		shifts:       deps.ShiftRepo,
		feed:         deps.Feed,
		logger:       deps.Logger,
		boundaryHour: deps.BoundaryHour,
		now:          deps.Now,
	}
}

// ActiveShift returns the user's running shift, nil when none.
func (s *ShiftService) ActiveShift(ctx context.Context, userEmail string) (*domain.Shift, error) {
	return s.shifts.GetActive(ctx, userEmail)
}

// StartShift opens a shift on the current business day. At most one
// active shift per user; the check is read-then-insert, last writer
// wins under races.
func (s *ShiftService) StartShift(ctx context.Context, userEmail string, notes *string) (*domain.Shift, error) {
	existing, err := s.shifts.GetActive(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflict("shift already active", map[string]any{"shift_id": existing.ID})
	}
	shiftDate := shift.CurrentShiftDate(s.now(), s.boundaryHour)
	return s.shifts.Start(ctx, userEmail, shiftDate, notes)
}

// EndShift completes the shift.
func (s *ShiftService) EndShift(ctx context.Context, shiftID string, notes *string) (*domain.Shift, error) {
	ended, err := s.shifts.End(ctx, shiftID, notes)
	if err != nil {
		return nil, err
	}
	if ended == nil {
		return nil, apperrors.NewNotFound("shift", map[string]any{"id": shiftID})
	}
	return ended, nil
}

// ShiftHistory lists the user's most recent shifts.
func (s *ShiftService) ShiftHistory(ctx context.Context, userEmail string, limit int) ([]domain.Shift, error) {
	return s.shifts.ListForUser(ctx, userEmail, limit)
}

// ShiftLinks returns the shift's links joined with ticket rows, highest
// priority first.
func (s *ShiftService) ShiftLinks(ctx context.Context, shiftID string) ([]domain.LinkedTicket, error) {
	return s.shifts.ListLinks(ctx, shiftID)
}

// AddShiftTicket links a ticket to the shift.
func (s *ShiftService) AddShiftTicket(ctx context.Context, shiftID, ticketID string, priority int, notes *string) (*domain.ShiftTicketLink, error) {
	link, err := s.shifts.AddLink(ctx, shiftID, ticketID, priority, notes)
	if err != nil {
		return nil, err
	}
	s.publishLink(ctx, feed.EventInsert, link, nil)
	return link, nil
}

// SetShiftTicketCompleted persists a link's completion flag.
func (s *ShiftService) SetShiftTicketCompleted(ctx context.Context, linkID string, completed bool) (*domain.ShiftTicketLink, error) {
	link, err := s.shifts.SetCompleted(ctx, linkID, completed)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, apperrors.NewNotFound("shift ticket", map[string]any{"id": linkID})
	}
	s.publishLink(ctx, feed.EventUpdate, link, nil)
	return link, nil
}

// SetShiftTicketPriority reorders a link.
func (s *ShiftService) SetShiftTicketPriority(ctx context.Context, linkID string, priority int) (*domain.ShiftTicketLink, error) {
	link, err := s.shifts.SetPriority(ctx, linkID, priority)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, apperrors.NewNotFound("shift ticket", map[string]any{"id": linkID})
	}
	s.publishLink(ctx, feed.EventUpdate, link, nil)
	return link, nil
}

// RemoveShiftTicket deletes a link. Removing an already-gone link is
// not an error.
func (s *ShiftService) RemoveShiftTicket(ctx context.Context, linkID string) error {
	old, err := s.shifts.RemoveLink(ctx, linkID)
	if err != nil {
		return err
	}
	if old != nil {
		s.publishLink(ctx, feed.EventDelete, nil, old)
	}
	return nil
}

func (s *ShiftService) publishLink(ctx context.Context, typ feed.EventType, newRow, oldRow *domain.ShiftTicketLink) {
	var newAny, oldAny any
	scope := ""
	if newRow != nil {
		newAny = newRow
		scope = newRow.ShiftID
	}
	if oldRow != nil {
		oldAny = oldRow
		scope = oldRow.ShiftID
	}
	ev, err := feed.NewEvent(feed.TableShiftTickets, typ, newAny, oldAny)
	if err != nil {
		s.logger.Warn("encode shift ticket event", zap.Error(err))
		return
	}
	if err := s.feed.Publish(ctx, ev, scope); err != nil {
		s.logger.Warn("publish shift ticket event", zap.Error(err))
	}
}
