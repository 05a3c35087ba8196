package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/repository"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// TicketService coordinates ticket workflows and feeds change events.
type TicketService struct {
	tickets repository.TicketRepository
	feed    feed.Feed
	logger  *zap.Logger
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Feed       feed.Feed
	Logger     *zap.Logger
}

// TicketDraft describes a ticket creation or upsert payload.
type TicketDraft struct {
	ExternalID string
	Name       string
	Status     domain.TicketStatus
	Assignee   string
	CTI        domain.Category
	Notes      *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets: deps.TicketRepo,
		feed:    deps.Feed,
		logger:  deps.Logger,
	}
}

// List returns one page of tickets plus the exact total count.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	return s.tickets.List(ctx, filter)
}

// Get returns a single ticket, nil when absent.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// Create validates and stores a new ticket. A missing external id gets
// a generated key, matching the create wizard.
func (s *TicketService) Create(ctx context.Context, draft TicketDraft) (*domain.Ticket, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ExternalID: draft.ExternalID,
		Name:       strings.TrimSpace(draft.Name),
		Status:     draft.Status,
		Assignee:   strings.TrimSpace(draft.Assignee),
		CTI:        draft.CTI,
		Notes:      draft.Notes,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publish(ctx, feed.EventInsert, ticket, nil)
	return ticket, nil
}

// Update applies a partial update. Returns nil when the ticket is gone.
func (s *TicketService) Update(ctx context.Context, id string, patch repository.TicketPatch) (*domain.Ticket, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *patch.Status})
	}
	if patch.CTI != nil && !patch.CTI.Valid() {
		return nil, apperrors.NewValidationError("invalid cti", map[string]any{"cti": *patch.CTI})
	}

	before, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.tickets.Update(ctx, id, patch)
	if err != nil || updated == nil {
		return updated, err
	}
	s.publish(ctx, feed.EventUpdate, updated, before)
	return updated, nil
}

// Delete removes a ticket and announces the deletion.
func (s *TicketService) Delete(ctx context.Context, id string) error {
	before, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return err
	}
	if before != nil {
		s.publish(ctx, feed.EventDelete, nil, before)
	}
	return nil
}

// UpsertBatch inserts or updates rows keyed on external id and returns
// how many were written. Each written row is announced as an update.
func (s *TicketService) UpsertBatch(ctx context.Context, drafts []TicketDraft) (int, error) {
	rows := make([]domain.Ticket, 0, len(drafts))
	for i := range drafts {
		if err := validateDraft(&drafts[i]); err != nil {
			return 0, err
		}
		rows = append(rows, domain.Ticket{
			ExternalID: drafts[i].ExternalID,
			Name:       strings.TrimSpace(drafts[i].Name),
			Status:     drafts[i].Status,
			Assignee:   strings.TrimSpace(drafts[i].Assignee),
			CTI:        drafts[i].CTI,
			Notes:      drafts[i].Notes,
		})
	}

	upserted, err := s.tickets.UpsertBatch(ctx, rows)
	if err != nil {
		return len(upserted), err
	}
	for i := range upserted {
		s.publish(ctx, feed.EventUpdate, &upserted[i], nil)
	}
	return len(upserted), nil
}

func (s *TicketService) publish(ctx context.Context, typ feed.EventType, newRow, oldRow *domain.Ticket) {
	var newAny, oldAny any
	if newRow != nil {
		newAny = newRow
	}
	if oldRow != nil {
		oldAny = oldRow
	}
	ev, err := feed.NewEvent(feed.TableTickets, typ, newAny, oldAny)
	if err != nil {
		s.logger.Warn("encode ticket event", zap.Error(err))
		return
	}
	if err := s.feed.Publish(ctx, ev, ""); err != nil {
		s.logger.Warn("publish ticket event", zap.Error(err))
	}
}

func validateDraft(draft *TicketDraft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return apperrors.NewValidationError("ticket_name required", nil)
	}
	if strings.TrimSpace(draft.Assignee) == "" {
		return apperrors.NewValidationError("assignee required", nil)
	}
	if draft.Status == "" {
		draft.Status = domain.TicketStatusAssigned
	}
	if !draft.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": draft.Status})
	}
	if !draft.CTI.Valid() {
		return apperrors.NewValidationError("invalid cti", map[string]any{"cti": draft.CTI})
	}
	if draft.ExternalID == "" {
		draft.ExternalID = generateTicketKey()
	}
	return nil
}

func generateTicketKey() string {
	return "TKT-" + strings.ToUpper(uuid.NewString()[:8])
}
