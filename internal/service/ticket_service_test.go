package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/repository"
)

type fakeTicketRepo struct {
	byID  map[string]*domain.Ticket
	byExt map[string]string
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		byID:  make(map[string]*domain.Ticket),
		byExt: make(map[string]string),
	}
}

func (r *fakeTicketRepo) List(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, int, error) {
	items := make([]domain.Ticket, 0, len(r.byID))
	for _, t := range r.byID {
		items = append(items, *t)
	}
	return items, len(items), nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	clone := *ticket
	r.byID[ticket.ID] = &clone
	r.byExt[ticket.ExternalID] = ticket.ID
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, id string, patch repository.TicketPatch) (*domain.Ticket, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id string) error {
	if t, ok := r.byID[id]; ok {
		delete(r.byExt, t.ExternalID)
	}
	delete(r.byID, id)
	return nil
}

// UpsertBatch conflicts on external id like the SQL does: a known key
// updates the existing row in place, keeping its id.
func (r *fakeTicketRepo) UpsertBatch(_ context.Context, tickets []domain.Ticket) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		t := tickets[i]
		if id, ok := r.byExt[t.ExternalID]; ok {
			existing := r.byID[id]
			existing.Name = t.Name
			existing.Status = t.Status
			existing.Assignee = t.Assignee
			existing.CTI = t.CTI
			existing.Notes = t.Notes
			out = append(out, *existing)
			continue
		}
		t.ID = uuid.NewString()
		clone := t
		r.byID[t.ID] = &clone
		r.byExt[t.ExternalID] = t.ID
		out = append(out, t)
	}
	return out, nil
}

func newTicketService(repo repository.TicketRepository, f feed.Feed) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Feed:       f,
		Logger:     zap.NewNop(),
	})
}

func TestCreateDefaultsAndGeneratedKey(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTicketService(repo, feed.NewMemoryFeed())

	created, err := svc.Create(context.Background(), TicketDraft{
		Name:     "Replace failed PSU",
		Assignee: "dana@example.com",
		CTI:      domain.CategoryHardware,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAssigned, created.Status)
	assert.True(t, strings.HasPrefix(created.ExternalID, "TKT-"), "generated key: %s", created.ExternalID)
	assert.Len(t, created.ExternalID, len("TKT-")+8)
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	svc := newTicketService(newFakeTicketRepo(), feed.NewMemoryFeed())
	ctx := context.Background()

	_, err := svc.Create(ctx, TicketDraft{Assignee: "dana@example.com", CTI: domain.CategoryHardware})
	assert.Error(t, err, "missing name")

	_, err = svc.Create(ctx, TicketDraft{Name: "x", CTI: domain.CategoryHardware})
	assert.Error(t, err, "missing assignee")

	_, err = svc.Create(ctx, TicketDraft{Name: "x", Assignee: "y", CTI: "plumbing"})
	assert.Error(t, err, "unknown cti")

	_, err = svc.Create(ctx, TicketDraft{Name: "x", Assignee: "y", CTI: domain.CategoryNetworking, Status: "archived"})
	assert.Error(t, err, "unknown status")
}

func TestMutationsPublishFeedEvents(t *testing.T) {
	repo := newFakeTicketRepo()
	memFeed := feed.NewMemoryFeed()
	svc := newTicketService(repo, memFeed)
	ctx := context.Background()

	var events []feed.Event
	stop, err := memFeed.Subscribe(ctx, feed.TableTickets, "", func(ev feed.Event) { events = append(events, ev) })
	require.NoError(t, err)
	defer stop()

	created, err := svc.Create(ctx, TicketDraft{
		Name:     "Switch port flapping",
		Assignee: "lee@example.com",
		CTI:      domain.CategoryNetworking,
	})
	require.NoError(t, err)

	status := domain.TicketStatusResolved
	_, err = svc.Update(ctx, created.ID, repository.TicketPatch{Status: &status})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	require.Len(t, events, 3)
	assert.Equal(t, feed.EventInsert, events[0].Type)
	assert.Equal(t, feed.EventUpdate, events[1].Type)
	assert.Equal(t, feed.EventDelete, events[2].Type)

	var gone domain.Ticket
	require.NoError(t, events[2].DecodeOld(&gone))
	assert.Equal(t, created.ID, gone.ID)
}

func TestUpsertBatchRequiresValidRowsAndAnnouncesEach(t *testing.T) {
	repo := newFakeTicketRepo()
	memFeed := feed.NewMemoryFeed()
	svc := newTicketService(repo, memFeed)
	ctx := context.Background()

	var updates int
	stop, err := memFeed.Subscribe(ctx, feed.TableTickets, "", func(ev feed.Event) {
		if ev.Type == feed.EventUpdate {
			updates++
		}
	})
	require.NoError(t, err)
	defer stop()

	_, err = svc.UpsertBatch(ctx, []TicketDraft{
		{ExternalID: "INC-1", Name: "ok", Assignee: "a", CTI: domain.CategoryHardware},
		{ExternalID: "INC-2", Name: "", Assignee: "a", CTI: domain.CategoryHardware},
	})
	assert.Error(t, err, "invalid row rejects the whole batch")
	assert.Zero(t, updates)

	count, err := svc.UpsertBatch(ctx, []TicketDraft{
		{ExternalID: "INC-1", Name: "ok", Assignee: "a", CTI: domain.CategoryHardware},
		{ExternalID: "INC-2", Name: "also ok", Assignee: "b", CTI: domain.CategoryNetworking},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, updates)
}

func TestUpsertBatchIdempotentOnExternalID(t *testing.T) {
	repo := newFakeTicketRepo()
	svc := newTicketService(repo, feed.NewMemoryFeed())
	ctx := context.Background()

	count, err := svc.UpsertBatch(ctx, []TicketDraft{
		{ExternalID: "INC-1", Name: "first import", Assignee: "a", CTI: domain.CategoryHardware},
		{ExternalID: "INC-2", Name: "first import", Assignee: "a", CTI: domain.CategoryHardware},
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Len(t, repo.byID, 2)

	firstID := repo.byExt["INC-1"]

	// Importing the same keys again must not grow the set; the second
	// payload's values win and row identity is stable.
	count, err = svc.UpsertBatch(ctx, []TicketDraft{
		{ExternalID: "INC-1", Name: "second import", Assignee: "b", CTI: domain.CategoryNetworking},
		{ExternalID: "INC-2", Name: "second import", Assignee: "b", CTI: domain.CategoryNetworking},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, repo.byID, 2)
	assert.Equal(t, firstID, repo.byExt["INC-1"])

	got, err := svc.Get(ctx, firstID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second import", got.Name)
	assert.Equal(t, "b", got.Assignee)
	assert.Equal(t, domain.CategoryNetworking, got.CTI)
}
