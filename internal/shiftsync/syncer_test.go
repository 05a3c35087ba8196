package shiftsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/shift"
)

// fakeStore mimics the shift service: every mutation lands in local
// maps and is echoed onto the feed, like the production path.
type fakeStore struct {
	mu      sync.Mutex
	feed    *feed.MemoryFeed
	now     func() time.Time
	nextID  int
	shifts  map[string]*domain.Shift
	tickets map[string]domain.Ticket
	links   map[string]*domain.ShiftTicketLink

	failSetCompleted  error
	setCompletedCalls int
}

func newFakeStore(now func() time.Time) *fakeStore {
	return &fakeStore{
		feed:    feed.NewMemoryFeed(),
		now:     now,
		shifts:  make(map[string]*domain.Shift),
		tickets: make(map[string]domain.Ticket),
		links:   make(map[string]*domain.ShiftTicketLink),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) ActiveShift(_ context.Context, userEmail string) (*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shifts {
		if s.UserEmail == userEmail && s.Status == domain.ShiftStatusActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) StartShift(_ context.Context, userEmail string, notes *string) (*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.Shift{
		ID:        f.id("shift"),
		ShiftDate: f.now().Format("2006-01-02"),
		StartedAt: f.now(),
		UserEmail: userEmail,
		Status:    domain.ShiftStatusActive,
		Notes:     notes,
		CreatedAt: f.now(),
	}
	f.shifts[s.ID] = s
	copied := *s
	return &copied, nil
}

func (f *fakeStore) EndShift(_ context.Context, shiftID string, notes *string) (*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shifts[shiftID]
	if !ok {
		return nil, nil
	}
	ended := f.now()
	s.EndedAt = &ended
	s.Status = domain.ShiftStatusCompleted
	s.Notes = notes
	copied := *s
	return &copied, nil
}

func (f *fakeStore) ShiftLinks(_ context.Context, shiftID string) ([]domain.LinkedTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.LinkedTicket
	for _, link := range f.links {
		if link.ShiftID != shiftID {
			continue
		}
		result = append(result, domain.LinkedTicket{
			ShiftTicketLink: *link,
			Ticket:          f.tickets[link.TicketID],
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].AddedAt.Before(result[j].AddedAt)
	})
	return result, nil
}

func (f *fakeStore) AddShiftTicket(ctx context.Context, shiftID, ticketID string, priority int, notes *string) (*domain.ShiftTicketLink, error) {
	f.mu.Lock()
	link := &domain.ShiftTicketLink{
		ID:       f.id("link"),
		ShiftID:  shiftID,
		TicketID: ticketID,
		Priority: priority,
		Notes:    notes,
		AddedAt:  f.now(),
	}
	f.links[link.ID] = link
	copied := *link
	f.mu.Unlock()

	ev, _ := feed.NewEvent(feed.TableShiftTickets, feed.EventInsert, copied, nil)
	_ = f.feed.Publish(ctx, ev, shiftID)
	return &copied, nil
}

func (f *fakeStore) SetShiftTicketCompleted(ctx context.Context, linkID string, completed bool) (*domain.ShiftTicketLink, error) {
	f.mu.Lock()
	f.setCompletedCalls++
	if f.failSetCompleted != nil {
		err := f.failSetCompleted
		f.mu.Unlock()
		return nil, err
	}
	link, ok := f.links[linkID]
	if !ok {
		f.mu.Unlock()
		return nil, nil
	}
	old := *link
	link.Completed = completed
	if completed {
		now := f.now()
		link.CompletedAt = &now
	} else {
		link.CompletedAt = nil
	}
	copied := *link
	f.mu.Unlock()

	ev, _ := feed.NewEvent(feed.TableShiftTickets, feed.EventUpdate, copied, old)
	_ = f.feed.Publish(ctx, ev, copied.ShiftID)
	return &copied, nil
}

func (f *fakeStore) RemoveShiftTicket(ctx context.Context, linkID string) error {
	f.mu.Lock()
	link, ok := f.links[linkID]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	old := *link
	delete(f.links, linkID)
	f.mu.Unlock()

	ev, _ := feed.NewEvent(feed.TableShiftTickets, feed.EventDelete, nil, old)
	return f.feed.Publish(ctx, ev, old.ShiftID)
}

func (f *fakeStore) putTicket(t domain.Ticket) {
	f.mu.Lock()
	f.tickets[t.ID] = t
	f.mu.Unlock()
}

// setTicketStatus mutates a ticket and emits a global ticket event, as a
// detail-page save would.
func (f *fakeStore) setTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) {
	f.mu.Lock()
	t := f.tickets[ticketID]
	old := t
	t.Status = status
	f.tickets[ticketID] = t
	f.mu.Unlock()

	ev, _ := feed.NewEvent(feed.TableTickets, feed.EventUpdate, t, old)
	_ = f.feed.Publish(ctx, ev, "")
}

func (f *fakeStore) completedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCompletedCalls
}

func (f *fakeStore) linkCompleted(linkID string) (bool, *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[linkID]
	if !ok {
		return false, nil
	}
	return link.Completed, link.CompletedAt
}

func newTestSyncer(t *testing.T, store *fakeStore, now func() time.Time) *Syncer {
	t.Helper()
	s := New(store, store.feed, zap.NewNop(), "a.lee@example.com", Options{
		ReconcileDebounce: 5 * time.Millisecond,
		DurationTick:      time.Hour,
		Now:               now,
	})
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}

func TestLoadWithoutActiveShift(t *testing.T) {
	store := newFakeStore(time.Now)
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Load(context.Background()))
	view := s.Snapshot()
	assert.Equal(t, PhaseNoActiveShift, view.Phase)
	assert.Nil(t, view.Shift)
}

func TestStartAndEndShift(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(time.Now)
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Start(ctx, nil))
	view := s.Snapshot()
	require.Equal(t, PhaseActiveShift, view.Phase)
	assert.Empty(t, view.Links)
	assert.Zero(t, view.TotalCount)

	assert.ErrorIs(t, s.Start(ctx, nil), ErrShiftAlreadyActive)

	require.NoError(t, s.End(ctx, nil))
	view = s.Snapshot()
	assert.Equal(t, PhaseNoActiveShift, view.Phase)
	assert.Nil(t, view.Shift)
	assert.Empty(t, view.Links)

	assert.ErrorIs(t, s.End(ctx, nil), ErrNoActiveShift)
}

func TestAutoCompleteConvergence(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(time.Now)
	store.putTicket(domain.Ticket{ID: "t1", ExternalID: "INC-1", Status: domain.TicketStatusPending})
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Start(ctx, nil))
	require.NoError(t, s.AddTicket(ctx, "t1", 0, nil))
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 1 })

	linkID := s.Snapshot().Links[0].ID

	// Resolving the ticket auto-completes the link without a manual toggle.
	store.setTicketStatus(ctx, "t1", domain.TicketStatusResolved)
	waitFor(t, func() bool {
		done, at := store.linkCompleted(linkID)
		return done && at != nil
	})
	waitFor(t, func() bool {
		view := s.Snapshot()
		return view.CompletedCount == 1 && view.CompletionRate == 100
	})

	// Moving away from resolved clears completion again.
	store.setTicketStatus(ctx, "t1", domain.TicketStatusResearching)
	waitFor(t, func() bool {
		done, at := store.linkCompleted(linkID)
		return !done && at == nil
	})

	// Fixed point: once consistent, further scans issue no mutations.
	waitFor(t, func() bool { return s.Snapshot().CompletedCount == 0 })
	settled := store.completedCalls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, store.completedCalls())
}

func TestManualToggleAndRollback(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(time.Now)
	store.putTicket(domain.Ticket{ID: "t1", ExternalID: "INC-1", Status: domain.TicketStatusResolved})
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Start(ctx, nil))
	require.NoError(t, s.AddTicket(ctx, "t1", 0, nil))
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 1 })
	waitFor(t, func() bool { return s.Snapshot().CompletedCount == 1 })

	link := s.Snapshot().Links[0]
	prevAt := link.CompletedAt
	require.NotNil(t, prevAt)

	// Failing persistence restores the exact pre-toggle values.
	store.mu.Lock()
	store.failSetCompleted = errors.New("store down")
	store.mu.Unlock()

	err := s.ToggleComplete(ctx, link.ID)
	require.Error(t, err)
	view := s.Snapshot()
	require.Len(t, view.Links, 1)
	assert.True(t, view.Links[0].Completed)
	require.NotNil(t, view.Links[0].CompletedAt)
	assert.True(t, prevAt.Equal(*view.Links[0].CompletedAt))

	store.mu.Lock()
	store.failSetCompleted = nil
	store.mu.Unlock()

	// A successful toggle-off persists, but the ticket is still
	// resolved, so the background scan converges it back to completed.
	require.NoError(t, s.ToggleComplete(ctx, link.ID))
	waitFor(t, func() bool {
		done, _ := store.linkCompleted(link.ID)
		return done
	})
	waitFor(t, func() bool { return s.Snapshot().CompletedCount == 1 })
}

func TestRemoveTicketRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(time.Now)
	store.putTicket(domain.Ticket{ID: "t1", ExternalID: "INC-1", Status: domain.TicketStatusPending})
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Start(ctx, nil))
	require.NoError(t, s.AddTicket(ctx, "t1", 0, nil))
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 1 })

	linkID := s.Snapshot().Links[0].ID

	assert.ErrorIs(t, s.RemoveTicket(ctx, linkID, false), ErrConfirmationRequired)
	assert.Equal(t, 1, s.Snapshot().TotalCount)

	// Confirmed removal lands via the feed's delete branch.
	require.NoError(t, s.RemoveTicket(ctx, linkID, true))
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 0 })
}

func TestEndToEndShiftScenario(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		clockMu.Lock()
		clock = clock.Add(d)
		clockMu.Unlock()
	}

	store := newFakeStore(now)
	store.putTicket(domain.Ticket{ID: "t1", ExternalID: "INC-1", Status: domain.TicketStatusPending})
	store.putTicket(domain.Ticket{ID: "t2", ExternalID: "INC-2", Status: domain.TicketStatusPending})
	s := newTestSyncer(t, store, now)

	require.NoError(t, s.Start(ctx, nil))
	require.NoError(t, s.AddTicket(ctx, "t1", 0, nil))
	advance(time.Second)
	require.NoError(t, s.AddTicket(ctx, "t2", 1, nil))

	// Higher priority sorts first.
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 2 })
	view := s.Snapshot()
	assert.Equal(t, "INC-2", view.Links[0].Ticket.ExternalID)
	assert.Equal(t, "INC-1", view.Links[1].Ticket.ExternalID)

	// Resolving the priority-0 ticket completes its link automatically.
	store.setTicketStatus(ctx, "t1", domain.TicketStatusResolved)
	waitFor(t, func() bool {
		v := s.Snapshot()
		return v.CompletedCount == 1 && v.Links[1].Completed
	})
	assert.Equal(t, 50, s.Snapshot().CompletionRate)

	// Ending half an hour in renders a 30 minute duration. One second
	// already passed between the two adds.
	advance(29*time.Minute + 59*time.Second)
	shiftID := s.Snapshot().Shift.ID
	require.NoError(t, s.End(ctx, nil))

	store.mu.Lock()
	ended := *store.shifts[shiftID]
	store.mu.Unlock()
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, "0h 30m", shift.Duration(ended.StartedAt, ended.EndedAt, now()))
	assert.Equal(t, PhaseNoActiveShift, s.Snapshot().Phase)
}

func TestTicketFeedRefreshCoalesces(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(time.Now)
	store.putTicket(domain.Ticket{ID: "t1", ExternalID: "INC-1", Status: domain.TicketStatusPending})
	s := newTestSyncer(t, store, time.Now)

	require.NoError(t, s.Start(ctx, nil))
	require.NoError(t, s.AddTicket(ctx, "t1", 0, nil))
	waitFor(t, func() bool { return s.Snapshot().TotalCount == 1 })

	// A burst of notifications for one save must not amplify into a
	// mutation per event: the link converges once and stays put.
	for i := 0; i < 10; i++ {
		store.setTicketStatus(ctx, "t1", domain.TicketStatusResolved)
	}
	waitFor(t, func() bool { return s.Snapshot().CompletedCount == 1 })

	settled := store.completedCalls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, store.completedCalls())
	assert.Equal(t, 1, settled)
}
