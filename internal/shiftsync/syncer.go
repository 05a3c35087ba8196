// Package shiftsync keeps one user's active shift continuously
// consistent: the shift row, its linked tickets, and each link's
// completion state. Three inputs converge on a single owned model: the
// shift-ticket change feed, the global ticket change feed, and user
// commands. All state is mutated by one goroutine processing a command
// queue, so feed notifications and commands serialize and the
// completion reconciliation cannot race itself.
package shiftsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/shift-desk/internal/domain"
	"github.com/spec-kit/shift-desk/internal/feed"
	"github.com/spec-kit/shift-desk/internal/shift"
	apperrors "github.com/spec-kit/shift-desk/pkg/util"
)

// ErrConfirmationRequired gates link removal behind an explicit yes.
var ErrConfirmationRequired = errors.New("removal requires confirmation")

// ErrShiftAlreadyActive is returned by Start when a shift is running.
var ErrShiftAlreadyActive = errors.New("a shift is already active")

// ErrNoActiveShift is returned by commands that need a running shift.
var ErrNoActiveShift = errors.New("no active shift")

// Store is the slice of the shift service the syncer drives. Every
// mutation made through it is expected to surface on the change feed.
type Store interface {
	ActiveShift(ctx context.Context, userEmail string) (*domain.Shift, error)
	StartShift(ctx context.Context, userEmail string, notes *string) (*domain.Shift, error)
	EndShift(ctx context.Context, shiftID string, notes *string) (*domain.Shift, error)
	ShiftLinks(ctx context.Context, shiftID string) ([]domain.LinkedTicket, error)
	AddShiftTicket(ctx context.Context, shiftID, ticketID string, priority int, notes *string) (*domain.ShiftTicketLink, error)
	SetShiftTicketCompleted(ctx context.Context, linkID string, completed bool) (*domain.ShiftTicketLink, error)
	RemoveShiftTicket(ctx context.Context, linkID string) error
}

// Phase names the two reachable states.
type Phase string

const (
	PhaseNoActiveShift Phase = "no_active_shift"
	PhaseActiveShift   Phase = "active_shift"
)

// View is the read model handed to consumers. Links is a copy; callers
// never see in-place mutation.
type View struct {
	Phase          Phase
	Shift          *domain.Shift
	Links          []domain.LinkedTicket
	CompletedCount int
	TotalCount     int
	CompletionRate int
	Duration       string
}

// Options tunes the syncer. Zero values pick production defaults.
type Options struct {
	ReconcileDebounce time.Duration
	DurationTick      time.Duration
	Now               func() time.Time
}

type command struct {
	fn    func() error
	reply chan error
}

// Syncer owns the active-shift model for one user.
type Syncer struct {
	store     Store
	feeds     feed.Feed
	logger    *zap.Logger
	userEmail string

	debounce time.Duration
	tick     time.Duration
	now      func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	commands chan command
	wg       sync.WaitGroup

	// Loop-owned state. Only the run goroutine touches these.
	shift              *domain.Shift
	links              []domain.LinkedTicket
	unsubLinks         func()
	unsubTickets       func()
	reconcileRequested bool
	reconcileArmed     bool
	refreshRequested   bool
	refreshArmed       bool

	mu   sync.RWMutex
	view View
}

// New builds and starts a syncer for the given user.
func New(store Store, feeds feed.Feed, logger *zap.Logger, userEmail string, opts Options) *Syncer {
	if opts.ReconcileDebounce <= 0 {
		opts.ReconcileDebounce = 500 * time.Millisecond
	}
	if opts.DurationTick <= 0 {
		opts.DurationTick = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		store:     store,
		feeds:     feeds,
		logger:    logger,
		userEmail: userEmail,
		debounce:  opts.ReconcileDebounce,
		tick:      opts.DurationTick,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		commands:  make(chan command, 256),
		view:      View{Phase: PhaseNoActiveShift},
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Close tears down subscriptions, timers, and the command loop.
func (s *Syncer) Close() {
	s.cancel()
	s.wg.Wait()
}

// Snapshot returns the current read model.
func (s *Syncer) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Load discovers an existing active shift and enters it.
func (s *Syncer) Load(ctx context.Context) error {
	return s.do(func() error {
		active, err := s.store.ActiveShift(ctx, s.userEmail)
		if err != nil {
			return err
		}
		if active == nil {
			return nil
		}
		return s.enter(active)
	})
}

// Start creates a new shift and enters it with an empty link list.
func (s *Syncer) Start(ctx context.Context, notes *string) error {
	return s.do(func() error {
		if s.shift != nil {
			return ErrShiftAlreadyActive
		}
		created, err := s.store.StartShift(ctx, s.userEmail, notes)
		if err != nil {
			return err
		}
		return s.enter(created)
	})
}

// End completes the active shift and discards the link list.
func (s *Syncer) End(ctx context.Context, notes *string) error {
	return s.do(func() error {
		if s.shift == nil {
			return ErrNoActiveShift
		}
		if _, err := s.store.EndShift(ctx, s.shift.ID, notes); err != nil {
			return err
		}
		s.leave()
		return nil
	})
}

// AddTicket links a ticket to the active shift.
func (s *Syncer) AddTicket(ctx context.Context, ticketID string, priority int, notes *string) error {
	return s.do(func() error {
		if s.shift == nil {
			return ErrNoActiveShift
		}
		if _, err := s.store.AddShiftTicket(ctx, s.shift.ID, ticketID, priority, notes); err != nil {
			return err
		}
		return s.reloadLinks(ctx)
	})
}

// ToggleComplete optimistically flips a link's completion and persists
// it. On failure the exact pre-toggle values are restored, so two
// overlapping toggles cannot double-revert each other.
func (s *Syncer) ToggleComplete(ctx context.Context, linkID string) error {
	return s.do(func() error {
		if s.shift == nil {
			return ErrNoActiveShift
		}
		idx := s.linkIndex(linkID)
		if idx < 0 {
			return apperrors.NewNotFound("shift ticket", map[string]any{"id": linkID})
		}

		prevCompleted := s.links[idx].Completed
		prevCompletedAt := s.links[idx].CompletedAt

		s.links[idx].Completed = !prevCompleted
		if s.links[idx].Completed {
			now := s.now()
			s.links[idx].CompletedAt = &now
		} else {
			s.links[idx].CompletedAt = nil
		}
		s.publishView()

		updated, err := s.store.SetShiftTicketCompleted(ctx, linkID, !prevCompleted)
		if err != nil {
			if idx = s.linkIndex(linkID); idx >= 0 {
				s.links[idx].Completed = prevCompleted
				s.links[idx].CompletedAt = prevCompletedAt
				s.publishView()
			}
			return err
		}
		if updated != nil {
			if idx = s.linkIndex(linkID); idx >= 0 {
				s.links[idx].Completed = updated.Completed
				s.links[idx].CompletedAt = updated.CompletedAt
				s.publishView()
			}
		}
		return nil
	})
}

// RemoveTicket deletes a link after explicit confirmation. Local state
// is not touched here; the feed's delete notification is the single
// source of truth for removal.
func (s *Syncer) RemoveTicket(ctx context.Context, linkID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	return s.do(func() error {
		if s.shift == nil {
			return ErrNoActiveShift
		}
		return s.store.RemoveShiftTicket(ctx, linkID)
	})
}

func (s *Syncer) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.commands <- command{fn: fn, reply: reply}:
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// enqueue posts a fire-and-forget command from a feed goroutine. A full
// queue falls back to an async send so feed callbacks never block, which
// matters when a publish happens synchronously inside a loop command.
func (s *Syncer) enqueue(fn func() error) {
	cmd := command{fn: fn}
	select {
	case s.commands <- cmd:
	case <-s.ctx.Done():
	default:
		go func() {
			select {
			case s.commands <- cmd:
			case <-s.ctx.Done():
			}
		}()
	}
}

func (s *Syncer) run() {
	defer s.wg.Done()

	reconcile := time.NewTimer(s.debounce)
	if !reconcile.Stop() {
		<-reconcile.C
	}
	refresh := time.NewTimer(s.debounce)
	if !refresh.Stop() {
		<-refresh.C
	}
	ticker := time.NewTicker(s.tick)

	defer func() {
		reconcile.Stop()
		refresh.Stop()
		ticker.Stop()
		s.leave()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.commands:
			err := cmd.fn()
			if cmd.reply != nil {
				cmd.reply <- err
			} else if err != nil {
				s.logger.Warn("feed command failed", zap.Error(err))
			}
			s.armTimers(reconcile, refresh)
		case <-reconcile.C:
			s.reconcileArmed = false
			s.reconcileCompletion()
			s.armTimers(reconcile, refresh)
		case <-refresh.C:
			s.refreshArmed = false
			if s.shift != nil {
				if err := s.reloadLinks(s.ctx); err != nil {
					s.logger.Warn("link refresh failed", zap.Error(err))
				}
			}
			s.armTimers(reconcile, refresh)
		case <-ticker.C:
			s.refreshDuration()
		}
	}
}

// armTimers starts a timer for any newly requested work. A timer that
// is already running is left alone, so a burst of requests coalesces
// into one firing at most one debounce window after the first request.
func (s *Syncer) armTimers(reconcile, refresh *time.Timer) {
	if s.reconcileRequested && !s.reconcileArmed {
		reconcile.Reset(s.debounce)
		s.reconcileArmed = true
	}
	s.reconcileRequested = false
	if s.refreshRequested && !s.refreshArmed {
		refresh.Reset(s.debounce)
		s.refreshArmed = true
	}
	s.refreshRequested = false
}

func (s *Syncer) enter(active *domain.Shift) error {
	s.shift = active

	unsubLinks, err := s.feeds.Subscribe(s.ctx, feed.TableShiftTickets, active.ID, s.onLinkEvent)
	if err != nil {
		s.shift = nil
		return err
	}
	unsubTickets, err := s.feeds.Subscribe(s.ctx, feed.TableTickets, "", s.onTicketEvent)
	if err != nil {
		unsubLinks()
		s.shift = nil
		return err
	}
	s.unsubLinks = unsubLinks
	s.unsubTickets = unsubTickets

	if err := s.reloadLinks(s.ctx); err != nil {
		s.leave()
		return err
	}
	return nil
}

func (s *Syncer) leave() {
	if s.unsubLinks != nil {
		s.unsubLinks()
		s.unsubLinks = nil
	}
	if s.unsubTickets != nil {
		s.unsubTickets()
		s.unsubTickets = nil
	}
	s.shift = nil
	s.links = nil
	s.publishView()
}

// onLinkEvent handles the shift-ticket feed. Inserts and updates
// re-fetch the full joined list so ticket data stays fresh; deletes are
// applied locally from the old image without a round trip.
func (s *Syncer) onLinkEvent(ev feed.Event) {
	s.enqueue(func() error {
		if s.shift == nil {
			return nil
		}
		switch ev.Type {
		case feed.EventInsert, feed.EventUpdate:
			if err := s.reloadLinks(s.ctx); err != nil {
				return err
			}
		case feed.EventDelete:
			var old domain.ShiftTicketLink
			if err := ev.DecodeOld(&old); err != nil {
				return err
			}
			if old.ShiftID != s.shift.ID {
				return nil
			}
			if idx := s.linkIndex(old.ID); idx >= 0 {
				s.links = append(s.links[:idx], s.links[idx+1:]...)
				s.publishView()
				s.scheduleReconcile()
			}
		}
		return nil
	})
}

// onTicketEvent handles the global ticket feed. A change to any
// currently-linked ticket schedules one coalesced re-fetch; a burst of
// notifications from a single save collapses into a single reload.
func (s *Syncer) onTicketEvent(ev feed.Event) {
	if ev.Type != feed.EventInsert && ev.Type != feed.EventUpdate {
		return
	}
	s.enqueue(func() error {
		if s.shift == nil || len(ev.New) == 0 {
			return nil
		}
		var updated domain.Ticket
		if err := ev.DecodeNew(&updated); err != nil {
			return err
		}
		for i := range s.links {
			if s.links[i].TicketID == updated.ID {
				s.scheduleRefresh()
				return nil
			}
		}
		return nil
	})
}

func (s *Syncer) reloadLinks(ctx context.Context) error {
	if s.shift == nil {
		return nil
	}
	links, err := s.store.ShiftLinks(ctx, s.shift.ID)
	if err != nil {
		return err
	}
	s.links = links
	s.publishView()
	s.scheduleReconcile()
	return nil
}

// reconcileCompletion drives every link's completed flag toward the
// fixed point completed == (ticket status is resolved). Each mutation
// echoes back through the link feed, whose re-scan finds the two sides
// already consistent and performs no further writes, so the loop
// converges in at most one extra round trip per link and never
// oscillates. One failing link is logged and skipped so it cannot block
// the rest.
func (s *Syncer) reconcileCompletion() {
	if s.shift == nil {
		return
	}
	for i := range s.links {
		link := &s.links[i]
		want := link.Ticket.Status == domain.TicketStatusResolved
		if link.Completed == want {
			continue
		}
		updated, err := s.store.SetShiftTicketCompleted(s.ctx, link.ID, want)
		if err != nil {
			s.logger.Warn("completion reconcile failed for link",
				zap.String("link_id", link.ID),
				zap.String("external_id", link.Ticket.ExternalID),
				zap.Error(err))
			continue
		}
		if updated != nil {
			link.Completed = updated.Completed
			link.CompletedAt = updated.CompletedAt
		}
	}
	s.publishView()
}

func (s *Syncer) scheduleReconcile() {
	s.reconcileRequested = true
}

func (s *Syncer) scheduleRefresh() {
	s.refreshRequested = true
}

func (s *Syncer) linkIndex(linkID string) int {
	for i := range s.links {
		if s.links[i].ID == linkID {
			return i
		}
	}
	return -1
}

func (s *Syncer) refreshDuration() {
	if s.shift == nil {
		return
	}
	s.publishView()
}

// publishView recomputes derived values and swaps in a copied snapshot.
func (s *Syncer) publishView() {
	view := View{Phase: PhaseNoActiveShift}
	if s.shift != nil {
		shiftCopy := *s.shift
		view.Phase = PhaseActiveShift
		view.Shift = &shiftCopy
		view.Links = append([]domain.LinkedTicket(nil), s.links...)
		view.TotalCount = len(s.links)
		for i := range s.links {
			if s.links[i].Completed {
				view.CompletedCount++
			}
		}
		if view.TotalCount > 0 {
			view.CompletionRate = int(float64(view.CompletedCount)/float64(view.TotalCount)*100 + 0.5)
		}
		view.Duration = shift.Duration(s.shift.StartedAt, s.shift.EndedAt, s.now())
	}

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
}
