package listview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shift-desk/internal/domain"
)

func ticketFixture() []domain.Ticket {
	notes := "replace the faulty switch"
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Ticket{
		{
			ID: "1", ExternalID: "INC-100", Name: "printer jam",
			Status: domain.TicketStatusPending, Assignee: "a.lee@example.com",
			CTI: domain.CategoryHardware, LastActivityAt: base.Add(3 * time.Hour),
		},
		{
			ID: "2", ExternalID: "INC-200", Name: "switch port flapping",
			Status: domain.TicketStatusResolved, Assignee: "b.kim@example.com",
			CTI: domain.CategoryNetworking, Notes: &notes,
			LastActivityAt: base.Add(1 * time.Hour),
		},
		{
			ID: "3", ExternalID: "INC-300", Name: "laptop battery",
			Status: domain.TicketStatusEscalated, Assignee: "a.lee@example.com",
			CTI: domain.CategoryHardware, LastActivityAt: base.Add(2 * time.Hour),
		},
	}
}

func noopUpdater(context.Context, string, domain.TicketStatus) error { return nil }

func TestFilterComposition(t *testing.T) {
	v := New(10, noopUpdater)
	v.SetTickets(ticketFixture())

	tests := []struct {
		name    string
		filters Filters
		wantIDs []string
	}{
		{
			name:    "no filters passes everything",
			filters: Filters{},
			wantIDs: []string{"1", "2", "3"},
		},
		{
			name:    "status filter excludes non-members",
			filters: Filters{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}},
			wantIDs: []string{"2"},
		},
		{
			name: "status and category compose conjunctively",
			filters: Filters{
				Statuses:   []domain.TicketStatus{domain.TicketStatusPending},
				Categories: []domain.Category{domain.CategoryHardware},
			},
			wantIDs: []string{"1"},
		},
		{
			name:    "assignee substring is case-insensitive",
			filters: Filters{Assignee: "A.LEE"},
			wantIDs: []string{"1", "3"},
		},
		{
			name:    "query matches external id",
			filters: Filters{Query: "inc-100"},
			wantIDs: []string{"1"},
		},
		{
			name:    "query matches notes",
			filters: Filters{Query: "faulty switch"},
			wantIDs: []string{"2"},
		},
		{
			name:    "query matches title",
			filters: Filters{Query: "battery"},
			wantIDs: []string{"3"},
		},
		{
			name: "pending ticket excluded by resolved-only filter",
			filters: Filters{
				Statuses: []domain.TicketStatus{domain.TicketStatusResolved},
				Assignee: "a.lee",
			},
			wantIDs: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v.SetFilters(tt.filters)
			var got []string
			for _, row := range v.filtered() {
				got = append(got, row.ID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestSortByTimestampAndToggle(t *testing.T) {
	v := New(10, noopUpdater)
	v.SetTickets(ticketFixture())

	// Default: last activity, newest first.
	rows := v.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "3", "2"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	// Toggling the active column flips direction.
	v.ToggleSort(ColLastActivityAt)
	rows = v.Rows()
	assert.Equal(t, []string{"2", "3", "1"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	// Switching column starts ascending.
	v.ToggleSort(ColExternalID)
	col, dir := v.Sort()
	assert.Equal(t, ColExternalID, col)
	assert.Equal(t, Asc, dir)
	rows = v.Rows()
	assert.Equal(t, "INC-100", rows[0].ExternalID)
}

func TestSortMissingTimestampsCompareAsZero(t *testing.T) {
	v := New(10, noopUpdater)
	tickets := ticketFixture()
	tickets[0].LastActivityAt = time.Time{}
	v.SetTickets(tickets)

	v.ToggleSort(ColLastActivityAt) // flip default desc to asc
	rows := v.Rows()
	assert.Equal(t, "1", rows[0].ID)
}

func TestPaginationClamp(t *testing.T) {
	v := New(2, noopUpdater)
	v.SetTickets(ticketFixture())

	assert.Equal(t, 2, v.TotalPages())

	v.SetPage(99)
	assert.Equal(t, 2, v.Page())
	assert.Len(t, v.Rows(), 1)

	v.SetPage(-5)
	assert.Equal(t, 1, v.Page())
	assert.Len(t, v.Rows(), 2)

	// An empty filtered set still has one page.
	v.SetFilters(Filters{Query: "no such ticket"})
	assert.Equal(t, 1, v.TotalPages())
	assert.Equal(t, 1, v.Page())
	assert.Empty(t, v.Rows())
}

func TestOptimisticStatusEdit(t *testing.T) {
	t.Run("applies immediately and persists", func(t *testing.T) {
		var persisted domain.TicketStatus
		v := New(10, func(_ context.Context, id string, status domain.TicketStatus) error {
			persisted = status
			return nil
		})
		v.SetTickets(ticketFixture())

		err := v.UpdateStatus(context.Background(), "1", domain.TicketStatusResolved)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, persisted)
		assert.Equal(t, domain.TicketStatusResolved, v.tickets[0].Status)
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		v := New(10, func(context.Context, string, domain.TicketStatus) error {
			return errors.New("store down")
		})
		v.SetTickets(ticketFixture())

		err := v.UpdateStatus(context.Background(), "1", domain.TicketStatusResolved)
		require.Error(t, err)
		assert.Equal(t, domain.TicketStatusPending, v.tickets[0].Status)
	})
}

func TestStats(t *testing.T) {
	v := New(10, noopUpdater)
	v.SetTickets(ticketFixture())

	stats := v.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Resolved)
}

func TestParseFilters(t *testing.T) {
	f := ParseFilters("printer", "pending, resolved", "hardware", "a.lee")
	assert.Equal(t, "printer", f.Query)
	assert.Equal(t, "a.lee", f.Assignee)
	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusResolved}, f.Statuses)
	assert.Equal(t, []domain.Category{domain.CategoryHardware}, f.Categories)

	// Unknown members are dropped rather than filtering everything out.
	f = ParseFilters("", "archived", "plumbing", "")
	assert.Empty(t, f.Statuses)
	assert.Empty(t, f.Categories)

	v := New(10, noopUpdater)
	v.SetTickets(ticketFixture())
	v.SetFilters(ParseFilters("", "pending,escalated", "hardware", ""))
	assert.Equal(t, 2, v.FilteredCount())
}
