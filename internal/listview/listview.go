// Package listview holds the pure view-state for the ticket listing:
// filter composition, comparator sorting, pagination math, and the
// optimistic inline status edit. It performs no I/O of its own beyond
// the injected status updater.
package listview

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/spec-kit/shift-desk/internal/domain"
)

// DefaultPageSize is the ticket list page size.
const DefaultPageSize = 10

// Column names a sortable ticket column.
type Column string

const (
	ColExternalID     Column = "external_id"
	ColName           Column = "ticket_name"
	ColAssignee       Column = "assignee"
	ColStatus         Column = "status"
	ColCTI            Column = "cti"
	ColLastActivityAt Column = "last_activity_at"
	ColUpdatedAt      Column = "updated_at"
	ColCreatedAt      Column = "created_at"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filters compose conjunctively; empty members do not filter.
type Filters struct {
	Query      string
	Statuses   []domain.TicketStatus
	Categories []domain.Category
	Assignee   string
}

// ParseFilters builds Filters from raw query parameters. Status and
// category lists are comma separated; unknown members are dropped so a
// stray value cannot filter everything out.
func ParseFilters(query, statuses, categories, assignee string) Filters {
	f := Filters{Query: query, Assignee: assignee}
	for _, raw := range strings.Split(statuses, ",") {
		if s := domain.TicketStatus(strings.TrimSpace(raw)); s.Valid() {
			f.Statuses = append(f.Statuses, s)
		}
	}
	for _, raw := range strings.Split(categories, ",") {
		if c := domain.Category(strings.TrimSpace(raw)); c.Valid() {
			f.Categories = append(f.Categories, c)
		}
	}
	return f
}

// StatusUpdater persists an inline status change.
type StatusUpdater func(ctx context.Context, ticketID string, status domain.TicketStatus) error

// Stats summarizes the full (unfiltered) ticket set.
type Stats struct {
	Total    int
	Active   int
	Resolved int
}

// View is the ticket-list state. Not safe for concurrent use; it belongs
// to a single request/session context.
type View struct {
	tickets  []domain.Ticket
	filters  Filters
	page     int
	pageSize int
	sortBy   Column
	sortDir  Direction
	collator *collate.Collator
	update   StatusUpdater
}

// New builds an empty view sorted by last activity, newest first.
func New(pageSize int, update StatusUpdater) *View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &View{
		page:     1,
		pageSize: pageSize,
		sortBy:   ColLastActivityAt,
		sortDir:  Desc,
		collator: collate.New(language.Und),
		update:   update,
	}
}

// SetTickets replaces the backing ticket set.
func (v *View) SetTickets(tickets []domain.Ticket) {
	v.tickets = append([]domain.Ticket(nil), tickets...)
}

// SetFilters replaces the filters and snaps back to the first page.
func (v *View) SetFilters(filters Filters) {
	v.filters = filters
	v.page = 1
}

// ToggleSort flips direction on the current column, or switches to the
// given column ascending.
func (v *View) ToggleSort(col Column) {
	if v.sortBy == col {
		if v.sortDir == Asc {
			v.sortDir = Desc
		} else {
			v.sortDir = Asc
		}
		return
	}
	v.sortBy = col
	v.sortDir = Asc
}

// Sort returns the current sort column and direction.
func (v *View) Sort() (Column, Direction) {
	return v.sortBy, v.sortDir
}

// SetPage stores the requested page; reads clamp it.
func (v *View) SetPage(page int) {
	v.page = page
}

// Page returns the current page clamped into [1, TotalPages].
func (v *View) Page() int {
	page := v.page
	if page < 1 {
		page = 1
	}
	if max := v.TotalPages(); page > max {
		page = max
	}
	return page
}

// TotalPages is ceil(filtered/pageSize), minimum 1.
func (v *View) TotalPages() int {
	n := len(v.filtered())
	pages := (n + v.pageSize - 1) / v.pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// FilteredCount is the number of tickets passing the current filters.
func (v *View) FilteredCount() int {
	return len(v.filtered())
}

// Rows returns the current page of filtered, sorted tickets.
func (v *View) Rows() []domain.Ticket {
	sorted := v.sorted(v.filtered())
	start := (v.Page() - 1) * v.pageSize
	if start >= len(sorted) {
		return nil
	}
	end := start + v.pageSize
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end]
}

// Stats counts active and resolved tickets across the whole set.
func (v *View) Stats() Stats {
	stats := Stats{Total: len(v.tickets)}
	for i := range v.tickets {
		if v.tickets[i].Status == domain.TicketStatusResolved {
			stats.Resolved++
		} else {
			stats.Active++
		}
	}
	return stats
}

// UpdateStatus applies an inline status edit optimistically and rolls
// back to the previous value if persistence fails.
func (v *View) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus) error {
	idx := -1
	for i := range v.tickets {
		if v.tickets[i].ID == ticketID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	prev := v.tickets[idx].Status
	v.tickets[idx].Status = next

	if err := v.update(ctx, ticketID, next); err != nil {
		v.tickets[idx].Status = prev
		return err
	}
	return nil
}

func (v *View) filtered() []domain.Ticket {
	q := strings.ToLower(strings.TrimSpace(v.filters.Query))
	assignee := strings.ToLower(strings.TrimSpace(v.filters.Assignee))

	var result []domain.Ticket
	for _, t := range v.tickets {
		if len(v.filters.Statuses) > 0 && !containsStatus(v.filters.Statuses, t.Status) {
			continue
		}
		if len(v.filters.Categories) > 0 && !containsCategory(v.filters.Categories, t.CTI) {
			continue
		}
		if assignee != "" && !strings.Contains(strings.ToLower(t.Assignee), assignee) {
			continue
		}
		if q != "" && !matchesQuery(t, q) {
			continue
		}
		result = append(result, t)
	}
	return result
}

func matchesQuery(t domain.Ticket, q string) bool {
	if strings.Contains(strings.ToLower(t.ExternalID), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Name), q) {
		return true
	}
	if t.Notes != nil && strings.Contains(strings.ToLower(*t.Notes), q) {
		return true
	}
	return false
}

func (v *View) sorted(tickets []domain.Ticket) []domain.Ticket {
	copied := append([]domain.Ticket(nil), tickets...)
	dir := 1
	if v.sortDir == Desc {
		dir = -1
	}

	sort.Slice(copied, func(i, j int) bool {
		return v.compare(copied[i], copied[j])*dir < 0
	})
	return copied
}

func (v *View) compare(a, b domain.Ticket) int {
	if ta, tb, ok := timeValues(a, b, v.sortBy); ok {
		// Missing timestamps compare as epoch zero.
		am, bm := epochMillis(ta), epochMillis(tb)
		switch {
		case am < bm:
			return -1
		case am > bm:
			return 1
		default:
			return 0
		}
	}
	return v.collator.CompareString(stringValue(a, v.sortBy), stringValue(b, v.sortBy))
}

func timeValues(a, b domain.Ticket, col Column) (time.Time, time.Time, bool) {
	switch col {
	case ColLastActivityAt:
		return a.LastActivityAt, b.LastActivityAt, true
	case ColUpdatedAt:
		return a.UpdatedAt, b.UpdatedAt, true
	case ColCreatedAt:
		return a.CreatedAt, b.CreatedAt, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func stringValue(t domain.Ticket, col Column) string {
	switch col {
	case ColExternalID:
		return t.ExternalID
	case ColName:
		return t.Name
	case ColAssignee:
		return t.Assignee
	case ColStatus:
		return string(t.Status)
	case ColCTI:
		return string(t.CTI)
	default:
		return t.ExternalID
	}
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func containsStatus(set []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, member := range set {
		if member == s {
			return true
		}
	}
	return false
}

func containsCategory(set []domain.Category, c domain.Category) bool {
	for _, member := range set {
		if member == c {
			return true
		}
	}
	return false
}
