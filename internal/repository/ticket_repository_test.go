package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeTicketSortColumn(t *testing.T) {
	tests := []struct {
		name string
		col  string
		want string
	}{
		{"allowed column passes through", "external_id", "external_id"},
		{"timestamp column passes through", "created_at", "created_at"},
		{"unknown column falls back", "password_hash", "last_activity_at"},
		{"empty column falls back", "", "last_activity_at"},
		{"injection attempt falls back", "id; DROP TABLE tickets", "last_activity_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeTicketSortColumn(tt.col))
		})
	}
}

func TestSafeTicketSortColumnFallbackMatchesUnspecified(t *testing.T) {
	// An unrecognized sort column must behave exactly like no sort column.
	assert.Equal(t, SafeTicketSortColumn(""), SafeTicketSortColumn("bogus"))
}
