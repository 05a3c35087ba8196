package shift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentShiftDate(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "just before boundary belongs to yesterday",
			now:  time.Date(2025, 3, 10, 6, 59, 0, 0, time.Local),
			want: "2025-03-09",
		},
		{
			name: "at boundary belongs to today",
			now:  time.Date(2025, 3, 10, 7, 0, 0, 0, time.Local),
			want: "2025-03-10",
		},
		{
			name: "midnight belongs to yesterday",
			now:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local),
			want: "2025-03-09",
		},
		{
			name: "evening belongs to today",
			now:  time.Date(2025, 3, 10, 22, 30, 0, 0, time.Local),
			want: "2025-03-10",
		},
		{
			name: "rolls over month boundary",
			now:  time.Date(2025, 3, 1, 2, 0, 0, 0, time.Local),
			want: "2025-02-28",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrentShiftDate(tt.now, DefaultBoundaryHour))
		})
	}
}

func TestDuration(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("ended shift", func(t *testing.T) {
		end := start.Add(30 * time.Minute)
		assert.Equal(t, "0h 30m", Duration(start, &end, end.Add(time.Hour)))
	})

	t.Run("running shift uses now", func(t *testing.T) {
		now := start.Add(2*time.Hour + 5*time.Minute)
		assert.Equal(t, "2h 5m", Duration(start, nil, now))
	})

	t.Run("truncates seconds toward zero", func(t *testing.T) {
		end := start.Add(59 * time.Second)
		assert.Equal(t, "0h 0m", Duration(start, &end, end))
	})

	t.Run("negative elapsed clamps to zero", func(t *testing.T) {
		now := start.Add(-time.Minute)
		assert.Equal(t, "0h 0m", Duration(start, nil, now))
	})
}
