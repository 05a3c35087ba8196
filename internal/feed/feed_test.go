package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestEventRoundTrip(t *testing.T) {
	ev, err := NewEvent(TableTickets, EventUpdate, row{ID: "a", Name: "after"}, row{ID: "a", Name: "before"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)

	var after, before row
	require.NoError(t, ev.DecodeNew(&after))
	require.NoError(t, ev.DecodeOld(&before))
	assert.Equal(t, "after", after.Name)
	assert.Equal(t, "before", before.Name)
}

func TestMemoryFeedScopedDelivery(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFeed()

	var global, scoped, other []Event
	stopGlobal, err := f.Subscribe(ctx, TableShiftTickets, "", func(ev Event) { global = append(global, ev) })
	require.NoError(t, err)
	defer stopGlobal()

	stopScoped, err := f.Subscribe(ctx, TableShiftTickets, "shift-1", func(ev Event) { scoped = append(scoped, ev) })
	require.NoError(t, err)
	defer stopScoped()

	stopOther, err := f.Subscribe(ctx, TableShiftTickets, "shift-2", func(ev Event) { other = append(other, ev) })
	require.NoError(t, err)

	ev, err := NewEvent(TableShiftTickets, EventInsert, row{ID: "l1"}, nil)
	require.NoError(t, err)
	require.NoError(t, f.Publish(ctx, ev, "shift-1"))

	assert.Len(t, global, 1)
	assert.Len(t, scoped, 1)
	assert.Empty(t, other)

	// A torn-down subscription stops receiving.
	stopOther()
	require.NoError(t, f.Publish(ctx, ev, "shift-2"))
	assert.Len(t, global, 2)
	assert.Empty(t, other)
}

func TestMemoryFeedTableIsolation(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFeed()

	var got []Event
	stop, err := f.Subscribe(ctx, TableComments, "", func(ev Event) { got = append(got, ev) })
	require.NoError(t, err)
	defer stop()

	ev, err := NewEvent(TableTickets, EventDelete, nil, row{ID: "t1"})
	require.NoError(t, err)
	require.NoError(t, f.Publish(ctx, ev, ""))

	assert.Empty(t, got)
}
