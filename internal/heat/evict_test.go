package heat

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dotheat/internal/cell"
	"github.com/roach88/dotheat/internal/record"
	"github.com/roach88/dotheat/internal/store"
)

func TestEviction_BoundAndSurvivors(t *testing.T) {
	h := newHarness(t, WithMaxCells(5))
	ctx := context.Background()

	var clicked []cell.Cell
	for i := 0; i < 8; i++ {
		c := cell.Cell{Row: 0, Col: i}
		clicked = append(clicked, c)
		h.session.RecordClick(ctx, c)
	}
	h.session.Wait()

	entries, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	for _, c := range clicked[3:] {
		assert.Contains(t, keys, c.StorageKey())
	}

	counts := h.session.Counts()
	assert.Len(t, counts, 5)
	assert.NotContains(t, counts, "0_0")

	assert.ElementsMatch(t, []string{"heat_0_0", "heat_0_1", "heat_0_2"}, h.remote.deleteCalls())
	assert.NotContains(t, h.session.PendingWrites(), "0_0", "evicted cells leave the queue too")
}

func TestEviction_RecencyNotCount(t *testing.T) {
	h := newHarness(t, WithMaxCells(2))
	ctx := context.Background()
	a := cell.Cell{Row: 1, Col: 1}
	b := cell.Cell{Row: 1, Col: 2}
	c := cell.Cell{Row: 1, Col: 3}

	for i := 0; i < 10; i++ {
		h.session.RecordClick(ctx, a)
	}
	h.session.RecordClick(ctx, b)
	h.session.RecordClick(ctx, a) // a is now most recent
	h.session.RecordClick(ctx, c)
	h.session.Wait()

	assert.False(t, h.stored(t, b).Present(), "b had the oldest activity")
	assert.Equal(t, 11, h.stored(t, a).Record.Count)
	assert.Equal(t, 1, h.stored(t, c).Record.Count)
}

func TestEviction_RepeatedPassIsNoop(t *testing.T) {
	h := newHarness(t, WithMaxCells(3))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		h.session.RecordClick(ctx, cell.Cell{Row: i, Col: 0})
	}
	h.session.Wait()
	deletes := len(h.remote.deleteCalls())

	assert.Equal(t, 0, h.session.evict(ctx))
	assert.Equal(t, 0, h.session.evict(ctx))
	h.session.Wait()
	assert.Len(t, h.remote.deleteCalls(), deletes)
}

func TestEviction_ReclickStartsOver(t *testing.T) {
	h := newHarness(t, WithMaxCells(1))
	ctx := context.Background()
	a := cell.Cell{Row: 0, Col: 0}

	h.session.RecordClick(ctx, a)
	h.session.RecordClick(ctx, a)
	h.session.RecordClick(ctx, cell.Cell{Row: 0, Col: 1})
	h.session.Wait()

	assert.Equal(t, 1, h.session.RecordClick(ctx, a))
}

func TestEviction_SkipsRemoteWhileUnavailable(t *testing.T) {
	h := newHarness(t, WithMaxCells(1))
	h.remote.setAvailable(false)
	ctx := context.Background()

	h.session.RecordClick(ctx, cell.Cell{Row: 0, Col: 0})
	h.session.RecordClick(ctx, cell.Cell{Row: 0, Col: 1})
	h.session.Wait()

	assert.Empty(t, h.remote.deleteCalls())
	entries, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEviction_BoundHoldsUnderManyClicks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		h.session.RecordClick(ctx, cell.Cell{Row: i % 13, Col: i % 17})
		entries, err := h.store.List(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, len(entries), DefaultMaxCells, "after click %d", i)
	}
	h.session.Wait()
}

func TestOldestSurplus(t *testing.T) {
	var entries []store.Entry
	for i, seq := range []int64{5, 1, 9, 1, 3} {
		entries = append(entries, store.Entry{
			Key:    fmt.Sprintf("heat_0_%d", i),
			Record: record.ClickRecord{Count: 1, Sequence: seq},
		})
	}

	assert.Nil(t, oldestSurplus(entries, 5))
	assert.Nil(t, oldestSurplus(entries, 10))

	victims := oldestSurplus(entries, 2)
	require.Len(t, victims, 3)
	assert.Equal(t, "heat_0_1", victims[0].Key, "sequence tie broken by key")
	assert.Equal(t, "heat_0_3", victims[1].Key)
	assert.Equal(t, "heat_0_4", victims[2].Key)
	assert.Equal(t, "heat_0_0", entries[0].Key, "input is not reordered")
}
