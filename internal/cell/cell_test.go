package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	assert.Equal(t, "2_3", ID(2, 3))
	assert.Equal(t, "0_0", Cell{}.ID())
	assert.Equal(t, "12_104", Cell{Row: 12, Col: 104}.ID())
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "heat_5_5", Cell{Row: 5, Col: 5}.StorageKey())
}

func TestParse_RoundTrip(t *testing.T) {
	for _, c := range []Cell{{0, 0}, {2, 3}, {40, 7}} {
		got, err := Parse(c.ID())
		require.NoError(t, err)
		assert.Equal(t, c, got)

		got, err = FromStorageKey(c.StorageKey())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, id := range []string{"", "2", "2_", "_3", "a_b", "1_2_3", "2-3"} {
		t.Run(id, func(t *testing.T) {
			_, err := Parse(id)
			assert.Error(t, err)
		})
	}
}

func TestFromStorageKey_MissingPrefix(t *testing.T) {
	_, err := FromStorageKey("2_3")
	assert.Error(t, err)
}

func TestNewGrid(t *testing.T) {
	g := NewGrid(2, 3)
	require.Len(t, g, 6)
	assert.Equal(t, Cell{Row: 0, Col: 0}, g[0])
	assert.Equal(t, Cell{Row: 0, Col: 2}, g[2])
	assert.Equal(t, Cell{Row: 1, Col: 0}, g[3])
	assert.True(t, g.Contains(Cell{Row: 1, Col: 2}))
	assert.False(t, g.Contains(Cell{Row: 2, Col: 0}))

	assert.Empty(t, NewGrid(0, 5))
}

func TestNewGrid_Deterministic(t *testing.T) {
	assert.Equal(t, NewGrid(4, 4), NewGrid(4, 4))
}
