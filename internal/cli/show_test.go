package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dotheat/internal/record"
)

func TestShow_AdoptsOtherVisitorsCounts(t *testing.T) {
	env := newTestEnv(t)
	db := env.db("visitor")

	_, _, err := runCLI(t, "--config", env.config, "click", "--db", db, "0", "0")
	require.NoError(t, err)

	// Another visitor pushed the cell further.
	require.NoError(t, env.kv.Set(context.Background(), "heat_0_0", record.Encode(record.ClickRecord{Count: 5, Sequence: 40})))

	stdout, _, err := runCLI(t, "--config", env.config, "--format", "json", "show", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 4, resp.Data.Rows)
	assert.Equal(t, 4, resp.Data.Cols)
	assert.Equal(t, map[string]int{"0_0": 5}, resp.Data.Counts)
	assert.Equal(t, 1, resp.Data.Load.Hydrated)
	assert.Equal(t, 1, resp.Data.Load.Adopted)
	assert.True(t, resp.Data.Load.SyncCompleted)
}

func TestShow_Text(t *testing.T) {
	env := newTestEnv(t)
	db := env.db("visitor")
	_, _, err := runCLI(t, "--config", env.config, "click", "--db", db, "--times", "3", "1", "2")
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "--config", env.config, "show", "--db", db, "--rows", "2", "--cols", "3")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"  0 1 2\n"+
		"0 . . .\n"+
		"1 . . 3\n"+
		"\n"+
		"Restored: 1 cells, adopted 0 from remote\n"+
		"Sync: complete\n", stdout)
}

func TestShow_NeverLowersLocalCount(t *testing.T) {
	env := newTestEnv(t)
	db := env.db("visitor")
	_, _, err := runCLI(t, "--config", env.config, "click", "--db", db, "--times", "4", "3", "3")
	require.NoError(t, err)
	require.NoError(t, env.kv.Set(context.Background(), "heat_3_3", "1"))

	stdout, _, err := runCLI(t, "--config", env.config, "--format", "json", "show", "--db", db)
	require.NoError(t, err)
	var resp struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 4, resp.Data.Counts["3_3"])
	assert.Equal(t, 0, resp.Data.Load.Adopted)
}
