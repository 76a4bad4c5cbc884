package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ClickBeforeLoadContinuesFromCache(t *testing.T) {
	scenario := &Scenario{
		Name: "click_before_load",
		Grid: GridSpec{Rows: 2, Cols: 2},
		Local: []CellValue{
			{Cell: "0_0", Count: 4, Sequence: 9},
		},
		Flow: []Step{
			{Click: "0_0"},
			{Load: true},
		},
		Assertions: []Assertion{
			{Type: AssertCount, Cell: "0_0", Count: 5},
			{Type: AssertLocal, Cell: "0_0", Count: 5, Sequence: int64Ptr(10)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	// Hydration repaints the merged count without animation.
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Step: 1, Type: EventRepaint, Cell: "0_0", Count: 5, Animate: true}, result.Trace[0])
	assert.Equal(t, TraceEvent{Step: 2, Type: EventRepaint, Cell: "0_0", Count: 5}, result.Trace[1])
}

func TestRun_LoadRunsOnce(t *testing.T) {
	scenario := &Scenario{
		Name: "load_once",
		Grid: GridSpec{Rows: 1, Cols: 2},
		Local: []CellValue{
			{Cell: "0_1", Count: 2, Sequence: 1},
		},
		Flow: []Step{
			{Load: true},
			{Load: true},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventRepaint, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_LocalOnlyCountIsNotPushedOnLoad(t *testing.T) {
	scenario := &Scenario{
		Name: "local_only",
		Grid: GridSpec{Rows: 2, Cols: 2},
		Local: []CellValue{
			{Cell: "1_1", Count: 3, Sequence: 2},
		},
		Flow: []Step{
			{Load: true},
			{Advance: 10 * time.Second},
		},
		Assertions: []Assertion{
			{Type: AssertRemote, Cell: "1_1", Absent: true},
			{Type: AssertPending, Count: 0},
			{Type: AssertCachedCells, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CellsOutsideGridStayCached(t *testing.T) {
	scenario := &Scenario{
		Name: "outside_grid",
		Grid: GridSpec{Rows: 1, Cols: 1},
		Local: []CellValue{
			{Cell: "0_0", Count: 1, Sequence: 1},
			{Cell: "5_5", Count: 8, Sequence: 2},
		},
		Flow: []Step{{Load: true}},
		Assertions: []Assertion{
			{Type: AssertCount, Cell: "5_5", Count: 0},
			{Type: AssertLocal, Cell: "5_5", Count: 8},
			{Type: AssertCachedCells, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailingAssertionFailsResult(t *testing.T) {
	scenario := &Scenario{
		Name: "failing",
		Grid: GridSpec{Rows: 1, Cols: 1},
		Flow: []Step{{Click: "0_0"}},
		Assertions: []Assertion{
			{Type: AssertCount, Cell: "0_0", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "cell 0_0 count 2")
}

func TestRun_TraceIsDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "eviction.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(scenario)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, again.Trace, "run %d", i+1)
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
