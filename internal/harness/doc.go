// Package harness runs heatmap scenarios as executable contract tests.
//
// A scenario seeds a local cache and a remote counter service, drives a
// session through a flow of steps, and asserts on the final state and the
// trace of observable effects (repaints, remote writes, remote deletes).
//
// Every scenario runs against a fresh in-memory SQLite cache, a real remote
// client talking to an in-process counter service, and a manual clock, so
// debounce timers and retry delays happen only when the flow says so.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	grid: { rows: 4, cols: 4 }
//	max_cells: 60
//	local:
//	  - { cell: "2_3", count: 2, sequence: 10 }
//	  - { cell: "0_1", raw: "6" }
//	remote:
//	  - { cell: "2_3", count: 5 }
//	flow:
//	  - load: true
//	  - click: "2_3"
//	    times: 4
//	  - advance: 2s
//	  - remote: down
//	  - flush: true
//	  - remote: up
//	  - probe: true
//	  - lifecycle: hidden
//	  - set_remote: { cell: "2_3", count: 9 }
//	assertions:
//	  - { type: count, cell: "2_3", count: 4 }
//	  - { type: local, cell: "2_3", count: 4, sequence: 5 }
//	  - { type: remote, cell: "0_1", absent: true }
//	  - { type: pending, count: 0 }
//	  - { type: cached_cells, count: 1 }
//	  - { type: available, available: true }
//	  - { type: trace_count, event: remote_put, count: 1 }
//
// Each flow step names exactly one action.
//
// # Golden Files
//
// RunWithGolden compares the trace against testdata/golden/{name}.golden.
// Effects inside one step are sorted, so concurrent flushes and chunked
// reads still produce a stable trace. Regenerate with:
//
//	go test ./internal/harness -update
package harness
