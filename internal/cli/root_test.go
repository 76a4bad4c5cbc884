package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dotheat", cmd.Use)
	assert.Contains(t, cmd.Long, "heatmap")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"click"}, {"show"}, {"inspect"}, {"serve"}, {"kv", "serve"}, {"scenario"}}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestSessionCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"click", "show", "inspect", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("db"), "%s --db", name)
		assert.NotNil(t, sub.Flags().Lookup("remote"), "%s --remote", name)
	}

	click, _, err := cmd.Find([]string{"click"})
	require.NoError(t, err)
	times := click.Flags().Lookup("times")
	require.NotNil(t, times)
	assert.Equal(t, "n", times.Shorthand)
	assert.Equal(t, "1", times.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "inspect"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExecute_ExitCodes(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	code := Execute([]string{"click", "x", "1"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "Error [command_error]")
	assert.Contains(t, stderr.String(), "invalid cell")

	stderr.Reset()
	code = Execute([]string{"--format", "json", "click", "--", "-1", "0"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), `"status":"error"`)
}

func TestExecute_StorageErrorCode(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	// A directory cannot be opened as a database.
	code := Execute([]string{"inspect", "--db", t.TempDir()}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "Error [storage_error]: failed to open database")
}
