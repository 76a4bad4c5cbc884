package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dotheat/internal/kvserver"
	"github.com/roach88/dotheat/internal/record"
)

// testEnv is a counter service plus a config file pointing at it.
type testEnv struct {
	kv     *kvserver.Memory
	url    string
	config string
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := kvserver.NewMemory()
	srv := httptest.NewServer(kvserver.Handler(mem, kvserver.Options{Logger: quietLogger()}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	env := &testEnv{kv: mem, url: srv.URL, dir: dir}
	env.config = env.writeConfig(t, "dotheat", srv.URL)
	return env
}

// writeConfig writes a config with fast retries and a 4x4 grid.
func (e *testEnv) writeConfig(t *testing.T, name, remoteURL string) string {
	t.Helper()
	path := filepath.Join(e.dir, name+".yaml")
	content := fmt.Sprintf(`db: %s
remote:
  url: %s
  timeout: 2s
  base_delay: 1ms
session:
  sync_chunk_delay: 1ms
  sync_timeout: 2s
serve:
  rows: 4
  cols: 4
`, filepath.Join(e.dir, "default.db"), remoteURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) db(name string) string {
	return filepath.Join(e.dir, name+".db")
}

func (e *testEnv) remoteCount(t *testing.T, key string) int {
	t.Helper()
	v, _, err := e.kv.Get(context.Background(), key)
	require.NoError(t, err)
	return record.Count(v)
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
