package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const threadFile = `items:
  - id: launch
    title: Launch
    body: We are live
    mentions: [acme]
    tags: [launch]
    scheduled_at: 2026-03-01T09:00:00Z
  - id: details
    title: Details
    body: Here is how it works
    parent: launch
    position: 1
    scheduled_at: 2026-03-01T09:05:00Z
  - id: recap
    title: Recap
    body: Week in review
    position: 2
  - id: later
    title: Later
    body: Not yet
    scheduled_at: 2026-03-02T09:00:00Z
`

const testNow = "2026-03-01T12:00:00Z"

// isolateEnv clears environment variables that config.Load would pick up.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"THREADPOST_PLATFORM", "DATABASE_DRIVER", "DATABASE_URL", "X_HANDLE", "X_API_BASE_URL",
		"X_ACCESS_TOKEN", "X_REFRESH_TOKEN", "X_CLIENT_ID", "X_CLIENT_SECRET",
		"LOG_LEVEL", "LOG_FORMAT", "PUSHGATEWAY_URL", "THREADPOST_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// seedThread imports threadFile into a fresh database and returns its path.
func seedThread(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "threadpost.db")
	file := writeTemp(t, dir, "thread.yaml", threadFile)

	_, _, err := execute(t, "import", "--db", db, file)
	require.NoError(t, err)
	return db
}
