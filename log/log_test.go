package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "mylog")
	got, err := ResolveDir(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "logs"), got)
}

func TestResolveDirEnv(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "env-log")
	t.Setenv("MEDIAKEYD_LOG_PATH", abs)
	got, err := ResolveDir("")
	require.NoError(t, err)
	assert.Equal(t, abs, got)
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("MEDIAKEYD_LOG_PATH", "")
	got, err := ResolveDir("")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "mediakeyd")
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	require.NoError(t, Init(Options{}))

	for _, name := range []string{"diagnostics_log.txt", "actions_log.txt"} {
		_, err := os.Stat(filepath.Join(tmp, name))
		assert.NoError(t, err, name)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	setupLogDir(t)
	assert.Error(t, Init(Options{Level: "chatty"}))
}

func TestActionFired(t *testing.T) {
	tmp := setupLogDir(t)
	require.NoError(t, Init(Options{}))

	ActionFired("App.Exe", "Play", "ControlLeft+Space")

	data, err := os.ReadFile(filepath.Join(tmp, "actions_log.txt"))
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, "App.Exe\tPlay\tControlLeft+Space")
	// format: "2006-01-02 15:04:05\t[pid]\tsource\taction\tchord\n"
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestConsoleMirror(t *testing.T) {
	tmp := setupLogDir(t)
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "debug", Console: true, Stderr: &buf}))

	Debugf("pressed %d keys", 2)
	DispatchResult("App.Exe", "Next", 3*time.Millisecond, errors.New("no session"))
	HookState("installed", nil)

	out := buf.String()
	assert.Contains(t, out, "pressed 2 keys")
	assert.Contains(t, out, "dispatch")
	assert.Contains(t, out, "no session")

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "installed")
}

func TestHelpersBeforeInit(t *testing.T) {
	SetDir(t.TempDir())
	t.Cleanup(func() { SetDir("") })
	// Nothing is written and nothing panics before Init.
	Info("ignored")
	ActionFired("a", "b", "c")
	SessionEnd(1)
	Debugf("ignored %d", 1)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)
	require.NoError(t, Init(Options{}))
	Close()
	Close() // should not panic
}
