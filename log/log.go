package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	actionsFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
)

// Options tune Init. The zero value logs at info level to the files only.
type Options struct {
	Level   string
	Console bool
	// Stderr overrides the console destination; used by tests.
	Stderr io.Writer
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: MEDIAKEYD_LOG_PATH environment variable
	if envPath := os.Getenv("MEDIAKEYD_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init(opts Options) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	actionsPath := filepath.Join(dir, "actions_log.txt")
	actionsFile, err = os.OpenFile(actionsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if opts.Console {
		stderr := opts.Stderr
		color := false
		if stderr == nil {
			stderr = os.Stderr
			color = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		}
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: "15:04:05",
			NoColor:    !color,
		})
	}
	diagLog = zerolog.New(out).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if actionsFile != nil {
		actionsFile.Close()
		actionsFile = nil
	}
	logReady = false
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func HookState(state string, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Error().Err(err)
	}
	ev.Str("state", state).Msg("hook")
}

// ActionFired records a matched chord in the actions log.
func ActionFired(source, action, chord string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, source, action, chord)
	actionsFile.WriteString(line)
}

func DispatchResult(source, action string, elapsed time.Duration, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("source", source).
		Str("action", action).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Msg("dispatch")
}

func SessionStart(version string, bindings int, hookInstalled bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("version", version).
		Int("bindings", bindings).
		Bool("hook", hookInstalled).
		Msg("session_start")
}

func SessionEnd(fired int64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("fired", fired).
		Msg("session_end")
}
