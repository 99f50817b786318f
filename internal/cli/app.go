package cli

import (
	"fmt"
	"io"

	"bugit/internal/config"
	"bugit/internal/store"
	"bugit/internal/triage"
)

// App carries the resolved environment every command runs against.
type App struct {
	// WorkDir is the effective working directory (-C flag or process cwd).
	WorkDir string

	// RootDir is the resolved project root: where .bugitrc lives and where
	// the .bugit store directory is rooted.
	RootDir string

	// Cfg is the loaded configuration.
	Cfg config.Config

	// Env is the process environment as a map.
	Env map[string]string

	// In is the command input stream (used by the shell and the server).
	In io.Reader

	// Debug enables diagnostic tracing to DebugOut. It never changes
	// behavior, only verbosity, and never writes to stdout.
	Debug    bool
	DebugOut io.Writer

	// Pipeline turns freeform descriptions into issue drafts.
	Pipeline triage.Pipeline

	st *store.Store
}

// Debugf traces to the debug side channel when --debug is on.
func (a *App) Debugf(format string, args ...any) {
	if a.Debug && a.DebugOut != nil {
		_, _ = fmt.Fprintf(a.DebugOut, "debug: "+format+"\n", args...)
	}
}

// Store opens the issue store on first use and reuses it afterwards.
func (a *App) Store() (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}

	st, err := store.Open(store.Options{
		Root:           a.RootDir,
		DisableBackups: !a.Cfg.BackupEnabled(),
		Debugf:         a.Debugf,
	})
	if err != nil {
		return nil, err
	}

	a.st = st

	return st, nil
}
