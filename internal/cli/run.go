package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bugit/internal/config"
	"bugit/internal/store"
	"bugit/internal/triage"
)

// Version is the released version string.
const Version = "1.0.0"

const (
	minArgs      = 2
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

var errFlagRequiresArg = errors.New("flag requires an argument")

// Run is the main entry point. Returns exit code.
func Run(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) < minArgs {
		printUsage(out)

		return exitSuccess
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return exitUsage
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			fprintln(errOut, "error: cannot get working directory:", err)

			return exitGeneral
		}
	}

	debug := flags.debug || env["BUGIT_DEBUG"] != ""

	debugf := func(format string, a ...any) {
		if debug {
			_, _ = fmt.Fprintf(errOut, "debug: "+format+"\n", a...)
		}
	}

	// Explicit --dir wins; otherwise walk upward from the working directory
	// looking for a project marker.
	rootDir := flags.storeDir
	if rootDir == "" {
		rootDir = store.ResolveRoot(workDir, debugf)
	} else if !filepath.IsAbs(rootDir) {
		rootDir = filepath.Join(workDir, rootDir)
	}

	cfg, err := config.Load(rootDir, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return exitGeneral
	}

	// store_dir from .bugitrc applies only when --dir did not already decide.
	if cfg.StoreDir != "" && flags.storeDir == "" {
		if filepath.IsAbs(cfg.StoreDir) {
			rootDir = cfg.StoreDir
		} else {
			rootDir = filepath.Join(rootDir, cfg.StoreDir)
		}
	}

	app := &App{
		WorkDir:  workDir,
		RootDir:  rootDir,
		Cfg:      cfg,
		Env:      env,
		In:       in,
		Debug:    debug,
		DebugOut: errOut,
		Pipeline: triage.Retry{Pipeline: triage.RuleBased{}, Attempts: 3},
	}

	if len(flags.remaining) == 0 {
		printUsage(out)

		return exitSuccess
	}

	name := flags.remaining[0]
	rest := flags.remaining[1:]

	switch name {
	case "-h", helpFlag, "help":
		printUsage(out)

		return exitSuccess
	case "-V", "--version", "version":
		fprintln(out, "bugit", Version)

		return exitSuccess
	}

	o := NewIO(out, errOut)

	code, ok := dispatch(ctx, app, o, name, rest)
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut)

		return exitUsage
	}

	if code != exitSuccess {
		return code
	}

	return o.Finish()
}

// commands builds the command table. Each command closes over app.
func commands(app *App) []*Command {
	return []*Command{
		NewCmd(app),
		ListCmd(app),
		ShowCmd(app),
		EditCmd(app),
		DeleteCmd(app),
		ConfigCmd(app),
		StatsCmd(app),
		ServerCmd(app),
		ShellCmd(app),
	}
}

// dispatch runs the named command. The second return is false when the name
// matches nothing.
func dispatch(ctx context.Context, app *App, o *IO, name string, args []string) (int, bool) {
	for _, cmd := range commands(app) {
		if cmd.Name() == name {
			return cmd.Run(ctx, o, args), true
		}
	}

	return 0, false
}

type globalFlags struct {
	workDir   string
	storeDir  string
	debug     bool
	remaining []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	// -C/--cwd flag (work directory)
	if arg == "-C" || arg == "--cwd" {
		if idx+1 >= len(args) {
			return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		flags.workDir = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--cwd="); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	// --dir flag (explicit store root, skips marker discovery)
	if arg == "--dir" {
		if idx+1 >= len(args) {
			return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		flags.storeDir = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--dir="); ok {
		flags.storeDir = after

		return consumedOne, nil
	}

	// --debug flag
	if arg == "--debug" {
		flags.debug = true

		return consumedOne, nil
	}

	// -h/--help, -V/--version pass through as pseudo-commands
	if arg == "-h" || arg == helpFlag || arg == "-V" || arg == "--version" {
		flags.remaining = args[idx:]

		return len(args) - idx, nil
	}

	// Unknown flag
	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("unknown flag: %s", arg)
	}

	// Not a flag
	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(writer io.Writer) {
	fprintln(writer, `bugit - bug report management

Usage: bugit [options] <command> [args]

Options:
  -C, --cwd <dir>    Run as if started in <dir>
      --dir <path>   Use <path> as the store root (skips discovery)
      --debug        Trace internals to stderr

Commands:`)

	for _, cmd := range commands(&App{}) {
		fprintln(writer, cmd.HelpLine())
	}

	fprintln(writer, `  version                  Show version`)
	fprintln(writer, `
Output is JSON by default; add --pretty to commands for human-readable text.`)
}
