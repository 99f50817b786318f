package cli

import (
	"errors"

	"bugit/internal/issue"
	"bugit/internal/store"
	"bugit/internal/triage"
)

// POSIX-style exit codes, stable for scripting.
const (
	exitSuccess    = 0
	exitGeneral    = 1
	exitUsage      = 2
	exitNotFound   = 3
	exitValidation = 5
	exitStorage    = 7
)

// errUsage marks bad command-line usage (missing arguments and the like).
var errUsage = errors.New("usage")

// exitCodeFor maps an error to its exit code at the process boundary.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrIndexOutOfRange),
		errors.Is(err, store.ErrInvalidIndex):
		return exitNotFound
	case errors.Is(err, issue.ErrValidation),
		errors.Is(err, triage.ErrEmptyDescription):
		return exitValidation
	case store.IsFault(err):
		return exitStorage
	default:
		return exitGeneral
	}
}

// printError writes the error plus an actionable hint where one exists.
// Corrupt-file errors already carry the offending path verbatim.
func printError(o *IO, err error) {
	o.ErrPrintln("error:", err)

	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrIndexOutOfRange):
		o.ErrPrintln("hint: use 'bugit list' to see available issues")
	case errors.Is(err, store.ErrLockTimeout):
		o.ErrPrintln("hint: the issue is busy, try again")
	}
}
