// Package errs implements the dataset engine's error taxonomy and the
// process-wide error-mode switch (abort/report/ignore). It replaces
// the original library's bare globals (mri_error, the error-handling
// mode) with an explicit Policy object, relocating ambient state into
// a threaded value, while still offering a package-level Default() for
// callers that want the historical sticky-bit idiom.
package errs

import (
	"fmt"
	"log/slog"
	"os"
)

// Kind classifies a failure into one of six categories.
type Kind int

const (
	KindValidation Kind = iota
	KindState
	KindIO
	KindParse
	KindAllocation
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindAllocation:
		return "allocation"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every engine failure wraps.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mri: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("mri: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Mode selects how Policy.Resolve reacts to a failure.
type Mode int

const (
	// Abort prints a diagnostic and terminates the process.
	Abort Mode = iota
	// Report prints a diagnostic and returns the failure to the caller.
	Report
	// Ignore only records the sticky last-error string.
	Ignore
)

// ParseMode accepts the MRI_ERROR_MODE token set.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "abort":
		return Abort, nil
	case "report", "":
		return Report, nil
	case "ignore":
		return Ignore, nil
	default:
		return Report, New(KindValidation, "unknown error mode %q", s)
	}
}

// Policy carries the sticky last-error string, the active Mode, and a
// logger used for diagnostics. Dataset embeds one so every engine
// failure resolves through the same policy object; a process-global
// Default() exists purely for the sticky-bit compatibility shim.
type Policy struct {
	Mode     Mode
	Last     string
	Logger   *slog.Logger
	exitFunc func(int) // overridable in tests
}

// NewPolicy returns a Policy in Report mode logging to a discard logger.
func NewPolicy() *Policy {
	return &Policy{
		Mode:     Report,
		Logger:   slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		exitFunc: os.Exit,
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var processDefault = NewPolicy()

// Default returns the process-wide Policy singleton, for the
// compatibility shim only; library code should prefer an explicit
// *Policy threaded from the Dataset.
func Default() *Policy { return processDefault }

// Save returns a copy of the current sticky error state so a
// re-entrant caller can restore it after a nested operation,
// mirroring the C library's save/clear/restore idiom around
// re-entrant calls.
func (p *Policy) Save() string { return p.Last }

// Restore resets the sticky error string to a previously saved value.
func (p *Policy) Restore(saved string) { p.Last = saved }

// Clear empties the sticky error string.
func (p *Policy) Clear() { p.Last = "" }

// Resolve records err as the sticky last-error, and depending on Mode
// logs and/or aborts the process. Validation/state/io/parse/allocation
// errors are fatal-shaped failures; Warn should be used instead for
// warnings, which always log regardless of Mode.
func (p *Policy) Resolve(err error) error {
	if err == nil {
		return nil
	}
	p.Last = err.Error()
	switch p.Mode {
	case Ignore:
		return err
	case Abort:
		p.Logger.Error(p.Last)
		if p.exitFunc != nil {
			p.exitFunc(1)
		}
		return err
	default: // Report
		p.Logger.Error(p.Last)
		return err
	}
}

// Warn records a non-fatal conversion warning and logs regardless of
// Mode, since warnings always print.
func (p *Policy) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.Last = msg
	p.Logger.Warn(msg)
}
