package refactor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/workspace"
)

// Kind classifies an extraction failure.
type Kind string

const (
	// KindInput covers bad requests. Nothing was mutated.
	KindInput Kind = "input"
	// KindEnvironment covers a missing project, unreadable files and failed
	// writes. The request stops at the failing stage.
	KindEnvironment Kind = "environment"
	// KindResolution covers imports that could not be classified. These
	// are logged and passed through, never returned by Extract.
	KindResolution Kind = "resolution"
	// KindValidation covers a new module the oracle still rejects after
	// every attempt.
	KindValidation Kind = "validation"
)

var (
	ErrEmptySelection       = analysis.ErrEmptySelection
	ErrSelectionOutOfBounds = analysis.ErrSelectionOutOfBounds
	ErrNoProjectRoot        = workspace.ErrNoProjectRoot
	ErrNoRegistrationFile   = workspace.ErrNoRegistrationFile

	// ErrInvalidModuleName is returned for a name that is not a snake_case
	// Rust identifier or is a keyword.
	ErrInvalidModuleName = errors.New("invalid module name")
	// ErrModuleExists is returned when the target module file is already
	// on disk.
	ErrModuleExists = errors.New("module file already exists")
	// ErrCanceled is returned when the caller cancels before the module
	// file is written.
	ErrCanceled = errors.New("extraction canceled")
	// ErrSourceChanged is returned when the source file no longer holds
	// the extracted text where the request snapshot had it.
	ErrSourceChanged = errors.New("source file changed during extraction")
)

// Error is a classified extraction failure.
type Error struct {
	Kind    Kind
	Stage   State
	Message string
	// File, Line and Column locate the failure when known. Line and Column
	// are 1-based.
	File   string
	Line   int
	Column int
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error during %s: %s", e.Kind, e.Stage, e.Message)
	if e.File != "" {
		b.WriteString(" (" + e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, stage State, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Message: fmt.Sprintf(format, args...), Cause: cause}
}
