// Package fault defines the severity-graded errors raised while executing
// simulation events and the policy that decides what happens to them.
package fault

import (
	"errors"
	"fmt"
)

// Level is the severity of an error. Levels are ordered.
type Level int

// The severity levels, from the least to the most severe.
const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Error is an error that carries a severity level.
type Error struct {
	level       Level
	description string
	cause       error
}

// New creates an Error.
func New(level Level, description string) *Error {
	return &Error{level: level, description: description}
}

// Info creates an informational error.
func Info(format string, args ...any) *Error {
	return New(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn creates a warning.
func Warn(format string, args ...any) *Error {
	return New(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf creates a recoverable error.
func Errorf(format string, args ...any) *Error {
	return New(LevelError, fmt.Sprintf(format, args...))
}

// Fatal creates an error that terminates the run.
func Fatal(format string, args ...any) *Error {
	return New(LevelFatal, fmt.Sprintf(format, args...))
}

// Wrap attaches a level and a description to an existing error.
func Wrap(level Level, err error, description string) *Error {
	return &Error{level: level, description: description, cause: err}
}

// Level returns the severity.
func (e *Error) Level() Level {
	return e.level
}

// Description returns the human readable description.
func (e *Error) Description() string {
	return e.description
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("[%s] %s", e.level, e.description)
	}

	return fmt.Sprintf("[%s] %s: %v", e.level, e.description, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Classify returns the level of err. Errors that do not carry a level are
// treated as LevelError.
func Classify(err error) Level {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.level
	}

	return LevelError
}
