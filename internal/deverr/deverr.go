// Package deverr defines the error taxonomy shared by every dev component.
// Each category is a sentinel error; concrete failures are *Error values that
// wrap a sentinel so callers can test them with errors.Is, and optionally carry
// the process exit code the top-level dispatcher should use.
package deverr

import (
	"errors"
	"fmt"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitNoCommand is reserved for "no subcommand given".
	ExitNoCommand = 2
)

var (
	// ErrInvalidURI indicates a resource URI that does not match the grammar.
	ErrInvalidURI = errors.New("invalid uri")
	// ErrConfiguration indicates malformed registry, lock or cache content.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound indicates a missing resource, registry entry or version.
	ErrNotFound = errors.New("not found")
	// ErrContractViolation indicates a plugin missing a required capability.
	ErrContractViolation = errors.New("contract violation")
	// ErrNetwork indicates a transport failure or non-success HTTP status.
	ErrNetwork = errors.New("network error")
	// ErrFileSystem indicates a path in an unexpected state.
	ErrFileSystem = errors.New("file system error")
	// ErrUnsupportedPlatform indicates an OS/arch with no tool set.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Error is a categorized failure. Kind is one of the sentinels above.
type Error struct {
	Kind error
	Code int
	Msg  string
	Err  error
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the category and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InvalidURI returns an ErrInvalidURI failure.
func InvalidURI(format string, args ...any) *Error { return newf(ErrInvalidURI, format, args...) }

// Configuration returns an ErrConfiguration failure.
func Configuration(format string, args ...any) *Error {
	return newf(ErrConfiguration, format, args...)
}

// NotFound returns an ErrNotFound failure.
func NotFound(format string, args ...any) *Error { return newf(ErrNotFound, format, args...) }

// ContractViolation returns an ErrContractViolation failure.
func ContractViolation(format string, args ...any) *Error {
	return newf(ErrContractViolation, format, args...)
}

// Network returns an ErrNetwork failure.
func Network(format string, args ...any) *Error { return newf(ErrNetwork, format, args...) }

// FileSystem returns an ErrFileSystem failure.
func FileSystem(format string, args ...any) *Error { return newf(ErrFileSystem, format, args...) }

// UnsupportedPlatform returns an ErrUnsupportedPlatform failure.
func UnsupportedPlatform(format string, args ...any) *Error {
	return newf(ErrUnsupportedPlatform, format, args...)
}

// Wrap attaches a cause to e and returns it.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithCode sets the exit code carried by e.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// ExitError signals a specific exit code without a category.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the wrapped message or a generic exit status.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code: 0 for nil, the code carried by
// the outermost *Error or *ExitError when non-zero, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	var devErr *Error
	if errors.As(err, &devErr) && devErr.Code != 0 {
		return devErr.Code
	}
	return ExitFailure
}
