// Package scenexerr defines the error-kind taxonomy shared across the
// scenario resolver, variable engine, transport, and execution engine.
// Front-ends map these to the exit codes in spec.md §6 via ExitCode.
package scenexerr

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of the pipeline raised an error.
type Kind string

const (
	KindConfigRead     Kind = "config_read"
	KindConfigParse    Kind = "config_parse"
	KindConfigCycle    Kind = "config_cycle"
	KindConfigSchema   Kind = "config_schema"
	KindVariableUnresolved Kind = "variable_unresolved"
	KindVariableCycle  Kind = "variable_cycle"
	KindPathInvalid    Kind = "path_invalid"
	KindTransportConnect Kind = "transport_connect"
	KindTransportAuth  Kind = "transport_auth"
	KindRemoteExitNonZero Kind = "remote_exit_non_zero"
	KindSftpFailed     Kind = "sftp_failed"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
)

// Error is a scenex error tagged with a Kind, wrapping an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ExitCode maps a Kind to the CLI exit codes of spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *Error
	if !errors.As(err, &se) {
		return 1
	}
	switch se.Kind {
	case KindConfigRead, KindConfigParse, KindConfigCycle, KindConfigSchema:
		return 1
	case KindVariableUnresolved, KindVariableCycle, KindPathInvalid:
		return 2
	case KindCancelled:
		return 130
	default:
		return 3
	}
}
