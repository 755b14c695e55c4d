// Package errors defines the typed error taxonomy raised by the ObjectIR
// engine: every failure the registry, the executor, the resolver, and the
// plugin loader produce is a *Error with a stable Kind.
package errors

import "fmt"

// Kind names one of the engine's failure categories. See the ObjectIR
// error taxonomy: each Kind maps to exactly one concrete failure mode.
type Kind string

const (
	TypeMismatch        Kind = "TypeMismatch"
	StackUnderflow       Kind = "StackUnderflow"
	OutOfRange           Kind = "OutOfRange"
	LocalNotFound        Kind = "LocalNotFound"
	ArgumentNotFound     Kind = "ArgumentNotFound"
	FieldNotFound        Kind = "FieldNotFound"
	NoInstance           Kind = "NoInstance"
	BadOpcode            Kind = "BadOpcode"
	BadBranchTarget      Kind = "BadBranchTarget"
	DivideByZero         Kind = "DivideByZero"
	UnsupportedOperation Kind = "UnsupportedOperation"
	ClassNotFound        Kind = "ClassNotFound"
	MethodNotFound       Kind = "MethodNotFound"
	AmbiguousOverload    Kind = "AmbiguousOverload"
	NoMatchingOverload   Kind = "NoMatchingOverload"
	Unimplemented        Kind = "Unimplemented"
	AbiIncompatible      Kind = "AbiIncompatible"
	PluginMissingEntry   Kind = "PluginMissingEntry"
	PluginInitFailed     Kind = "PluginInitFailed"
	UnhandledThrow       Kind = "UnhandledThrow"
)

// Error is the concrete error type raised throughout the engine. Msg is a
// human-readable description; Cause, when present, chains to whatever
// triggered this failure (a JSON decode error, a plugin panic, ...).
type Error struct {
	Kind Kind
	Msg  string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a plain Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that chains to cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is an *Error of the given kind, unwrapping through
// any wrapped causes in the chain (mirrors errors.Is for this taxonomy).
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
