// Package errkind provides the typed error taxonomy shared across the
// tracker's components, following the error-hierarchy shape of the
// teacher's pkg/dcb/errors.go: a common base carrying an op and a kind,
// with helpers built on errors.As/errors.Is rather than type switches at
// call sites.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy entries from the error handling design.
type Kind string

const (
	ConfigInvalid            Kind = "config_invalid"
	StorageTransient         Kind = "storage_transient"
	StorageFatal              Kind = "storage_fatal"
	PayloadSerialization     Kind = "payload_serialization"
	UnsupportedSchemaVersion Kind = "unsupported_schema_version"
	MissingAttribution       Kind = "missing_attribution"
	ParseError               Kind = "parse_error"
	AuthStateMismatch        Kind = "auth_state_mismatch"
	LoginNotStarted          Kind = "login_not_started"
	InvalidSubject           Kind = "invalid_subject"
	InvalidScopeClaim        Kind = "invalid_scope_claim"
	MissingRequiredScopes    Kind = "missing_required_scopes"
	NeedsReauth              Kind = "needs_reauth"
	ApiTransient             Kind = "api_transient"
	SinkFailure              Kind = "sink_failure"
)

// Error is the common error shape for every taxonomy kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a kinded error with no wrapped cause.
func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// Wrap builds a kinded error wrapping an existing cause.
func Wrap(op string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf extracts the Kind of err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
