// Package store is the data-access layer of the scoring engine. It exposes a
// small generic Source (row by key, filtered rows, count, sum, upsert, RPC)
// and classifies every failure into a structured Kind so callers branch on
// type rather than on error text.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Kind classifies a data-access failure.
type Kind int

const (
	KindTransient Kind = iota
	KindSchemaDrift
	KindAccessDenied
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSchemaDrift:
		return "schema_drift"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Error is a classified data-access error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrTransient    = &Error{Kind: KindTransient}
	ErrSchemaDrift  = &Error{Kind: KindSchemaDrift}
	ErrAccessDenied = &Error{Kind: KindAccessDenied}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

// Postgres SQLSTATE codes the classifier cares about.
const (
	codeUndefinedColumn   = "42703"
	codeUndefinedTable    = "42P01"
	codeUndefinedFunction = "42883"
	codeInsufficientPriv  = "42501"
)

// Classify wraps err with its Kind. A nil error stays nil and an already
// classified error keeps its kind.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.Op == "" && op != "" {
			return &Error{Kind: se.Kind, Op: op, Err: se.Err}
		}
		return err
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUndefinedColumn, codeUndefinedTable, codeUndefinedFunction:
			return KindSchemaDrift
		case codeInsufficientPriv:
			return KindAccessDenied
		}
	}
	return KindTransient
}

// KindOf returns the Kind of a classified error, or KindTransient.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return kindOf(err)
}

// Errorf builds a classified error, mostly for in-memory sources.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
