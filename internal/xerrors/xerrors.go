// Package xerrors implements the error-kind sum type from the buffer
// manager's error handling design: a small closed set of kinds, each
// wrapping an optional cause, checkable with errors.Is/errors.As instead
// of a panic/exception discipline.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories the buffer manager
// and its collaborators may report.
type Kind int

const (
	// NotFound means a record/page key did not resolve at the requested revision.
	NotFound Kind = iota
	// FrameReused means an optimistic guard's sampled version no longer matches;
	// the caller should retry get_and_guard.
	FrameReused
	// PoolExhausted means the epoch tracker or an allocator size class is full.
	PoolExhausted
	// IOFailure means the page reader or writer hit a filesystem error.
	IOFailure
	// CorruptFragment means a checksum or header mismatch was detected on read.
	CorruptFragment
	// ContractViolation means an internal invariant was broken (guard imbalance,
	// double close, etc).
	ContractViolation
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case FrameReused:
		return "frame_reused"
	case PoolExhausted:
		return "pool_exhausted"
	case IOFailure:
		return "io_failure"
	case CorruptFragment:
		return "corrupt_fragment"
	case ContractViolation:
		return "contract_violation"
	default:
		return "unknown"
	}
}

// Error is the concrete error value carried across package boundaries.
// It is always constructed through one of the *f helpers below so that
// every error in the system carries a Kind a caller can switch on.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "cache.get_and_guard"
	Cause   error
	Context map[string]any // small set of structured fields for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind; Op and Cause
// are not compared, so errors.Is(err, &xerrors.Error{Kind: xerrors.NotFound})
// matches any NotFound error. Direct callers may prefer
// `kind, ok := xerrors.KindOf(err)` for clarity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func NotFoundf(op string, cause error) error          { return newErr(NotFound, op, cause) }
func FrameReusedf(op string, cause error) error        { return newErr(FrameReused, op, cause) }
func PoolExhaustedf(op string, cause error) error       { return newErr(PoolExhausted, op, cause) }
func IOFailuref(op string, cause error) error           { return newErr(IOFailure, op, cause) }
func CorruptFragmentf(op string, cause error) error     { return newErr(CorruptFragment, op, cause) }
func ContractViolationf(op string, cause error) error   { return newErr(ContractViolation, op, cause) }

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, and reports false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// WithContext attaches structured fields (e.g. revision, page_key) to an
// error for the logging layer to pick up without the core needing to know
// about any concrete logging sink.
func WithContext(err error, kv map[string]any) error {
	e, ok := err.(*Error)
	if !ok {
		return err
	}
	cp := *e
	cp.Context = kv
	return &cp
}
