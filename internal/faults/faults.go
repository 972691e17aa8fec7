// Package faults defines the error taxonomy shared across the inbox core
// and the classifier that turns backing-store errors into taxonomy kinds.
package faults

import (
	"errors"
	"fmt"
)

// Kind labels one branch of the taxonomy. Handlers and the send pipeline
// branch on kinds, never on error text.
type Kind string

const (
	KindAccessDenied      Kind = "access_denied"
	KindForbidden         Kind = "forbidden"
	KindDailyLimitReached Kind = "daily_limit_reached"
	KindCapabilityMissing Kind = "capability_missing"
	KindTransient         Kind = "transient"
	KindNotFound          Kind = "not_found"
)

var (
	// ErrAccessDenied: resolving a thread the viewer has no standing
	// relationship for. Fatal to that resolution, never retried.
	ErrAccessDenied = errors.New("access denied")

	// ErrForbidden: action attempted by a non-authorized actor, such as
	// deleting another user's message.
	ErrForbidden = errors.New("forbidden")

	// ErrDailyLimitReached: the sender exhausted the daily message quota.
	// Recoverable automatically at the next midnight boundary.
	ErrDailyLimitReached = errors.New("daily send limit reached")

	// ErrNotFound: the referenced row does not exist.
	ErrNotFound = errors.New("not found")
)

// CapabilityError reports that an optional storage feature (a preference
// table or column) is not provisioned in this deployment. It is absorbed
// at the preference-controller boundary and never surfaced to end users.
type CapabilityError struct {
	Relation string // set when the whole relation is missing
	Column   string // set when a single column is missing
	cause    error
}

func (e *CapabilityError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("storage capability missing: column %q", e.Column)
	case e.Relation != "":
		return fmt.Sprintf("storage capability missing: relation %q", e.Relation)
	default:
		return "storage capability missing"
	}
}

func (e *CapabilityError) Unwrap() error { return e.cause }

// IsCapabilityMissing reports whether err carries a CapabilityError
// anywhere in its chain.
func IsCapabilityMissing(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr)
}

// KindOf maps an error to its taxonomy kind. Unclassified errors are
// transient: recoverable by manual retry or by re-opening the thread.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrDailyLimitReached):
		return KindDailyLimitReached
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case IsCapabilityMissing(err):
		return KindCapabilityMissing
	default:
		return KindTransient
	}
}
