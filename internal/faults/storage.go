package faults

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Postgres error codes signalling that a schema object is absent.
const (
	pqUndefinedTable  = "42P01"
	pqUndefinedColumn = "42703"
)

// ClassifyStorage inspects a backing-store error and wraps it in a
// CapabilityError when it signals a missing optional relation or column.
// All other errors pass through unchanged. This is the single place that
// looks at driver error shapes; callers branch on the wrapped type only.
func ClassifyStorage(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUndefinedTable:
			return &CapabilityError{Relation: quotedName(pqErr.Message), cause: err}
		case pqUndefinedColumn:
			return &CapabilityError{Column: quotedName(pqErr.Message), cause: err}
		}
		return err
	}

	// Managed-backend deployments surface schema drift as a stale schema
	// cache message rather than a driver code.
	msg := err.Error()
	if strings.Contains(msg, "schema cache") {
		return &CapabilityError{Column: quotedName(msg), cause: err}
	}

	return err
}

// quotedName pulls the first double-quoted identifier out of a driver
// message like `column "archived_at" of relation "x" does not exist`.
func quotedName(msg string) string {
	start := strings.IndexByte(msg, '"')
	if start < 0 {
		return ""
	}
	rest := msg[start+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}
