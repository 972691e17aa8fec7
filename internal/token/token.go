// Package token implements the thread token grammar: "conn:<id>" for
// connection threads and "trip:<id>" for trip threads. The token is the
// only thread handle routing and bookmarking use, so it must round-trip
// through URL query parameters unchanged.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"inbox-service/internal/models"
)

const (
	connPrefix = "conn:"
	tripPrefix = "trip:"
)

var ErrInvalid = errors.New("invalid thread token")

// Token is a parsed thread handle.
type Token struct {
	Kind    models.ThreadKind
	ScopeID int
}

// Parse decodes a thread token. The scope id must be a positive integer.
func Parse(s string) (Token, error) {
	var kind models.ThreadKind
	var raw string
	switch {
	case strings.HasPrefix(s, connPrefix):
		kind, raw = models.KindConnection, s[len(connPrefix):]
	case strings.HasPrefix(s, tripPrefix):
		kind, raw = models.KindTrip, s[len(tripPrefix):]
	default:
		return Token{}, ErrInvalid
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return Token{}, ErrInvalid
	}
	return Token{Kind: kind, ScopeID: id}, nil
}

// Format renders the token for a kind and scope id.
func Format(kind models.ThreadKind, scopeID int) string {
	if kind == models.KindTrip {
		return fmt.Sprintf("%s%d", tripPrefix, scopeID)
	}
	return fmt.Sprintf("%s%d", connPrefix, scopeID)
}

// String renders the parsed token back to its wire form.
func (t Token) String() string {
	return Format(t.Kind, t.ScopeID)
}
