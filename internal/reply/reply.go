// Package reply implements the body-level reply marker. A reply is encoded
// as a literal prefix line "[[reply:<id>]]\n" ahead of the display text so
// threading needs no schema migration; the marker is parsed back out at
// read time.
package reply

import (
	"fmt"
	"strings"
)

const (
	markerOpen  = "[[reply:"
	markerClose = "]]\n"
)

// Encode prefixes text with the reply marker for target id. An empty id
// returns the text unchanged.
func Encode(id, text string) string {
	if id == "" {
		return text
	}
	return markerOpen + id + markerClose + text
}

// Decode splits a body into its reply target and display text. A body
// without the marker has no target. Decoding is idempotent: the display
// text of a decoded body decodes to itself.
func Decode(body string) (id, text string) {
	if !strings.HasPrefix(body, markerOpen) {
		return "", body
	}
	rest := body[len(markerOpen):]
	end := strings.Index(rest, markerClose)
	if end < 0 {
		return "", body
	}
	id = rest[:end]
	if !validID(id) {
		return "", body
	}
	return id, rest[end+len(markerClose):]
}

// EncodeInt is Encode for integer message ids.
func EncodeInt(id int, text string) string {
	if id <= 0 {
		return text
	}
	return Encode(fmt.Sprintf("%d", id), text)
}

// validID accepts opaque alphanumeric/hyphen tokens only, so arbitrary
// user text containing the open sequence cannot forge a marker.
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
