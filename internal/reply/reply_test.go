package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	body := Encode("17", "see you at the milonga")
	assert.Equal(t, "[[reply:17]]\nsee you at the milonga", body)

	id, text := Decode(body)
	assert.Equal(t, "17", id)
	assert.Equal(t, "see you at the milonga", text)
}

func TestEncodeEmptyIDIsPassthrough(t *testing.T) {
	assert.Equal(t, "hello", Encode("", "hello"))
}

func TestDecodeWithoutMarker(t *testing.T) {
	id, text := Decode("plain message")
	assert.Empty(t, id)
	assert.Equal(t, "plain message", text)
}

func TestDecodeIsIdempotent(t *testing.T) {
	_, text := Decode(Encode("abc-123", "first"))
	id, again := Decode(text)
	assert.Empty(t, id)
	assert.Equal(t, text, again)
}

func TestDecodeRejectsForgedMarkers(t *testing.T) {
	// User text that happens to start with the open sequence but carries
	// no valid id must decode as plain text.
	for _, body := range []string{
		"[[reply:]]\ntext",
		"[[reply:has space]]\ntext",
		"[[reply:17]]no newline",
		"[[reply:17",
	} {
		id, text := Decode(body)
		assert.Empty(t, id, "body %q", body)
		assert.Equal(t, body, text, "body %q", body)
	}
}

func TestEncodeInt(t *testing.T) {
	assert.Equal(t, "[[reply:9]]\nhi", EncodeInt(9, "hi"))
	assert.Equal(t, "hi", EncodeInt(0, "hi"))
	assert.Equal(t, "hi", EncodeInt(-1, "hi"))
}

func TestDecodePreservesMultilineText(t *testing.T) {
	id, text := Decode("[[reply:5]]\nline one\nline two")
	assert.Equal(t, "5", id)
	assert.Equal(t, "line one\nline two", text)
}
