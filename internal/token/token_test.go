package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-service/internal/models"
)

func TestParseConnectionToken(t *testing.T) {
	tok, err := Parse("conn:42")
	require.NoError(t, err)
	assert.Equal(t, models.KindConnection, tok.Kind)
	assert.Equal(t, 42, tok.ScopeID)
}

func TestParseTripToken(t *testing.T) {
	tok, err := Parse("trip:7")
	require.NoError(t, err)
	assert.Equal(t, models.KindTrip, tok.Kind)
	assert.Equal(t, 7, tok.ScopeID)
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	for _, raw := range []string{
		"",
		"conn:",
		"trip:",
		"conn:0",
		"conn:-3",
		"conn:abc",
		"conn:1x",
		"chat:5",
		"42",
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalid, "token %q", raw)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	for _, raw := range []string{"conn:1", "conn:9001", "trip:3"} {
		tok, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, tok.String())
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "conn:5", Format(models.KindConnection, 5))
	assert.Equal(t, "trip:12", Format(models.KindTrip, 12))
}
