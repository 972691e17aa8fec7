package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterpartFor(t *testing.T) {
	conns := []Connection{
		{ConnectionID: 5, CounterpartID: 2},
		{ConnectionID: 8, CounterpartID: 4},
	}

	id, ok := CounterpartFor(conns, 8)
	assert.True(t, ok)
	assert.Equal(t, 4, id)

	_, ok = CounterpartFor(conns, 99)
	assert.False(t, ok)
}

func TestHasTrip(t *testing.T) {
	assert.True(t, HasTrip([]int{3, 9}, 9))
	assert.False(t, HasTrip([]int{3, 9}, 4))
	assert.False(t, HasTrip(nil, 1))
}

func TestHTTPClientVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/auth/verify", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"valid":true,"user_id":7}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	userID, err := client.VerifyToken(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 7, userID)
}

func TestHTTPClientVerifyTokenInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid":false}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).VerifyToken(context.Background(), "expired")
	assert.Error(t, err)
}

func TestHTTPClientVisibleConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/connections", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("viewer_id"))
		w.Write([]byte(`{"connections":[{"connection_id":5,"counterpart_id":2}]}`))
	}))
	defer srv.Close()

	conns, err := NewHTTPClient(srv.URL).VisibleConnections(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []Connection{{ConnectionID: 5, CounterpartID: 2}}, conns)
}

func TestHTTPClientAcceptedTripIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/internal/trips/accepted", r.URL.Path)
		w.Write([]byte(`{"trip_ids":[9,12]}`))
	}))
	defer srv.Close()

	trips, err := NewHTTPClient(srv.URL).AcceptedTripIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 12}, trips)
}

func TestHTTPClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).VisibleConnections(context.Background(), 3)
	assert.Error(t, err)
}
