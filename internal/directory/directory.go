// Package directory is the gateway to the connection/trip subsystems the
// inbox core consumes but does not own: viewer identity, visible
// connection scopes and accepted trip scopes.
package directory

import "context"

// Connection pairs a connection scope with the counterpart's identity.
type Connection struct {
	ConnectionID  int `json:"connection_id"`
	CounterpartID int `json:"counterpart_id"`
}

// Service is the read-only collaborator surface.
type Service interface {
	// VerifyToken validates a bearer token and returns the viewer id.
	VerifyToken(ctx context.Context, token string) (int, error)
	// VisibleConnections lists accepted connections for the viewer.
	VisibleConnections(ctx context.Context, viewerID int) ([]Connection, error)
	// AcceptedTripIDs lists trips the viewer holds an accepted membership in.
	AcceptedTripIDs(ctx context.Context, viewerID int) ([]int, error)
}

// CounterpartFor finds the counterpart on a connection scope, returning
// false when the viewer holds no accepted relationship to it.
func CounterpartFor(conns []Connection, connectionID int) (int, bool) {
	for _, c := range conns {
		if c.ConnectionID == connectionID {
			return c.CounterpartID, true
		}
	}
	return 0, false
}

// HasTrip reports whether tripID is among the viewer's accepted trips.
func HasTrip(tripIDs []int, tripID int) bool {
	for _, id := range tripIDs {
		if id == tripID {
			return true
		}
	}
	return false
}
