// Package registry resolves opaque thread tokens to canonical thread
// records, creating them lazily and enforcing that the viewer holds a
// standing relationship to the scope.
package registry

import (
	"context"

	"inbox-service/internal/directory"
	"inbox-service/internal/faults"
	"inbox-service/internal/models"
	"inbox-service/internal/repositories"
	"inbox-service/internal/token"
)

// ParticipantEnsurer upserts the baseline participant row. The preference
// controller satisfies this and absorbs capability-missing deployments.
type ParticipantEnsurer interface {
	Ensure(ctx context.Context, threadID int, userID int) error
}

// Registry is the thread resolution entry point shared by the HTTP and
// websocket layers.
type Registry struct {
	threads      repositories.ThreadRepository
	dir          directory.Service
	participants ParticipantEnsurer
}

// New constructs a Registry.
func New(threads repositories.ThreadRepository, dir directory.Service, participants ParticipantEnsurer) *Registry {
	return &Registry{threads: threads, dir: dir, participants: participants}
}

// Resolve maps a token to its thread, creating the thread on first access.
// The viewer must hold an accepted relationship to the scope or resolution
// fails with AccessDenied. Resolving also upserts the viewer's participant
// baseline, and the counterpart's on connection threads, so unread math
// starts from a real row. Returns the counterpart id for connection
// threads, zero for trips.
func (r *Registry) Resolve(ctx context.Context, viewerID int, tok token.Token) (models.Thread, int, error) {
	counterpartID := 0

	switch tok.Kind {
	case models.KindConnection:
		conns, err := r.dir.VisibleConnections(ctx, viewerID)
		if err != nil {
			return models.Thread{}, 0, err
		}
		id, ok := directory.CounterpartFor(conns, tok.ScopeID)
		if !ok {
			return models.Thread{}, 0, faults.ErrAccessDenied
		}
		counterpartID = id
	case models.KindTrip:
		trips, err := r.dir.AcceptedTripIDs(ctx, viewerID)
		if err != nil {
			return models.Thread{}, 0, err
		}
		if !directory.HasTrip(trips, tok.ScopeID) {
			return models.Thread{}, 0, faults.ErrAccessDenied
		}
	default:
		return models.Thread{}, 0, token.ErrInvalid
	}

	thread, err := r.threads.Resolve(ctx, tok.Kind, tok.ScopeID)
	if err != nil {
		return models.Thread{}, 0, err
	}

	if err := r.participants.Ensure(ctx, thread.ID, viewerID); err != nil {
		return models.Thread{}, 0, err
	}
	if counterpartID != 0 {
		if err := r.participants.Ensure(ctx, thread.ID, counterpartID); err != nil {
			return models.Thread{}, 0, err
		}
	}

	return thread, counterpartID, nil
}
