package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
)

// ParticipantRepository is the server-side store of per-(thread, user)
// state. Deployments may lack the preference columns or the whole table;
// every method funnels driver errors through faults.ClassifyStorage so the
// preference controller sees an explicit capability signal instead of
// driver text.
type ParticipantRepository interface {
	Ensure(ctx context.Context, threadID int, userID int) error
	ApplyPatch(ctx context.Context, threadID int, userID int, patch models.ParticipantPatch) error
	Get(ctx context.Context, threadID int, userID int) (models.ParticipantState, error)
	LastRead(ctx context.Context, threadID int, userID int) (*time.Time, error)
}

// ParticipantRepo is a sqlx implementation of ParticipantRepository.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo constructs a ParticipantRepo.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// Ensure upserts the bare (thread_id, user_id) row so unread math has a
// baseline. Idempotent.
func (r *ParticipantRepo) Ensure(ctx context.Context, threadID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO thread_participants (thread_id, user_id) VALUES ($1, $2)
         ON CONFLICT (thread_id, user_id) DO NOTHING`, threadID, userID)
	return faults.ClassifyStorage(err)
}

// patchColumns maps patch fields to their storage columns in a fixed order
// so generated statements are deterministic.
func patchColumns(patch models.ParticipantPatch) ([]string, []*time.Time) {
	var cols []string
	var vals []*time.Time
	if patch.LastReadAt != nil {
		cols = append(cols, "last_read_at")
		vals = append(vals, patch.LastReadAt)
	}
	if patch.ArchivedAt != nil {
		cols = append(cols, "archived_at")
		vals = append(vals, patch.ArchivedAt)
	}
	if patch.MutedUntil != nil {
		cols = append(cols, "muted_until")
		vals = append(vals, patch.MutedUntil)
	}
	if patch.PinnedAt != nil {
		cols = append(cols, "pinned_at")
		vals = append(vals, patch.PinnedAt)
	}
	return cols, vals
}

// ApplyPatch upserts the patched fields, last-write-wins per field. A zero
// time clears the field. Untouched fields keep their stored values.
func (r *ParticipantRepo) ApplyPatch(ctx context.Context, threadID int, userID int, patch models.ParticipantPatch) error {
	cols, vals := patchColumns(patch)
	if len(cols) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(cols))
	updates := make([]string, 0, len(cols))
	args := []interface{}{threadID, userID}
	for i, col := range cols {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+3))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		args = append(args, nullableTime(vals[i]))
	}

	query := fmt.Sprintf(
		`INSERT INTO thread_participants (thread_id, user_id, %s) VALUES ($1, $2, %s)
         ON CONFLICT (thread_id, user_id) DO UPDATE SET %s`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	_, err := r.db.ExecContext(ctx, query, args...)
	return faults.ClassifyStorage(err)
}

// Get returns the stored state. Columns absent in this deployment simply
// stay nil on the struct; a missing table classifies as capability-missing.
func (r *ParticipantRepo) Get(ctx context.Context, threadID int, userID int) (models.ParticipantState, error) {
	var state models.ParticipantState
	err := r.db.QueryRowxContext(ctx,
		`SELECT * FROM thread_participants WHERE thread_id=$1 AND user_id=$2`,
		threadID, userID).StructScan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ParticipantState{ThreadID: threadID, UserID: userID}, nil
	}
	if err != nil {
		return models.ParticipantState{}, faults.ClassifyStorage(err)
	}
	return state, nil
}

// LastRead returns the user's last-read position, nil when never read.
func (r *ParticipantRepo) LastRead(ctx context.Context, threadID int, userID int) (*time.Time, error) {
	var lastRead sql.NullTime
	err := r.db.GetContext(ctx, &lastRead,
		`SELECT last_read_at FROM thread_participants WHERE thread_id=$1 AND user_id=$2`,
		threadID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.ClassifyStorage(err)
	}
	if !lastRead.Valid {
		return nil, nil
	}
	t := lastRead.Time
	return &t, nil
}

// nullableTime maps the "zero time clears the field" convention to NULL.
func nullableTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}
