package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
)

var ErrThreadNotFound = fmt.Errorf("thread: %w", faults.ErrNotFound)

// ThreadRepository abstracts thread persistence.
type ThreadRepository interface {
	Resolve(ctx context.Context, kind models.ThreadKind, scopeID int) (models.Thread, error)
	Get(ctx context.Context, threadID int) (models.Thread, error)
	ListByScopes(ctx context.Context, kind models.ThreadKind, scopeIDs []int) ([]models.Thread, error)
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// Resolve returns the thread for (kind, scopeID), creating it when absent.
// Creation is insert-if-absent: a concurrent duplicate create loses on the
// (kind, scope_id) unique constraint and the resolve is retried by
// re-selecting the surviving row.
func (r *ThreadRepo) Resolve(ctx context.Context, kind models.ThreadKind, scopeID int) (models.Thread, error) {
	var thread models.Thread
	selectQuery := `SELECT id, kind, scope_id, created_at FROM threads WHERE kind=$1 AND scope_id=$2`

	err := r.db.GetContext(ctx, &thread, selectQuery, kind, scopeID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, err
	}

	insertQuery := `INSERT INTO threads (kind, scope_id) VALUES ($1, $2)
        ON CONFLICT (kind, scope_id) DO NOTHING
        RETURNING id, kind, scope_id, created_at`
	err = r.db.QueryRowxContext(ctx, insertQuery, kind, scopeID).StructScan(&thread)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, err
	}

	// Lost the race: another resolver inserted the row first.
	if err := r.db.GetContext(ctx, &thread, selectQuery, kind, scopeID); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// Get fetches a thread by id.
func (r *ThreadRepo) Get(ctx context.Context, threadID int) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread, `SELECT id, kind, scope_id, created_at FROM threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// ListByScopes returns the existing threads of one kind over the given
// scope ids. Scopes without a thread yet are simply absent; they only come
// into being on first resolve.
func (r *ThreadRepo) ListByScopes(ctx context.Context, kind models.ThreadKind, scopeIDs []int) ([]models.Thread, error) {
	if len(scopeIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, kind, scope_id, created_at FROM threads WHERE kind=? AND scope_id IN (?) ORDER BY created_at DESC`, kind, scopeIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var threads []models.Thread
	if err := r.db.SelectContext(ctx, &threads, query, args...); err != nil {
		return nil, err
	}
	return threads, nil
}
