package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"inbox-service/internal/models"
)

// ReactionRepository abstracts reaction persistence and aggregation.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID int, reactorID int, emoji string) ([]models.ReactionAggregate, error)
	Aggregate(ctx context.Context, messageID int, viewerID int) ([]models.ReactionAggregate, error)
	AggregateForMessages(ctx context.Context, messageIDs []int, viewerID int) (map[int][]models.ReactionAggregate, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle inserts the (message, reactor, emoji) triple if absent, deletes it
// if present, and returns the updated aggregate list. Duplicate concurrent
// inserts collapse on the primary key, so double submission can never
// inflate a count.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID int, reactorID int, emoji string) ([]models.ReactionAggregate, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reactions (message_id, reactor_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, reactor_id, emoji) DO NOTHING`,
		messageID, reactorID, emoji)
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if inserted == 0 {
		// Triple already held: the toggle removes exactly that one row.
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM reactions WHERE message_id=$1 AND reactor_id=$2 AND emoji=$3`,
			messageID, reactorID, emoji)
		if err != nil {
			return nil, err
		}
	}

	return r.Aggregate(ctx, messageID, reactorID)
}

// Aggregate collapses a message's reactions to per-emoji counts with the
// viewer's "mine" flag, ordered count-descending then emoji ascending.
func (r *ReactionRepo) Aggregate(ctx context.Context, messageID int, viewerID int) ([]models.ReactionAggregate, error) {
	query := `SELECT emoji, COUNT(*) AS count, BOOL_OR(reactor_id=$2) AS mine
        FROM reactions WHERE message_id=$1
        GROUP BY emoji
        ORDER BY count DESC, emoji ASC`
	var aggs []models.ReactionAggregate
	err := r.db.SelectContext(ctx, &aggs, query, messageID, viewerID)
	return aggs, err
}

// AggregateForMessages batches aggregation across a page of messages.
func (r *ReactionRepo) AggregateForMessages(ctx context.Context, messageIDs []int, viewerID int) (map[int][]models.ReactionAggregate, error) {
	result := make(map[int][]models.ReactionAggregate)
	if len(messageIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT message_id, emoji, COUNT(*) AS count, BOOL_OR(reactor_id=?) AS mine
        FROM reactions WHERE message_id IN (?)
        GROUP BY message_id, emoji`, viewerID, messageIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row struct {
			MessageID int    `db:"message_id"`
			Emoji     string `db:"emoji"`
			Count     int    `db:"count"`
			Mine      bool   `db:"mine"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result[row.MessageID] = append(result[row.MessageID], models.ReactionAggregate{
			Emoji: row.Emoji,
			Count: row.Count,
			Mine:  row.Mine,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id := range result {
		models.SortAggregates(result[id])
	}
	return result, nil
}
