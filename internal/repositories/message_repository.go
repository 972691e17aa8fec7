package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
)

var ErrMessageNotFound = fmt.Errorf("message: %w", faults.ErrNotFound)

// MessageRepository defines interactions with a thread's message log.
type MessageRepository interface {
	Append(ctx context.Context, threadID int, senderID int, body string, dailyLimit int) (models.Message, error)
	List(ctx context.Context, threadID int, limit int) ([]models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	Remove(ctx context.Context, messageID int, requesterID int) error
	Latest(ctx context.Context, threadID int) (models.Message, error)
	CountSince(ctx context.Context, threadID int, exceptSenderID int, since time.Time) (int, error)
	LatestOwnBefore(ctx context.Context, threadID int, senderID int, cutoff time.Time) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message. It is the only write path for conversation
// content, and it enforces the daily per-sender quota inside the same
// transaction as the insert. A dailyLimit of zero disables the quota.
func (r *MessageRepo) Append(ctx context.Context, threadID int, senderID int, body string, dailyLimit int) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	if dailyLimit > 0 {
		// Serialize concurrent sends by the same sender so the quota count
		// cannot race the insert. The lock releases with the transaction.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(senderID)); err != nil {
			return models.Message{}, err
		}

		var sentToday int
		err := tx.GetContext(ctx, &sentToday,
			`SELECT COUNT(*) FROM messages WHERE sender_id=$1 AND created_at >= date_trunc('day', NOW())`, senderID)
		if err != nil {
			return models.Message{}, err
		}
		if sentToday >= dailyLimit {
			return models.Message{}, faults.ErrDailyLimitReached
		}
	}

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (thread_id, sender_id, body) VALUES ($1, $2, $3)
         RETURNING id, thread_id, sender_id, body, removed, created_at`,
		threadID, senderID, body).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// List returns the thread's messages in total order: created_at ascending,
// ties broken by insertion id. Removed messages stay in the log as stubs.
func (r *MessageRepo) List(ctx context.Context, threadID int, limit int) ([]models.Message, error) {
	query := `SELECT id, thread_id, sender_id, body, removed, created_at
        FROM (
            SELECT id, thread_id, sender_id, body, removed, created_at
            FROM messages WHERE thread_id=$1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC, id ASC`
	if limit <= 0 {
		limit = 100
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, threadID, limit)
	return msgs, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, thread_id, sender_id, body, removed, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Remove soft-deletes a message. Only the original sender may remove it;
// anyone else gets Forbidden.
func (r *MessageRepo) Remove(ctx context.Context, messageID int, requesterID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET removed = TRUE WHERE id=$1 AND sender_id=$2`, messageID, requesterID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := r.Get(ctx, messageID); err != nil {
		return err
	}
	return faults.ErrForbidden
}

// Latest returns the newest message in the thread.
func (r *MessageRepo) Latest(ctx context.Context, threadID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, thread_id, sender_id, body, removed, created_at FROM messages
         WHERE thread_id=$1 AND removed = FALSE
         ORDER BY created_at DESC, id DESC LIMIT 1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// CountSince counts messages from other senders newer than since. The
// unread definition: sender differs from the viewer and created_at is
// strictly greater than the viewer's last-read position.
func (r *MessageRepo) CountSince(ctx context.Context, threadID int, exceptSenderID int, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages
         WHERE thread_id=$1 AND sender_id<>$2 AND removed = FALSE AND created_at > $3`,
		threadID, exceptSenderID, since)
	return count, err
}

// LatestOwnBefore returns the viewer's most recent message created at or
// before cutoff. Backs the single Seen marker.
func (r *MessageRepo) LatestOwnBefore(ctx context.Context, threadID int, senderID int, cutoff time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, thread_id, sender_id, body, removed, created_at FROM messages
         WHERE thread_id=$1 AND sender_id=$2 AND created_at <= $3
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		threadID, senderID, cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
