package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chopmeet-service/internal/models"
)

// MessageRepository defines interactions with a meal's chat log and its
// read-receipt side table. The log is append-only.
type MessageRepository interface {
	CreateMessage(ctx context.Context, mealID string, senderID string, senderName string, text string) (models.ChatMessage, error)
	ListMessages(ctx context.Context, mealID string) ([]models.ChatMessage, error)
	MarkAllRead(ctx context.Context, mealID string, viewerID string) error
	UnreadCount(ctx context.Context, mealID string, viewerID string) (int, error)
	LastMessage(ctx context.Context, mealID string) (*models.ChatMessage, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `msg.id, msg.meal_id, msg.sender_id, msg.sender_name, msg.content, msg.sent_at`

// CreateMessage appends a message and marks it read by its sender.
func (r *MessageRepo) CreateMessage(ctx context.Context, mealID string, senderID string, senderName string, text string) (models.ChatMessage, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	msg := models.ChatMessage{
		MealID:     mealID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  time.Now().UnixMilli(),
		ReadBy:     pq.StringArray{senderID},
	}
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (meal_id, sender_id, sender_name, content, sent_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		mealID, senderID, senderName, text, msg.Timestamp).Scan(&msg.ID); err != nil {
		return models.ChatMessage{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`, msg.ID, senderID); err != nil {
		return models.ChatMessage{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// ListMessages returns the whole log ordered by send time, with the
// insertion key breaking timestamp ties.
func (r *MessageRepo) ListMessages(ctx context.Context, mealID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`,
        COALESCE(array_agg(r.user_id) FILTER (WHERE r.user_id IS NOT NULL), '{}') AS read_by
        FROM messages msg LEFT JOIN message_reads r ON r.message_id = msg.id
        WHERE msg.meal_id=$1
        GROUP BY msg.id
        ORDER BY msg.sent_at ASC, msg.id ASC`, mealID)
	return msgs, err
}

// MarkAllRead adds the viewer to every message's read set in one statement.
// Re-invoking is a no-op per message.
func (r *MessageRepo) MarkAllRead(ctx context.Context, mealID string, viewerID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT id, $2 FROM messages WHERE meal_id=$1
         ON CONFLICT DO NOTHING`, mealID, viewerID)
	return err
}

// UnreadCount counts messages from other senders the viewer has not seen.
func (r *MessageRepo) UnreadCount(ctx context.Context, mealID string, viewerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages msg
         WHERE msg.meal_id=$1 AND msg.sender_id<>$2
         AND NOT EXISTS(SELECT 1 FROM message_reads r WHERE r.message_id=msg.id AND r.user_id=$2)`,
		mealID, viewerID)
	return count, err
}

// LastMessage returns the newest message, or nil for an empty log.
func (r *MessageRepo) LastMessage(ctx context.Context, mealID string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+`,
        COALESCE(array_agg(r.user_id) FILTER (WHERE r.user_id IS NOT NULL), '{}') AS read_by
        FROM messages msg LEFT JOIN message_reads r ON r.message_id = msg.id
        WHERE msg.meal_id=$1
        GROUP BY msg.id
        ORDER BY msg.sent_at DESC, msg.id DESC
        LIMIT 1`, mealID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
