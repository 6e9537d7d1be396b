package sqlite

import (
	"context"
	"fmt"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
)

type SQLiteMessageRepository struct {
	db *DB
}

func NewSQLiteMessageRepository(db *DB) ports.MessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	_, err := r.db.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(msg.ID), msg.SenderID.String(), msg.ReceiverID.String(), msg.Text, msg.Image, msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Conversation orders by creation time, falling back to insertion order for
// messages stamped in the same instant.
func (r *SQLiteMessageRepository) Conversation(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, image, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at, seq`,
		a.String(), b.String(), b.String(), a.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		var (
			msg                  domain.Message
			id, sender, receiver string
			created              int64
		)
		if err := rows.Scan(&id, &sender, &receiver, &msg.Text, &msg.Image, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ID = domain.MessageID(id)
		msg.SenderID = domain.UserID(sender)
		msg.ReceiverID = domain.UserID(receiver)
		msg.CreatedAt = time.Unix(0, created).UTC()
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
