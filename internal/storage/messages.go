package storage

import (
	"context"
	"fmt"
	"time"
)

// ChatMessage is a persisted non-URL chat message.
type ChatMessage struct {
	Timestamp time.Time
	Chat      int64
	User      string
	Text      string
}

// SaveChatMessage records an inbound chat message for later inspection.
func (db *DB) SaveChatMessage(ctx context.Context, msg ChatMessage) error {
	const q = `INSERT INTO chat_messages (ts, chat_id, username, text) VALUES ($1, $2, $3, $4)`

	if _, err := db.Pool.Exec(ctx, q, msg.Timestamp, msg.Chat, msg.User, SanitizeUTF8(msg.Text)); err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}

	return nil
}
