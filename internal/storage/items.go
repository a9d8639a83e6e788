package storage

import (
	"context"
	"fmt"

	"github.com/clipflow/clipflow/internal/core/domain"
	"github.com/clipflow/clipflow/internal/platform/htmlutils"
)

// SaveItem inserts a record for the finished item. Writes are insert-only;
// concurrent extractions of the same URL produce independent rows.
func (db *DB) SaveItem(ctx context.Context, item *domain.ExtractedItem) error {
	const q = `
		INSERT INTO items (
			url, title, author, author_url, text, content,
			category, message_type, telegraph_url,
			text_length, content_length, created_at, inserted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`

	_, err := db.Pool.Exec(ctx, q,
		item.URL,
		SanitizeUTF8(item.Title),
		SanitizeUTF8(item.Author),
		item.AuthorURL,
		SanitizeUTF8(item.Text),
		SanitizeUTF8(item.Content),
		string(item.Category),
		string(item.MessageType),
		item.TelegraphURL,
		safeIntToInt32(len([]rune(item.Text))),
		safeIntToInt32(htmlutils.TextContentLength(item.Content)),
		toTimestamptzPtr(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}

	return nil
}
