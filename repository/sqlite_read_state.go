package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benerman/nexus/database"
)

type sqliteReadStateRepo struct {
	db database.TxQuerier
}

// NewSQLiteReadStateRepo, constructor.
func NewSQLiteReadStateRepo(db database.TxQuerier) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) MarkRead(ctx context.Context, userID, channelID, messageID string) error {
	// İmleç sadece ileri gider — eski bir mesajı işaretlemek geri sarmaz.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO read_states (user_id, channel_id, last_read_message_id)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, channel_id)
		DO UPDATE SET last_read_message_id = excluded.last_read_message_id
		WHERE excluded.last_read_message_id > read_states.last_read_message_id`,
		userID, channelID, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	return nil
}

func (r *sqliteReadStateRepo) GetCursor(ctx context.Context, userID, channelID string) (string, error) {
	var cursor string
	err := r.db.QueryRowContext(ctx, `
		SELECT last_read_message_id FROM read_states
		WHERE user_id = ? AND channel_id = ?`, userID, channelID,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // Hiç okumamış — imleç boş
	}
	if err != nil {
		return "", fmt.Errorf("failed to get read cursor: %w", err)
	}
	return cursor, nil
}
