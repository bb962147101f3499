package repository

import (
	"context"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
)

type sqliteReactionRepo struct {
	db database.TxQuerier
}

// NewSQLiteReactionRepo, constructor.
func NewSQLiteReactionRepo(db database.TxQuerier) ReactionRepository {
	return &sqliteReactionRepo{db: db}
}

func (r *sqliteReactionRepo) Add(ctx context.Context, messageID, userID, emoji string) error {
	// ON CONFLICT DO NOTHING → aynı kullanıcı + emoji ikinci kez eklenirse no-op.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

func (r *sqliteReactionRepo) Remove(ctx context.Context, messageID, userID, emoji string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM reactions
		WHERE message_id = ? AND user_id = ? AND emoji = ?`, messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

func (r *sqliteReactionRepo) ListByMessage(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT emoji, user_id FROM reactions
		WHERE message_id = ?
		ORDER BY created_at`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	defer rows.Close()

	groups := []models.ReactionGroup{}
	index := make(map[string]int)
	for rows.Next() {
		var emoji, userID string
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan reaction row: %w", err)
		}
		i, ok := index[emoji]
		if !ok {
			i = len(groups)
			index[emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: emoji})
		}
		groups[i].UserIDs = append(groups[i].UserIDs, userID)
	}
	return groups, rows.Err()
}
