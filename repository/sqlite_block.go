package repository

import (
	"context"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
)

type sqliteBlockRepo struct {
	db database.TxQuerier
}

// NewSQLiteBlockRepo, constructor.
func NewSQLiteBlockRepo(db database.TxQuerier) BlockRepository {
	return &sqliteBlockRepo{db: db}
}

func (r *sqliteBlockRepo) Add(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to add block: %w", err)
	}
	return nil
}

func (r *sqliteBlockRepo) Remove(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("failed to remove block: %w", err)
	}
	return nil
}

func (r *sqliteBlockRepo) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blocks
		WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)`,
		a, b, b, a,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteBlockRepo) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocks WHERE blocker_id = ? AND blocked_id = ?`,
		blockerID, blockedID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteBlockRepo) ListBlocked(ctx context.Context, blockerID string) ([]models.PublicUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar, u.custom_status
		FROM blocks b
		JOIN users u ON u.id = b.blocked_id
		WHERE b.blocker_id = ?
		ORDER BY u.username COLLATE NOCASE`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	defer rows.Close()

	var users []models.PublicUser
	for rows.Next() {
		var u models.PublicUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Status, &u.Color,
			&u.AvatarGlyph, &u.CustomAvatar, &u.CustomStatus); err != nil {
			return nil, fmt.Errorf("failed to scan blocked user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
