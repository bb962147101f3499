package repository

import (
	"context"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/pkg"
)

type sqliteBanRepo struct {
	db database.TxQuerier
}

// NewSQLiteBanRepo, constructor.
func NewSQLiteBanRepo(db database.TxQuerier) BanRepository {
	return &sqliteBanRepo{db: db}
}

func (r *sqliteBanRepo) Add(ctx context.Context, serverID, userID, bannedBy, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bans (server_id, user_id, banned_by, reason)
		VALUES (?, ?, ?, ?)`, serverID, userID, bannedBy, reason)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already banned", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add ban: %w", err)
	}
	return nil
}

func (r *sqliteBanRepo) Remove(ctx context.Context, serverID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM bans WHERE server_id = ? AND user_id = ?`, serverID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove ban: %w", err)
	}
	return nil
}

func (r *sqliteBanRepo) IsBanned(ctx context.Context, serverID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bans WHERE server_id = ? AND user_id = ?`,
		serverID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteBanRepo) ListByServer(ctx context.Context, serverID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM bans WHERE server_id = ? ORDER BY created_at DESC`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ban row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
