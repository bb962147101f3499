package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
)

type sqliteDMRepo struct {
	db database.TxQuerier
}

// NewSQLiteDMRepo, constructor.
func NewSQLiteDMRepo(db database.TxQuerier) DMRepository {
	return &sqliteDMRepo{db: db}
}

func (r *sqliteDMRepo) AddParticipant(ctx context.Context, channelID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dm_participants (channel_id, user_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING`, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to add dm participant: %w", err)
	}
	return nil
}

func (r *sqliteDMRepo) RemoveParticipant(ctx context.Context, channelID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_participants WHERE channel_id = ? AND user_id = ?`, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove dm participant: %w", err)
	}
	return nil
}

func (r *sqliteDMRepo) ListParticipants(ctx context.Context, channelID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM dm_participants WHERE channel_id = ? ORDER BY joined_at`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dm participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteDMRepo) IsParticipant(ctx context.Context, channelID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dm_participants WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check dm participant: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteDMRepo) FindDirectChannel(ctx context.Context, a, b string) (*models.Channel, error) {
	// type='dm' kanallarında tam olarak iki katılımcı vardır — ikisi de eşleşmeli.
	row := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.server_id, c.category_id, c.name, c.type, c.description, c.is_private,
		       c.position, c.dm_initiator_id, c.dm_request_state, c.created_at
		FROM channels c
		WHERE c.type = 'dm'
		  AND EXISTS (SELECT 1 FROM dm_participants WHERE channel_id = c.id AND user_id = ?)
		  AND EXISTS (SELECT 1 FROM dm_participants WHERE channel_id = c.id AND user_id = ?)
		LIMIT 1`, a, b)

	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find direct channel: %w", err)
	}
	return c, nil
}

func (r *sqliteDMRepo) ListChannelsOfUser(ctx context.Context, userID string) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.server_id, c.category_id, c.name, c.type, c.description, c.is_private,
		       c.position, c.dm_initiator_id, c.dm_request_state, c.created_at
		FROM channels c
		JOIN dm_participants p ON p.channel_id = c.id
		WHERE p.user_id = ? AND p.hidden = 0 AND c.type IN ('dm', 'group-dm')
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dm channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dm channel row: %w", err)
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

func (r *sqliteDMRepo) SetHidden(ctx context.Context, channelID, userID string, hidden bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dm_participants SET hidden = ? WHERE channel_id = ? AND user_id = ?`,
		hidden, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to set hidden: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteDMRepo) SetArchived(ctx context.Context, channelID, userID string, archived bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dm_participants SET archived = ? WHERE channel_id = ? AND user_id = ?`,
		archived, channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to set archived: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteDMRepo) GetParticipantFlags(ctx context.Context, channelID, userID string) (*models.DMParticipant, error) {
	p := &models.DMParticipant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT channel_id, user_id, hidden, archived, joined_at
		FROM dm_participants WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	).Scan(&p.ChannelID, &p.UserID, &p.Hidden, &p.Archived, &p.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant flags: %w", err)
	}
	return p, nil
}
