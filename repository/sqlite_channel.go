package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/google/uuid"
)

type sqliteChannelRepo struct {
	db database.TxQuerier
}

// NewSQLiteChannelRepo, constructor.
func NewSQLiteChannelRepo(db database.TxQuerier) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

const channelColumns = `id, server_id, category_id, name, type, description, is_private, position, dm_initiator_id, dm_request_state, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*models.Channel, error) {
	c := &models.Channel{}
	err := row.Scan(&c.ID, &c.ServerID, &c.CategoryID, &c.Name, &c.Type,
		&c.Description, &c.IsPrivate, &c.Position, &c.DMInitiator, &c.RequestState, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *sqliteChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO channels (id, server_id, category_id, name, type, description, is_private, position, dm_initiator_id, dm_request_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		channel.ID, channel.ServerID, channel.CategoryID, channel.Name, channel.Type,
		channel.Description, channel.IsPrivate, channel.Position,
		channel.DMInitiator, channel.RequestState,
	).Scan(&channel.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already exists in this category", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

func (r *sqliteChannelRepo) ListByServer(ctx context.Context, serverID string) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE server_id = ? AND type IN ('text', 'voice')
		ORDER BY position, created_at`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

func (r *sqliteChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE channels SET name = ?, description = ?, is_private = ?
		WHERE id = ?`,
		channel.Name, channel.Description, channel.IsPrivate, channel.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already exists in this category", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE channels SET position = ? WHERE id = ? AND server_id = ?`,
			item.Position, item.ID, serverID); err != nil {
			return fmt.Errorf("failed to reorder channels: %w", err)
		}
	}
	return nil
}

func (r *sqliteChannelRepo) Move(ctx context.Context, channelID, categoryID string, position int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET category_id = ?, position = ? WHERE id = ?`,
		categoryID, position, channelID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel name already exists in target category", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to move channel: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteChannelRepo) NameExists(ctx context.Context, serverID string, categoryID *string, chType models.ChannelType, name string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM channels
		WHERE server_id = ? AND category_id IS ? AND type = ? AND name = ?`,
		serverID, categoryID, chType, name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check channel name: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteChannelRepo) SetRequestState(ctx context.Context, channelID string, state models.DMRequestState) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE channels SET dm_request_state = ? WHERE id = ?`, state, channelID)
	if err != nil {
		return fmt.Errorf("failed to set request state: %w", err)
	}
	return nil
}
