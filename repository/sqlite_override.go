package repository

import (
	"context"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
)

type sqliteOverrideRepo struct {
	db database.TxQuerier
}

// NewSQLiteOverrideRepo, constructor.
func NewSQLiteOverrideRepo(db database.TxQuerier) OverrideRepository {
	return &sqliteOverrideRepo{db: db}
}

func (r *sqliteOverrideRepo) Upsert(ctx context.Context, override *models.ChannelOverride) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channel_overrides (channel_id, subject_kind, subject_id, allow, deny)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, subject_kind, subject_id)
		DO UPDATE SET allow = excluded.allow, deny = excluded.deny`,
		override.ChannelID, override.SubjectKind, override.SubjectID,
		override.Allow, override.Deny)
	if err != nil {
		return fmt.Errorf("failed to upsert channel override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) Delete(ctx context.Context, channelID string, kind models.OverrideSubjectKind, subjectID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM channel_overrides
		WHERE channel_id = ? AND subject_kind = ? AND subject_id = ?`,
		channelID, kind, subjectID)
	if err != nil {
		return fmt.Errorf("failed to delete channel override: %w", err)
	}
	return nil
}

func (r *sqliteOverrideRepo) ListByChannel(ctx context.Context, channelID string) ([]models.ChannelOverride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel_id, subject_kind, subject_id, allow, deny
		FROM channel_overrides WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.ChannelOverride
	for rows.Next() {
		var ov models.ChannelOverride
		if err := rows.Scan(&ov.ChannelID, &ov.SubjectKind, &ov.SubjectID, &ov.Allow, &ov.Deny); err != nil {
			return nil, fmt.Errorf("failed to scan override row: %w", err)
		}
		overrides = append(overrides, ov)
	}
	return overrides, rows.Err()
}
