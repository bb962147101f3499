package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
)

type sqliteInviteRepo struct {
	db database.TxQuerier
}

// NewSQLiteInviteRepo, constructor.
func NewSQLiteInviteRepo(db database.TxQuerier) InviteRepository {
	return &sqliteInviteRepo{db: db}
}

const inviteColumns = `code, server_id, created_by, max_uses, uses, expires_at, revoked, created_at`

func scanInvite(row interface{ Scan(...any) error }) (*models.Invite, error) {
	inv := &models.Invite{}
	err := row.Scan(&inv.Code, &inv.ServerID, &inv.CreatedBy, &inv.MaxUses,
		&inv.Uses, &inv.ExpiresAt, &inv.Revoked, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *sqliteInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO invites (code, server_id, created_by, max_uses, expires_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at`,
		invite.Code, invite.ServerID, invite.CreatedBy, invite.MaxUses, invite.ExpiresAt,
	).Scan(&invite.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *sqliteInviteRepo) GetByCode(ctx context.Context, code string) (*models.Invite, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE code = ?`, code)
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) ListByServer(ctx context.Context, serverID string) ([]models.Invite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE server_id = ? ORDER BY created_at DESC`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite row: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

func (r *sqliteInviteRepo) Revoke(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites SET revoked = 1 WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteInviteRepo) Use(ctx context.Context, code string) error {
	// Atomik artırma: koşullar WHERE'de — iki eşzamanlı kullanım
	// max_uses sınırını aşamaz. Zaman karşılaştırması Go tarafından
	// bind edilir (driver'ın time formatı ile tutarlı kalır).
	result, err := r.db.ExecContext(ctx, `
		UPDATE invites SET uses = uses + 1
		WHERE code = ?
		  AND revoked = 0
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (max_uses IS NULL OR uses < max_uses)`, code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to use invite: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
