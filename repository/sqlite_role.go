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

type sqliteRoleRepo struct {
	db database.TxQuerier
}

// NewSQLiteRoleRepo, constructor.
func NewSQLiteRoleRepo(db database.TxQuerier) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

const roleColumns = `id, server_id, name, color, permissions, position, is_everyone, created_at`

func scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	role := &models.Role{}
	err := row.Scan(&role.ID, &role.ServerID, &role.Name, &role.Color,
		&role.Permissions, &role.Position, &role.IsEveryone, &role.CreatedAt)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *sqliteRoleRepo) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO roles (id, server_id, name, color, permissions, position, is_everyone)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		role.ID, role.ServerID, role.Name, role.Color,
		role.Permissions, role.Position, role.IsEveryone,
	).Scan(&role.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetEveryoneRole(ctx context.Context, serverID string) (*models.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = ? AND is_everyone = 1`, serverID)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get everyone role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) ListByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = ? ORDER BY position DESC`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *sqliteRoleRepo) Update(ctx context.Context, role *models.Role) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE roles SET name = ?, color = ?, permissions = ?
		WHERE id = ?`,
		role.Name, role.Color, role.Permissions, role.ID)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ? AND is_everyone = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		// @everyone position 0'da sabittir — reorder onu atlar.
		if _, err := r.db.ExecContext(ctx,
			`UPDATE roles SET position = ? WHERE id = ? AND server_id = ? AND is_everyone = 0`,
			item.Position, item.ID, serverID); err != nil {
			return fmt.Errorf("failed to reorder roles: %w", err)
		}
	}
	return nil
}

func (r *sqliteRoleRepo) AssignToUser(ctx context.Context, userID, roleID, serverID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, server_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, userID, roleID, serverID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) GetByUserAndServer(ctx context.Context, userID, serverID string) ([]models.Role, error) {
	// Atanmış roller + @everyone (her üyede örtük)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE server_id = ?
		  AND (is_everyone = 1
		       OR id IN (SELECT role_id FROM user_roles WHERE user_id = ? AND server_id = ?))
		ORDER BY position DESC`, serverID, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *sqliteRoleRepo) ListMembersWithRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM user_roles WHERE role_id = ?`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members with role: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
