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
	"github.com/google/uuid"
)

type sqliteServerRepo struct {
	db database.TxQuerier
}

// NewSQLiteServerRepo, constructor.
func NewSQLiteServerRepo(db database.TxQuerier) ServerRepository {
	return &sqliteServerRepo{db: db}
}

const serverColumns = `id, name, owner_id, icon_url, is_personal, created_at, archived_at`

func scanServer(row interface{ Scan(...any) error }) (*models.Server, error) {
	s := &models.Server{}
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.IconURL, &s.IsPersonal, &s.CreatedAt, &s.ArchivedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sqliteServerRepo) Create(ctx context.Context, server *models.Server) error {
	if server.ID == "" {
		server.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO servers (id, name, owner_id, icon_url, is_personal)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at`,
		server.ID, server.Name, server.OwnerID, server.IconURL, server.IsPersonal,
	).Scan(&server.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: personal server already exists", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return s, nil
}

func (r *sqliteServerRepo) GetPersonalServer(ctx context.Context, ownerID string) (*models.Server, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE owner_id = ? AND is_personal = 1`, ownerID)
	s, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personal server: %w", err)
	}
	return s, nil
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE servers SET name = ? WHERE id = ?`, server.Name, server.ID)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) Archive(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE servers SET archived_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to archive server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) TransferOwnership(ctx context.Context, serverID, newOwnerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE servers SET owner_id = ? WHERE id = ?`, newOwnerID, serverID)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) UpdateIcon(ctx context.Context, serverID, iconURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE servers SET icon_url = ? WHERE id = ?`, iconURL, serverID)
	if err != nil {
		return fmt.Errorf("failed to update icon: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) AddMember(ctx context.Context, serverID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO server_members (server_id, user_id)
		VALUES (?, ?)`, serverID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) RemoveMember(ctx context.Context, serverID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM server_members WHERE server_id = ? AND user_id = ?`, serverID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ? AND user_id = ?`,
		serverID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteServerRepo) GetMembership(ctx context.Context, serverID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, `
		SELECT server_id, user_id, joined_at, timeout_until, position
		FROM server_members WHERE server_id = ? AND user_id = ?`,
		serverID, userID,
	).Scan(&m.ServerID, &m.UserID, &m.JoinedAt, &m.TimeoutUntil, &m.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

func (r *sqliteServerRepo) ListMembers(ctx context.Context, serverID string) ([]models.Member, error) {
	// Üyeler + rolleri tek sorguda: roller group_concat ile toplanır.
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar, u.custom_status,
		       m.joined_at, m.timeout_until,
		       COALESCE((SELECT group_concat(ur.role_id)
		                 FROM user_roles ur
		                 WHERE ur.user_id = u.id AND ur.server_id = m.server_id), '')
		FROM server_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.server_id = ? AND u.deleted_at IS NULL
		ORDER BY u.username COLLATE NOCASE`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var roleCSV string
		if err := rows.Scan(
			&m.ID, &m.Username, &m.Status, &m.Color, &m.AvatarGlyph,
			&m.CustomAvatar, &m.CustomStatus, &m.JoinedAt, &m.TimeoutUntil, &roleCSV,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}
		m.RoleIDs = splitCSV(roleCSV)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *sqliteServerRepo) ListMemberIDs(ctx context.Context, serverID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM server_members WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteServerRepo) MemberCount(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ?`, serverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (r *sqliteServerRepo) ListServersOfUser(ctx context.Context, userID string) ([]models.Server, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.owner_id, s.icon_url, s.is_personal, s.created_at, s.archived_at
		FROM servers s
		JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = ? AND s.archived_at IS NULL AND s.is_personal = 0
		ORDER BY m.position, s.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers of user: %w", err)
	}
	defer rows.Close()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server row: %w", err)
		}
		servers = append(servers, *s)
	}
	return servers, rows.Err()
}

func (r *sqliteServerRepo) SetTimeout(ctx context.Context, serverID, userID string, until *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE server_members SET timeout_until = ? WHERE server_id = ? AND user_id = ?`,
		until, serverID, userID)
	if err != nil {
		return fmt.Errorf("failed to set timeout: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteServerRepo) LongestJoinedAdmin(ctx context.Context, serverID, excludeUserID string) (string, error) {
	// Admin = administrator bitini taşıyan bir role sahip üye.
	var userID string
	err := r.db.QueryRowContext(ctx, `
		SELECT m.user_id
		FROM server_members m
		JOIN user_roles ur ON ur.user_id = m.user_id AND ur.server_id = m.server_id
		JOIN roles ro ON ro.id = ur.role_id
		WHERE m.server_id = ? AND m.user_id != ? AND (ro.permissions & ?) != 0
		ORDER BY m.joined_at
		LIMIT 1`,
		serverID, excludeUserID, int64(models.PermAdministrator),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", pkg.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find admin for ownership transfer: %w", err)
	}
	return userID, nil
}

func (r *sqliteServerRepo) ReorderForUser(ctx context.Context, userID string, items []models.PositionUpdate) error {
	for _, item := range items {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE server_members SET position = ? WHERE server_id = ? AND user_id = ?`,
			item.Position, item.ID, userID); err != nil {
			return fmt.Errorf("failed to reorder servers: %w", err)
		}
	}
	return nil
}

// splitCSV, group_concat çıktısını parçalar; boş string → nil.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
