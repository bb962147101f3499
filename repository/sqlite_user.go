package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/google/uuid"
)

// sqliteUserRepo, UserRepository interface'inin SQLite implementasyonu.
type sqliteUserRepo struct {
	db database.TxQuerier
}

// NewSQLiteUserRepo, constructor.
// UserRepository interface'i döner (concrete struct değil) — Dependency Inversion.
func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

const userColumns = `id, username, password_hash, status, color, avatar_glyph, custom_avatar, custom_status, settings, created_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var settings string
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Status,
		&user.Color, &user.AvatarGlyph, &user.CustomAvatar, &user.CustomStatus,
		&settings, &user.CreatedAt, &user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Settings = []byte(settings)
	return user, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.NewString()
	if len(user.Settings) == 0 {
		user.Settings = []byte("{}")
	}

	query := `
		INSERT INTO users (id, username, password_hash, status, color, avatar_glyph, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Status,
		user.Color,
		user.AvatarGlyph,
		string(user.Settings),
	).Scan(&user.CreatedAt)

	if err != nil {
		// UNIQUE constraint violation → kullanıcı adı zaten var (case-insensitive)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET color = ?, avatar_glyph = ?, custom_status = ?
		WHERE id = ?`,
		user.Color, user.AvatarGlyph, user.CustomStatus, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE id = ?`, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) UpdateCustomAvatar(ctx context.Context, userID string, dataURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET custom_avatar = ? WHERE id = ?`, dataURL, userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) UpdateSettings(ctx context.Context, userID string, settings []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET settings = ? WHERE id = ?`, string(settings), userID)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) SoftDelete(ctx context.Context, id string) error {
	// Username boşa çıkarılır — aynı isim yeniden kaydedilebilir.
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET deleted_at = CURRENT_TIMESTAMP, username = 'deleted-' || id, status = 'offline'
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete user: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
