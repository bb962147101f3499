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

type sqliteFriendshipRepo struct {
	db database.TxQuerier
}

// NewSQLiteFriendshipRepo, constructor.
func NewSQLiteFriendshipRepo(db database.TxQuerier) FriendshipRepository {
	return &sqliteFriendshipRepo{db: db}
}

func (r *sqliteFriendshipRepo) Create(ctx context.Context, f *models.Friendship) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = models.FriendshipStatusPending
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO friendships (id, user_id, friend_id, status)
		VALUES (?, ?, ?, ?)
		RETURNING created_at, updated_at`,
		f.ID, f.UserID, f.FriendID, f.Status,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: friend request already exists", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create friendship: %w", err)
	}
	return nil
}

func (r *sqliteFriendshipRepo) GetByID(ctx context.Context, id string) (*models.Friendship, error) {
	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friendships WHERE id = ?`, id,
	).Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) GetByPair(ctx context.Context, a, b string) (*models.Friendship, error) {
	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, friend_id, status, created_at, updated_at
		FROM friendships
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		a, b, b, a,
	).Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get friendship pair: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) Accept(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE friendships SET status = 'accepted', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to accept friendship: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}

func (r *sqliteFriendshipRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	return nil
}

func (r *sqliteFriendshipRepo) DeletePair(ctx context.Context, a, b string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		a, b, b, a)
	if err != nil {
		return fmt.Errorf("failed to delete friendship pair: %w", err)
	}
	return nil
}

// friendshipWithUserSelect, karşı taraf bilgisiyle join'li sorgu gövdesi.
// "Karşı taraf" = ben user_id isem friend bilgisi, ben friend_id isem user bilgisi.
const friendshipWithUserSelect = `
	SELECT f.id, f.status, f.created_at,
	       u.id, u.username, u.status, u.color, u.avatar_glyph, u.custom_avatar, u.custom_status
	FROM friendships f
	JOIN users u ON u.id = CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END`

func scanFriendshipWithUser(rows *sql.Rows) (*models.FriendshipWithUser, error) {
	fw := &models.FriendshipWithUser{}
	err := rows.Scan(&fw.ID, &fw.Status, &fw.CreatedAt,
		&fw.User.ID, &fw.User.Username, &fw.User.Status, &fw.User.Color,
		&fw.User.AvatarGlyph, &fw.User.CustomAvatar, &fw.User.CustomStatus)
	if err != nil {
		return nil, err
	}
	return fw, nil
}

func (r *sqliteFriendshipRepo) ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	rows, err := r.db.QueryContext(ctx, friendshipWithUserSelect+`
		WHERE (f.user_id = ? OR f.friend_id = ?) AND f.status = 'accepted'
		ORDER BY u.username COLLATE NOCASE`,
		userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var friends []models.FriendshipWithUser
	for rows.Next() {
		fw, err := scanFriendshipWithUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friendship row: %w", err)
		}
		friends = append(friends, *fw)
	}
	return friends, rows.Err()
}

func (r *sqliteFriendshipRepo) ListPending(ctx context.Context, userID string) (incoming, outgoing []models.FriendshipWithUser, err error) {
	// incoming: bana gelen istekler (friend_id = ben)
	rows, err := r.db.QueryContext(ctx, friendshipWithUserSelect+`
		WHERE f.friend_id = ? AND f.status = 'pending'
		ORDER BY f.created_at DESC`,
		userID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list incoming requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		fw, err := scanFriendshipWithUser(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan friendship row: %w", err)
		}
		incoming = append(incoming, *fw)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// outgoing: benim gönderdiklerim (user_id = ben)
	rows2, err := r.db.QueryContext(ctx, friendshipWithUserSelect+`
		WHERE f.user_id = ? AND f.status = 'pending'
		ORDER BY f.created_at DESC`,
		userID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list outgoing requests: %w", err)
	}
	defer rows2.Close()

	for rows2.Next() {
		fw, err := scanFriendshipWithUser(rows2)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan friendship row: %w", err)
		}
		outgoing = append(outgoing, *fw)
	}
	return incoming, outgoing, rows2.Err()
}

func (r *sqliteFriendshipRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friendships
		WHERE ((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?))
		  AND status = 'accepted'`,
		a, b, b, a,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}
