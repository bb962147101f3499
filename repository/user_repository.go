package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// UserRepository, kullanıcı veritabanı işlemleri için interface.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByUsername, case-insensitive arar (username COLLATE NOCASE).
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error
	UpdateCustomAvatar(ctx context.Context, userID string, dataURL string) error
	UpdateSettings(ctx context.Context, userID string, settings []byte) error
	// SoftDelete, hesabı tombstone'a çevirir: deleted_at set edilir,
	// username "deleted-<id>" olarak boşa çıkarılır.
	SoftDelete(ctx context.Context, id string) error
}
