package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// ChannelRepository, kanal işlemleri için interface (DM kanalları dahil).
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id string) error
	// Reorder, verilen position'ları tek seferde yazar.
	// Transactional bütünlük için WithTx içinden Tx'li repo ile çağrılır.
	Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error
	Move(ctx context.Context, channelID, categoryID string, position int) error
	// NameExists, (server, category, type) içinde isim çakışması kontrolü.
	NameExists(ctx context.Context, serverID string, categoryID *string, chType models.ChannelType, name string) (bool, error)
	SetRequestState(ctx context.Context, channelID string, state models.DMRequestState) error
}

// CategoryRepository, kategori işlemleri için interface.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
	ListCategoriesByServer(ctx context.Context, serverID string) ([]models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	ReorderCategories(ctx context.Context, serverID string, items []models.PositionUpdate) error
}
