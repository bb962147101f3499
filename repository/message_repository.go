package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// MessageRepository, mesaj işlemleri için interface.
//
// Mesaj ID'leri ULID'dir — zaman sıralı string karşılaştırması ile
// cursor pagination ve kanal içi total order sağlanır.
// Silme tombstone'dur: satır kalır, deleted_at set edilir.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListBefore, beforeID'den eski mesajları id azalan sırada döner.
	// beforeID boş ise en yeni mesajlardan başlar. Tombstone'lar dahildir
	// (client "deleted" işaretli gösterir), reaksiyonlar doldurulur.
	ListBefore(ctx context.Context, channelID, beforeID string, limit int) (*models.MessagePage, error)
	UpdateContent(ctx context.Context, id, content string) error
	SoftDelete(ctx context.Context, id string) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	ListPinned(ctx context.Context, channelID string) ([]models.Message, error)
	UpdateCommandData(ctx context.Context, id string, data *models.CommandData) error
	// CountAfter, okundu imleci sonrası mesaj sayısını döner (unread count).
	CountAfter(ctx context.Context, channelID, afterID string) (int, error)
	GetLast(ctx context.Context, channelID string) (*models.Message, error)
	// AnonymizeAuthor, hesap silmede kullanıcının mesajlarını tombstone
	// yazara çevirir.
	AnonymizeAuthor(ctx context.Context, userID string) error
}
