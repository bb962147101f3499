package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// FriendshipRepository, arkadaşlık edge'leri için interface.
type FriendshipRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetByID(ctx context.Context, id string) (*models.Friendship, error)
	// GetByPair, (a,b) VEYA (b,a) yönündeki kaydı döner.
	GetByPair(ctx context.Context, a, b string) (*models.Friendship, error)
	Accept(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeletePair(ctx context.Context, a, b string) error
	ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error)
	ListPending(ctx context.Context, userID string) (incoming, outgoing []models.FriendshipWithUser, err error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// BlockRepository, yönlü engelleme edge'leri için interface.
type BlockRepository interface {
	Add(ctx context.Context, blockerID, blockedID string) error
	Remove(ctx context.Context, blockerID, blockedID string) error
	// IsBlockedEither, iki kullanıcı arasında HERHANGİ yönde engel var mı?
	// DM oluşturma/gönderme ve arama bildirimi bu kontrole takılır.
	IsBlockedEither(ctx context.Context, a, b string) (bool, error)
	// IsBlocked, blocker → blocked tek yönlü kontrol.
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlocked(ctx context.Context, blockerID string) ([]models.PublicUser, error)
}
