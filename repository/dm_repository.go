package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// DMRepository, DM katılımcıları ve kullanıcıya özel DM görünümü için interface.
// Kanalın kendisi channels tablosundadır (ChannelRepository) —
// burada sadece katılımcı edge'leri ve per-user bayraklar yönetilir.
type DMRepository interface {
	AddParticipant(ctx context.Context, channelID, userID string) error
	RemoveParticipant(ctx context.Context, channelID, userID string) error
	ListParticipants(ctx context.Context, channelID string) ([]string, error)
	IsParticipant(ctx context.Context, channelID, userID string) (bool, error)
	// FindDirectChannel, iki kullanıcı arasındaki mevcut 1:1 DM kanalını döner.
	FindDirectChannel(ctx context.Context, a, b string) (*models.Channel, error)
	// ListChannelsOfUser, kullanıcının hidden olmayan DM kanallarını döner.
	ListChannelsOfUser(ctx context.Context, userID string) ([]models.Channel, error)
	SetHidden(ctx context.Context, channelID, userID string, hidden bool) error
	SetArchived(ctx context.Context, channelID, userID string, archived bool) error
	GetParticipantFlags(ctx context.Context, channelID, userID string) (*models.DMParticipant, error)
}

// ReadStateRepository, per-user-per-channel okundu imleçleri için interface.
type ReadStateRepository interface {
	MarkRead(ctx context.Context, userID, channelID, messageID string) error
	GetCursor(ctx context.Context, userID, channelID string) (string, error)
}
