package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// OverrideRepository, kanal bazlı permission override işlemleri için interface.
type OverrideRepository interface {
	Upsert(ctx context.Context, override *models.ChannelOverride) error
	Delete(ctx context.Context, channelID string, kind models.OverrideSubjectKind, subjectID string) error
	ListByChannel(ctx context.Context, channelID string) ([]models.ChannelOverride, error)
}
