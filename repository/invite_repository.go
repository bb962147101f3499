package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// InviteRepository, davet kodu işlemleri için interface.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error
	GetByCode(ctx context.Context, code string) (*models.Invite, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Invite, error)
	Revoke(ctx context.Context, code string) error
	// Use, kullanım sayacını atomik olarak artırır. Tek UPDATE sorgusunda
	// expiry + max_uses + revoked kontrolü yapılır — yarış koşulunda bile
	// max_uses aşılamaz. Kullanılamaz durumda pkg.ErrNotFound döner.
	Use(ctx context.Context, code string) error
}
