package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// SessionRepository, oturum kayıtları için interface.
// Her login bir session satırı açar; token doğrulaması session'ın
// canlı olmasını şart koşar — logout satırı siler, token anında ölür.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
