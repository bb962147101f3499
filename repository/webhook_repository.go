package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// WebhookRepository, webhook tanımları için interface.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	// GetByID, token DAHİL döner — ingest doğrulaması constant-time
	// karşılaştırmayı service katmanında yapar.
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	ListByChannel(ctx context.Context, channelID string) ([]models.Webhook, error)
	Delete(ctx context.Context, id string) error
}

// ReportRepository, şikayet kayıtları için interface.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	ListOpen(ctx context.Context) ([]models.Report, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error
}
