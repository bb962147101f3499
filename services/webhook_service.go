// Package services — WebhookService: webhook CRUD ve HTTP ingest.
//
// Token 64 hex karakterdir ve SADECE oluşturma yanıtında açığa çıkar.
// Ingest doğrulaması (id, token) çifti üzerinde constant-time karşılaştırma
// yapar — timing side-channel ile token sızdırılamaz.
//
// Webhook mesajları sendMessages yetkisini atlar (webhook'u oluşturan
// manageWebhooks sahibi kefildir) ama mention parse ve fan-out dahil
// kullanıcı mesajlarıyla aynı yoldan akar.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/google/uuid"
)

// WebhookService, webhook operasyonları için public interface.
type WebhookService interface {
	Create(ctx context.Context, userID string, req *models.CreateWebhookRequest) (*models.Webhook, error)
	Delete(ctx context.Context, userID, webhookID string) error
	// List, token'ları maskeleyerek döner.
	List(ctx context.Context, userID, channelID string) ([]models.Webhook, error)

	// Ingest, POST /api/webhooks/<id>/<token> payload'ını mesaja çevirir.
	// Auth sadece (id, token) çiftidir; geçersizse ErrUnauthorized.
	Ingest(ctx context.Context, webhookID, token string, payload *models.WebhookPayload) (*models.Message, error)
}

type webhookService struct {
	webhookRepo repository.WebhookRepository
	channelRepo repository.ChannelRepository
	perms       PermissionService
	messages    MessageService
}

// NewWebhookService, constructor.
func NewWebhookService(
	webhookRepo repository.WebhookRepository,
	channelRepo repository.ChannelRepository,
	perms PermissionService,
	messages MessageService,
) WebhookService {
	return &webhookService{
		webhookRepo: webhookRepo,
		channelRepo: channelRepo,
		perms:       perms,
		messages:    messages,
	}
}

// generateWebhookToken, 64 hex karakterlik (32 byte) token üretir.
func generateWebhookToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *webhookService) Create(ctx context.Context, userID string, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.IsDMKind() || channel.Type != models.ChannelTypeText {
		return nil, fmt.Errorf("%w: webhooks attach to text channels only", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermManageWebhooks); err != nil {
		return nil, err
	}

	token, err := generateWebhookToken()
	if err != nil {
		return nil, err
	}

	webhook := &models.Webhook{
		ID:        uuid.NewString(),
		Token:     token,
		ChannelID: req.ChannelID,
		Name:      req.Name,
		CreatedBy: userID,
	}
	if req.Avatar != "" {
		webhook.Avatar = &req.Avatar
	}

	if err := s.webhookRepo.Create(ctx, webhook); err != nil {
		return nil, err
	}

	// Token bu yanıtta bir kez görünür — sonraki listelemeler maskeler.
	return webhook, nil
}

func (s *webhookService) Delete(ctx context.Context, userID, webhookID string) error {
	webhook, err := s.webhookRepo.GetByID(ctx, webhookID)
	if err != nil {
		return err
	}
	channel, err := s.channelRepo.GetByID(ctx, webhook.ChannelID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermManageWebhooks); err != nil {
		return err
	}
	return s.webhookRepo.Delete(ctx, webhookID)
}

func (s *webhookService) List(ctx context.Context, userID, channelID string) ([]models.Webhook, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermManageWebhooks); err != nil {
		return nil, err
	}

	webhooks, err := s.webhookRepo.ListByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	masked := make([]models.Webhook, len(webhooks))
	for i, w := range webhooks {
		masked[i] = w.Masked()
	}
	return masked, nil
}

func (s *webhookService) Ingest(ctx context.Context, webhookID, token string, payload *models.WebhookPayload) (*models.Message, error) {
	webhook, err := s.webhookRepo.GetByID(ctx, webhookID)
	if err != nil {
		// Bilinmeyen id de geçersiz token ile aynı yanıtı alır.
		return nil, fmt.Errorf("%w: invalid webhook credentials", pkg.ErrUnauthorized)
	}

	if subtle.ConstantTimeCompare([]byte(webhook.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("%w: invalid webhook credentials", pkg.ErrUnauthorized)
	}

	// Sentetik yazar kimliği: payload isim/avatar verebilir, yoksa webhook tanımı.
	displayName := payload.Username
	if displayName == "" {
		displayName = webhook.Name
	}
	avatar := payload.DisplayAvatar()
	if avatar == "" && webhook.Avatar != nil {
		avatar = *webhook.Avatar
	}

	author := models.Author{
		Kind:        models.AuthorKindWebhook,
		ID:          webhook.ID,
		DisplayName: displayName,
		AvatarURL:   avatar,
	}

	draft := &models.MessageDraft{
		ChannelID:   webhook.ChannelID,
		Content:     payload.Content,
		Embeds:      payload.Embeds,
		Attachments: payload.Attachments,
	}

	return s.messages.Send(ctx, author, draft)
}
