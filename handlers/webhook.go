// WebhookIngestHandler — token doğrulamalı webhook HTTP girişi.
//
// POST /api/webhooks/{id}/{token}
// Auth sadece (id, token) çiftidir; bearer token gerekmez.
// Rate limit webhook id bazlıdır; aşım 429 + Retry-After döner.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/pkg/ratelimit"
	"github.com/benerman/nexus/services"
)

// WebhookHandler, webhook ingest endpoint'ini yönetir.
type WebhookHandler struct {
	webhookService services.WebhookService
	limiter        *ratelimit.Limiter
}

// NewWebhookHandler, constructor.
func NewWebhookHandler(webhookService services.WebhookService, limiter *ratelimit.Limiter) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		limiter:        limiter,
	}
}

// Ingest godoc
// POST /api/webhooks/{id}/{token}
func (h *WebhookHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	webhookID := r.PathValue("id")
	token := r.PathValue("token")
	if webhookID == "" || token == "" {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid webhook credentials")
		return
	}

	// Rate limit webhook id bazlı — auth'tan önce kontrol edilir ki
	// geçersiz token yağmuru da aynı bucket'ı tüketsin.
	if h.limiter != nil && !h.limiter.Allow(webhookID) {
		retryAfter := h.limiter.RetryAfterSeconds(webhookID)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		pkg.ErrorWithMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.webhookService.Ingest(r.Context(), webhookID, token, &payload)
	if err != nil {
		if errors.Is(err, pkg.ErrUnauthorized) {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid webhook credentials")
			return
		}
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]any{
		"id":       message.ID,
		"success":  true,
		"username": message.Author.DisplayName,
	})
}
