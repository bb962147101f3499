// Package main — HTTP handler wire-up.
package main

import (
	"github.com/benerman/nexus/config"
	"github.com/benerman/nexus/handlers"
	"github.com/benerman/nexus/pkg/ratelimit"
	"github.com/benerman/nexus/ws"
)

// Handlers, HTTP handler instance'larını bir arada tutar.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Avatar  *handlers.AvatarHandler
	Webhook *handlers.WebhookHandler
	OG      *handlers.OGHandler
	Gif     *handlers.GifHandler
}

// initHandlers, tüm HTTP handler'ları oluşturur.
func initHandlers(cfg *config.Config, repos *Repos, svcs *Services, limits *ratelimit.Buckets, hub *ws.Hub) *Handlers {
	return &Handlers{
		Auth:    handlers.NewAuthHandler(svcs.Auth, limits.AuthLogin, hub.DisconnectUser),
		Avatar:  handlers.NewAvatarHandler(svcs.User, repos.Server, svcs.Perms, cfg.Upload.MaxBytes),
		Webhook: handlers.NewWebhookHandler(svcs.Webhook, limits.WebhookPost),
		OG:      handlers.NewOGHandler(),
		Gif:     handlers.NewGifHandler(cfg.Giphy.APIKey),
	}
}
