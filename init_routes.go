// Package main — HTTP route registration.
//
// HTTP yüzeyi bilinçli olarak küçüktür: kayıt/giriş, avatar/icon yükleme,
// webhook ingest, link önizleme ve GIF proxy'si. Domain mutasyonlarının
// tamamı WS event'leri üzerinden akar (bkz. init_callbacks.go).
package main

import (
	"net/http"

	"github.com/benerman/nexus/handlers"
	"github.com/benerman/nexus/middleware"
	"github.com/benerman/nexus/services"
	"github.com/benerman/nexus/ws"
)

// initRoutes, middleware chain'i kurar ve endpoint'leri mux'a bağlar.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	hub *ws.Hub,
	dispatcher *ws.Dispatcher,
) {
	authMw := middleware.NewAuthMiddleware(authService)

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(http.HandlerFunc(handler))
	}

	// WebSocket — upgrade auth'suz, kimlik ilk frame'deki join{token} ile bağlanır.
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, dispatcher))

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.Handle("POST /api/auth/logout", auth(h.Auth.Logout))
	mux.Handle("DELETE /api/auth/account", auth(h.Auth.DeleteAccount))

	// Avatar / Icon
	mux.Handle("POST /api/user/avatar", auth(h.Avatar.UploadUserAvatar))
	mux.Handle("POST /api/server/{serverId}/icon", auth(h.Avatar.UploadServerIcon))

	// Webhook ingest — auth (id, token) çiftidir, bearer gerekmez
	mux.HandleFunc("POST /api/webhooks/{id}/{token}", h.Webhook.Ingest)

	// Link önizleme + GIF proxy
	mux.Handle("GET /api/og", auth(h.OG.Scrape))
	mux.Handle("GET /api/gifs/search", auth(h.Gif.Search))
	mux.Handle("GET /api/gifs/trending", auth(h.Gif.Trending))

	// Health
	mux.HandleFunc("GET /api/health", handlers.Health)
	mux.HandleFunc("GET /health", handlers.Health)
}
