// Package main, nexus backend realtime core'un giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat (embedded migration'lar)
//  3. Rate limit bucket'larını kur
//  4. WebSocket Hub + Dispatcher + TypingTracker'ı başlat
//  5. Repository'leri oluştur
//  6. Service'leri oluştur (repository'ler + hub ile)
//  7. Hub callback'lerini ve Dispatcher op tablosunu bağla
//  8. HTTP handler'ları ve route'ları kur
//  9. CORS yapılandır
// 10. Arka plan görevlerini başlat (voice sweeper, session cleanup)
// 11. HTTP Server'ı başlat, graceful shutdown bekle
//
// Global değişken YOK — her şey burada oluşturulup birbirine bağlanır.
package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benerman/nexus/config"
	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/pkg/ratelimit"
	"github.com/benerman/nexus/ws"
	"github.com/rs/cors"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] nexus server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	migrationsFS, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		log.Fatalf("[main] failed to access embedded migrations: %v", err)
	}

	db, err := database.New(cfg.Store.URL, migrationsFS)
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Rate limit bucket'ları ───
	limits := ratelimit.NewBuckets(cfg.RateLimit)

	// ─── 4. WS katmanı ───
	hub := ws.NewHub()
	go hub.Run()

	dispatcher := ws.NewDispatcher(hub, limits)
	typing := ws.NewTypingTracker(hub)
	defer typing.Close()

	// ─── 5-6. Repository + Service katmanları ───
	repos := initRepos(db.Conn)
	svcs := initServices(db.Conn, cfg, repos, hub)

	// ─── 7. Callback + dispatcher tablosu ───
	initCallbacks(hub, dispatcher, typing, repos, svcs)

	// ─── 8. HTTP katmanı ───
	handlers := initHandlers(cfg, repos, svcs, limits, hub)
	mux := http.NewServeMux()
	initRoutes(mux, handlers, svcs.Auth, hub, dispatcher)

	// ─── 9. CORS ───
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(mux)

	// ─── 10. Arka plan görevleri ───
	stopBackground := make(chan struct{})

	// Voice sweeper: kapanmış socket artıklarını temizler (emniyet kemeri).
	go svcs.Voice.RunSweeper(stopBackground)

	// Süresi dolmuş session'ların periyodik temizliği.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if n, err := repos.Session.DeleteExpired(ctx); err == nil && n > 0 {
					log.Printf("[main] cleaned up %d expired sessions", n)
				}
				cancel()
			case <-stopBackground:
				return
			}
		}
	}()

	// ─── 11. HTTP Server + graceful shutdown ───
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	// SIGINT/SIGTERM bekle
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] shutting down...")
	close(stopBackground)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] server stopped")
}
