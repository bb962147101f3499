// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Config struct'ı tüm ayarları tek bir yerde toplar, böylece
// her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benerman/nexus/pkg/ratelimit"
	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — her struct tek bir concern'ü temsil eder.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	JWT       JWTConfig
	Voice     VoiceConfig
	Giphy     GiphyConfig
	Upload    UploadConfig
	RateLimit ratelimit.BucketsConfig
}

// ServerConfig, HTTP/WS server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig, SQLite store ayarları.
type StoreConfig struct {
	URL string // SQLite dosya yolu (ör: ./data/nexus.db)
}

// JWTConfig, session token ayarları.
type JWTConfig struct {
	Secret     string // Token imzalama anahtarı — GİZLİ TUTULMALI
	ExpiryDays int    // Token ömrü (gün cinsinden, varsayılan: 30)
}

// VoiceConfig, WebRTC signaling için ICE server ayarları.
//
// STUNServers her zaman doludur (varsayılan public STUN listesi).
// TURNServers opsiyoneldir — TURN_SERVERS env var'ı JSON array olarak parse edilir:
//
//	TURN_SERVERS='[{"urls":"turn:turn.example.com:3478","username":"u","credential":"c"}]'
type VoiceConfig struct {
	STUNServers []ICEServer
	TURNServers []ICEServer
}

// ICEServer, client'a iletilen tek bir ICE server tanımı.
// WebRTC RTCIceServer ile aynı alan isimleri — client doğrudan kullanır.
type ICEServer struct {
	URLs       string `json:"urls"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// GiphyConfig, GIF proxy ayarları.
type GiphyConfig struct {
	APIKey string // Boş ise GIF endpoint'leri 503 döner
}

// UploadConfig, avatar/icon yükleme ayarları.
type UploadConfig struct {
	MaxBytes int64 // Data URL boyut sınırı (varsayılan: 2 MiB)
}

// defaultSTUNServers, TURN yapılandırılmamış sunucularda kullanılan
// varsayılan public STUN listesi.
var defaultSTUNServers = []ICEServer{
	{URLs: "stun:stun.l.google.com:19302"},
	{URLs: "stun:stun1.l.google.com:19302"},
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyasını yükle — dosya yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	expiryDays, err := strconv.Atoi(getEnv("JWT_EXPIRY_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_DAYS: %w", err)
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "2097152"), 10, 64) // 2 MiB
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	// TURN_SERVERS: JSON array — boş veya tanımsızsa TURN kullanılmaz.
	var turnServers []ICEServer
	if raw := getEnv("TURN_SERVERS", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &turnServers); err != nil {
			return nil, fmt.Errorf("invalid TURN_SERVERS: %w", err)
		}
	}

	rateLimits, err := loadRateLimits()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: port,
		},
		Store: StoreConfig{
			URL: getEnv("STORE_URL", "./data/nexus.db"),
		},
		JWT: JWTConfig{
			Secret:     jwtSecret,
			ExpiryDays: expiryDays,
		},
		Voice: VoiceConfig{
			STUNServers: defaultSTUNServers,
			TURNServers: turnServers,
		},
		Giphy: GiphyConfig{
			APIKey: getEnv("GIPHY_API_KEY", ""),
		},
		Upload: UploadConfig{
			MaxBytes: maxUpload,
		},
		RateLimit: rateLimits,
	}

	return cfg, nil
}

// loadRateLimits, RATE_LIMIT_* env override'larını okur.
// Format: "max/windowSeconds" — ör: RATE_LIMIT_MESSAGE_SEND=10/10
// Tanımsız bucket'lar varsayılan limitlerini kullanır.
func loadRateLimits() (ratelimit.BucketsConfig, error) {
	cfg := ratelimit.BucketsConfig{}

	entries := []struct {
		key    string
		target *ratelimit.BucketConfig
	}{
		{"RATE_LIMIT_MESSAGE_SEND", &cfg.MessageSend},
		{"RATE_LIMIT_WEBHOOK_POST", &cfg.WebhookPost},
		{"RATE_LIMIT_FRIEND_REQUEST", &cfg.FriendRequest},
		{"RATE_LIMIT_INVITE_CREATE", &cfg.InviteCreate},
		{"RATE_LIMIT_AUTH_LOGIN", &cfg.AuthLogin},
		{"RATE_LIMIT_WS_EVENT", &cfg.SocketEvent},
	}

	for _, e := range entries {
		raw := getEnv(e.key, "")
		if raw == "" {
			continue
		}
		var max, secs int
		if _, err := fmt.Sscanf(raw, "%d/%d", &max, &secs); err != nil {
			return cfg, fmt.Errorf("invalid %s (expected max/windowSeconds): %w", e.key, err)
		}
		e.target.Max = max
		e.target.Window = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
