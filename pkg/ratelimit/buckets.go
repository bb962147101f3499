// Buckets — isimli rate limit bucket'larının merkezi tanımı.
//
// Her bucket ayrı bir Limiter instance'ıdır; key anlamı bucket'a göre değişir:
//   - MessageSend:   userID
//   - WebhookPost:   webhookID
//   - FriendRequest: userID
//   - InviteCreate:  userID
//   - AuthLogin:     IP adresi
//   - SocketEvent:   socketID (soft limit — tüm WS event'leri kapsar)
//
// Limitler env variable ile override edilebilir (RATE_LIMIT_* — bkz. config).
package ratelimit

import "time"

// BucketConfig, tek bir bucket'ın limit ayarı.
type BucketConfig struct {
	Max    int
	Window time.Duration
}

// BucketsConfig, tüm bucket'ların limit ayarları.
// Sıfır değerli alanlar DefaultBuckets'tan doldurulur.
type BucketsConfig struct {
	MessageSend   BucketConfig
	WebhookPost   BucketConfig
	FriendRequest BucketConfig
	InviteCreate  BucketConfig
	AuthLogin     BucketConfig
	SocketEvent   BucketConfig
}

// DefaultBuckets, varsayılan limitler.
func DefaultBuckets() BucketsConfig {
	return BucketsConfig{
		MessageSend:   BucketConfig{Max: 10, Window: 10 * time.Second},
		WebhookPost:   BucketConfig{Max: 10, Window: 10 * time.Second},
		FriendRequest: BucketConfig{Max: 20, Window: time.Hour},
		InviteCreate:  BucketConfig{Max: 30, Window: time.Hour},
		AuthLogin:     BucketConfig{Max: 10, Window: 10 * time.Second},
		SocketEvent:   BucketConfig{Max: 60, Window: time.Second},
	}
}

// Buckets, çalışan limiter instance'larını bir arada tutar.
// main.go'da bir kez oluşturulur, ilgili katmanlara enjekte edilir.
type Buckets struct {
	MessageSend   *Limiter
	WebhookPost   *Limiter
	FriendRequest *Limiter
	InviteCreate  *Limiter
	AuthLogin     *Limiter
	SocketEvent   *Limiter
}

// NewBuckets, config'e göre tüm limiter'ları oluşturur.
func NewBuckets(cfg BucketsConfig) *Buckets {
	def := DefaultBuckets()
	fill := func(c, d BucketConfig) BucketConfig {
		if c.Max <= 0 {
			c.Max = d.Max
		}
		if c.Window <= 0 {
			c.Window = d.Window
		}
		return c
	}

	msg := fill(cfg.MessageSend, def.MessageSend)
	wh := fill(cfg.WebhookPost, def.WebhookPost)
	fr := fill(cfg.FriendRequest, def.FriendRequest)
	inv := fill(cfg.InviteCreate, def.InviteCreate)
	login := fill(cfg.AuthLogin, def.AuthLogin)
	sock := fill(cfg.SocketEvent, def.SocketEvent)

	return &Buckets{
		MessageSend:   New(msg.Max, msg.Window),
		WebhookPost:   New(wh.Max, wh.Window),
		FriendRequest: New(fr.Max, fr.Window),
		InviteCreate:  New(inv.Max, inv.Window),
		AuthLogin:     New(login.Max, login.Window),
		SocketEvent:   New(sock.Max, sock.Window),
	}
}
