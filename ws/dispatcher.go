// Dispatcher — inbound WS event'lerinin tek decode ve yönlendirme noktası.
//
// Pipeline: decode → principal kontrolü → rate limit → handler → hata map'leme.
// Handler tablosu main.go/init_callbacks.go'da doldurulur: her op için bir
// HandlerFunc + rate limit bucket'ı kaydedilir. Dinamik string dispatch yerine
// tablo kullanmak yetki ve limit kurallarını tek noktada toplar.
//
// Bilinmeyen op'lar sessizce yutulur (forward compatibility — yeni client
// eski server'a yeni event gönderdiğinde bağlantı düşmez).
//
// Handler içindeki panic socket'i ÖLDÜRMEZ: recover edilir, loglanır ve
// error{kind=internal} olarak gönderilir.
package ws

import (
	"encoding/json"
	"log"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/pkg/ratelimit"
)

// HandlerFunc, tek bir op'un handler imzası.
// data, event zarfının "d" alanının ham JSON'udur.
type HandlerFunc func(c *Client, data json.RawMessage) error

// Bucket, bir op'un bağlı olduğu rate limit bucket'ını adlandırır.
type Bucket string

const (
	BucketNone          Bucket = ""
	BucketMessageSend   Bucket = "message.send"
	BucketFriendRequest Bucket = "friend.request"
	BucketInviteCreate  Bucket = "invite.create"
)

// entry, handler tablosunun tek satırı.
type entry struct {
	handler HandlerFunc
	bucket  Bucket
}

// AuthenticateFunc, join token'ını principal'a çözen fonksiyon.
// AuthService'e init_callbacks.go'da bağlanır.
type AuthenticateFunc func(token string) (*models.Principal, error)

// Dispatcher, op → handler tablosunu ve ortak pipeline'ı tutar.
type Dispatcher struct {
	hub          *Hub
	limits       *ratelimit.Buckets
	authenticate AuthenticateFunc

	// onJoin: başarılı binding sonrası init payload'ı + room kayıtları.
	onJoin func(c *Client) error

	handlers map[string]entry
}

// NewDispatcher, boş tabloyla dispatcher oluşturur.
func NewDispatcher(hub *Hub, limits *ratelimit.Buckets) *Dispatcher {
	return &Dispatcher{
		hub:      hub,
		limits:   limits,
		handlers: make(map[string]entry),
	}
}

// OnAuthenticate, token çözücüyü bağlar.
func (d *Dispatcher) OnAuthenticate(fn AuthenticateFunc) { d.authenticate = fn }

// OnJoin, binding sonrası enrollment handler'ını bağlar.
func (d *Dispatcher) OnJoin(fn func(c *Client) error) { d.onJoin = fn }

// Register, bir op için handler kaydeder.
func (d *Dispatcher) Register(op string, bucket Bucket, handler HandlerFunc) {
	d.handlers[op] = entry{handler: handler, bucket: bucket}
}

// rawEvent, inbound zarfın decode hedefi — Data ham bırakılır,
// handler kendi payload tipine çözer.
type rawEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// Dispatch, tek bir inbound frame'i işler. ReadPump'tan çağrılır.
func (d *Dispatcher) Dispatch(c *Client, raw []byte) {
	var event rawEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("[ws] invalid frame from socket %s: %v", c.ID, err)
		return
	}

	switch event.Op {
	case OpHeartbeat:
		c.refreshDeadline()
		if userID := c.UserID(); userID != "" {
			d.hub.MarkActivity(userID)
		}
		c.SendEvent(Event{Op: OpHeartbeatAck})
		return

	case OpJoin:
		d.handleJoin(c, event.Data)
		return
	}

	// join dışındaki her op bağlı bir principal gerektirir.
	principal := c.Principal()
	if principal == nil {
		c.CloseWithError("not authenticated", "auth_invalid")
		return
	}

	d.hub.MarkActivity(principal.UserID)

	// Soft socket limiti — tüm event'leri kapsar.
	if !d.limits.SocketEvent.Allow(c.ID) {
		c.SendError("too many events", "rate_limited")
		return
	}

	e, ok := d.handlers[event.Op]
	if !ok {
		// Bilinmeyen op — sessizce yut (forward compatibility).
		return
	}

	// Op'a özgü bucket — key her zaman kullanıcıdır.
	if limiter := d.bucketLimiter(e.bucket); limiter != nil {
		if !limiter.Allow(principal.UserID) {
			c.SendError("rate limit exceeded", "rate_limited")
			return
		}
	}

	d.invoke(c, event.Op, e, event.Data)
}

// invoke, handler'ı panic korumasıyla çağırır ve hatayı event'e çevirir.
func (d *Dispatcher) invoke(c *Client, op string, e entry, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ws] panic in handler %s for socket %s: %v", op, c.ID, r)
			c.SendError("internal error", "internal")
		}
	}()

	if err := e.handler(c, data); err != nil {
		kind := pkg.ErrorKind(err)
		if kind == "auth_invalid" || kind == "auth_expired" {
			c.CloseWithError(err.Error(), kind)
			return
		}
		c.SendError(err.Error(), kind)
	}
}

// handleJoin, ilk frame'deki token'ı doğrular ve socket'i bağlar.
// Auth hataları terminaldir: error event'i + server-side disconnect.
func (d *Dispatcher) handleJoin(c *Client, data json.RawMessage) {
	if c.Principal() != nil {
		// Çift join — mevcut binding korunur.
		return
	}

	var payload JoinData
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		c.CloseWithError("token is required", "auth_invalid")
		return
	}

	principal, err := d.authenticate(payload.Token)
	if err != nil {
		kind := pkg.ErrorKind(err)
		if kind != "auth_expired" {
			kind = "auth_invalid"
		}
		c.CloseWithError("authentication failed", kind)
		return
	}

	c.bind(principal)
	d.hub.BindUser(c)

	if d.onJoin != nil {
		if err := d.onJoin(c); err != nil {
			log.Printf("[ws] join enrollment failed for user %s: %v", principal.UserID, err)
			c.CloseWithError("failed to initialize session", "internal")
			return
		}
	}
}

// bucketLimiter, bucket adını limiter instance'ına çözer.
func (d *Dispatcher) bucketLimiter(b Bucket) *ratelimit.Limiter {
	switch b {
	case BucketMessageSend:
		return d.limits.MessageSend
	case BucketFriendRequest:
		return d.limits.FriendRequest
	case BucketInviteCreate:
		return d.limits.InviteCreate
	default:
		return nil
	}
}
