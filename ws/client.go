package ws

import (
	"log"
	"sync"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	// Bu süre aşılırsa bağlantı kapatılır (ağ sorunu olabilir).
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum frame boyutu (byte).
	// 2000 karakterlik mesaj + attachment URL'leri + zarf rahat sığar.
	maxMessageSize = 16384

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	// Buffer dolu client yavaştır → high-water mark aşıldı → bağlantı kesilir.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen frame'leri okur → Dispatcher'a iletir
// - WritePump: send channel'dan gelen veriyi socket'e yazar
//
// Neden iki goroutine?
// gorilla/websocket aynı anda tek okuma + tek yazma destekler.
// İki ayrı goroutine ile okuma ve yazma birbirini bloklamaz.
type Client struct {
	// ID, socket kimliği — voice peer adreslemesi ve room üyelikleri
	// bu ID üzerinden yürür.
	ID string

	hub        *Hub
	dispatcher *Dispatcher
	conn       *websocket.Conn

	// principal, join ile bağlanan kimlik. nil = henüz doğrulanmadı.
	// principalMu ile korunur — ReadPump yazarken Hub okuyabilir.
	principal   *models.Principal
	principalMu sync.RWMutex

	// send, client'a gönderilecek frame'lerin buffer'landığı channel.
	// Hub yazar, WritePump okur.
	send chan []byte

	// closeOnce: server-side disconnect'in (auth hatası) bir kez çalışmasını sağlar.
	closeOnce sync.Once
}

// NewClient, upgrade edilmiş bağlantıdan bir Client oluşturur.
func NewClient(hub *Hub, dispatcher *Dispatcher, conn *websocket.Conn) *Client {
	return &Client{
		ID:         uuid.NewString(),
		hub:        hub,
		dispatcher: dispatcher,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
	}
}

// UserID, bağlı principal'ın kullanıcı ID'sini döner ("" = bağlanmamış).
func (c *Client) UserID() string {
	c.principalMu.RLock()
	defer c.principalMu.RUnlock()
	if c.principal == nil {
		return ""
	}
	return c.principal.UserID
}

// Principal, bağlı kimliği döner (nil = bağlanmamış).
func (c *Client) Principal() *models.Principal {
	c.principalMu.RLock()
	defer c.principalMu.RUnlock()
	return c.principal
}

// bind, doğrulanan kimliği socket'e bağlar. Token bu noktadan sonra
// hiçbir event'te taşınmaz — socket kimliği principal'dır.
func (c *Client) bind(p *models.Principal) {
	c.principalMu.Lock()
	c.principal = p
	c.principalMu.Unlock()
}

// ReadPump, WebSocket bağlantısından gelen frame'leri okur ve Dispatcher'a verir.
// Bağlantı kapanana kadar döngüde kalır; kapanınca Hub'dan çıkış yapar.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for socket %s: %v", c.ID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for socket %s: %v", c.ID, err)
			}
			return
		}

		c.dispatcher.Dispatch(c, rawMessage)
	}
}

// refreshDeadline, heartbeat geldiğinde read deadline'ı yeniler.
func (c *Client) refreshDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to refresh read deadline for socket %s: %v", c.ID, err)
	}
}

// SendEvent, client'a tek bir event gönderir (Hub seq'i atlanmadan).
func (c *Client) SendEvent(event Event) {
	c.hub.EmitToSocket(c.ID, event)
}

// SendError, standart error event'i gönderir.
func (c *Client) SendError(message, kind string) {
	c.SendEvent(Event{Op: OpError, Data: ErrorData{Message: message, Kind: kind}})
}

// CloseWithError, error event'ini yazar ve bağlantıyı server tarafından
// kapatır. Auth hatalarında kullanılır — client state temizleyip login
// ekranına döner.
func (c *Client) CloseWithError(message, kind string) {
	c.closeOnce.Do(func() {
		c.SendError(message, kind)
		// Error frame'inin buffer'dan yazılması için kısa bir fırsat tanınır,
		// ardından bağlantı kapatılır.
		go func() {
			time.Sleep(100 * time.Millisecond)
			c.hub.Unregister(c)
		}()
	})
}

// WritePump, send channel'dan gelen frame'leri WebSocket'e yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			_ = c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, socket'e deadline'lı yazma yapar.
// gorilla/websocket conn'a aynı anda tek yazıcı kuralı WritePump'ın
// tek goroutine olmasıyla sağlanır.
func (c *Client) writeMessage(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
