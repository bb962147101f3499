// HTTP → WebSocket upgrade handler'ı.
//
// Upgrade kimlik doğrulamaSIZ yapılır: ilk frame join{token} olmalıdır.
// Token URL'de taşınmaz — proxy loglarına ve Referer'a sızmaz.
package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader, HTTP bağlantısını WebSocket'e çevirir.
// CheckOrigin her origin'i kabul eder — CORS zaten HTTP katmanında
// rs/cors ile sınırlanır; WS endpoint'i self-hosted deploy'larda
// farklı origin'lerden erişilebilir olmalıdır.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS, GET /ws endpoint'inin handler'ını döner.
func ServeWS(hub *Hub, dispatcher *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ws] upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, dispatcher, conn)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
