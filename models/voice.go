// Package models — voice (ses) ile ilgili struct tanımları.
//
// VoicePeer EPHEMERAL'dır (geçicidir) — veritabanına yazılmaz.
// Voice odaları in-memory tutulur; server restart'ta tüm WebSocket
// bağlantıları da düşer, dolayısıyla voice state'in sıfırlanması doğaldır.
// Client yeni bağlantıda odaya açıkça yeniden katılır.
package models

import "time"

// VoicePeer, bir ses odasındaki tek bir socket'in anlık durumu.
// Oda üyeliği socket bazlıdır — aynı kullanıcının iki sekmesi iki peer'dır.
type VoicePeer struct {
	SocketID      string    `json:"socket_id"`
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	IsMuted       bool      `json:"is_muted"`
	IsDeafened    bool      `json:"is_deafened"`
	ScreenSharing bool      `json:"screen_sharing"`
	JoinedAt      time.Time `json:"joined_at"`
}

// VoiceRoomSnapshot, voice:channel:update event'inde sidebar'lara
// gönderilen oda görüntüsü.
type VoiceRoomSnapshot struct {
	ChannelID      string      `json:"channel_id"`
	Peers          []VoicePeer `json:"peers"`
	ScreenSharerID string      `json:"screen_sharer_id,omitempty"` // socket ID
}
