// Package models — Session ve token claim tanımları.
//
// Token stratejisi: JWT içinde session_id taşınır ve her doğrulamada
// sessions tablosundaki canlı kayıt kontrol edilir. Böylece logout /
// hesap silme anında token'ı geçersiz kılar — salt imza kontrolü yetmez.
package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session, bir login oturumunu temsil eder.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenClaims, JWT payload'ında taşınan alanlar.
// jwt.RegisteredClaims gömülüdür — exp/iat standart alanları oradan gelir.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Principal, bir socket'e bağlanmış doğrulanmış kimlik.
// Token doğrulandıktan sonra socket ömrü boyunca bu değer taşınır —
// token'ın kendisi bir daha hiçbir event'te görünmez.
type Principal struct {
	UserID    string
	SessionID string
}
