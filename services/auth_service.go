// Package services, business logic katmanını barındırır.
//
// Service Layer Pattern:
// Handler/Dispatcher ile Repository arasında oturan katmandır.
// Tüm iş kuralları burada yaşar: şifre hash'leme, token üretimi,
// yetki kontrolleri, fan-out hedeflerinin seçimi.
//
// Service ASLA http.Request/Response bilmez — sadece domain modelleri alır/verir.
// Service ASLA doğrudan SQL çalıştırmaz — Repository interface'i kullanır.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
)

// AuthService, kimlik işlemleri için public interface.
type AuthService interface {
	// Register, yeni kullanıcı + Personal sunucusunu oluşturur ve token döner.
	Register(ctx context.Context, req *models.CreateUserRequest) (*AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error)
	// Logout, session'ı siler — aynı token bir daha doğrulanamaz.
	Logout(ctx context.Context, sessionID string) error
	// DeleteAccount, hesabı soft-retire eder: tüm session'lar düşer,
	// mesajlar tombstone yazarla görünür. Sunucu üyelik satırları silinmez;
	// silinmiş hesap ListMembers sonuçlarında görünmez.
	DeleteAccount(ctx context.Context, userID string) error
	// Authenticate, bearer token'ı principal'a çözer.
	// İmza + exp + canlı session kontrolü birlikte yapılır.
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// AuthResult, login/register yanıtı: token + hesap snapshot'ı.
// Settings blob'u client hydration için dahildir.
type AuthResult struct {
	Token   string      `json:"token"`
	Account models.User `json:"account"`
}

// authService, AuthService'in private implementasyonu.
type authService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	serverRepo  repository.ServerRepository
	jwtSecret   []byte
	tokenExpiry time.Duration
}

// NewAuthService, constructor. Tüm dependency'ler injection ile alınır.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	serverRepo repository.ServerRepository,
	jwtSecret string,
	expiryDays int,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		serverRepo:  serverRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: time.Duration(expiryDays) * 24 * time.Hour,
	}
}

// ─── Argon2id şifre hash'leme ───
//
// Parametreler RFC 9106 "second recommended option" civarı:
// m=64MiB, t=1 yerine t=3 + m=19MiB tercih edildi — tek instance
// deploy'da login latency'sini makul tutar.

const (
	argonTime    = 3
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// hashPassword, Argon2id hash'ini standart encoded formda üretir:
// $argon2id$v=19$m=...,t=...,p=...$<salt b64>$<hash b64>
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyPassword, encoded hash'e karşı şifreyi doğrular (constant-time).
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// ─── Operasyonlar ───

// Register, yeni kullanıcı kaydı oluşturur.
//
// İş kuralları:
// 1. Request validation
// 2. Argon2id hash
// 3. Kullanıcı kaydı (username case-insensitive UNIQUE — yarışta tek kazanan)
// 4. Personal sunucu provisioning (her kullanıcının tam bir tane)
// 5. Session + token üretimi
func (s *authService) Register(ctx context.Context, req *models.CreateUserRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	color := req.Color
	if color == "" {
		color = "#7289da"
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Status:       models.UserStatusOnline,
		Color:        color,
		AvatarGlyph:  avatarGlyphFor(req.Username),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err // ErrAlreadyExists olabilir — eşzamanlı kayıtta tek kazanan
	}

	// Personal sunucu: DM kanalları bu sunucunun altında yaşar.
	personal := &models.Server{
		Name:       user.Username,
		OwnerID:    user.ID,
		IsPersonal: true,
	}
	if err := s.serverRepo.Create(ctx, personal); err != nil {
		return nil, fmt.Errorf("failed to provision personal server: %w", err)
	}
	if err := s.serverRepo.AddMember(ctx, personal.ID, user.ID); err != nil {
		return nil, fmt.Errorf("failed to join personal server: %w", err)
	}

	return s.issueToken(ctx, user)
}

// Login, kullanıcı girişi yapar.
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			// Kullanıcı var/yok bilgisi sızdırılmaz — aynı mesaj.
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}

	if !verifyPassword(req.Password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	return s.issueToken(ctx, user)
}

// Logout, session'ı siler.
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// DeleteAccount, hesabı soft-retire eder.
func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.SoftDelete(ctx, userID)
}

// Authenticate, bearer token'ı principal'a çözer.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", pkg.ErrAuthExpired)
		}
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}
	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	// İmza yetmez — session canlı olmalı (logout / hesap silme revoke eder).
	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session revoked", pkg.ErrUnauthorized)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", pkg.ErrAuthExpired)
	}

	// Silinmiş hesabın token'ı çalışmaz.
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || user.DeletedAt != nil {
		return nil, fmt.Errorf("%w: account not available", pkg.ErrUnauthorized)
	}

	return &models.Principal{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}

// issueToken, session açar ve imzalı JWT üretir.
func (s *authService) issueToken(ctx context.Context, user *models.User) (*AuthResult, error) {
	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.tokenExpiry),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	claims := models.TokenClaims{
		UserID:    user.ID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	account := *user
	account.PasswordHash = ""
	return &AuthResult{Token: signed, Account: account}, nil
}

// avatarGlyphFor, varsayılan avatar glyph'ini üretir (username'in ilk harfi).
func avatarGlyphFor(username string) string {
	for _, r := range username {
		return strings.ToUpper(string(r))
	}
	return "?"
}
