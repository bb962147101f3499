// Package services — UserService: profil, presence ve avatar yönetimi.
//
// Presence modeli: users.status kullanıcının SEÇTİĞİ durumdur ve oturumlar
// arası korunur. Yayınlanan durum bundan türetilir:
//   - hiç socket yok → offline yayınlanır (tercih ezilmez)
//   - socket var + tercih offline → kullanıcı invisible'dır, offline yayınlanır
//   - 10 dk aktivite yok + tercih online → idle'a düşürülür (persist edilir)
//   - dnd bildirim sesini bastırır ama teslimatı değiştirmez — karar client'ın
//
// Her durum değişikliği user:updated olarak kullanıcının üye olduğu TÜM
// sunucu room'larına yayılır.
package services

import (
	"context"
	"fmt"
	"log"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// UserService, kullanıcı profil/presence operasyonları için public interface.
type UserService interface {
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) error
	SetStatus(ctx context.Context, userID string, status models.UserStatus) error
	SetCustomAvatar(ctx context.Context, userID, dataURL string) (*models.User, error)

	// HandleFirstConnect / HandleFullDisconnect / HandleIdle —
	// Hub callback'lerinden çağrılır (init_callbacks.go wiring).
	HandleFirstConnect(userID string)
	HandleFullDisconnect(userID string)
	HandleIdle(userID string)
}

type userService struct {
	userRepo   repository.UserRepository
	serverRepo repository.ServerRepository
	hub        ws.Broadcaster
}

// NewUserService, constructor.
func NewUserService(
	userRepo repository.UserRepository,
	serverRepo repository.ServerRepository,
	hub ws.Broadcaster,
) UserService {
	return &userService{
		userRepo:   userRepo,
		serverRepo: serverRepo,
		hub:        hub,
	}
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if req.Color != nil {
		user.Color = *req.Color
	}
	if req.AvatarGlyph != nil {
		user.AvatarGlyph = *req.AvatarGlyph
	}
	if req.CustomStatus != nil {
		user.CustomStatus = req.CustomStatus
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return err
	}
	if len(req.Settings) > 0 {
		if err := s.userRepo.UpdateSettings(ctx, userID, req.Settings); err != nil {
			return err
		}
	}

	s.broadcastUserUpdated(ctx, user, user.Status)
	return nil
}

func (s *userService) SetStatus(ctx context.Context, userID string, status models.UserStatus) error {
	switch status {
	case models.UserStatusOnline, models.UserStatusIdle, models.UserStatusDND, models.UserStatusOffline:
	default:
		return fmt.Errorf("%w: invalid status", pkg.ErrBadRequest)
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, status); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	s.broadcastUserUpdated(ctx, user, status)
	return nil
}

func (s *userService) SetCustomAvatar(ctx context.Context, userID, dataURL string) (*models.User, error) {
	if err := s.userRepo.UpdateCustomAvatar(ctx, userID, dataURL); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.broadcastUserUpdated(ctx, user, user.Status)
	return user, nil
}

func (s *userService) HandleFirstConnect(userID string) {
	ctx := context.Background()
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[presence] failed to load user %s: %v", userID, err)
		return
	}

	// Tercih offline ise kullanıcı invisible'dır — bağlantı ilan edilmez.
	if user.Status == models.UserStatusOffline {
		return
	}
	// idle tercihi yeni bağlantıda online'a döner.
	if user.Status == models.UserStatusIdle {
		user.Status = models.UserStatusOnline
		_ = s.userRepo.UpdateStatus(ctx, userID, models.UserStatusOnline)
	}

	s.broadcastUserUpdated(ctx, user, user.Status)

	// Sunucu üyeleri online listesini user:joined ile tazeler.
	servers, err := s.serverRepo.ListServersOfUser(ctx, userID)
	if err != nil {
		return
	}
	joined := ws.Event{Op: ws.OpUserJoined, Data: map[string]any{
		"user_id":         userID,
		"online_user_ids": s.hub.OnlineUserIDs(),
	}}
	for _, srv := range servers {
		s.hub.EmitToRoom(ws.ServerKey(srv.ID), joined)
	}
}

func (s *userService) HandleFullDisconnect(userID string) {
	ctx := context.Background()
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return
	}
	// Tercih ezilmez — yayınlanan durum offline'dır.
	s.broadcastUserUpdated(ctx, user, models.UserStatusOffline)

	servers, err := s.serverRepo.ListServersOfUser(ctx, userID)
	if err != nil {
		return
	}
	left := ws.Event{Op: ws.OpUserLeft, Data: map[string]any{
		"user_id":         userID,
		"online_user_ids": s.hub.OnlineUserIDs(),
	}}
	for _, srv := range servers {
		s.hub.EmitToRoom(ws.ServerKey(srv.ID), left)
	}
}

func (s *userService) HandleIdle(userID string) {
	ctx := context.Background()
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return
	}
	// Sadece online tercihli kullanıcı idle'a düşer; dnd/offline dokunulmaz.
	if user.Status != models.UserStatusOnline {
		return
	}

	if err := s.userRepo.UpdateStatus(ctx, userID, models.UserStatusIdle); err != nil {
		return
	}
	user.Status = models.UserStatusIdle
	s.broadcastUserUpdated(ctx, user, models.UserStatusIdle)
}

// broadcastUserUpdated, kullanıcının public görünümünü üye olduğu tüm
// sunuculara + kendi socket'lerine yayar.
func (s *userService) broadcastUserUpdated(ctx context.Context, user *models.User, status models.UserStatus) {
	public := user.ToPublic()
	public.Status = status

	event := ws.Event{Op: ws.OpUserUpdated, Data: public}

	servers, err := s.serverRepo.ListServersOfUser(ctx, user.ID)
	if err == nil {
		for _, srv := range servers {
			s.hub.EmitToRoom(ws.ServerKey(srv.ID), event)
		}
	}
	s.hub.EmitToUser(user.ID, event)
}
