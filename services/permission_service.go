// Package services — PermissionService: etkin yetki çözümlemesi.
//
// Çözümleme sırası:
// 1. Sunucu sahibi → her şeye izin (kısa devre)
// 2. Kullanıcının rollerinin yetki birleşimi (@everyone dahil)
// 3. administrator biti varsa → izin (kısa devre, override'lar atlanır)
// 4. Kanal override'ları: rol allow → rol deny → user allow → user deny
// 5. viewChannel yoksa kanaldaki TÜM yetkiler maskelenir
// 6. Aktif timeout sendMessages/speak/connectVoice/addReaction'ı düşürür
//
// Bit aritmetiği models paketinde saf fonksiyonlardır (ApplyOverrides,
// ApplyTimeout, MaskWithoutView) — burada sadece veri toplanıp sıra kurulur.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
)

// PermissionService, yetki sorguları için public interface.
type PermissionService interface {
	// CanInServer, sunucu kapsamındaki bir eylemi kontrol eder (kanal bağlamsız).
	CanInServer(ctx context.Context, userID, serverID string, perm models.Permission) (bool, error)

	// CanInChannel, kanal kapsamındaki bir eylemi kontrol eder —
	// override'lar ve viewChannel maskesi uygulanır.
	CanInChannel(ctx context.Context, userID string, channel *models.Channel, perm models.Permission) (bool, error)

	// RequireInServer / RequireInChannel, izin yoksa ErrForbidden döner.
	RequireInServer(ctx context.Context, userID, serverID string, perm models.Permission) error
	RequireInChannel(ctx context.Context, userID string, channel *models.Channel, perm models.Permission) error

	// EffectiveInChannel, kanal için çözülmüş bit set'ini döner.
	EffectiveInChannel(ctx context.Context, userID string, channel *models.Channel) (models.Permission, error)

	// HighestPosition, kullanıcının rol hiyerarşisindeki gücünü döner
	// (owner = MaxInt32). Kick/ban/rol yönetimi hiyerarşi karşılaştırmaları için.
	HighestPosition(ctx context.Context, userID, serverID string) (int, error)

	// IsOwner, kullanıcı sunucunun sahibi mi?
	IsOwner(ctx context.Context, userID, serverID string) (bool, error)
}

type permissionService struct {
	serverRepo   repository.ServerRepository
	roleRepo     repository.RoleRepository
	overrideRepo repository.OverrideRepository
}

// NewPermissionService, constructor.
func NewPermissionService(
	serverRepo repository.ServerRepository,
	roleRepo repository.RoleRepository,
	overrideRepo repository.OverrideRepository,
) PermissionService {
	return &permissionService{
		serverRepo:   serverRepo,
		roleRepo:     roleRepo,
		overrideRepo: overrideRepo,
	}
}

func (s *permissionService) IsOwner(ctx context.Context, userID, serverID string) (bool, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return false, err
	}
	return server.OwnerID == userID, nil
}

func (s *permissionService) CanInServer(ctx context.Context, userID, serverID string, perm models.Permission) (bool, error) {
	isOwner, err := s.IsOwner(ctx, userID, serverID)
	if err != nil {
		return false, err
	}
	if isOwner {
		return true, nil
	}

	membership, err := s.serverRepo.GetMembership(ctx, serverID, userID)
	if err != nil {
		return false, nil // Üye değil — hiçbir yetkisi yok
	}

	roles, err := s.roleRepo.GetByUserAndServer(ctx, userID, serverID)
	if err != nil {
		return false, err
	}

	base := models.UnionPermissions(roles)
	if base.HasBit(models.PermAdministrator) {
		return true, nil
	}

	eff := models.ApplyTimeout(base, membership.TimeoutUntil, time.Now())
	return eff.HasBit(perm), nil
}

func (s *permissionService) CanInChannel(ctx context.Context, userID string, channel *models.Channel, perm models.Permission) (bool, error) {
	// DM kanallarında rol/override yoktur — katılımcılık DMService'te
	// kontrol edilir; burada temel konuşma yetkileri verilir.
	if channel.IsDMKind() {
		return true, nil
	}
	if channel.ServerID == nil {
		return false, fmt.Errorf("%w: channel has no server", pkg.ErrInternal)
	}

	eff, err := s.EffectiveInChannel(ctx, userID, channel)
	if err != nil {
		return false, err
	}
	// PermAll işareti: owner/admin kısa devresi
	if eff == models.PermAll {
		return true, nil
	}
	return eff.HasBit(perm), nil
}

func (s *permissionService) EffectiveInChannel(ctx context.Context, userID string, channel *models.Channel) (models.Permission, error) {
	serverID := *channel.ServerID

	isOwner, err := s.IsOwner(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}
	if isOwner {
		return models.PermAll, nil
	}

	membership, err := s.serverRepo.GetMembership(ctx, serverID, userID)
	if err != nil {
		return 0, nil // Üye değil
	}

	roles, err := s.roleRepo.GetByUserAndServer(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}

	base := models.UnionPermissions(roles)
	if base.HasBit(models.PermAdministrator) {
		return models.PermAll, nil
	}

	overrides, err := s.overrideRepo.ListByChannel(ctx, channel.ID)
	if err != nil {
		return 0, err
	}

	roleIDs := make([]string, len(roles))
	for i, r := range roles {
		roleIDs[i] = r.ID
	}

	eff := models.ApplyOverrides(base, roleIDs, userID, overrides)
	eff = models.MaskWithoutView(eff)
	eff = models.ApplyTimeout(eff, membership.TimeoutUntil, time.Now())
	return eff, nil
}

func (s *permissionService) RequireInServer(ctx context.Context, userID, serverID string, perm models.Permission) error {
	ok, err := s.CanInServer(ctx, userID, serverID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: insufficient permissions", pkg.ErrForbidden)
	}
	return nil
}

func (s *permissionService) RequireInChannel(ctx context.Context, userID string, channel *models.Channel, perm models.Permission) error {
	ok, err := s.CanInChannel(ctx, userID, channel, perm)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: insufficient permissions", pkg.ErrForbidden)
	}
	return nil
}

func (s *permissionService) HighestPosition(ctx context.Context, userID, serverID string) (int, error) {
	isOwner, err := s.IsOwner(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}

	roles, err := s.roleRepo.GetByUserAndServer(ctx, userID, serverID)
	if err != nil {
		return 0, err
	}
	return models.HighestPosition(roles, isOwner), nil
}
