// Package services — RoleService: rol CRUD ve atama.
//
// Hiyerarşi kuralları:
// - @everyone silinemez, position'ı 0'da sabittir
// - Bir kullanıcı sadece kendi en yüksek position'ının ALTINDAKİ rolleri
//   yönetebilir ve atayabilir (owner sınırsız)
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
)

// RoleService, rol operasyonları için public interface.
type RoleService interface {
	Create(ctx context.Context, userID, serverID string, req *models.CreateRoleRequest) (*models.Role, error)
	Update(ctx context.Context, userID, roleID string, req *models.UpdateRoleRequest) error
	Delete(ctx context.Context, userID, roleID string) error
	Reorder(ctx context.Context, userID, serverID string, items []models.PositionUpdate) error
	// SetMemberRoles, hedef üyenin rol setini declarative olarak değiştirir:
	// eksikler eklenir, fazlalar çıkarılır.
	SetMemberRoles(ctx context.Context, actorID, serverID, targetID string, roleIDs []string) error
}

type roleService struct {
	db         *sql.DB
	roleRepo   repository.RoleRepository
	serverRepo repository.ServerRepository
	perms      PermissionService
	channels   ChannelService
}

// NewRoleService, constructor.
func NewRoleService(
	db *sql.DB,
	roleRepo repository.RoleRepository,
	serverRepo repository.ServerRepository,
	perms PermissionService,
	channels ChannelService,
) RoleService {
	return &roleService{
		db:         db,
		roleRepo:   roleRepo,
		serverRepo: serverRepo,
		perms:      perms,
		channels:   channels,
	}
}

func (s *roleService) Create(ctx context.Context, userID, serverID string, req *models.CreateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermManageRoles); err != nil {
		return nil, err
	}

	// Yeni rol, aktörün gücünün hemen altına yerleşir.
	actorPos, err := s.perms.HighestPosition(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	roles, err := s.roleRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	position := 1
	for _, r := range roles {
		if r.Position >= position && r.Position < actorPos {
			position = r.Position + 1
		}
	}

	color := req.Color
	if color == "" {
		color = "#99aab5"
	}

	role := &models.Role{
		ServerID:    serverID,
		Name:        req.Name,
		Color:       color,
		Permissions: req.Permissions,
		Position:    position,
	}
	if err := s.roleRepo.Create(ctx, role); err != nil {
		return nil, err
	}

	s.channels.BroadcastSnapshot(ctx, serverID)
	return role, nil
}

// requireAbove, aktörün hedef rolden daha güçlü olmasını şart koşar.
func (s *roleService) requireAbove(ctx context.Context, userID string, role *models.Role) error {
	actorPos, err := s.perms.HighestPosition(ctx, userID, role.ServerID)
	if err != nil {
		return err
	}
	if actorPos <= role.Position {
		return fmt.Errorf("%w: cannot manage a role at or above your own", pkg.ErrForbidden)
	}
	return nil
}

func (s *roleService) Update(ctx context.Context, userID, roleID string, req *models.UpdateRoleRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireInServer(ctx, userID, role.ServerID, models.PermManageRoles); err != nil {
		return err
	}
	if !role.IsEveryone {
		if err := s.requireAbove(ctx, userID, role); err != nil {
			return err
		}
	}
	// @everyone'ın adı değişmez; sadece yetkileri düzenlenebilir.
	if role.IsEveryone && req.Name != nil {
		return fmt.Errorf("%w: the everyone role cannot be renamed", pkg.ErrBadRequest)
	}

	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Color != nil {
		role.Color = *req.Color
	}
	if req.Permissions != nil {
		role.Permissions = *req.Permissions
	}

	if err := s.roleRepo.Update(ctx, role); err != nil {
		return err
	}

	s.channels.BroadcastSnapshot(ctx, role.ServerID)
	return nil
}

func (s *roleService) Delete(ctx context.Context, userID, roleID string) error {
	role, err := s.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsEveryone {
		return fmt.Errorf("%w: the everyone role cannot be deleted", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, role.ServerID, models.PermManageRoles); err != nil {
		return err
	}
	if err := s.requireAbove(ctx, userID, role); err != nil {
		return err
	}

	if err := s.roleRepo.Delete(ctx, roleID); err != nil {
		return err
	}

	s.channels.BroadcastSnapshot(ctx, role.ServerID)
	return nil
}

func (s *roleService) Reorder(ctx context.Context, userID, serverID string, items []models.PositionUpdate) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: items cannot be empty", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermManageRoles); err != nil {
		return err
	}

	actorPos, err := s.perms.HighestPosition(ctx, userID, serverID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Position >= actorPos {
			return fmt.Errorf("%w: cannot move a role above your own", pkg.ErrForbidden)
		}
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewSQLiteRoleRepo(tx)
		return txRepo.Reorder(ctx, serverID, items)
	})
	if err != nil {
		return err
	}

	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *roleService) SetMemberRoles(ctx context.Context, actorID, serverID, targetID string, roleIDs []string) error {
	if err := s.perms.RequireInServer(ctx, actorID, serverID, models.PermManageRoles); err != nil {
		return err
	}

	isMember, err := s.serverRepo.IsMember(ctx, serverID, targetID)
	if err != nil {
		return err
	}
	if !isMember {
		return fmt.Errorf("%w: target is not a member", pkg.ErrNotFound)
	}

	actorPos, err := s.perms.HighestPosition(ctx, actorID, serverID)
	if err != nil {
		return err
	}

	// Hedef set doğrulanır: roller bu sunucuya ait ve aktörün altında olmalı.
	desired := make(map[string]bool, len(roleIDs))
	for _, roleID := range roleIDs {
		role, err := s.roleRepo.GetByID(ctx, roleID)
		if err != nil {
			return fmt.Errorf("%w: role %s not found", pkg.ErrBadRequest, roleID)
		}
		if role.ServerID != serverID {
			return fmt.Errorf("%w: role belongs to another server", pkg.ErrBadRequest)
		}
		if role.IsEveryone {
			continue // @everyone örtüktür, atanmaz
		}
		if role.Position >= actorPos {
			return fmt.Errorf("%w: cannot assign a role at or above your own", pkg.ErrForbidden)
		}
		desired[roleID] = true
	}

	current, err := s.roleRepo.GetByUserAndServer(ctx, targetID, serverID)
	if err != nil {
		return err
	}

	// Diff: fazlalar çıkar, eksikler eklenir.
	for _, role := range current {
		if role.IsEveryone {
			continue
		}
		if !desired[role.ID] {
			if role.Position >= actorPos {
				return fmt.Errorf("%w: cannot remove a role at or above your own", pkg.ErrForbidden)
			}
			if err := s.roleRepo.RemoveFromUser(ctx, targetID, role.ID); err != nil {
				return err
			}
		}
		delete(desired, role.ID)
	}
	for roleID := range desired {
		if err := s.roleRepo.AssignToUser(ctx, targetID, roleID, serverID); err != nil {
			return err
		}
	}

	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}
