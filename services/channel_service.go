// Package services — ChannelService: kanal ve kategori yönetimi.
//
// Tüm mutasyonlar server:updated event'i ile TAM sunucu snapshot'ını
// server:<id> room'una yayar — client diff uygulamaz, sidebar'ı yeniden kurar.
// Reorder transaction içinde çalışır: ya tüm position'lar değişir ya hiçbiri.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// ChannelService, kanal/kategori operasyonları için public interface.
type ChannelService interface {
	CreateChannel(ctx context.Context, userID string, req *models.CreateChannelRequest) (*models.Channel, error)
	UpdateChannel(ctx context.Context, userID, channelID string, req *models.UpdateChannelRequest) error
	DeleteChannel(ctx context.Context, userID, channelID string) error
	ReorderChannels(ctx context.Context, userID string, req *models.ReorderRequest) error
	MoveChannel(ctx context.Context, userID string, req *models.MoveChannelRequest) error

	CreateCategory(ctx context.Context, userID string, req *models.CreateCategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID, name string) error
	DeleteCategory(ctx context.Context, userID, categoryID string) error
	ReorderCategories(ctx context.Context, userID string, req *models.ReorderRequest) error

	// SetOverride / DeleteOverride, kanal permission override yönetimi (manageRoles).
	SetOverride(ctx context.Context, userID string, override *models.ChannelOverride) error
	DeleteOverride(ctx context.Context, userID, channelID string, kind models.OverrideSubjectKind, subjectID string) error

	// Snapshot, server:updated payload'ını kurar (diğer service'ler de kullanır).
	Snapshot(ctx context.Context, serverID string) (*models.ServerSnapshot, error)
	// BroadcastSnapshot, snapshot'ı server room'una yayar.
	BroadcastSnapshot(ctx context.Context, serverID string)
}

type channelService struct {
	db           *sql.DB
	channelRepo  repository.ChannelRepository
	categoryRepo repository.CategoryRepository
	serverRepo   repository.ServerRepository
	roleRepo     repository.RoleRepository
	overrideRepo repository.OverrideRepository
	perms        PermissionService
	hub          ws.Broadcaster
}

// NewChannelService, constructor. db, reorder transaction'ları için gereklidir.
func NewChannelService(
	db *sql.DB,
	channelRepo repository.ChannelRepository,
	categoryRepo repository.CategoryRepository,
	serverRepo repository.ServerRepository,
	roleRepo repository.RoleRepository,
	overrideRepo repository.OverrideRepository,
	perms PermissionService,
	hub ws.Broadcaster,
) ChannelService {
	return &channelService{
		db:           db,
		channelRepo:  channelRepo,
		categoryRepo: categoryRepo,
		serverRepo:   serverRepo,
		roleRepo:     roleRepo,
		overrideRepo: overrideRepo,
		perms:        perms,
		hub:          hub,
	}
}

// requireRealServer, Personal sunucularda kanal yönetimini reddeder.
func (s *channelService) requireRealServer(ctx context.Context, serverID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.IsPersonal {
		return fmt.Errorf("%w: personal servers have no managed channels", pkg.ErrBadRequest)
	}
	if server.ArchivedAt != nil {
		return fmt.Errorf("%w: server is archived", pkg.ErrBadRequest)
	}
	return nil
}

func (s *channelService) CreateChannel(ctx context.Context, userID string, req *models.CreateChannelRequest) (*models.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.requireRealServer(ctx, req.ServerID); err != nil {
		return nil, err
	}
	if err := s.perms.RequireInServer(ctx, userID, req.ServerID, models.PermManageChannels); err != nil {
		return nil, err
	}

	var categoryID *string
	if req.CategoryID != "" {
		category, err := s.categoryRepo.GetCategoryByID(ctx, req.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("%w: category not found", pkg.ErrBadRequest)
		}
		if category.ServerID != req.ServerID {
			return nil, fmt.Errorf("%w: category belongs to another server", pkg.ErrBadRequest)
		}
		categoryID = &req.CategoryID
	}

	// (server, category, type) içinde isim benzersizliği — UNIQUE index
	// son sözü söyler, bu kontrol erken ve okunur hata içindir.
	exists, err := s.channelRepo.NameExists(ctx, req.ServerID, categoryID, models.ChannelType(req.Type), req.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: channel name already exists in this category", pkg.ErrAlreadyExists)
	}

	channel := &models.Channel{
		ServerID:   &req.ServerID,
		CategoryID: categoryID,
		Name:       req.Name,
		Type:       models.ChannelType(req.Type),
		IsPrivate:  req.IsPrivate,
	}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	s.BroadcastSnapshot(ctx, req.ServerID)
	return channel, nil
}

func (s *channelService) UpdateChannel(ctx context.Context, userID, channelID string, req *models.UpdateChannelRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.IsDMKind() || channel.ServerID == nil {
		return fmt.Errorf("%w: DM channels cannot be managed", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, *channel.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	if req.Name != nil {
		channel.Name = *req.Name
	}
	if req.Description != nil {
		channel.Description = req.Description
	}
	if req.IsPrivate != nil {
		channel.IsPrivate = *req.IsPrivate
	}

	if err := s.channelRepo.Update(ctx, channel); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) DeleteChannel(ctx context.Context, userID, channelID string) error {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.IsDMKind() || channel.ServerID == nil {
		return fmt.Errorf("%w: DM channels cannot be deleted this way", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, *channel.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	if err := s.channelRepo.Delete(ctx, channelID); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) ReorderChannels(ctx context.Context, userID string, req *models.ReorderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireInServer(ctx, userID, req.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	// Ya hepsi ya hiçbiri — position yazımları tek transaction'da.
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewSQLiteChannelRepo(tx)
		return txRepo.Reorder(ctx, req.ServerID, req.Items)
	})
	if err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, req.ServerID)
	return nil
}

func (s *channelService) MoveChannel(ctx context.Context, userID string, req *models.MoveChannelRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, req.ChannelID)
	if err != nil {
		return err
	}
	if channel.IsDMKind() || channel.ServerID == nil {
		return fmt.Errorf("%w: DM channels cannot be moved", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, *channel.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	category, err := s.categoryRepo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return fmt.Errorf("%w: category not found", pkg.ErrBadRequest)
	}
	if category.ServerID != *channel.ServerID {
		return fmt.Errorf("%w: category belongs to another server", pkg.ErrBadRequest)
	}

	if err := s.channelRepo.Move(ctx, req.ChannelID, req.CategoryID, req.Position); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) CreateCategory(ctx context.Context, userID string, req *models.CreateCategoryRequest) (*models.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.requireRealServer(ctx, req.ServerID); err != nil {
		return nil, err
	}
	if err := s.perms.RequireInServer(ctx, userID, req.ServerID, models.PermManageChannels); err != nil {
		return nil, err
	}

	category := &models.Category{ServerID: req.ServerID, Name: req.Name}
	if err := s.categoryRepo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}

	s.BroadcastSnapshot(ctx, req.ServerID)
	return category, nil
}

func (s *channelService) UpdateCategory(ctx context.Context, userID, categoryID, name string) error {
	category, err := s.categoryRepo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireInServer(ctx, userID, category.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	category.Name = name
	if err := s.categoryRepo.UpdateCategory(ctx, category); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, category.ServerID)
	return nil
}

func (s *channelService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	category, err := s.categoryRepo.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}
	if err := s.perms.RequireInServer(ctx, userID, category.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	// FK ON DELETE SET NULL: kategorinin kanalları kategorisiz kalır, silinmez.
	if err := s.categoryRepo.DeleteCategory(ctx, categoryID); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, category.ServerID)
	return nil
}

func (s *channelService) ReorderCategories(ctx context.Context, userID string, req *models.ReorderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireInServer(ctx, userID, req.ServerID, models.PermManageChannels); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		txRepo := repository.NewSQLiteCategoryRepo(tx)
		return txRepo.ReorderCategories(ctx, req.ServerID, req.Items)
	})
	if err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, req.ServerID)
	return nil
}

func (s *channelService) SetOverride(ctx context.Context, userID string, override *models.ChannelOverride) error {
	channel, err := s.channelRepo.GetByID(ctx, override.ChannelID)
	if err != nil {
		return err
	}
	if channel.IsDMKind() || channel.ServerID == nil {
		return fmt.Errorf("%w: DM channels have no overrides", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, *channel.ServerID, models.PermManageRoles); err != nil {
		return err
	}
	if override.Allow&^models.PermAll != 0 || override.Deny&^models.PermAll != 0 {
		return fmt.Errorf("%w: unknown permission bits", pkg.ErrBadRequest)
	}

	if err := s.overrideRepo.Upsert(ctx, override); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) DeleteOverride(ctx context.Context, userID, channelID string, kind models.OverrideSubjectKind, subjectID string) error {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	if channel.ServerID == nil {
		return fmt.Errorf("%w: DM channels have no overrides", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, *channel.ServerID, models.PermManageRoles); err != nil {
		return err
	}

	if err := s.overrideRepo.Delete(ctx, channelID, kind, subjectID); err != nil {
		return err
	}

	s.BroadcastSnapshot(ctx, *channel.ServerID)
	return nil
}

func (s *channelService) Snapshot(ctx context.Context, serverID string) (*models.ServerSnapshot, error) {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	categories, err := s.categoryRepo.ListCategoriesByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	channels, err := s.channelRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roleRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	members, err := s.serverRepo.ListMembers(ctx, serverID)
	if err != nil {
		return nil, err
	}

	// Kanallar kategorilere dağıtılır; kategorisizler sentetik "" kategorisine.
	byCategory := make(map[string][]models.Channel)
	for _, c := range channels {
		key := ""
		if c.CategoryID != nil {
			key = *c.CategoryID
		}
		byCategory[key] = append(byCategory[key], c)
	}

	grouped := make([]models.CategoryWithChannels, 0, len(categories)+1)
	for _, cat := range categories {
		grouped = append(grouped, models.CategoryWithChannels{
			Category: cat,
			Channels: orEmptyChannels(byCategory[cat.ID]),
		})
	}
	if orphans := byCategory[""]; len(orphans) > 0 {
		grouped = append(grouped, models.CategoryWithChannels{
			Category: models.Category{ServerID: serverID},
			Channels: orphans,
		})
	}

	return &models.ServerSnapshot{
		Server:     *server,
		Categories: grouped,
		Roles:      roles,
		Members:    members,
	}, nil
}

func (s *channelService) BroadcastSnapshot(ctx context.Context, serverID string) {
	snapshot, err := s.Snapshot(ctx, serverID)
	if err != nil {
		return
	}
	s.hub.EmitToRoom(ws.ServerKey(serverID), ws.Event{Op: ws.OpServerUpdated, Data: snapshot})
}

func orEmptyChannels(channels []models.Channel) []models.Channel {
	if channels == nil {
		return []models.Channel{}
	}
	return channels
}
