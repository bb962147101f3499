// Package services — ServerService: sunucu yaşam döngüsü ve moderasyon.
//
// Moderasyon hiyerarşi kuralı: kick/ban/timeout için işlemi yapanın en yüksek
// rol position'ı hedefinkinden BÜYÜK olmalıdır; owner hiçbir zaman hedef olamaz.
//
// Owner ayrılırsa: en eski katılımlı admin'e devir; aday yoksa sunucu arşivlenir.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// ServerService, sunucu operasyonları için public interface.
type ServerService interface {
	// Create, sunucu + @everyone rolü + varsayılan kategori + general/General
	// kanallarını tek transaction'da kurar.
	Create(ctx context.Context, ownerID string, req *models.CreateServerRequest) (*models.Server, error)
	Update(ctx context.Context, userID, serverID string, req *models.UpdateServerRequest) error
	// Delete, sadece owner. Tüm üyelere server:deleted yayılır.
	Delete(ctx context.Context, userID, serverID string) error
	// Leave: owner ayrılırsa devir/arşiv kuralı çalışır.
	Leave(ctx context.Context, userID, serverID string) error

	Kick(ctx context.Context, actorID, serverID, targetID string) error
	Ban(ctx context.Context, actorID, serverID, targetID, reason string) error
	Unban(ctx context.Context, actorID, serverID, targetID string) error
	Timeout(ctx context.Context, actorID, serverID string, req *models.TimeoutRequest) error

	// Join, üyelik ekler ve socket'leri enroll eder (invite kullanımı sonrası).
	Join(ctx context.Context, userID, serverID string) error

	ListOfUser(ctx context.Context, userID string) ([]models.Server, error)
	Reorder(ctx context.Context, userID string, items []models.PositionUpdate) error
}

type serverService struct {
	db          *sql.DB
	serverRepo  repository.ServerRepository
	roleRepo    repository.RoleRepository
	channelRepo repository.ChannelRepository
	categoryRepo repository.CategoryRepository
	banRepo     repository.BanRepository
	perms       PermissionService
	channels    ChannelService
	hub         ws.Broadcaster
}

// NewServerService, constructor.
func NewServerService(
	db *sql.DB,
	serverRepo repository.ServerRepository,
	roleRepo repository.RoleRepository,
	channelRepo repository.ChannelRepository,
	categoryRepo repository.CategoryRepository,
	banRepo repository.BanRepository,
	perms PermissionService,
	channels ChannelService,
	hub ws.Broadcaster,
) ServerService {
	return &serverService{
		db:           db,
		serverRepo:   serverRepo,
		roleRepo:     roleRepo,
		channelRepo:  channelRepo,
		categoryRepo: categoryRepo,
		banRepo:      banRepo,
		perms:        perms,
		channels:     channels,
		hub:          hub,
	}
}

func (s *serverService) Create(ctx context.Context, ownerID string, req *models.CreateServerRequest) (*models.Server, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server := &models.Server{Name: req.Name, OwnerID: ownerID}

	// Provisioning tek transaction: sunucu + üyelik + @everyone + varsayılan
	// kategori + general text + General voice. Yarıda kalan kurulum olmaz.
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		serverRepo := repository.NewSQLiteServerRepo(tx)
		roleRepo := repository.NewSQLiteRoleRepo(tx)
		categoryRepo := repository.NewSQLiteCategoryRepo(tx)
		channelRepo := repository.NewSQLiteChannelRepo(tx)

		if err := serverRepo.Create(ctx, server); err != nil {
			return err
		}
		if err := serverRepo.AddMember(ctx, server.ID, ownerID); err != nil {
			return err
		}

		everyone := &models.Role{
			ServerID:    server.ID,
			Name:        "@everyone",
			Permissions: models.PermDefaultEveryone,
			Position:    0,
			IsEveryone:  true,
		}
		if err := roleRepo.Create(ctx, everyone); err != nil {
			return err
		}

		category := &models.Category{ServerID: server.ID, Name: "General"}
		if err := categoryRepo.CreateCategory(ctx, category); err != nil {
			return err
		}

		general := &models.Channel{
			ServerID:   &server.ID,
			CategoryID: &category.ID,
			Name:       "general",
			Type:       models.ChannelTypeText,
		}
		if err := channelRepo.Create(ctx, general); err != nil {
			return err
		}

		voice := &models.Channel{
			ServerID:   &server.ID,
			CategoryID: &category.ID,
			Name:       "General",
			Type:       models.ChannelTypeVoice,
			Position:   1,
		}
		return channelRepo.Create(ctx, voice)
	})
	if err != nil {
		return nil, err
	}

	// Owner'ın tüm socket'leri yeni sunucunun room'una girer.
	for _, socketID := range s.hub.SocketsOfUser(ownerID) {
		s.hub.JoinRoom(socketID, ws.ServerKey(server.ID))
	}
	s.emitServerList(ctx, ownerID)

	return server, nil
}

func (s *serverService) Update(ctx context.Context, userID, serverID string, req *models.UpdateServerRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermManageServer); err != nil {
		return err
	}

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if req.Name != nil {
		server.Name = *req.Name
	}
	if err := s.serverRepo.Update(ctx, server); err != nil {
		return err
	}

	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *serverService) Delete(ctx context.Context, userID, serverID string) error {
	isOwner, err := s.perms.IsOwner(ctx, userID, serverID)
	if err != nil {
		return err
	}
	if !isOwner {
		return fmt.Errorf("%w: only the owner can delete a server", pkg.ErrForbidden)
	}

	memberIDs, err := s.serverRepo.ListMemberIDs(ctx, serverID)
	if err != nil {
		return err
	}

	if err := s.serverRepo.Delete(ctx, serverID); err != nil {
		return err
	}

	s.hub.EmitToRoom(ws.ServerKey(serverID), ws.Event{Op: ws.OpServerDeleted, Data: ws.ServerRefData{ServerID: serverID}})
	for _, memberID := range memberIDs {
		for _, socketID := range s.hub.SocketsOfUser(memberID) {
			s.hub.LeaveRoom(socketID, ws.ServerKey(serverID))
		}
		s.emitServerList(ctx, memberID)
	}
	return nil
}

func (s *serverService) Leave(ctx context.Context, userID, serverID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.IsPersonal {
		return fmt.Errorf("%w: cannot leave your personal server", pkg.ErrBadRequest)
	}

	if server.OwnerID == userID {
		// Devir: en eski katılımlı admin; aday yoksa arşiv.
		heir, err := s.serverRepo.LongestJoinedAdmin(ctx, serverID, userID)
		switch {
		case err == nil:
			if err := s.serverRepo.TransferOwnership(ctx, serverID, heir); err != nil {
				return err
			}
		case errors.Is(err, pkg.ErrNotFound):
			if err := s.serverRepo.Archive(ctx, serverID); err != nil {
				return err
			}
		default:
			return err
		}
	}

	if err := s.serverRepo.RemoveMember(ctx, serverID, userID); err != nil {
		return err
	}

	s.detachUserFromServer(userID, serverID)
	s.emitServerList(ctx, userID)
	s.hub.EmitToRoom(ws.ServerKey(serverID), ws.Event{Op: ws.OpUserLeft, Data: map[string]string{
		"server_id": serverID,
		"user_id":   userID,
	}})
	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

// checkHierarchy, moderasyon eylemlerinin ortak guard'ı:
// hedef owner olamaz, aktörün position'ı hedefinkinden büyük olmalı.
func (s *serverService) checkHierarchy(ctx context.Context, actorID, targetID, serverID string) error {
	if actorID == targetID {
		return fmt.Errorf("%w: cannot moderate yourself", pkg.ErrBadRequest)
	}

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		return err
	}
	if server.OwnerID == targetID {
		return fmt.Errorf("%w: the owner cannot be moderated", pkg.ErrForbidden)
	}

	actorPos, err := s.perms.HighestPosition(ctx, actorID, serverID)
	if err != nil {
		return err
	}
	targetPos, err := s.perms.HighestPosition(ctx, targetID, serverID)
	if err != nil {
		return err
	}
	if actorPos <= targetPos {
		return fmt.Errorf("%w: target has an equal or higher role", pkg.ErrForbidden)
	}
	return nil
}

func (s *serverService) Kick(ctx context.Context, actorID, serverID, targetID string) error {
	if err := s.perms.RequireInServer(ctx, actorID, serverID, models.PermKickMembers); err != nil {
		return err
	}
	if err := s.checkHierarchy(ctx, actorID, targetID, serverID); err != nil {
		return err
	}

	if err := s.serverRepo.RemoveMember(ctx, serverID, targetID); err != nil {
		return err
	}

	s.hub.EmitToUser(targetID, ws.Event{Op: ws.OpUserKicked, Data: ws.ServerRefData{ServerID: serverID}})
	s.detachUserFromServer(targetID, serverID)
	s.emitServerList(ctx, targetID)
	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *serverService) Ban(ctx context.Context, actorID, serverID, targetID, reason string) error {
	if err := s.perms.RequireInServer(ctx, actorID, serverID, models.PermBanMembers); err != nil {
		return err
	}
	if err := s.checkHierarchy(ctx, actorID, targetID, serverID); err != nil {
		return err
	}

	if err := s.banRepo.Add(ctx, serverID, targetID, actorID, reason); err != nil {
		return err
	}
	if err := s.serverRepo.RemoveMember(ctx, serverID, targetID); err != nil {
		return err
	}

	s.hub.EmitToUser(targetID, ws.Event{Op: ws.OpUserBanned, Data: ws.ServerRefData{ServerID: serverID}})
	s.detachUserFromServer(targetID, serverID)
	s.emitServerList(ctx, targetID)
	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *serverService) Unban(ctx context.Context, actorID, serverID, targetID string) error {
	if err := s.perms.RequireInServer(ctx, actorID, serverID, models.PermBanMembers); err != nil {
		return err
	}
	return s.banRepo.Remove(ctx, serverID, targetID)
}

func (s *serverService) Timeout(ctx context.Context, actorID, serverID string, req *models.TimeoutRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := s.perms.RequireInServer(ctx, actorID, serverID, models.PermTimeoutMembers); err != nil {
		return err
	}
	if err := s.checkHierarchy(ctx, actorID, req.UserID, serverID); err != nil {
		return err
	}

	until := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	if err := s.serverRepo.SetTimeout(ctx, serverID, req.UserID, &until); err != nil {
		return err
	}

	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *serverService) Join(ctx context.Context, userID, serverID string) error {
	if err := s.serverRepo.AddMember(ctx, serverID, userID); err != nil {
		return err
	}

	for _, socketID := range s.hub.SocketsOfUser(userID) {
		s.hub.JoinRoom(socketID, ws.ServerKey(serverID))
	}
	s.emitServerList(ctx, userID)
	s.channels.BroadcastSnapshot(ctx, serverID)
	return nil
}

func (s *serverService) ListOfUser(ctx context.Context, userID string) ([]models.Server, error) {
	return s.serverRepo.ListServersOfUser(ctx, userID)
}

func (s *serverService) Reorder(ctx context.Context, userID string, items []models.PositionUpdate) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: items cannot be empty", pkg.ErrBadRequest)
	}
	if err := s.serverRepo.ReorderForUser(ctx, userID, items); err != nil {
		return err
	}
	s.emitServerList(ctx, userID)
	return nil
}

// detachUserFromServer, kullanıcının tüm socket'lerini sunucu room'undan çıkarır.
func (s *serverService) detachUserFromServer(userID, serverID string) {
	for _, socketID := range s.hub.SocketsOfUser(userID) {
		s.hub.LeaveRoom(socketID, ws.ServerKey(serverID))
	}
}

// emitServerList, kullanıcının güncel sunucu listesini kendi socket'lerine yayar.
func (s *serverService) emitServerList(ctx context.Context, userID string) {
	servers, err := s.serverRepo.ListServersOfUser(ctx, userID)
	if err != nil {
		return
	}
	items := make([]models.ServerListItem, len(servers))
	for i, srv := range servers {
		items[i] = models.ServerListItem{ID: srv.ID, Name: srv.Name, IconURL: srv.IconURL}
	}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpServersUpdated, Data: items})
}
