// Package services — InviteService: davet kodu yaşam döngüsü.
//
// Kod kriptografik rastgeledir (crypto/rand, base32-benzeri alfabe).
// Kullanım fail-closed'dur: süresi dolmuş VEYA max_uses dolu VEYA revoke
// edilmiş VEYA kullanıcı banlı VEYA zaten üye → reddedilir; sayaç atomik artar.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
)

// InviteService, davet operasyonları için public interface.
type InviteService interface {
	Create(ctx context.Context, userID string, req *models.CreateInviteRequest) (*models.Invite, error)
	// Peek, auth'suz ön izleme: geçersiz kodda valid=false döner,
	// sunucu bilgisi sızmaz.
	Peek(ctx context.Context, code string) (*models.InvitePreview, error)
	// Use, daveti atomik tüketir ve kullanıcıyı sunucuya katar.
	Use(ctx context.Context, userID, code string) (*models.Server, error)
	Revoke(ctx context.Context, userID, code string) error
	List(ctx context.Context, userID, serverID string) ([]models.Invite, error)
}

type inviteService struct {
	inviteRepo repository.InviteRepository
	serverRepo repository.ServerRepository
	banRepo    repository.BanRepository
	perms      PermissionService
	servers    ServerService
}

// NewInviteService, constructor.
func NewInviteService(
	inviteRepo repository.InviteRepository,
	serverRepo repository.ServerRepository,
	banRepo repository.BanRepository,
	perms PermissionService,
	servers ServerService,
) InviteService {
	return &inviteService{
		inviteRepo: inviteRepo,
		serverRepo: serverRepo,
		banRepo:    banRepo,
		perms:      perms,
		servers:    servers,
	}
}

// inviteAlphabet — karışmaya açık karakterler (0/O, 1/l/I) çıkarılmıştır.
const inviteAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generateInviteCode, 10 karakterlik kriptografik rastgele kod üretir.
func generateInviteCode() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}

func (s *inviteService) Create(ctx context.Context, userID string, req *models.CreateInviteRequest) (*models.Invite, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	server, err := s.serverRepo.GetByID(ctx, req.ServerID)
	if err != nil {
		return nil, err
	}
	if server.IsPersonal {
		return nil, fmt.Errorf("%w: personal servers have no invites", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, req.ServerID, models.PermCreateInvite); err != nil {
		return nil, err
	}

	code, err := generateInviteCode()
	if err != nil {
		return nil, err
	}

	invite := &models.Invite{
		Code:      code,
		ServerID:  req.ServerID,
		CreatedBy: userID,
		MaxUses:   req.MaxUses,
	}
	if req.ExpiresInMs != nil {
		expiresAt := time.Now().Add(time.Duration(*req.ExpiresInMs) * time.Millisecond)
		invite.ExpiresAt = &expiresAt
	}

	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *inviteService) Peek(ctx context.Context, code string) (*models.InvitePreview, error) {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return &models.InvitePreview{Valid: false}, nil
		}
		return nil, err
	}
	if !invite.Usable(time.Now()) {
		return &models.InvitePreview{Valid: false}, nil
	}

	server, err := s.serverRepo.GetByID(ctx, invite.ServerID)
	if err != nil || server.ArchivedAt != nil {
		return &models.InvitePreview{Valid: false}, nil
	}

	memberCount, err := s.serverRepo.MemberCount(ctx, invite.ServerID)
	if err != nil {
		return nil, err
	}

	return &models.InvitePreview{
		Valid:       true,
		ServerName:  server.Name,
		ServerIcon:  server.IconURL,
		MemberCount: memberCount,
	}, nil
}

func (s *inviteService) Use(ctx context.Context, userID, code string) (*models.Server, error) {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid invite", pkg.ErrNotFound)
	}

	// Ban kontrolü davet tüketiminden ÖNCE — banlı kullanıcı sayaç yakmaz.
	banned, err := s.banRepo.IsBanned(ctx, invite.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, fmt.Errorf("%w: you are banned from this server", pkg.ErrBlocked)
	}

	isMember, err := s.serverRepo.IsMember(ctx, invite.ServerID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
	}

	// Atomik uses++: expiry/max_uses/revoked tek UPDATE'te kontrol edilir.
	if err := s.inviteRepo.Use(ctx, code); err != nil {
		return nil, fmt.Errorf("%w: invite is no longer valid", pkg.ErrNotFound)
	}

	if err := s.servers.Join(ctx, userID, invite.ServerID); err != nil {
		return nil, err
	}

	return s.serverRepo.GetByID(ctx, invite.ServerID)
}

func (s *inviteService) Revoke(ctx context.Context, userID, code string) error {
	invite, err := s.inviteRepo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.perms.RequireInServer(ctx, userID, invite.ServerID, models.PermCreateInvite); err != nil {
		return err
	}
	return s.inviteRepo.Revoke(ctx, code)
}

func (s *inviteService) List(ctx context.Context, userID, serverID string) ([]models.Invite, error) {
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermCreateInvite); err != nil {
		return nil, err
	}
	return s.inviteRepo.ListByServer(ctx, serverID)
}
