// Package services — FriendshipService: sosyal graf (arkadaşlık + engelleme).
//
// Business logic:
// - İstek gönderme: kendine yollanamaz, herhangi bir yönde engel varsa
//   "not found" döner (engelin varlığı ifşa edilmez), karşı tarafın bekleyen
//   isteği varsa otomatik kabul edilir
// - Kabul etme: sadece hedef kullanıcı
// - Engelleme: mevcut arkadaşlığı/istekleri siler; DM oluşturma, DM gönderme
//   (her iki yönde) ve arama bildirimi bu edge'e takılır
//
// WS broadcast: her iki tarafın TÜM socket'lerine gönderilir (EmitToUser).
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// FriendshipService, sosyal graf operasyonları için public interface.
type FriendshipService interface {
	SendRequest(ctx context.Context, senderID string, req *models.SendFriendRequestRequest) (*models.FriendshipWithUser, error)
	Accept(ctx context.Context, userID, requestID string) error
	// Reject, gelen isteği reddeder veya gönderilen isteği iptal eder.
	Reject(ctx context.Context, userID, requestID string) error
	Remove(ctx context.Context, userID, targetUserID string) error
	Block(ctx context.Context, userID, targetUserID string) error
	Unblock(ctx context.Context, userID, targetUserID string) error

	ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error)
	ListRequests(ctx context.Context, userID string) (*FriendRequestsResponse, error)
	ListBlocked(ctx context.Context, userID string) ([]models.PublicUser, error)
}

// FriendRequestsResponse, gelen ve giden istekleri ayıran DTO.
type FriendRequestsResponse struct {
	Incoming []models.FriendshipWithUser `json:"incoming"`
	Outgoing []models.FriendshipWithUser `json:"outgoing"`
}

type friendshipService struct {
	friendRepo repository.FriendshipRepository
	blockRepo  repository.BlockRepository
	userRepo   repository.UserRepository
	hub        ws.Broadcaster
}

// NewFriendshipService, constructor.
func NewFriendshipService(
	friendRepo repository.FriendshipRepository,
	blockRepo repository.BlockRepository,
	userRepo repository.UserRepository,
	hub ws.Broadcaster,
) FriendshipService {
	return &friendshipService{
		friendRepo: friendRepo,
		blockRepo:  blockRepo,
		userRepo:   userRepo,
		hub:        hub,
	}
}

func (s *friendshipService) SendRequest(ctx context.Context, senderID string, req *models.SendFriendRequestRequest) (*models.FriendshipWithUser, error) {
	// 1. Validasyon
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	// 2. Hedef kullanıcıyı bul
	target, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %q not found", pkg.ErrNotFound, req.Username)
		}
		return nil, err
	}

	// 3. Kendine istek gönderme kontrolü
	if senderID == target.ID {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", pkg.ErrBadRequest)
	}

	// 4. Engel kontrolü — engelin varlığı ifşa edilmez, genel "not found" döner.
	blocked, err := s.blockRepo.IsBlockedEither(ctx, senderID, target.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%w: user %q not found", pkg.ErrNotFound, req.Username)
	}

	// 5. Mevcut kayıt kontrolü
	existing, err := s.friendRepo.GetByPair(ctx, senderID, target.ID)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case models.FriendshipStatusAccepted:
			return nil, fmt.Errorf("%w: already friends with %s", pkg.ErrAlreadyExists, req.Username)
		case models.FriendshipStatusPending:
			// Karşı taraf zaten bana istek göndermiş → otomatik kabul et
			if existing.UserID == target.ID {
				if err := s.Accept(ctx, senderID, existing.ID); err != nil {
					return nil, err
				}
				return s.withUser(ctx, existing.ID, senderID)
			}
			return nil, fmt.Errorf("%w: friend request already sent to %s", pkg.ErrAlreadyExists, req.Username)
		}
	}

	// 6. Pending kayıt oluştur
	friendship := &models.Friendship{UserID: senderID, FriendID: target.ID}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}

	// 7. Her iki tarafa broadcast
	sent, err := s.withUser(ctx, friendship.ID, senderID)
	if err != nil {
		return nil, err
	}
	received, err := s.withUser(ctx, friendship.ID, target.ID)
	if err != nil {
		return nil, err
	}

	s.hub.EmitToUser(senderID, ws.Event{Op: ws.OpFriendRequestSent, Data: sent})
	s.hub.EmitToUser(target.ID, ws.Event{Op: ws.OpFriendRequestReceived, Data: received})

	return sent, nil
}

// withUser, kaydı "karşı taraf" bilgisiyle döner (me perspektifinden).
func (s *friendshipService) withUser(ctx context.Context, friendshipID, me string) (*models.FriendshipWithUser, error) {
	f, err := s.friendRepo.GetByID(ctx, friendshipID)
	if err != nil {
		return nil, err
	}
	other, err := s.userRepo.GetByID(ctx, f.Other(me))
	if err != nil {
		return nil, err
	}
	return &models.FriendshipWithUser{
		ID:        f.ID,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		User:      other.ToPublic(),
	}, nil
}

func (s *friendshipService) Accept(ctx context.Context, userID, requestID string) error {
	f, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	// Sadece hedef (friend_id) kabul edebilir
	if f.FriendID != userID {
		return fmt.Errorf("%w: only the recipient can accept", pkg.ErrForbidden)
	}
	if f.Status != models.FriendshipStatusPending {
		return fmt.Errorf("%w: request is not pending", pkg.ErrBadRequest)
	}

	if err := s.friendRepo.Accept(ctx, requestID); err != nil {
		return err
	}

	// Her iki tarafa kendi perspektifinden broadcast
	for _, uid := range []string{f.UserID, f.FriendID} {
		if fw, err := s.withUser(ctx, requestID, uid); err == nil {
			s.hub.EmitToUser(uid, ws.Event{Op: ws.OpFriendAccepted, Data: fw})
		}
	}
	return nil
}

func (s *friendshipService) Reject(ctx context.Context, userID, requestID string) error {
	f, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	// Hem gönderen (iptal) hem alan (red) silebilir
	if f.UserID != userID && f.FriendID != userID {
		return fmt.Errorf("%w: not your request", pkg.ErrForbidden)
	}
	if f.Status != models.FriendshipStatusPending {
		return fmt.Errorf("%w: request is not pending", pkg.ErrBadRequest)
	}

	if err := s.friendRepo.Delete(ctx, requestID); err != nil {
		return err
	}

	payload := map[string]string{"id": requestID}
	s.hub.EmitToUser(f.UserID, ws.Event{Op: ws.OpFriendRejected, Data: payload})
	s.hub.EmitToUser(f.FriendID, ws.Event{Op: ws.OpFriendRejected, Data: payload})
	return nil
}

func (s *friendshipService) Remove(ctx context.Context, userID, targetUserID string) error {
	f, err := s.friendRepo.GetByPair(ctx, userID, targetUserID)
	if err != nil {
		return err
	}
	if f.Status != models.FriendshipStatusAccepted {
		return fmt.Errorf("%w: not friends", pkg.ErrBadRequest)
	}

	if err := s.friendRepo.Delete(ctx, f.ID); err != nil {
		return err
	}

	payload := map[string]string{"user_id": userID, "target_id": targetUserID}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpFriendRemoved, Data: payload})
	s.hub.EmitToUser(targetUserID, ws.Event{Op: ws.OpFriendRemoved, Data: payload})
	return nil
}

func (s *friendshipService) Block(ctx context.Context, userID, targetUserID string) error {
	if userID == targetUserID {
		return fmt.Errorf("%w: cannot block yourself", pkg.ErrBadRequest)
	}
	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		return err
	}

	// Engel mevcut arkadaşlığı/istekleri de temizler.
	if err := s.friendRepo.DeletePair(ctx, userID, targetUserID); err != nil {
		return err
	}
	if err := s.blockRepo.Add(ctx, userID, targetUserID); err != nil {
		return err
	}

	s.emitBlocks(ctx, userID)
	// Hedefin arkadaş listesi de değişti — kendi socket'lerine bildir.
	s.hub.EmitToUser(targetUserID, ws.Event{Op: ws.OpFriendRemoved, Data: map[string]string{
		"user_id": userID, "target_id": targetUserID,
	}})
	return nil
}

func (s *friendshipService) Unblock(ctx context.Context, userID, targetUserID string) error {
	if err := s.blockRepo.Remove(ctx, userID, targetUserID); err != nil {
		return err
	}
	s.emitBlocks(ctx, userID)
	return nil
}

func (s *friendshipService) emitBlocks(ctx context.Context, userID string) {
	blocked, err := s.blockRepo.ListBlocked(ctx, userID)
	if err != nil {
		return
	}
	if blocked == nil {
		blocked = []models.PublicUser{}
	}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpBlocksUpdated, Data: blocked})
}

func (s *friendshipService) ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	return s.friendRepo.ListFriends(ctx, userID)
}

func (s *friendshipService) ListRequests(ctx context.Context, userID string) (*FriendRequestsResponse, error) {
	incoming, outgoing, err := s.friendRepo.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if incoming == nil {
		incoming = []models.FriendshipWithUser{}
	}
	if outgoing == nil {
		outgoing = []models.FriendshipWithUser{}
	}
	return &FriendRequestsResponse{Incoming: incoming, Outgoing: outgoing}, nil
}

func (s *friendshipService) ListBlocked(ctx context.Context, userID string) ([]models.PublicUser, error) {
	return s.blockRepo.ListBlocked(ctx, userID)
}
