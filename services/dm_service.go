// Package services — DMService: 1:1 ve grup DM kanalları.
//
// DM kanalları, initiator'ın Personal sunucusunun altında yaşayan channels
// satırlarıdır; katılımcılar dm_participants edge'leridir.
//
// Message request: arkadaş olmayan birinin açtığı 1:1 DM pending durumda
// doğar — hedef kanalı sadece "Message Requests" panesinde görür. Hedefin
// accept/reject/block aksiyonu (veya cevap yazması) durumu çözer.
//
// dm:delete per-user hide'dır: kanal ve mesajlar diğer katılımcılar için
// aynen kalır; sadece silenin listesinden düşer.
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

// DMService, DM operasyonları için public interface.
type DMService interface {
	// CreateDM, mevcut kanalı döner veya yenisini açar.
	// Herhangi bir yönde engel varsa ErrBlocked.
	CreateDM(ctx context.Context, initiatorID string, req *models.CreateDMRequest) (*models.DMChannelView, error)
	CreateGroupDM(ctx context.Context, initiatorID string, req *models.CreateGroupDMRequest) (*models.DMChannelView, error)
	AddParticipant(ctx context.Context, actorID, channelID, userID string) error
	// RemoveParticipant: self-leave veya initiator başkasını çıkarır.
	RemoveParticipant(ctx context.Context, actorID, channelID, userID string) error

	AcceptRequest(ctx context.Context, userID, channelID string) error
	RejectRequest(ctx context.Context, userID, channelID string) error

	MarkRead(ctx context.Context, userID string, req *models.MarkReadRequest) error
	Archive(ctx context.Context, userID, channelID string, archived bool) error
	// Hide, dm:delete'in implementasyonu.
	Hide(ctx context.Context, userID, channelID string) error

	ListChannels(ctx context.Context, userID string) ([]models.DMChannelView, error)
}

type dmService struct {
	dmRepo        repository.DMRepository
	channelRepo   repository.ChannelRepository
	serverRepo    repository.ServerRepository
	userRepo      repository.UserRepository
	friendRepo    repository.FriendshipRepository
	blockRepo     repository.BlockRepository
	messageRepo   repository.MessageRepository
	readStateRepo repository.ReadStateRepository
	hub           ws.Broadcaster
}

// NewDMService, constructor.
func NewDMService(
	dmRepo repository.DMRepository,
	channelRepo repository.ChannelRepository,
	serverRepo repository.ServerRepository,
	userRepo repository.UserRepository,
	friendRepo repository.FriendshipRepository,
	blockRepo repository.BlockRepository,
	messageRepo repository.MessageRepository,
	readStateRepo repository.ReadStateRepository,
	hub ws.Broadcaster,
) DMService {
	return &dmService{
		dmRepo:        dmRepo,
		channelRepo:   channelRepo,
		serverRepo:    serverRepo,
		userRepo:      userRepo,
		friendRepo:    friendRepo,
		blockRepo:     blockRepo,
		messageRepo:   messageRepo,
		readStateRepo: readStateRepo,
		hub:           hub,
	}
}

func (s *dmService) CreateDM(ctx context.Context, initiatorID string, req *models.CreateDMRequest) (*models.DMChannelView, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if req.TargetUserID == initiatorID {
		return nil, fmt.Errorf("%w: cannot open a DM with yourself", pkg.ErrBadRequest)
	}

	target, err := s.userRepo.GetByID(ctx, req.TargetUserID)
	if err != nil || target.DeletedAt != nil {
		return nil, fmt.Errorf("%w: user not found", pkg.ErrNotFound)
	}

	// Çift yönlü engel kapısı
	blocked, err := s.blockRepo.IsBlockedEither(ctx, initiatorID, req.TargetUserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, fmt.Errorf("%w: messaging unavailable", pkg.ErrBlocked)
	}

	// Mevcut kanal varsa onu dön (hidden ise görünür yap)
	existing, err := s.dmRepo.FindDirectChannel(ctx, initiatorID, req.TargetUserID)
	if err == nil {
		_ = s.dmRepo.SetHidden(ctx, existing.ID, initiatorID, false)
		return s.view(ctx, existing, initiatorID)
	}
	if !errors.Is(err, pkg.ErrNotFound) {
		return nil, err
	}

	// Yeni kanal: initiator'ın Personal sunucusunun altında.
	personal, err := s.serverRepo.GetPersonalServer(ctx, initiatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve personal server: %w", err)
	}

	channel := &models.Channel{
		ServerID:    &personal.ID,
		Name:        "dm",
		Type:        models.ChannelTypeDM,
		DMInitiator: &initiatorID,
	}

	// Arkadaş değillerse kanal message-request durumunda doğar.
	areFriends, err := s.friendRepo.AreFriends(ctx, initiatorID, req.TargetUserID)
	if err != nil {
		return nil, err
	}
	state := models.DMRequestAccepted
	if !areFriends {
		state = models.DMRequestPending
	}
	channel.RequestState = &state

	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}
	if err := s.dmRepo.AddParticipant(ctx, channel.ID, initiatorID); err != nil {
		return nil, err
	}
	if err := s.dmRepo.AddParticipant(ctx, channel.ID, req.TargetUserID); err != nil {
		return nil, err
	}

	// Her iki tarafa dm:created — hedef pending kanalı requests panesinde görür.
	for _, uid := range []string{initiatorID, req.TargetUserID} {
		if view, err := s.view(ctx, channel, uid); err == nil {
			s.hub.EmitToUser(uid, ws.Event{Op: ws.OpDMCreated, Data: view})
		}
	}

	return s.view(ctx, channel, initiatorID)
}

func (s *dmService) CreateGroupDM(ctx context.Context, initiatorID string, req *models.CreateGroupDMRequest) (*models.DMChannelView, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	// Her katılımcı initiator'ı engellememiş olmalı (ve tersi).
	for _, pid := range req.ParticipantIDs {
		if pid == initiatorID {
			return nil, fmt.Errorf("%w: initiator is already a participant", pkg.ErrBadRequest)
		}
		if _, err := s.userRepo.GetByID(ctx, pid); err != nil {
			return nil, fmt.Errorf("%w: user %s not found", pkg.ErrNotFound, pid)
		}
		blocked, err := s.blockRepo.IsBlockedEither(ctx, initiatorID, pid)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, fmt.Errorf("%w: cannot add a blocked user", pkg.ErrBlocked)
		}
	}

	personal, err := s.serverRepo.GetPersonalServer(ctx, initiatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve personal server: %w", err)
	}

	name := req.Name
	if name == "" {
		name = "group"
	}
	accepted := models.DMRequestAccepted
	channel := &models.Channel{
		ServerID:     &personal.ID,
		Name:         name,
		Type:         models.ChannelTypeGroupDM,
		DMInitiator:  &initiatorID,
		RequestState: &accepted,
	}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}

	allIDs := append([]string{initiatorID}, req.ParticipantIDs...)
	for _, uid := range allIDs {
		if err := s.dmRepo.AddParticipant(ctx, channel.ID, uid); err != nil {
			return nil, err
		}
	}

	for _, uid := range allIDs {
		if view, err := s.view(ctx, channel, uid); err == nil {
			s.hub.EmitToUser(uid, ws.Event{Op: ws.OpDMCreated, Data: view})
		}
	}

	return s.view(ctx, channel, initiatorID)
}

func (s *dmService) AddParticipant(ctx context.Context, actorID, channelID, userID string) error {
	channel, err := s.requireGroup(ctx, channelID)
	if err != nil {
		return err
	}
	isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, actorID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	blocked, err := s.blockRepo.IsBlockedEither(ctx, actorID, userID)
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("%w: cannot add a blocked user", pkg.ErrBlocked)
	}

	if err := s.dmRepo.AddParticipant(ctx, channelID, userID); err != nil {
		return err
	}

	s.broadcastUpdate(ctx, channel)
	return nil
}

func (s *dmService) RemoveParticipant(ctx context.Context, actorID, channelID, userID string) error {
	channel, err := s.requireGroup(ctx, channelID)
	if err != nil {
		return err
	}

	// Self-leave her zaman serbest; başkasını sadece initiator çıkarabilir.
	if actorID != userID {
		if channel.DMInitiator == nil || *channel.DMInitiator != actorID {
			return fmt.Errorf("%w: only the group creator can remove participants", pkg.ErrForbidden)
		}
	}

	if err := s.dmRepo.RemoveParticipant(ctx, channelID, userID); err != nil {
		return err
	}

	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpDMUpdated, Data: map[string]string{
		"channel_id": channelID,
		"removed":    userID,
	}})
	s.broadcastUpdate(ctx, channel)
	return nil
}

func (s *dmService) requireGroup(ctx context.Context, channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeGroupDM {
		return nil, fmt.Errorf("%w: not a group DM", pkg.ErrBadRequest)
	}
	return channel, nil
}

func (s *dmService) AcceptRequest(ctx context.Context, userID, channelID string) error {
	channel, err := s.requirePendingTarget(ctx, userID, channelID)
	if err != nil {
		return err
	}

	if err := s.channelRepo.SetRequestState(ctx, channelID, models.DMRequestAccepted); err != nil {
		return err
	}
	accepted := models.DMRequestAccepted
	channel.RequestState = &accepted

	s.broadcastUpdate(ctx, channel)
	return nil
}

func (s *dmService) RejectRequest(ctx context.Context, userID, channelID string) error {
	if _, err := s.requirePendingTarget(ctx, userID, channelID); err != nil {
		return err
	}
	// Reddeden taraftan gizlenir; initiator kanalı görmeye devam eder.
	return s.dmRepo.SetHidden(ctx, channelID, userID, true)
}

// requirePendingTarget, kanalın pending DM olduğunu ve userID'nin
// initiator OLMADIĞINI (yani hedef taraf olduğunu) doğrular.
func (s *dmService) requirePendingTarget(ctx context.Context, userID, channelID string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelTypeDM || channel.RequestState == nil ||
		*channel.RequestState != models.DMRequestPending {
		return nil, fmt.Errorf("%w: channel is not a pending request", pkg.ErrBadRequest)
	}
	isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant || (channel.DMInitiator != nil && *channel.DMInitiator == userID) {
		return nil, fmt.Errorf("%w: only the recipient can act on a request", pkg.ErrForbidden)
	}
	return channel, nil
}

func (s *dmService) MarkRead(ctx context.Context, userID string, req *models.MarkReadRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	isParticipant, err := s.dmRepo.IsParticipant(ctx, req.ChannelID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	if err := s.readStateRepo.MarkRead(ctx, userID, req.ChannelID, req.MessageID); err != nil {
		return err
	}

	s.emitUnreadCounts(ctx, userID)
	return nil
}

func (s *dmService) Archive(ctx context.Context, userID, channelID string, archived bool) error {
	return s.dmRepo.SetArchived(ctx, channelID, userID, archived)
}

func (s *dmService) Hide(ctx context.Context, userID, channelID string) error {
	return s.dmRepo.SetHidden(ctx, channelID, userID, true)
}

func (s *dmService) ListChannels(ctx context.Context, userID string) ([]models.DMChannelView, error) {
	channels, err := s.dmRepo.ListChannelsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.DMChannelView, 0, len(channels))
	for i := range channels {
		view, err := s.view(ctx, &channels[i], userID)
		if err != nil {
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

// view, kanalın kullanıcıya özel görünümünü kurar.
func (s *dmService) view(ctx context.Context, channel *models.Channel, userID string) (*models.DMChannelView, error) {
	participantIDs, err := s.dmRepo.ListParticipants(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetByIDs(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	participants := make([]models.PublicUser, len(users))
	for i := range users {
		participants[i] = users[i].ToPublic()
	}

	view := &models.DMChannelView{
		Channel:      *channel,
		Participants: participants,
	}

	if flags, err := s.dmRepo.GetParticipantFlags(ctx, channel.ID, userID); err == nil {
		view.Archived = flags.Archived
	}

	if last, err := s.messageRepo.GetLast(ctx, channel.ID); err == nil {
		view.LastMessage = last
	}

	cursor, err := s.readStateRepo.GetCursor(ctx, userID, channel.ID)
	if err == nil {
		if count, err := s.messageRepo.CountAfter(ctx, channel.ID, cursor); err == nil {
			view.UnreadCount = count
		}
	}

	view.IsRequest = channel.RequestState != nil &&
		*channel.RequestState == models.DMRequestPending &&
		channel.DMInitiator != nil && *channel.DMInitiator != userID

	return view, nil
}

// broadcastUpdate, kanalın güncel görünümünü tüm katılımcılara yayar.
func (s *dmService) broadcastUpdate(ctx context.Context, channel *models.Channel) {
	participantIDs, err := s.dmRepo.ListParticipants(ctx, channel.ID)
	if err != nil {
		return
	}
	for _, uid := range participantIDs {
		if view, err := s.view(ctx, channel, uid); err == nil {
			s.hub.EmitToUser(uid, ws.Event{Op: ws.OpDMUpdated, Data: view})
		}
	}
}

// emitUnreadCounts, kullanıcının tüm DM kanallarının unread sayılarını yayar.
func (s *dmService) emitUnreadCounts(ctx context.Context, userID string) {
	channels, err := s.dmRepo.ListChannelsOfUser(ctx, userID)
	if err != nil {
		return
	}
	counts := make(map[string]int, len(channels))
	for _, c := range channels {
		cursor, err := s.readStateRepo.GetCursor(ctx, userID, c.ID)
		if err != nil {
			continue
		}
		if count, err := s.messageRepo.CountAfter(ctx, c.ID, cursor); err == nil {
			counts[c.ID] = count
		}
	}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpDMUnreadCounts, Data: models.UnreadCounts{Counts: counts}})
}
