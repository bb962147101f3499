// Package services — MessageService: mesaj yaşam döngüsü ve fan-out.
//
// Sıralama garantisi: mesaj ID'leri monotonik ULID'dir ve bir kanalın
// persist + fan-out adımları kanal kilidi altında çalışır. Böylece herhangi
// bir subscriber'ın gördüğü message:new sırası = ID sırası olur; kanallar
// arası sıralama garantisi yoktur (kilit kanal başınadır).
//
// Webhook yazarları da buradan geçer: permission kontrolü atlanır
// (webhook'u oluşturan manageWebhooks sahibi kefildir) ama validation,
// mention parse ve fan-out kullanıcı mesajlarıyla birebir aynıdır.
package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
	"github.com/oklog/ulid/v2"
)

// MessageService, mesaj operasyonları için public interface.
type MessageService interface {
	// Send, mesajı doğrular, kalıcılaştırır ve fan-out eder.
	// Kullanıcı yazarları için sendMessages yetkisi aranır; webhook
	// yazarları permission kontrolünü atlar.
	Send(ctx context.Context, author models.Author, draft *models.MessageDraft) (*models.Message, error)

	// Edit, sadece yazarın kendisine açıktır.
	Edit(ctx context.Context, userID string, req *models.EditMessageRequest) error

	// Delete, yazar VEYA kanalda manageMessages sahibi.
	Delete(ctx context.Context, userID, messageID string) error

	// React, idempotent emoji ekleme/kaldırma; güncel reaction map'ini yayar.
	React(ctx context.Context, userID string, req *models.ReactionRequest) error

	// FetchOlder, cursor pagination ile eski mesajları döner (viewChannel gerekir).
	FetchOlder(ctx context.Context, userID, channelID, beforeID string, limit int) (*models.MessagePage, error)

	// Pin / Unpin, manageMessages ister.
	SetPinned(ctx context.Context, userID, messageID string, pinned bool) error
	ListPinned(ctx context.Context, userID, channelID string) ([]models.Message, error)

	// VotePoll, anket mesajına oy verir (kullanıcı başına tek oy; oy değiştirilebilir).
	VotePoll(ctx context.Context, userID, messageID string, optionIndex int) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	reactionRepo repository.ReactionRepository
	channelRepo repository.ChannelRepository
	serverRepo  repository.ServerRepository
	roleRepo    repository.RoleRepository
	dmRepo      repository.DMRepository
	blockRepo   repository.BlockRepository
	perms       PermissionService
	hub         ws.Broadcaster

	// channelLocks: kanal başına persist+emit serileştirmesi.
	lockMu       sync.Mutex
	channelLocks map[string]*sync.Mutex

	// ulidMu + entropy: monotonik ULID üretimi. Global kilit — aynı
	// milisaniyede üretilen ID'ler bile artan sırada kalır.
	ulidMu  sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewMessageService, constructor.
func NewMessageService(
	messageRepo repository.MessageRepository,
	reactionRepo repository.ReactionRepository,
	channelRepo repository.ChannelRepository,
	serverRepo repository.ServerRepository,
	roleRepo repository.RoleRepository,
	dmRepo repository.DMRepository,
	blockRepo repository.BlockRepository,
	perms PermissionService,
	hub ws.Broadcaster,
) MessageService {
	return &messageService{
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		channelRepo:  channelRepo,
		serverRepo:   serverRepo,
		roleRepo:     roleRepo,
		dmRepo:       dmRepo,
		blockRepo:    blockRepo,
		perms:        perms,
		hub:          hub,
		channelLocks: make(map[string]*sync.Mutex),
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
}

// newMessageID, monotonik ULID üretir.
func (s *messageService) newMessageID() string {
	s.ulidMu.Lock()
	defer s.ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// channelLock, kanal başına mutex döner (lazily oluşturulur).
func (s *messageService) channelLock(channelID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if mu, ok := s.channelLocks[channelID]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.channelLocks[channelID] = mu
	return mu
}

func (s *messageService) Send(ctx context.Context, author models.Author, draft *models.MessageDraft) (*models.Message, error) {
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	channel, err := s.channelRepo.GetByID(ctx, draft.ChannelID)
	if err != nil {
		return nil, err
	}

	isWebhook := author.Kind == models.AuthorKindWebhook

	// Yetki / katılım kontrolleri
	if channel.IsDMKind() {
		if isWebhook {
			return nil, fmt.Errorf("%w: webhooks cannot post to DM channels", pkg.ErrForbidden)
		}
		if err := s.checkDMSend(ctx, channel, author.ID); err != nil {
			return nil, err
		}
	} else if !isWebhook {
		if err := s.perms.RequireInChannel(ctx, author.ID, channel, models.PermSendMessages); err != nil {
			return nil, err
		}
	}

	// reply-to aynı kanalda mevcut olmalı
	if draft.ReplyToID != nil {
		ref, err := s.messageRepo.GetByID(ctx, *draft.ReplyToID)
		if err != nil {
			return nil, fmt.Errorf("%w: replied message not found", pkg.ErrBadRequest)
		}
		if ref.ChannelID != channel.ID {
			return nil, fmt.Errorf("%w: replied message is in a different channel", pkg.ErrBadRequest)
		}
	}

	// Mention parse — sadece sunucu kanallarında (DM'de mention tablosu boş).
	mentions := models.Mentions{Users: []string{}, Roles: []string{}}
	var channelLinks, inviteCodes []string
	if !channel.IsDMKind() && channel.ServerID != nil {
		pctx, err := s.buildParseContext(ctx, *channel.ServerID)
		if err != nil {
			return nil, err
		}
		parsed := ParseMessage(draft.Content, pctx)

		mentions.Users = parsed.UserMentions
		mentions.Roles = parsed.RoleMentions
		channelLinks = parsed.ChannelLinks
		inviteCodes = parsed.InviteCodes

		if parsed.MentionsEveryone {
			// @everyone yetki ister; yoksa sessizce düz metne düşer.
			allowed := isWebhook
			if !allowed {
				allowed, _ = s.perms.CanInChannel(ctx, author.ID, channel, models.PermMentionEveryone)
			}
			mentions.Everyone = allowed
		}
	}

	message := &models.Message{
		ChannelID:    channel.ID,
		Author:       author,
		Content:      draft.Content,
		ReplyToID:    draft.ReplyToID,
		Mentions:     mentions,
		ChannelLinks: channelLinks,
		InviteCodes:  inviteCodes,
		Embeds:       draft.Embeds,
		Attachments:  draft.Attachments,
		CommandData:  draft.CommandData,
		Reactions:    []models.ReactionGroup{},
	}
	if message.Embeds == nil {
		message.Embeds = []models.Embed{}
	}
	if message.Attachments == nil {
		message.Attachments = []string{}
	}

	// Persist + fan-out kanal kilidi altında: herhangi bir subscriber'ın
	// gördüğü sıra ID sırasına eşittir.
	mu := s.channelLock(channel.ID)
	mu.Lock()
	defer mu.Unlock()

	message.ID = s.newMessageID()
	if err := s.messageRepo.Create(ctx, message); err != nil {
		// Store hatası fail-closed: fan-out yapılmaz.
		return nil, err
	}

	// Pending DM'de hedefin cevabı isteği örtük kabul eder.
	if channel.IsDMKind() && channel.RequestState != nil &&
		*channel.RequestState == models.DMRequestPending &&
		channel.DMInitiator != nil && *channel.DMInitiator != author.ID {
		if err := s.channelRepo.SetRequestState(ctx, channel.ID, models.DMRequestAccepted); err == nil {
			accepted := models.DMRequestAccepted
			channel.RequestState = &accepted
			s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpDMUpdated, Data: channel})
		}
	}

	s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpMessageNew, Data: message})
	return message, nil
}

// checkDMSend, DM kanalına gönderim kurallarını uygular:
// katılımcılık + çift yönlü block kontrolü.
func (s *messageService) checkDMSend(ctx context.Context, channel *models.Channel, userID string) error {
	isParticipant, err := s.dmRepo.IsParticipant(ctx, channel.ID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
	}

	if channel.Type == models.ChannelTypeDM {
		participants, err := s.dmRepo.ListParticipants(ctx, channel.ID)
		if err != nil {
			return err
		}
		for _, other := range participants {
			if other == userID {
				continue
			}
			blocked, err := s.blockRepo.IsBlockedEither(ctx, userID, other)
			if err != nil {
				return err
			}
			if blocked {
				return fmt.Errorf("%w: messaging unavailable", pkg.ErrBlocked)
			}
		}
	}
	return nil
}

// emitToChannel, kanal türüne göre fan-out hedefini seçer:
// sunucu kanalı → channel:<id> room'u; DM → her katılımcının user:<id> key'i.
func (s *messageService) emitToChannel(ctx context.Context, channel *models.Channel, event ws.Event) {
	if !channel.IsDMKind() {
		s.hub.EmitToRoom(ws.ChannelKey(channel.ID), event)
		return
	}

	participants, err := s.dmRepo.ListParticipants(ctx, channel.ID)
	if err != nil {
		return
	}
	for _, userID := range participants {
		s.hub.EmitToUser(userID, event)
	}
}

// buildParseContext, sunucunun üye/rol/kanal isim tablolarını kurar.
func (s *messageService) buildParseContext(ctx context.Context, serverID string) (ParseContext, error) {
	pctx := ParseContext{
		UsersByName:    make(map[string]string),
		RolesByName:    make(map[string]string),
		ChannelsByName: make(map[string]string),
	}

	members, err := s.serverRepo.ListMembers(ctx, serverID)
	if err != nil {
		return pctx, err
	}
	for _, m := range members {
		pctx.UsersByName[strings.ToLower(m.Username)] = m.ID
	}

	roles, err := s.roleRepo.ListByServer(ctx, serverID)
	if err != nil {
		return pctx, err
	}
	for _, r := range roles {
		if !r.IsEveryone {
			pctx.RolesByName[strings.ToLower(r.Name)] = r.ID
		}
	}

	channels, err := s.channelRepo.ListByServer(ctx, serverID)
	if err != nil {
		return pctx, err
	}
	for _, c := range channels {
		pctx.ChannelsByName[strings.ToLower(c.Name)] = c.ID
	}

	return pctx, nil
}

func (s *messageService) Edit(ctx context.Context, userID string, req *models.EditMessageRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	message, err := s.messageRepo.GetByID(ctx, req.MessageID)
	if err != nil {
		return err
	}
	if message.Author.Kind != models.AuthorKindUser || message.Author.ID != userID {
		return fmt.Errorf("%w: only the author can edit a message", pkg.ErrForbidden)
	}

	if err := s.messageRepo.UpdateContent(ctx, req.MessageID, req.Content); err != nil {
		return err
	}

	channel, err := s.channelRepo.GetByID(ctx, message.ChannelID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpMessageEdited, Data: map[string]any{
		"channel_id": message.ChannelID,
		"message_id": message.ID,
		"content":    req.Content,
		"edited_at":  now,
	}})
	return nil
}

func (s *messageService) Delete(ctx context.Context, userID, messageID string) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	channel, err := s.channelRepo.GetByID(ctx, message.ChannelID)
	if err != nil {
		return err
	}

	isAuthor := message.Author.Kind == models.AuthorKindUser && message.Author.ID == userID
	if !isAuthor {
		if channel.IsDMKind() {
			return fmt.Errorf("%w: only the author can delete a DM message", pkg.ErrForbidden)
		}
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermManageMessages); err != nil {
			return err
		}
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpMessageDeleted, Data: map[string]string{
		"channel_id": message.ChannelID,
		"message_id": messageID,
	}})
	return nil
}

func (s *messageService) React(ctx context.Context, userID string, req *models.ReactionRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	message, err := s.messageRepo.GetByID(ctx, req.MessageID)
	if err != nil {
		return err
	}

	channel, err := s.channelRepo.GetByID(ctx, message.ChannelID)
	if err != nil {
		return err
	}

	if channel.IsDMKind() {
		isParticipant, err := s.dmRepo.IsParticipant(ctx, channel.ID, userID)
		if err != nil {
			return err
		}
		if !isParticipant {
			return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
		}
	} else {
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermViewChannel); err != nil {
			return err
		}
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermAddReaction); err != nil {
			return err
		}
	}

	if req.Op == "add" {
		err = s.reactionRepo.Add(ctx, req.MessageID, userID, req.Emoji)
	} else {
		err = s.reactionRepo.Remove(ctx, req.MessageID, userID, req.Emoji)
	}
	if err != nil {
		return err
	}

	// Tam güncel map yayınlanır — client diff uygulamaz, replace eder.
	reactions, err := s.reactionRepo.ListByMessage(ctx, req.MessageID)
	if err != nil {
		return err
	}

	s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpMessageReaction, Data: map[string]any{
		"channel_id": message.ChannelID,
		"message_id": req.MessageID,
		"reactions":  reactions,
	}})
	return nil
}

func (s *messageService) FetchOlder(ctx context.Context, userID, channelID, beforeID string, limit int) (*models.MessagePage, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if channel.IsDMKind() {
		isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
		if err != nil {
			return nil, err
		}
		if !isParticipant {
			return nil, fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
		}
	} else {
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermViewChannel); err != nil {
			return nil, err
		}
	}

	return s.messageRepo.ListBefore(ctx, channelID, beforeID, limit)
}

func (s *messageService) SetPinned(ctx context.Context, userID, messageID string, pinned bool) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	channel, err := s.channelRepo.GetByID(ctx, message.ChannelID)
	if err != nil {
		return err
	}

	if channel.IsDMKind() {
		isParticipant, err := s.dmRepo.IsParticipant(ctx, channel.ID, userID)
		if err != nil {
			return err
		}
		if !isParticipant {
			return fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
		}
	} else {
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermManageMessages); err != nil {
			return err
		}
	}

	if err := s.messageRepo.SetPinned(ctx, messageID, pinned); err != nil {
		return err
	}

	op := ws.OpMessagePinned
	if !pinned {
		op = ws.OpMessageUnpinned
	}
	s.emitToChannel(ctx, channel, ws.Event{Op: op, Data: map[string]string{
		"channel_id": message.ChannelID,
		"message_id": messageID,
	}})
	return nil
}

func (s *messageService) ListPinned(ctx context.Context, userID, channelID string) ([]models.Message, error) {
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.IsDMKind() {
		isParticipant, err := s.dmRepo.IsParticipant(ctx, channelID, userID)
		if err != nil {
			return nil, err
		}
		if !isParticipant {
			return nil, fmt.Errorf("%w: not a participant", pkg.ErrForbidden)
		}
	} else if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermViewChannel); err != nil {
		return nil, err
	}
	return s.messageRepo.ListPinned(ctx, channelID)
}

func (s *messageService) VotePoll(ctx context.Context, userID, messageID string, optionIndex int) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.CommandData == nil || message.CommandData.Kind != "poll" {
		return fmt.Errorf("%w: message is not a poll", pkg.ErrBadRequest)
	}
	if optionIndex < 0 || optionIndex >= len(message.CommandData.Options) {
		return fmt.Errorf("%w: invalid option", pkg.ErrBadRequest)
	}

	channel, err := s.channelRepo.GetByID(ctx, message.ChannelID)
	if err != nil {
		return err
	}
	if !channel.IsDMKind() {
		if err := s.perms.RequireInChannel(ctx, userID, channel, models.PermViewChannel); err != nil {
			return err
		}
	}

	// Oy değiştirme: önce tüm seçeneklerden düş, sonra seçilene ekle.
	// Kanal kilidi eşzamanlı oyların kaybolmasını önler (read-modify-write).
	mu := s.channelLock(channel.ID)
	mu.Lock()
	defer mu.Unlock()

	fresh, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	data := fresh.CommandData
	for i := range data.Options {
		voters := data.Options[i].Voters[:0]
		for _, v := range data.Options[i].Voters {
			if v != userID {
				voters = append(voters, v)
			}
		}
		data.Options[i].Voters = voters
	}
	data.Options[optionIndex].Voters = append(data.Options[optionIndex].Voters, userID)

	if err := s.messageRepo.UpdateCommandData(ctx, messageID, data); err != nil {
		return err
	}

	s.emitToChannel(ctx, channel, ws.Event{Op: ws.OpPollUpdated, Data: map[string]any{
		"channel_id":   message.ChannelID,
		"message_id":   messageID,
		"command_data": data,
	}})
	return nil
}
