// Package main — Dispatcher tablosu ve Hub callback wire-up'ı.
//
// Neden burada (main'de)?
// Hub ve Dispatcher ws paketinde yaşar, iş mantığı service katmanında.
// ws'in service'lere bağımlı olmasını istemiyoruz (Dependency Inversion) —
// main wire-up noktasıdır, tüm katmanları birbirine bağlar.
//
// Her op kaydı üç şeyi belirler: payload tipi, rate limit bucket'ı ve
// çağrılacak service metodu. Yetki kontrolleri service içindedir —
// tablo sadece yönlendirir.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/ws"
)

// storeTimeout — handler başına Store çağrıları için varsayılan deadline.
const storeTimeout = 10 * time.Second

// signalTimeout — voice signaling relay'leri için daha sıkı deadline.
const signalTimeout = 5 * time.Second

// decodeInto, payload'ı hedef tipe çözer; bozuk JSON validation hatasıdır.
func decodeInto(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: payload required", pkg.ErrBadRequest)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid payload", pkg.ErrBadRequest)
	}
	return nil
}

// initCallbacks, Hub callback'lerini ve Dispatcher op tablosunu kurar.
func initCallbacks(hub *ws.Hub, dispatcher *ws.Dispatcher, typing *ws.TypingTracker, repos *Repos, svcs *Services) {
	// ─── Auth binding ───

	dispatcher.OnAuthenticate(func(token string) (*models.Principal, error) {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Auth.Authenticate(ctx, token)
	})

	// onJoin: socket'i room'lara kaydet + init payload'ını gönder.
	dispatcher.OnJoin(func(c *ws.Client) error {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		userID := c.UserID()

		user, err := repos.User.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		account := *user
		account.PasswordHash = ""

		hub.JoinRoom(c.ID, ws.UserKey(userID))
		hub.JoinRoom(c.ID, ws.PersonalKey(userID))

		servers, err := svcs.Server.ListOfUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, srv := range servers {
			hub.JoinRoom(c.ID, ws.ServerKey(srv.ID))
		}

		dms, err := svcs.DM.ListChannels(ctx, userID)
		if err != nil {
			return err
		}
		friends, err := svcs.Friendship.ListFriends(ctx, userID)
		if err != nil {
			return err
		}
		requests, err := svcs.Friendship.ListRequests(ctx, userID)
		if err != nil {
			return err
		}
		blocked, err := svcs.Friendship.ListBlocked(ctx, userID)
		if err != nil {
			return err
		}

		c.SendEvent(ws.Event{Op: ws.OpInit, Data: map[string]any{
			"socket_id":       c.ID,
			"user":            account,
			"servers":         servers,
			"dms":             dms,
			"friends":         friends,
			"friend_requests": requests,
			"blocked":         blocked,
			"online_user_ids": hub.OnlineUserIDs(),
			"voice_channels":  svcs.Voice.Rooms(),
		}})

		// Diğer üyeler kullanıcının online olduğunu user:updated ile öğrenir
		// (UserService.HandleFirstConnect — hub callback'i tetikler).
		return nil
	})

	// ─── Presence callback'leri ───

	hub.OnUserFirstConnect(svcs.User.HandleFirstConnect)
	hub.OnUserFullyDisconnected(svcs.User.HandleFullDisconnect)
	hub.OnUserIdle(svcs.User.HandleIdle)

	// Socket kopuşu: voice + typing temizliği. Room üyeliklerini Hub kendisi söker.
	hub.OnSocketDisconnect(func(socketID, userID string) {
		svcs.Voice.HandleDisconnect(socketID)
		if userID != "" {
			typing.StopAll(userID)
		}
	})

	// ─── Kanal aboneliği + mesajlar ───

	dispatcher.Register(ws.OpChannelJoin, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		page, err := svcs.Message.FetchOlder(ctx, c.UserID(), req.ChannelID, "", 50)
		if err != nil {
			return err
		}
		hub.JoinRoom(c.ID, ws.ChannelKey(req.ChannelID))

		c.SendEvent(ws.Event{Op: ws.OpChannelHistory, Data: map[string]any{
			"channel_id": req.ChannelID,
			"messages":   page.Messages,
			"has_more":   page.HasMore,
		}})
		return nil
	})

	dispatcher.Register(ws.OpChannelLeave, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		hub.LeaveRoom(c.ID, ws.ChannelKey(req.ChannelID))
		return nil
	})

	dispatcher.Register(ws.OpMessageSend, ws.BucketMessageSend, func(c *ws.Client, data json.RawMessage) error {
		var draft models.MessageDraft
		if err := decodeInto(data, &draft); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		author := models.Author{Kind: models.AuthorKindUser, ID: c.UserID()}
		_, err := svcs.Message.Send(ctx, author, &draft)
		return err
	})

	dispatcher.Register(ws.OpMessageEdit, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.EditMessageRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.Edit(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpMessageDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			MessageID string `json:"message_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.Delete(ctx, c.UserID(), req.MessageID)
	})

	dispatcher.Register(ws.OpMessageReact, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.ReactionRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.React(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpMessageFetch, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.MessageFetchData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		page, err := svcs.Message.FetchOlder(ctx, c.UserID(), req.ChannelID, req.BeforeID, req.Limit)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpChannelHistory, Data: map[string]any{
			"channel_id": req.ChannelID,
			"messages":   page.Messages,
			"has_more":   page.HasMore,
		}})
		return nil
	})

	dispatcher.Register(ws.OpMessagePin, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			MessageID string `json:"message_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.SetPinned(ctx, c.UserID(), req.MessageID, true)
	})

	dispatcher.Register(ws.OpMessageUnpin, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			MessageID string `json:"message_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.SetPinned(ctx, c.UserID(), req.MessageID, false)
	})

	dispatcher.Register(ws.OpPollVote, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.PollVoteData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Message.VotePoll(ctx, c.UserID(), req.MessageID, req.OptionIndex)
	})

	// ─── Typing + presence + profil ───

	dispatcher.Register(ws.OpTypingStart, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		// viewChannel olmayan kanala typing sinyali gönderilemez.
		if _, err := svcs.Message.FetchOlder(ctx, c.UserID(), req.ChannelID, "", 1); err != nil {
			return nil // sessiz — typing kritik değil
		}

		user, err := repos.User.GetByID(ctx, c.UserID())
		if err != nil {
			return nil
		}
		typing.Start(req.ChannelID, c.UserID(), user.Username, c.ID)
		return nil
	})

	dispatcher.Register(ws.OpPresenceSet, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.PresenceData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.User.SetStatus(ctx, c.UserID(), models.UserStatus(req.Status))
	})

	dispatcher.Register(ws.OpUserUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.UpdateProfileRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.User.UpdateProfile(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpUserBlock, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Friendship.Block(ctx, c.UserID(), req.UserID)
	})

	dispatcher.Register(ws.OpUserUnblock, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Friendship.Unblock(ctx, c.UserID(), req.UserID)
	})

	// ─── Kanal / kategori yönetimi ───

	dispatcher.Register(ws.OpChannelCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateChannelRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Channel.CreateChannel(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpChannelUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ChannelID string `json:"channel_id"`
			models.UpdateChannelRequest
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.UpdateChannel(ctx, c.UserID(), req.ChannelID, &req.UpdateChannelRequest)
	})

	dispatcher.Register(ws.OpChannelDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.DeleteChannel(ctx, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpChannelReorder, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.ReorderRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.ReorderChannels(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpChannelMove, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.MoveChannelRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.MoveChannel(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpCategoryCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateCategoryRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Channel.CreateCategory(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpCategoryUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			CategoryID string `json:"category_id"`
			Name       string `json:"name"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.UpdateCategory(ctx, c.UserID(), req.CategoryID, req.Name)
	})

	dispatcher.Register(ws.OpCategoryDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			CategoryID string `json:"category_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.DeleteCategory(ctx, c.UserID(), req.CategoryID)
	})

	dispatcher.Register(ws.OpCategoryReorder, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.ReorderRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.ReorderCategories(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpOverrideSet, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.ChannelOverride
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.SetOverride(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpOverrideDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ChannelID   string                     `json:"channel_id"`
			SubjectKind models.OverrideSubjectKind `json:"subject_kind"`
			SubjectID   string                     `json:"subject_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Channel.DeleteOverride(ctx, c.UserID(), req.ChannelID, req.SubjectKind, req.SubjectID)
	})

	// ─── Sunucu yönetimi ───

	dispatcher.Register(ws.OpServerCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateServerRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Server.Create(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpServerUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ServerID string `json:"server_id"`
			models.UpdateServerRequest
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Update(ctx, c.UserID(), req.ServerID, &req.UpdateServerRequest)
	})

	dispatcher.Register(ws.OpServerDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ServerRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Delete(ctx, c.UserID(), req.ServerID)
	})

	dispatcher.Register(ws.OpServerLeave, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ServerRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Leave(ctx, c.UserID(), req.ServerID)
	})

	dispatcher.Register(ws.OpServerKick, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.TargetUserData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Kick(ctx, c.UserID(), req.ServerID, req.UserID)
	})

	dispatcher.Register(ws.OpServerBan, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.TargetUserData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Ban(ctx, c.UserID(), req.ServerID, req.UserID, req.Reason)
	})

	dispatcher.Register(ws.OpServerUnban, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.TargetUserData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Unban(ctx, c.UserID(), req.ServerID, req.UserID)
	})

	dispatcher.Register(ws.OpServerTimeout, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ServerID string `json:"server_id"`
			models.TimeoutRequest
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Timeout(ctx, c.UserID(), req.ServerID, &req.TimeoutRequest)
	})

	dispatcher.Register(ws.OpServerReorder, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			Items []models.PositionUpdate `json:"items"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Server.Reorder(ctx, c.UserID(), req.Items)
	})

	// ─── Roller ───

	dispatcher.Register(ws.OpRoleCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ServerID string `json:"server_id"`
			models.CreateRoleRequest
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Role.Create(ctx, c.UserID(), req.ServerID, &req.CreateRoleRequest)
		return err
	})

	dispatcher.Register(ws.OpRoleUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			RoleID string `json:"role_id"`
			models.UpdateRoleRequest
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Role.Update(ctx, c.UserID(), req.RoleID, &req.UpdateRoleRequest)
	})

	dispatcher.Register(ws.OpRoleDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			RoleID string `json:"role_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Role.Delete(ctx, c.UserID(), req.RoleID)
	})

	dispatcher.Register(ws.OpRoleReorder, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.ReorderRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Role.Reorder(ctx, c.UserID(), req.ServerID, req.Items)
	})

	dispatcher.Register(ws.OpMemberRoles, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ServerID string   `json:"server_id"`
			UserID   string   `json:"user_id"`
			RoleIDs  []string `json:"role_ids"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Role.SetMemberRoles(ctx, c.UserID(), req.ServerID, req.UserID, req.RoleIDs)
	})

	// ─── Davetler ───

	dispatcher.Register(ws.OpInviteCreate, ws.BucketInviteCreate, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateInviteRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		invite, err := svcs.Invite.Create(ctx, c.UserID(), &req)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpInviteCreated, Data: invite})
		return nil
	})

	dispatcher.Register(ws.OpInvitePeek, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.InviteRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		preview, err := svcs.Invite.Peek(ctx, req.InviteCode)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpInvitePreview, Data: preview})
		return nil
	})

	dispatcher.Register(ws.OpInviteUse, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.InviteRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		server, err := svcs.Invite.Use(ctx, c.UserID(), req.InviteCode)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpInviteJoined, Data: map[string]any{"server": server}})
		return nil
	})

	dispatcher.Register(ws.OpInviteRevoke, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.InviteRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := svcs.Invite.Revoke(ctx, c.UserID(), req.InviteCode); err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpInviteRevoked, Data: req})
		return nil
	})

	dispatcher.Register(ws.OpInviteList, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ServerRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		invites, err := svcs.Invite.List(ctx, c.UserID(), req.ServerID)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpInvites, Data: invites})
		return nil
	})

	// ─── Arkadaşlık ───

	dispatcher.Register(ws.OpFriendRequest, ws.BucketFriendRequest, func(c *ws.Client, data json.RawMessage) error {
		var req models.SendFriendRequestRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Friendship.SendRequest(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpFriendAccept, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.IDRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Friendship.Accept(ctx, c.UserID(), req.ID)
	})

	dispatcher.Register(ws.OpFriendReject, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.IDRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Friendship.Reject(ctx, c.UserID(), req.ID)
	})

	dispatcher.Register(ws.OpFriendRemove, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Friendship.Remove(ctx, c.UserID(), req.UserID)
	})

	// ─── DM ───

	dispatcher.Register(ws.OpDMCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateDMRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.DM.CreateDM(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpDMGroupCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateGroupDMRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.DM.CreateGroupDM(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpDMParticipantAdd, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ChannelID string `json:"channel_id"`
			UserID    string `json:"user_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.AddParticipant(ctx, c.UserID(), req.ChannelID, req.UserID)
	})

	dispatcher.Register(ws.OpDMParticipantRemove, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ChannelID string `json:"channel_id"`
			UserID    string `json:"user_id"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		if req.UserID == "" {
			req.UserID = c.UserID() // self-leave
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.RemoveParticipant(ctx, c.UserID(), req.ChannelID, req.UserID)
	})

	dispatcher.Register(ws.OpDMMarkRead, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.MarkReadRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.MarkRead(ctx, c.UserID(), &req)
	})

	dispatcher.Register(ws.OpDMArchive, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ChannelID string `json:"channel_id"`
			Archived  bool   `json:"archived"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.Archive(ctx, c.UserID(), req.ChannelID, req.Archived)
	})

	dispatcher.Register(ws.OpDMDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.Hide(ctx, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpDMRequestAccept, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.AcceptRequest(ctx, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpDMRequestReject, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.DM.RejectRequest(ctx, c.UserID(), req.ChannelID)
	})

	// ─── Voice ───

	dispatcher.Register(ws.OpVoiceJoin, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Voice.Join(ctx, c.ID, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpVoiceLeave, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		svcs.Voice.Leave(c.ID)
		return nil
	})

	dispatcher.Register(ws.OpVoiceMute, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.VoiceStateData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		svcs.Voice.SetMute(c.ID, req.IsMuted)
		return nil
	})

	dispatcher.Register(ws.OpVoiceDeafen, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.VoiceStateData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		svcs.Voice.SetDeafen(c.ID, req.IsDeafened)
		return nil
	})

	dispatcher.Register(ws.OpVoiceICEConfig, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ServerRefData
		_ = decodeInto(data, &req) // server_id opsiyonel — boşsa varsayılan profil
		ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
		defer cancel()

		c.SendEvent(ws.Event{Op: ws.OpVoiceICEServers, Data: map[string]any{
			"ice_servers": svcs.Voice.ICEConfig(ctx, req.ServerID),
		}})
		return nil
	})

	// Signaling relay'leri: hata dönüşü YOK — yetkisiz/geçersiz hedefler
	// sessizce düşer (oda topolojisi sızdırılmaz).
	relay := func(op string) ws.HandlerFunc {
		return func(c *ws.Client, data json.RawMessage) error {
			var req ws.SignalData
			if err := decodeInto(data, &req); err != nil {
				return nil
			}
			svcs.Voice.Relay(c.ID, op, req)
			return nil
		}
	}
	dispatcher.Register(ws.OpWebRTCOffer, ws.BucketNone, relay(ws.OpWebRTCOffer))
	dispatcher.Register(ws.OpWebRTCAnswer, ws.BucketNone, relay(ws.OpWebRTCAnswer))
	dispatcher.Register(ws.OpWebRTCICE, ws.BucketNone, relay(ws.OpWebRTCICE))

	dispatcher.Register(ws.OpScreenStart, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
		defer cancel()
		return svcs.Voice.ScreenStart(ctx, c.ID, req.ChannelID)
	})

	dispatcher.Register(ws.OpScreenStop, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		svcs.Voice.ScreenStop(c.ID)
		return nil
	})

	dispatcher.Register(ws.OpScreenWatch, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ScreenWatchData
		if err := decodeInto(data, &req); err != nil {
			return nil // sessiz drop
		}
		svcs.Voice.ScreenWatch(c.ID, req.SharerID)
		return nil
	})

	dispatcher.Register(ws.OpScreenUnwatch, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ScreenWatchData
		if err := decodeInto(data, &req); err != nil {
			return nil
		}
		svcs.Voice.ScreenUnwatch(c.ID, req.SharerID)
		return nil
	})

	dispatcher.Register(ws.OpDMCallStart, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Voice.CallStart(ctx, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpDMCallDecline, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Voice.CallDecline(ctx, c.UserID(), req.ChannelID)
	})

	dispatcher.Register(ws.OpDMCallEnd, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Voice.CallEnd(ctx, c.UserID(), req.ChannelID)
	})

	// ─── Webhook yönetimi ───

	dispatcher.Register(ws.OpWebhookCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateWebhookRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		webhook, err := svcs.Webhook.Create(ctx, c.UserID(), &req)
		if err != nil {
			return err
		}
		// Token SADECE bu yanıtta görünür.
		c.SendEvent(ws.Event{Op: ws.OpWebhookCreated, Data: webhook})
		return nil
	})

	dispatcher.Register(ws.OpWebhookDelete, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.IDRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := svcs.Webhook.Delete(ctx, c.UserID(), req.ID); err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpWebhookDeleted, Data: req})
		return nil
	})

	dispatcher.Register(ws.OpWebhookList, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ChannelRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		webhooks, err := svcs.Webhook.List(ctx, c.UserID(), req.ChannelID)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpWebhooks, Data: webhooks})
		return nil
	})

	// ─── Raporlar ───

	dispatcher.Register(ws.OpReportCreate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req models.CreateReportRequest
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		_, err := svcs.Report.Create(ctx, c.UserID(), &req)
		return err
	})

	dispatcher.Register(ws.OpReportList, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req ws.ServerRefData
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		reports, err := svcs.Report.List(ctx, c.UserID(), req.ServerID)
		if err != nil {
			return err
		}
		c.SendEvent(ws.Event{Op: ws.OpReports, Data: reports})
		return nil
	})

	dispatcher.Register(ws.OpReportUpdate, ws.BucketNone, func(c *ws.Client, data json.RawMessage) error {
		var req struct {
			ServerID string `json:"server_id"`
			ReportID string `json:"report_id"`
			Status   string `json:"status"`
		}
		if err := decodeInto(data, &req); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return svcs.Report.UpdateStatus(ctx, c.UserID(), req.ServerID, req.ReportID, models.ReportStatus(req.Status))
	})
}
