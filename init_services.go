// Package main — Service wire-up.
//
// Oluşturma sırası bağımlılık sırasıdır: PermissionService çoğu service'in
// girdisidir; ChannelService snapshot broadcast'i ServerService ve
// RoleService tarafından da kullanılır; MessageService WebhookService'in
// fan-out yoludur.
package main

import (
	"database/sql"

	"github.com/benerman/nexus/config"
	"github.com/benerman/nexus/services"
	"github.com/benerman/nexus/ws"
)

// Services, service instance'larını bir arada tutar.
type Services struct {
	Auth       services.AuthService
	Perms      services.PermissionService
	User       services.UserService
	Message    services.MessageService
	Channel    services.ChannelService
	Server     services.ServerService
	Role       services.RoleService
	Invite     services.InviteService
	Friendship services.FriendshipService
	DM         services.DMService
	Voice      services.VoiceService
	Webhook    services.WebhookService
	Report     services.ReportService
}

// initServices, tüm service'leri oluşturur.
func initServices(db *sql.DB, cfg *config.Config, repos *Repos, hub *ws.Hub) *Services {
	perms := services.NewPermissionService(repos.Server, repos.Role, repos.Override)

	auth := services.NewAuthService(repos.User, repos.Session, repos.Server,
		cfg.JWT.Secret, cfg.JWT.ExpiryDays)

	user := services.NewUserService(repos.User, repos.Server, hub)

	message := services.NewMessageService(repos.Message, repos.Reaction, repos.Channel,
		repos.Server, repos.Role, repos.DM, repos.Block, perms, hub)

	channel := services.NewChannelService(db, repos.Channel, repos.Category,
		repos.Server, repos.Role, repos.Override, perms, hub)

	server := services.NewServerService(db, repos.Server, repos.Role, repos.Channel,
		repos.Category, repos.Ban, perms, channel, hub)

	role := services.NewRoleService(db, repos.Role, repos.Server, perms, channel)

	invite := services.NewInviteService(repos.Invite, repos.Server, repos.Ban, perms, server)

	friendship := services.NewFriendshipService(repos.Friend, repos.Block, repos.User, hub)

	dm := services.NewDMService(repos.DM, repos.Channel, repos.Server, repos.User,
		repos.Friend, repos.Block, repos.Message, repos.ReadState, hub)

	voice := services.NewVoiceService(repos.Channel, repos.DM, repos.Block, repos.User,
		perms, cfg.Voice, hub)

	webhook := services.NewWebhookService(repos.Webhook, repos.Channel, perms, message)

	report := services.NewReportService(repos.Report, repos.Message, repos.User, perms, hub)

	return &Services{
		Auth:       auth,
		Perms:      perms,
		User:       user,
		Message:    message,
		Channel:    channel,
		Server:     server,
		Role:       role,
		Invite:     invite,
		Friendship: friendship,
		DM:         dm,
		Voice:      voice,
		Webhook:    webhook,
		Report:     report,
	}
}
