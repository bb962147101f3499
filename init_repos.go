// Package main — Repository wire-up.
//
// Tüm repository'ler tek DB bağlantısını paylaşır. Transaction gerektiren
// akışlar (sunucu provisioning, reorder) service katmanında WithTx ile
// Tx'li repo instance'ları kurar.
package main

import (
	"database/sql"

	"github.com/benerman/nexus/repository"
)

// Repos, repository instance'larını bir arada tutar.
type Repos struct {
	User      repository.UserRepository
	Session   repository.SessionRepository
	Server    repository.ServerRepository
	Role      repository.RoleRepository
	Category  repository.CategoryRepository
	Channel   repository.ChannelRepository
	Override  repository.OverrideRepository
	Message   repository.MessageRepository
	Reaction  repository.ReactionRepository
	ReadState repository.ReadStateRepository
	Invite    repository.InviteRepository
	Ban       repository.BanRepository
	Friend    repository.FriendshipRepository
	Block     repository.BlockRepository
	DM        repository.DMRepository
	Webhook   repository.WebhookRepository
	Report    repository.ReportRepository
}

// initRepos, tüm repository'leri oluşturur.
func initRepos(db *sql.DB) *Repos {
	return &Repos{
		User:      repository.NewSQLiteUserRepo(db),
		Session:   repository.NewSQLiteSessionRepo(db),
		Server:    repository.NewSQLiteServerRepo(db),
		Role:      repository.NewSQLiteRoleRepo(db),
		Category:  repository.NewSQLiteCategoryRepo(db),
		Channel:   repository.NewSQLiteChannelRepo(db),
		Override:  repository.NewSQLiteOverrideRepo(db),
		Message:   repository.NewSQLiteMessageRepo(db),
		Reaction:  repository.NewSQLiteReactionRepo(db),
		ReadState: repository.NewSQLiteReadStateRepo(db),
		Invite:    repository.NewSQLiteInviteRepo(db),
		Ban:       repository.NewSQLiteBanRepo(db),
		Friend:    repository.NewSQLiteFriendshipRepo(db),
		Block:     repository.NewSQLiteBlockRepo(db),
		DM:        repository.NewSQLiteDMRepo(db),
		Webhook:   repository.NewSQLiteWebhookRepo(db),
		Report:    repository.NewSQLiteReportRepo(db),
	}
}
