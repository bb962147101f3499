package repository

import (
	"context"
	"time"

	"github.com/benerman/nexus/models"
)

// ServerRepository, sunucu ve üyelik işlemleri için interface.
//
// Personal sunucu da normal bir servers satırıdır (is_personal=1);
// GetPersonalServer ile erişilir. DM kanalları onun altında yaşar.
type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, id string) (*models.Server, error)
	GetPersonalServer(ctx context.Context, ownerID string) (*models.Server, error)
	Update(ctx context.Context, server *models.Server) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	TransferOwnership(ctx context.Context, serverID, newOwnerID string) error
	UpdateIcon(ctx context.Context, serverID, iconURL string) error

	// Üyelik işlemleri
	AddMember(ctx context.Context, serverID, userID string) error
	RemoveMember(ctx context.Context, serverID, userID string) error
	IsMember(ctx context.Context, serverID, userID string) (bool, error)
	GetMembership(ctx context.Context, serverID, userID string) (*models.Membership, error)
	ListMembers(ctx context.Context, serverID string) ([]models.Member, error)
	ListMemberIDs(ctx context.Context, serverID string) ([]string, error)
	MemberCount(ctx context.Context, serverID string) (int, error)
	ListServersOfUser(ctx context.Context, userID string) ([]models.Server, error)
	SetTimeout(ctx context.Context, serverID, userID string, until *time.Time) error
	// LongestJoinedAdmin, owner devri için en eski katılımlı admin üyeyi döner
	// (owner hariç). Aday yoksa pkg.ErrNotFound.
	LongestJoinedAdmin(ctx context.Context, serverID, excludeUserID string) (string, error)
	ReorderForUser(ctx context.Context, userID string, items []models.PositionUpdate) error
}
