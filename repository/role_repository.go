package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// RoleRepository, rol ve rol ataması işlemleri için interface.
// @everyone rolü is_everyone=1 işaretlidir; silinemez, position'ı 0'dır —
// bu kurallar service katmanında uygulanır.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetEveryoneRole(ctx context.Context, serverID string) (*models.Role, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, serverID string, items []models.PositionUpdate) error

	AssignToUser(ctx context.Context, userID, roleID, serverID string) error
	RemoveFromUser(ctx context.Context, userID, roleID string) error
	// GetByUserAndServer, kullanıcının o sunucudaki rollerini döner —
	// @everyone rolü her üyede örtük olarak vardır ve sonuca dahildir.
	GetByUserAndServer(ctx context.Context, userID, serverID string) ([]models.Role, error)
	// ListMembersWithRole, bir role sahip kullanıcı ID'lerini döner (mention fan-out).
	ListMembersWithRole(ctx context.Context, roleID string) ([]string, error)
}
