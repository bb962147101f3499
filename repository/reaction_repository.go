package repository

import (
	"context"

	"github.com/benerman/nexus/models"
)

// ReactionRepository, emoji tepki işlemleri için interface.
// (message_id, user_id, emoji) primary key'i sayesinde Add idempotent'tir.
type ReactionRepository interface {
	Add(ctx context.Context, messageID, userID, emoji string) error
	Remove(ctx context.Context, messageID, userID, emoji string) error
	ListByMessage(ctx context.Context, messageID string) ([]models.ReactionGroup, error)
}
