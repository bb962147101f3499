package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benerman/nexus/database"
	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/google/uuid"
)

type sqliteCategoryRepo struct {
	db database.TxQuerier
}

// NewSQLiteCategoryRepo, constructor.
func NewSQLiteCategoryRepo(db database.TxQuerier) CategoryRepository {
	return &sqliteCategoryRepo{db: db}
}

func (r *sqliteCategoryRepo) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO categories (id, server_id, name, position)
		VALUES (?, ?, ?, ?)
		RETURNING created_at`,
		category.ID, category.ServerID, category.Name, category.Position,
	).Scan(&category.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *sqliteCategoryRepo) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, server_id, name, position, created_at
		FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.ServerID, &c.Name, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *sqliteCategoryRepo) ListCategoriesByServer(ctx context.Context, serverID string) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_id, name, position, created_at
		FROM categories WHERE server_id = ?
		ORDER BY position, created_at`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *sqliteCategoryRepo) UpdateCategory(ctx context.Context, category *models.Category) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?`, category.Name, category.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (r *sqliteCategoryRepo) DeleteCategory(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (r *sqliteCategoryRepo) ReorderCategories(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	for _, item := range items {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE categories SET position = ? WHERE id = ? AND server_id = ?`,
			item.Position, item.ID, serverID); err != nil {
			return fmt.Errorf("failed to reorder categories: %w", err)
		}
	}
	return nil
}
