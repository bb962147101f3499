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

type sqliteReportRepo struct {
	db database.TxQuerier
}

// NewSQLiteReportRepo, constructor.
func NewSQLiteReportRepo(db database.TxQuerier) ReportRepository {
	return &sqliteReportRepo{db: db}
}

const reportColumns = `id, reporter_id, reported_user_id, message_id, message_content, message_channel_id, type, description, status, created_at`

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	rep := &models.Report{}
	err := row.Scan(&rep.ID, &rep.ReporterID, &rep.ReportedUserID,
		&rep.MessageID, &rep.MessageContent, &rep.MessageChannelID,
		&rep.Type, &rep.Description, &rep.Status, &rep.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *sqliteReportRepo) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusOpen
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, reporter_id, reported_user_id, message_id, message_content, message_channel_id, type, description, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at`,
		report.ID, report.ReporterID, report.ReportedUserID,
		report.MessageID, report.MessageContent, report.MessageChannelID,
		report.Type, report.Description, report.Status,
	).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *sqliteReportRepo) GetByID(ctx context.Context, id string) (*models.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rep, nil
}

func (r *sqliteReportRepo) ListOpen(ctx context.Context) ([]models.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE status = 'open' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}

func (r *sqliteReportRepo) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reports SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
