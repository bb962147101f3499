// Package services — ReportService: kullanıcı şikayetleri.
//
// Mesaj şikayetlerinde içerik snapshot alınır — mesaj sonradan silinse
// veya düzenlense bile şikayet incelenebilir kalır.
// Listeleme/karara bağlama viewReports yetkisi ister; yetki şikayetçinin
// belirttiği sunucu bağlamında çözülür.
package services

import (
	"context"
	"fmt"

	"github.com/benerman/nexus/models"
	"github.com/benerman/nexus/pkg"
	"github.com/benerman/nexus/repository"
	"github.com/benerman/nexus/ws"
)

// ReportService, şikayet operasyonları için public interface.
type ReportService interface {
	Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error)
	List(ctx context.Context, userID, serverID string) ([]models.Report, error)
	UpdateStatus(ctx context.Context, userID, serverID, reportID string, status models.ReportStatus) error
}

type reportService struct {
	reportRepo  repository.ReportRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	perms       PermissionService
	hub         ws.Broadcaster
}

// NewReportService, constructor.
func NewReportService(
	reportRepo repository.ReportRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	perms PermissionService,
	hub ws.Broadcaster,
) ReportService {
	return &reportService{
		reportRepo:  reportRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		perms:       perms,
		hub:         hub,
	}
}

func (s *reportService) Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if req.ReportedUserID == reporterID {
		return nil, fmt.Errorf("%w: cannot report yourself", pkg.ErrBadRequest)
	}
	if _, err := s.userRepo.GetByID(ctx, req.ReportedUserID); err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID:     reporterID,
		ReportedUserID: req.ReportedUserID,
		Type:           models.ReportType(req.Type),
		Description:    req.Description,
	}

	// Mesaj şikayeti: içerik + kanal snapshot'lanır.
	if req.MessageID != nil {
		message, err := s.messageRepo.GetByID(ctx, *req.MessageID)
		if err != nil {
			return nil, fmt.Errorf("%w: reported message not found", pkg.ErrBadRequest)
		}
		report.MessageID = req.MessageID
		report.MessageContent = &message.Content
		report.MessageChannelID = &message.ChannelID
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.hub.EmitToUser(reporterID, ws.Event{Op: ws.OpReportCreated, Data: map[string]string{"id": report.ID}})
	return report, nil
}

func (s *reportService) List(ctx context.Context, userID, serverID string) ([]models.Report, error) {
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermViewReports); err != nil {
		return nil, err
	}
	return s.reportRepo.ListOpen(ctx)
}

func (s *reportService) UpdateStatus(ctx context.Context, userID, serverID, reportID string, status models.ReportStatus) error {
	switch status {
	case models.ReportStatusOpen, models.ReportStatusReviewed, models.ReportStatusDismissed:
	default:
		return fmt.Errorf("%w: invalid report status", pkg.ErrBadRequest)
	}
	if err := s.perms.RequireInServer(ctx, userID, serverID, models.PermViewReports); err != nil {
		return err
	}
	if err := s.reportRepo.UpdateStatus(ctx, reportID, status); err != nil {
		return err
	}
	s.hub.EmitToUser(userID, ws.Event{Op: ws.OpReportUpdated, Data: map[string]string{
		"id":     reportID,
		"status": string(status),
	}})
	return nil
}
