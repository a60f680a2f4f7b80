package services

import (
	"context"
	"log"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg/validate"
	"github.com/glimsocial/glim/repository"
)

// ReportService records content reports and alerts the admins.
type ReportService interface {
	Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
	userRepo   repository.UserRepository
	notifier   NotificationService
}

// NewReportService builds a ReportService.
func NewReportService(
	reportRepo repository.ReportRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) ReportService {
	return &reportService{reportRepo: reportRepo, userRepo: userRepo, notifier: notifier}
}

func (s *reportService) Create(ctx context.Context, reporterID string, req *models.CreateReportRequest) (*models.Report, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	reporter, err := s.userRepo.GetByID(ctx, reporterID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		ReporterID: reporterID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyAdmins(ctx, NotifyInput{
		Type:    models.NotificationReport,
		ActorID: reporterID,
		Params:  map[string]string{"target": req.TargetType},
		Data: models.NotificationData{
			ActorID:       reporterID,
			ActorUsername: reporter.Username,
			ReportID:      report.ID,
		},
	}); err != nil {
		log.Printf("[notify] report fan-out failed: %v", err)
	}

	return report, nil
}
