package repository

import (
	"context"
	"fmt"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
)

type sqliteReportRepo struct {
	db database.TxQuerier
}

// NewSQLiteReportRepo returns a ReportRepository over db.
func NewSQLiteReportRepo(db database.TxQuerier) ReportRepository {
	return &sqliteReportRepo{db: db}
}

func (r *sqliteReportRepo) Create(ctx context.Context, report *models.Report) error {
	report.ID = newID()
	report.CreatedAt = timeNowUTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, target_type, target_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.ReporterID, report.TargetType, report.TargetID, report.Reason, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}
