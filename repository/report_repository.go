package repository

import (
	"context"

	"github.com/glimsocial/glim/models"
)

// ReportRepository stores content reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
}
