package repository

import (
	"context"
	"time"

	"maildigest-service/internal/domain/entity"
)

// ReportRepository defines the interface for report persistence. UpsertByDate
// must replace any existing report for the date atomically: old references
// deleted, new report and references inserted, all or nothing.
type ReportRepository interface {
	UpsertByDate(ctx context.Context, date time.Time, result *entity.GenerationResult, refs []*entity.EmailReference) (uint, error)
	GetByDate(ctx context.Context, date time.Time) (*entity.Report, error)
	ListReports(ctx context.Context, from, to *time.Time) ([]*entity.ReportSummary, error)
}
