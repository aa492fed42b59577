package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReportRepository implements the ReportRepository interface
type GormReportRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormReportRepository creates a new GORM report repository and ensures
// the schema exists.
func NewGormReportRepository(db *gorm.DB, logger logger.Logger) (repository.ReportRepository, error) {
	if err := db.AutoMigrate(&Reports{}, &EmailReferences{}); err != nil {
		return nil, fmt.Errorf("failed to migrate report schema: %w", err)
	}
	return &GormReportRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Reports GORM model for database mapping
type Reports struct {
	ID          uint      `gorm:"primaryKey"`
	ReportDate  time.Time `gorm:"column:report_date;uniqueIndex"`
	SummaryJSON string    `gorm:"column:summary_json;type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (Reports) TableName() string {
	return "reports"
}

// EmailReferences GORM model for database mapping
type EmailReferences struct {
	ID        uint   `gorm:"primaryKey"`
	ReportID  uint   `gorm:"column:report_id;index"`
	Position  int    `gorm:"column:position"`
	MessageID string `gorm:"column:message_id;size:255"`
	ThreadID  string `gorm:"column:thread_id;size:255"`
	Subject   string `gorm:"column:subject;size:500"`
	Sender    string `gorm:"column:sender;size:255"`
	Snippet   string `gorm:"column:snippet;type:text"`
	DeepLink  string `gorm:"column:deep_link;size:500"`
}

// TableName overrides the default table name
func (EmailReferences) TableName() string {
	return "email_references"
}

func reportDay(date time.Time) time.Time {
	return date.UTC().Truncate(24 * time.Hour)
}

// reportConflictUpdate turns the insert into a native upsert on the
// report_date unique index. Concurrent runs for one date serialize on the
// conflicting row instead of the loser failing on the index.
func reportConflictUpdate() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary_json", "updated_at"}),
	}
}

// UpsertByDate replaces the report for a date in one transaction: the report
// row is upserted on the date key, old references are deleted, and the new
// references are inserted together.
func (r *GormReportRepository) UpsertByDate(ctx context.Context, date time.Time, result *entity.GenerationResult, refs []*entity.EmailReference) (uint, error) {
	day := reportDay(date)

	summary, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal generation result: %w", err)
	}

	var reportID uint
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := Reports{
			ReportDate:  day,
			SummaryJSON: string(summary),
		}
		if err := tx.Clauses(reportConflictUpdate()).Create(&record).Error; err != nil {
			return err
		}
		reportID = record.ID

		if err := tx.Where("report_id = ?", reportID).Delete(&EmailReferences{}).Error; err != nil {
			return err
		}

		if len(refs) == 0 {
			return nil
		}

		rows := make([]EmailReferences, 0, len(refs))
		for i, ref := range refs {
			rows = append(rows, EmailReferences{
				ReportID:  reportID,
				Position:  i,
				MessageID: ref.MessageID,
				ThreadID:  ref.ThreadID,
				Subject:   ref.Subject,
				Sender:    ref.Sender,
				Snippet:   ref.Snippet,
				DeepLink:  ref.DeepLink,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert report for %s: %w", day.Format("2006-01-02"), err)
	}

	r.logger.Info("Report upserted",
		"reportId", reportID,
		"date", day.Format("2006-01-02"),
		"references", len(refs))

	return reportID, nil
}

// GetByDate returns the report for a date with its references, or nil when
// no report exists.
func (r *GormReportRepository) GetByDate(ctx context.Context, date time.Time) (*entity.Report, error) {
	day := reportDay(date)

	var record Reports
	res := r.db.WithContext(ctx).Where("report_date = ?", day).First(&record)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}

	var rows []EmailReferences
	if err := r.db.WithContext(ctx).
		Where("report_id = ?", record.ID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return toReportEntity(&record, rows)
}

// ListReports returns report summaries in the date range, newest first. Nil
// bounds leave that side of the range open.
func (r *GormReportRepository) ListReports(ctx context.Context, from, to *time.Time) ([]*entity.ReportSummary, error) {
	query := r.db.WithContext(ctx).Model(&Reports{})
	if from != nil {
		query = query.Where("report_date >= ?", reportDay(*from))
	}
	if to != nil {
		query = query.Where("report_date <= ?", reportDay(*to))
	}

	var records []Reports
	if err := query.Order("report_date DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	summaries := make([]*entity.ReportSummary, 0, len(records))
	for _, record := range records {
		var result entity.GenerationResult
		if err := json.Unmarshal([]byte(record.SummaryJSON), &result); err != nil {
			r.logger.Warn("Skipping report with unreadable summary", "reportId", record.ID, "error", err)
			continue
		}

		var refCount int64
		if err := r.db.WithContext(ctx).Model(&EmailReferences{}).
			Where("report_id = ?", record.ID).
			Count(&refCount).Error; err != nil {
			return nil, err
		}

		summaries = append(summaries, &entity.ReportSummary{
			ID:             record.ID,
			ReportDate:     record.ReportDate,
			HighlightCount: len(result.Highlights),
			ReferenceCount: int(refCount),
			CreatedAt:      record.CreatedAt,
			UpdatedAt:      record.UpdatedAt,
		})
	}

	return summaries, nil
}

func toReportEntity(record *Reports, rows []EmailReferences) (*entity.Report, error) {
	var result entity.GenerationResult
	if err := json.Unmarshal([]byte(record.SummaryJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report summary: %w", err)
	}

	refs := make([]*entity.EmailReference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, &entity.EmailReference{
			MessageID: row.MessageID,
			ThreadID:  row.ThreadID,
			Subject:   row.Subject,
			Sender:    row.Sender,
			Snippet:   row.Snippet,
			DeepLink:  row.DeepLink,
		})
	}

	return &entity.Report{
		ID:         record.ID,
		ReportDate: record.ReportDate,
		Result:     &result,
		References: refs,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}, nil
}
