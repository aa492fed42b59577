package usecase

import (
	"context"
	"fmt"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/logger"
)

const gmailDeepLinkBase = "https://mail.google.com/mail/u/0/#inbox/"

// ReportAssembler turns a validated generation result plus its source
// conversations into the persisted daily report.
type ReportAssembler struct {
	reportRepo repository.ReportRepository
	logger     logger.Logger
}

// NewReportAssembler creates a new report assembler
func NewReportAssembler(reportRepo repository.ReportRepository, logger logger.Logger) *ReportAssembler {
	return &ReportAssembler{
		reportRepo: reportRepo,
		logger:     logger,
	}
}

// BuildReferences maps conversations to one reference per underlying
// message, preserving deep-link granularity. Order follows the ranked
// conversation order, then message order within each thread.
func (a *ReportAssembler) BuildReferences(contexts []*entity.ConversationContext) []*entity.EmailReference {
	refs := make([]*entity.EmailReference, 0)
	for _, ctx := range contexts {
		for _, msg := range ctx.MessagesOrdered {
			refs = append(refs, &entity.EmailReference{
				MessageID: msg.MessageID,
				ThreadID:  msg.ThreadID,
				Subject:   msg.Subject,
				Sender:    msg.SenderAddr,
				Snippet:   msg.Snippet,
				DeepLink:  gmailDeepLinkBase + msg.MessageID,
			})
		}
	}
	return refs
}

// Persist writes the report for the date, replacing any previous report and
// its references atomically.
func (a *ReportAssembler) Persist(ctx context.Context, date time.Time, result *entity.GenerationResult, contexts []*entity.ConversationContext) (uint, error) {
	refs := a.BuildReferences(contexts)

	reportID, err := a.reportRepo.UpsertByDate(ctx, date, result, refs)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert report: %w", err)
	}

	a.logger.Info("Report persisted",
		"reportId", reportID,
		"date", date.Format("2006-01-02"),
		"highlights", len(result.Highlights),
		"references", len(refs))

	return reportID, nil
}
