package repository

import (
	"context"
	"time"

	"maildigest-service/internal/domain/entity"
)

// MessageLogRepository defines the interface for the canonical-message
// archive: the record of what a day's report was built from.
type MessageLogRepository interface {
	SaveBatch(ctx context.Context, reportDate time.Time, messages []*entity.CanonicalMessage) error
	FindByReportDate(ctx context.Context, reportDate time.Time) ([]*entity.CanonicalMessage, error)
}
