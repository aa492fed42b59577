package repository

import (
	"context"
	"time"

	"maildigest-service/internal/domain/entity"
)

// MailQuery narrows a fetch to a date window plus optional filters. The mail
// source is expected to handle pagination and rate limits itself.
type MailQuery struct {
	From        time.Time
	To          time.Time
	UnreadOnly  bool
	StarredOnly bool
	Sender      string
	Keyword     string
	MaxResults  int64
}

// MailRepository defines the interface for fetching raw messages from the
// mail source.
type MailRepository interface {
	FetchMessages(ctx context.Context, query MailQuery) ([]*entity.RawMessage, error)
}
