package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/internal/domain/repository"
	"maildigest-service/pkg/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailMailRepository implements the MailRepository interface against the
// Gmail API. Pagination and rate limiting are handled here so the pipeline
// sees one flat, complete message list.
type GmailMailRepository struct {
	gmailService *gmail.Service
	logger       logger.Logger
}

// NewGmailMailRepository creates a new Gmail mail repository
func NewGmailMailRepository(ctx context.Context, tokenSource oauth2.TokenSource, logger logger.Logger) (*GmailMailRepository, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &GmailMailRepository{
		gmailService: service,
		logger:       logger,
	}, nil
}

// FetchMessages returns the raw messages matching the query, fully paginated.
func (s *GmailMailRepository) FetchMessages(ctx context.Context, query repository.MailQuery) ([]*entity.RawMessage, error) {
	q := buildQuery(query)
	s.logger.Info("Fetching messages from Gmail",
		"from", query.From.Format("2006/01/02"),
		"to", query.To.Format("2006/01/02"),
		"maxResults", query.MaxResults)

	var ids []string
	pageToken := ""
	for {
		req := s.gmailService.Users.Messages.List("me").Q(q).Context(ctx)
		if query.MaxResults > 0 {
			req = req.MaxResults(query.MaxResults)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		resp, err := req.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, msg := range resp.Messages {
			ids = append(ids, msg.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || (query.MaxResults > 0 && int64(len(ids)) >= query.MaxResults) {
			break
		}
	}
	if query.MaxResults > 0 && int64(len(ids)) > query.MaxResults {
		ids = ids[:query.MaxResults]
	}

	messages := make([]*entity.RawMessage, 0, len(ids))
	for _, id := range ids {
		fullMsg, err := s.gmailService.Users.Messages.Get("me", id).Context(ctx).Do()
		if err != nil {
			s.logger.Error("Failed to get message", "msgId", id, "error", err)
			continue
		}
		messages = append(messages, convertToRawMessage(fullMsg))
	}

	s.logger.Info("Gmail fetch completed", "listed", len(ids), "fetched", len(messages))
	return messages, nil
}

// buildQuery renders a MailQuery as a Gmail search expression.
func buildQuery(query repository.MailQuery) string {
	terms := []string{
		fmt.Sprintf("after:%s", query.From.Format("2006/01/02")),
		fmt.Sprintf("before:%s", query.To.Format("2006/01/02")),
	}
	if query.UnreadOnly {
		terms = append(terms, "is:unread")
	}
	if query.StarredOnly {
		terms = append(terms, "is:starred")
	}
	if query.Sender != "" {
		terms = append(terms, fmt.Sprintf("from:%s", query.Sender))
	}
	if query.Keyword != "" {
		terms = append(terms, fmt.Sprintf("%q", query.Keyword))
	}
	return strings.Join(terms, " ")
}

// convertToRawMessage converts a Gmail message to the domain entity
func convertToRawMessage(msg *gmail.Message) *entity.RawMessage {
	raw := &entity.RawMessage{
		MessageID:  msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		Labels:     msg.LabelIds,
		ReceivedAt: time.Unix(0, msg.InternalDate*int64(time.Millisecond)),
	}

	if msg.Payload == nil {
		return raw
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			raw.From = header.Value
		case "To":
			raw.To = header.Value
		case "Subject":
			raw.Subject = header.Value
		}
	}

	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(msg.Payload.Body.Data); err == nil {
			if msg.Payload.MimeType == "text/html" {
				raw.HTMLBody = string(data)
			} else {
				raw.Body = string(data)
			}
		}
	}

	collectParts(msg.Payload.Parts, raw)
	return raw
}

// collectParts walks a multipart payload for the text bodies.
func collectParts(parts []*gmail.MessagePart, raw *entity.RawMessage) {
	for _, part := range parts {
		if part.Body != nil && part.Body.Data != "" {
			data, err := base64.URLEncoding.DecodeString(part.Body.Data)
			if err == nil {
				switch part.MimeType {
				case "text/plain":
					if raw.Body == "" {
						raw.Body = string(data)
					}
				case "text/html":
					if raw.HTMLBody == "" {
						raw.HTMLBody = string(data)
					}
				}
			}
		}
		collectParts(part.Parts, raw)
	}
}
