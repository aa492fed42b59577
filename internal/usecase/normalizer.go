package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/pkg/logger"
	"maildigest-service/pkg/utils"
)

var replyPrefixPattern = regexp.MustCompile(`(?i)^(re|fwd?|fw):\s*`)

// Normalizer converts raw messages into canonical ones. It never fails
// terminally: a body that cannot be parsed falls back to the snippet with
// ParseFailed set.
type Normalizer struct {
	logger logger.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(logger logger.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize produces the canonical form of one raw message.
func (n *Normalizer) Normalize(raw *entity.RawMessage) *entity.CanonicalMessage {
	msg := &entity.CanonicalMessage{
		MessageID:    raw.MessageID,
		ThreadID:     raw.ThreadID,
		Subject:      CleanSubject(raw.Subject),
		SenderAddr:   utils.ExtractAddress(raw.From),
		SenderName:   utils.ExtractDisplayName(raw.From),
		SenderDomain: utils.ExtractDomain(raw.From),
		To:           utils.ExtractAddress(raw.To),
		ReceivedAt:   raw.ReceivedAt.UTC(),
		Snippet:      utils.CollapseWhitespace(raw.Snippet),
		Labels:       raw.Labels,
	}

	source := raw.HTMLBody
	if source == "" {
		source = raw.Body
	}

	if source == "" {
		msg.Body = msg.Snippet
	} else {
		text, err := utils.ExtractText(source)
		if err != nil {
			n.logger.Warn("Failed to parse message body, using snippet",
				"messageId", raw.MessageID,
				"bodyChars", len(source),
				"error", err)
			msg.Body = msg.Snippet
			msg.ParseFailed = true
		} else if text == "" {
			msg.Body = msg.Snippet
		} else {
			msg.Body = text
		}
	}

	msg.Lang = detectLang(msg.Subject + " " + msg.Body)
	return msg
}

// NormalizeBatch normalizes a slice of raw messages in input order.
func (n *Normalizer) NormalizeBatch(raws []*entity.RawMessage) []*entity.CanonicalMessage {
	out := make([]*entity.CanonicalMessage, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw))
	}
	return out
}

// CleanSubject strips repeated leading reply and forward markers.
func CleanSubject(subject string) string {
	s := utils.CollapseWhitespace(subject)
	for {
		stripped := replyPrefixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	if s == "" {
		return "(no subject)"
	}
	return s
}

func detectLang(text string) string {
	if text == "" {
		return ""
	}
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return "zh"
		}
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return "en"
}
