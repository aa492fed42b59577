package usecase

import (
	"fmt"
	"strings"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/pkg/logger"
	"maildigest-service/templates"
)

// DefaultMaxConversations bounds how many ranked conversations one request
// may reference.
const DefaultMaxConversations = 50

// PromptComposer renders ranked conversations into a generation request.
type PromptComposer struct {
	maxConversations int
	logger           logger.Logger
}

// NewPromptComposer creates a composer; maxConversations <= 0 selects the
// default cap.
func NewPromptComposer(maxConversations int, logger logger.Logger) *PromptComposer {
	if maxConversations <= 0 {
		maxConversations = DefaultMaxConversations
	}
	return &PromptComposer{
		maxConversations: maxConversations,
		logger:           logger,
	}
}

// Compose builds the two-part payload for the generation service. The second
// return value is true when there is nothing to summarize and the caller
// must skip the generation call entirely.
func (c *PromptComposer) Compose(date time.Time, ranked []*entity.ScoredConversation) (*entity.GenerationRequest, bool) {
	if len(ranked) == 0 {
		c.logger.Info("No conversations for date, composing placeholder payload",
			"date", date.Format("2006-01-02"))
		return &entity.GenerationRequest{
			SystemPrompt: templates.EmptySystemPrompt,
			UserPrompt:   templates.EmptyUserPrompt,
			Schema:       templates.OutputSchema,
		}, true
	}

	included := ranked
	if len(included) > c.maxConversations {
		included = included[:c.maxConversations]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the email conversations of %s and produce the daily digest.\n\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "%d conversations follow.\n\n", len(included))

	for i, sc := range included {
		ctx := sc.Context
		fmt.Fprintf(&b, "### Conversation %d (thread %s)\n", i+1, ctx.ThreadID)
		fmt.Fprintf(&b, "Subject: %s\n", ctx.Subject)
		fmt.Fprintf(&b, "Priority: %s (score %.1f)\n", sc.Priority, sc.Score)
		fmt.Fprintf(&b, "Messages: %d\n", ctx.MessageCount())
		if ctx.Truncated {
			b.WriteString("Note: combined text truncated, older messages omitted\n")
		}
		fmt.Fprintf(&b, "Content:\n%s\n\n", ctx.CombinedText)
	}

	b.WriteString("Respond with a single JSON object matching this schema:\n")
	b.WriteString(templates.OutputSchema)
	b.WriteString("\n")

	c.logger.Info("Composed generation payload",
		"date", date.Format("2006-01-02"),
		"conversations", len(included),
		"dropped", len(ranked)-len(included),
		"promptChars", b.Len())

	return &entity.GenerationRequest{
		SystemPrompt: templates.SystemPrompt,
		UserPrompt:   b.String(),
		Schema:       templates.OutputSchema,
	}, false
}
