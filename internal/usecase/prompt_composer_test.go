package usecase

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/templates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedConversation(thread string, score float64) *entity.ScoredConversation {
	return &entity.ScoredConversation{
		Context: &entity.ConversationContext{
			ThreadID: thread,
			Subject:  "subject " + thread,
			MessagesOrdered: []*entity.CanonicalMessage{
				{MessageID: thread + "-m1", ThreadID: thread, Body: "body"},
			},
			CombinedText: "1. From a@example.com at 2025-03-10T09:00:00Z: body",
		},
		Score:    score,
		Priority: entity.PriorityMedium,
	}
}

func TestComposeEmptyInputSkipsGeneration(t *testing.T) {
	c := NewPromptComposer(0, testLogger())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	request, skip := c.Compose(date, nil)

	assert.True(t, skip)
	require.NotNil(t, request)
	assert.Equal(t, templates.EmptySystemPrompt, request.SystemPrompt)
	assert.Equal(t, templates.EmptyUserPrompt, request.UserPrompt)
}

func TestComposeIncludesConversations(t *testing.T) {
	c := NewPromptComposer(0, testLogger())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ranked := []*entity.ScoredConversation{
		rankedConversation("t-1", 25),
		rankedConversation("t-2", 12),
	}

	request, skip := c.Compose(date, ranked)

	assert.False(t, skip)
	assert.Equal(t, templates.SystemPrompt, request.SystemPrompt)
	assert.Contains(t, request.UserPrompt, "2025-03-10")
	assert.Contains(t, request.UserPrompt, "2 conversations follow")
	assert.Contains(t, request.UserPrompt, "thread t-1")
	assert.Contains(t, request.UserPrompt, "thread t-2")
	assert.Contains(t, request.UserPrompt, "subject t-1")
	// Schema rides along in the prompt and on the request.
	assert.Contains(t, request.UserPrompt, "highlights")
	assert.Equal(t, templates.OutputSchema, request.Schema)
}

func TestComposeRankedOrderPreserved(t *testing.T) {
	c := NewPromptComposer(0, testLogger())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ranked := []*entity.ScoredConversation{
		rankedConversation("t-urgent", 30),
		rankedConversation("t-later", 5),
	}

	request, _ := c.Compose(date, ranked)

	urgent := strings.Index(request.UserPrompt, "thread t-urgent")
	later := strings.Index(request.UserPrompt, "thread t-later")
	assert.True(t, urgent >= 0 && later >= 0 && urgent < later)
}

func TestComposeCapsConversations(t *testing.T) {
	c := NewPromptComposer(3, testLogger())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ranked := make([]*entity.ScoredConversation, 0, 10)
	for i := 0; i < 10; i++ {
		ranked = append(ranked, rankedConversation(fmt.Sprintf("t-%02d", i), float64(10-i)))
	}

	request, skip := c.Compose(date, ranked)

	assert.False(t, skip)
	assert.Contains(t, request.UserPrompt, "3 conversations follow")
	assert.Contains(t, request.UserPrompt, "thread t-02")
	assert.NotContains(t, request.UserPrompt, "thread t-03")
}

func TestComposeMarksTruncatedThreads(t *testing.T) {
	c := NewPromptComposer(0, testLogger())
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	sc := rankedConversation("t-1", 10)
	sc.Context.Truncated = true

	request, _ := c.Compose(date, []*entity.ScoredConversation{sc})
	assert.Contains(t, request.UserPrompt, "combined text truncated")
}
