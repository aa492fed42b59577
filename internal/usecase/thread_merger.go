package usecase

import (
	"fmt"
	"sort"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/pkg/logger"
)

// DefaultCombinedTextMax bounds a thread's combined text when no cap is
// configured.
const DefaultCombinedTextMax = 4000

const combinedTextDelimiter = "\n---\n"

// ThreadMerger groups canonical messages by thread id and builds one
// bounded-length combined text per thread. The ordered message list is never
// truncated, only the combined text.
type ThreadMerger struct {
	maxCombined int
	logger      logger.Logger
}

// NewThreadMerger creates a new thread merger; maxCombined <= 0 selects the
// default cap.
func NewThreadMerger(maxCombined int, logger logger.Logger) *ThreadMerger {
	if maxCombined <= 0 {
		maxCombined = DefaultCombinedTextMax
	}
	return &ThreadMerger{
		maxCombined: maxCombined,
		logger:      logger,
	}
}

// Merge groups messages into conversation contexts. The returned collection
// is unordered across threads; callers rank it afterwards.
func (m *ThreadMerger) Merge(messages []*entity.CanonicalMessage) []*entity.ConversationContext {
	if len(messages) == 0 {
		return nil
	}

	groups := make(map[string][]*entity.CanonicalMessage)
	order := make([]string, 0)
	for _, msg := range messages {
		if _, seen := groups[msg.ThreadID]; !seen {
			order = append(order, msg.ThreadID)
		}
		groups[msg.ThreadID] = append(groups[msg.ThreadID], msg)
	}

	contexts := make([]*entity.ConversationContext, 0, len(groups))
	for _, threadID := range order {
		contexts = append(contexts, m.buildContext(threadID, groups[threadID]))
	}

	m.logger.Info("Merged messages into threads",
		"messages", len(messages),
		"threads", len(contexts))

	return contexts
}

func (m *ThreadMerger) buildContext(threadID string, msgs []*entity.CanonicalMessage) *entity.ConversationContext {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].ReceivedAt.Equal(msgs[j].ReceivedAt) {
			return msgs[i].MessageID < msgs[j].MessageID
		}
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})

	participants := make([]string, 0)
	seen := make(map[string]bool)
	var latest time.Time
	for _, msg := range msgs {
		for _, addr := range []string{msg.SenderAddr, msg.To} {
			if addr != "" && !seen[addr] {
				seen[addr] = true
				participants = append(participants, addr)
			}
		}
		if msg.ReceivedAt.After(latest) {
			latest = msg.ReceivedAt
		}
	}
	sort.Strings(participants)

	combined, truncated := m.combineText(msgs)
	if truncated {
		m.logger.Debug("Combined text truncated at message boundary",
			"threadId", threadID,
			"messages", len(msgs))
	}

	return &entity.ConversationContext{
		ThreadID:        threadID,
		Subject:         msgs[0].Subject,
		MessagesOrdered: msgs,
		CombinedText:    combined,
		Truncated:       truncated,
		Participants:    participants,
		LatestAt:        latest,
	}
}

// combineText renders messages as numbered entries separated by a delimiter
// line, stopping at the message boundary before the cap would be crossed.
func (m *ThreadMerger) combineText(msgs []*entity.CanonicalMessage) (string, bool) {
	var combined string
	for i, msg := range msgs {
		sender := msg.SenderName
		if sender == "" {
			sender = msg.SenderAddr
		}
		if sender == "" {
			sender = "unknown"
		}
		entry := fmt.Sprintf("%d. From %s at %s: %s",
			i+1, sender, msg.ReceivedAt.Format(time.RFC3339), msg.Body)

		next := entry
		if combined != "" {
			next = combined + combinedTextDelimiter + entry
		}
		if len(next) > m.maxCombined {
			return combined, true
		}
		combined = next
	}
	return combined, false
}
