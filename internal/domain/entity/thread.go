package entity

import (
	"time"
)

// Priority labels derived from an importance score.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ConversationContext is one mail thread: every canonical message that shares
// a thread id, ordered ascending by timestamp, plus a bounded combined text
// for prompting. MessagesOrdered always holds all messages even when
// CombinedText was truncated.
type ConversationContext struct {
	ThreadID        string
	Subject         string
	MessagesOrdered []*CanonicalMessage
	CombinedText    string
	Truncated       bool
	Participants    []string
	LatestAt        time.Time
}

// MessageCount returns the number of messages in the thread.
func (c *ConversationContext) MessageCount() int {
	return len(c.MessagesOrdered)
}

// ScoredConversation pairs a thread with its importance score and the
// coarse priority bucket the score falls into.
type ScoredConversation struct {
	Context  *ConversationContext
	Score    float64
	Priority string
}
