package entity

import (
	"time"
)

// Report is the persisted daily digest: exactly one per report date.
type Report struct {
	ID         uint              `json:"id"`
	ReportDate time.Time         `json:"reportDate"`
	Result     *GenerationResult `json:"result"`
	References []*EmailReference `json:"references"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ReportSummary is the listing view of a report, without references.
type ReportSummary struct {
	ID             uint      `json:"id"`
	ReportDate     time.Time `json:"reportDate"`
	HighlightCount int       `json:"highlightCount"`
	ReferenceCount int       `json:"referenceCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EmailReference links a report back to one source message, keeping
// deep-link granularity at the message level.
type EmailReference struct {
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Snippet   string `json:"snippet"`
	DeepLink  string `json:"deepLink"`
}
