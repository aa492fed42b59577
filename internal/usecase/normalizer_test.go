package usecase

import (
	"testing"
	"time"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func testLogger() logger.Logger {
	return logger.NewLogger("error")
}

func TestCleanSubject(t *testing.T) {
	testCases := []struct {
		name     string
		subject  string
		expected string
	}{
		{name: "Plain subject untouched", subject: "Quarterly report", expected: "Quarterly report"},
		{name: "Single reply prefix", subject: "Re: Quarterly report", expected: "Quarterly report"},
		{name: "Stacked prefixes", subject: "RE: Fwd: FW: Quarterly report", expected: "Quarterly report"},
		{name: "Case insensitive", subject: "rE: fwd: hello", expected: "hello"},
		{name: "Prefix mid-subject kept", subject: "About Re: usage", expected: "About Re: usage"},
		{name: "Whitespace collapsed", subject: "  Re:   spaced   out  ", expected: "spaced out"},
		{name: "Empty becomes placeholder", subject: "", expected: "(no subject)"},
		{name: "Only prefixes becomes placeholder", subject: "Re: Fwd:", expected: "(no subject)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanSubject(tc.subject))
		})
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testLogger())
	received := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	t.Run("HTML body becomes plain text", func(t *testing.T) {
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m1",
			ThreadID:   "t1",
			Subject:    "Re: Invoice",
			From:       "Billing Team <billing@shop.example>",
			To:         "me@example.com",
			ReceivedAt: received,
			HTMLBody:   "<div><p>Your invoice is <b>ready</b>.</p><style>p{}</style></div>",
			Snippet:    "Your invoice is ready.",
			Labels:     []string{"INBOX", "UNREAD"},
		})

		assert.Equal(t, "Invoice", msg.Subject)
		assert.Equal(t, "billing@shop.example", msg.SenderAddr)
		assert.Equal(t, "Billing Team", msg.SenderName)
		assert.Equal(t, "shop.example", msg.SenderDomain)
		assert.Equal(t, "Your invoice is ready.", msg.Body)
		assert.NotContains(t, msg.Body, "<")
		assert.False(t, msg.ParseFailed)
		assert.Equal(t, "en", msg.Lang)
	})

	t.Run("Plain body used when no HTML", func(t *testing.T) {
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m2",
			ThreadID:   "t2",
			Subject:    "hello",
			From:       "bob@example.com",
			ReceivedAt: received,
			Body:       "just text",
			Snippet:    "just text",
		})

		assert.Equal(t, "just text", msg.Body)
		assert.False(t, msg.ParseFailed)
	})

	t.Run("Empty body falls back to snippet", func(t *testing.T) {
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m3",
			ThreadID:   "t3",
			Subject:    "empty",
			From:       "bob@example.com",
			ReceivedAt: received,
			Snippet:    "snippet only",
		})

		assert.Equal(t, "snippet only", msg.Body)
		assert.False(t, msg.ParseFailed)
	})

	t.Run("Markup that strips to nothing falls back to snippet", func(t *testing.T) {
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m4",
			ThreadID:   "t4",
			Subject:    "tracking pixel",
			From:       "ads@example.com",
			ReceivedAt: received,
			HTMLBody:   "<img src=\"pixel.png\">",
			Snippet:    "promo",
		})

		assert.Equal(t, "promo", msg.Body)
	})

	t.Run("Chinese content detected", func(t *testing.T) {
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m5",
			ThreadID:   "t5",
			Subject:    "紧急通知",
			From:       "hr@example.cn",
			ReceivedAt: received,
			Body:       "请尽快回复",
			Snippet:    "请尽快回复",
		})

		assert.Equal(t, "zh", msg.Lang)
	})

	t.Run("Timestamps normalized to UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+8", 8*3600)
		msg := n.Normalize(&entity.RawMessage{
			MessageID:  "m6",
			ThreadID:   "t6",
			Subject:    "tz",
			From:       "bob@example.com",
			ReceivedAt: time.Date(2025, 3, 10, 22, 30, 0, 0, loc),
			Body:       "body",
		})

		assert.Equal(t, time.UTC, msg.ReceivedAt.Location())
		assert.Equal(t, 14, msg.ReceivedAt.Hour())
	})
}

func TestNormalizeBatchPreservesOrder(t *testing.T) {
	n := NewNormalizer(testLogger())
	raws := []*entity.RawMessage{
		{MessageID: "a", ThreadID: "t", Subject: "one", Body: "x"},
		{MessageID: "b", ThreadID: "t", Subject: "two", Body: "y"},
		{MessageID: "c", ThreadID: "t", Subject: "three", Body: "z"},
	}

	out := n.NormalizeBatch(raws)

	assert.Len(t, out, 3)
	assert.Equal(t, "a", out[0].MessageID)
	assert.Equal(t, "b", out[1].MessageID)
	assert.Equal(t, "c", out[2].MessageID)
}
