package entity

import (
	"time"
)

// RawMessage is a message exactly as the mail source returned it.
// The pipeline never mutates it.
type RawMessage struct {
	MessageID  string    `bson:"messageId"`
	ThreadID   string    `bson:"threadId"`
	Subject    string    `bson:"subject"`
	From       string    `bson:"from"`
	To         string    `bson:"to"`
	ReceivedAt time.Time `bson:"receivedAt"`
	Body       string    `bson:"body"`
	HTMLBody   string    `bson:"htmlBody"`
	Snippet    string    `bson:"snippet"`
	Labels     []string  `bson:"labels"`
}

// CanonicalMessage is the normalized form of a RawMessage: cleaned subject,
// parsed sender, plain-text body. Created once, never mutated.
type CanonicalMessage struct {
	MessageID    string    `bson:"messageId"`
	ThreadID     string    `bson:"threadId"`
	Subject      string    `bson:"subject"`
	SenderAddr   string    `bson:"senderAddr"`
	SenderName   string    `bson:"senderName"`
	SenderDomain string    `bson:"senderDomain"`
	To           string    `bson:"to"`
	ReceivedAt   time.Time `bson:"receivedAt"`
	Body         string    `bson:"body"`
	Snippet      string    `bson:"snippet"`
	Labels       []string  `bson:"labels"`
	Lang         string    `bson:"lang,omitempty"`
	ParseFailed  bool      `bson:"parseFailed"`
}

// HasLabel reports whether the message carries the given Gmail label.
func (m *CanonicalMessage) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}
