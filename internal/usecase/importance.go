package usecase

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"strings"

	"maildigest-service/internal/domain/entity"
	"maildigest-service/pkg/logger"
)

// MaxScore caps any message or thread score.
const MaxScore = 100.0

// RuleTable is the data-as-config scoring model: rule key to additive weight.
// The zero value is not usable; start from DefaultRuleTable or a validated
// override.
type RuleTable struct {
	Labels         map[string]float64 `json:"labels"`
	Keywords       map[string]float64 `json:"keywords"`
	SenderDomains  map[string]float64 `json:"sender_domains"`
	ThreadBonus    float64            `json:"thread_bonus"`
	ThreadBonusCap float64            `json:"thread_bonus_cap"`
}

// DefaultRuleTable returns the built-in weights. English and Chinese keyword
// sets are both carried.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		Labels: map[string]float64{
			"STARRED":   10,
			"IMPORTANT": 5,
			"UNREAD":    3,
			"INBOX":     1,
		},
		Keywords: map[string]float64{
			"urgent":          8,
			"紧急":              8,
			"asap":            7,
			"important":       6,
			"重要":              6,
			"deadline":        5,
			"截止":              5,
			"action required": 6,
			"please review":   4,
		},
		SenderDomains:  map[string]float64{},
		ThreadBonus:    0.5,
		ThreadBonusCap: 5,
	}
}

func (t RuleTable) valid() bool {
	if len(t.Labels) == 0 && len(t.Keywords) == 0 && len(t.SenderDomains) == 0 {
		return false
	}
	for _, m := range []map[string]float64{t.Labels, t.Keywords, t.SenderDomains} {
		for _, w := range m {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return false
			}
		}
	}
	return t.ThreadBonus >= 0 && t.ThreadBonusCap >= 0
}

// LoadRuleTable reads a rule table override from a JSON file. Any problem
// (missing file, unknown key, unparseable weight) falls back to the defaults
// with a warning; it never fails the caller.
func LoadRuleTable(path string, logger logger.Logger) RuleTable {
	if path == "" {
		return DefaultRuleTable()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read score rules, using defaults", "path", path, "error", err)
		return DefaultRuleTable()
	}

	var table RuleTable
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&table); err != nil {
		logger.Warn("Malformed score rules, using defaults", "path", path, "error", err)
		return DefaultRuleTable()
	}
	if !table.valid() {
		logger.Warn("Invalid score rules, using defaults", "path", path)
		return DefaultRuleTable()
	}

	logger.Info("Loaded score rule overrides",
		"path", path,
		"labels", len(table.Labels),
		"keywords", len(table.Keywords),
		"senderDomains", len(table.SenderDomains))
	return table
}

// ImportanceScorer assigns additive rule-based scores to messages and
// threads. Scoring is deterministic: identical input and rules always yield
// the same score.
type ImportanceScorer struct {
	rules           RuleTable
	highThreshold   float64
	mediumThreshold float64
	logger          logger.Logger
}

// NewImportanceScorer creates a scorer; thresholds <= 0 select the defaults
// (high 20, medium 10).
func NewImportanceScorer(rules RuleTable, highThreshold, mediumThreshold float64, logger logger.Logger) *ImportanceScorer {
	if !rules.valid() {
		logger.Warn("Scorer given an invalid rule table, using defaults")
		rules = DefaultRuleTable()
	}
	if highThreshold <= 0 {
		highThreshold = 20
	}
	if mediumThreshold <= 0 {
		mediumThreshold = 10
	}
	return &ImportanceScorer{
		rules:           rules,
		highThreshold:   highThreshold,
		mediumThreshold: mediumThreshold,
		logger:          logger,
	}
}

// ScoreMessage scores a single message: label weights plus keyword hits in
// subject and body plus the sender-domain weight.
func (s *ImportanceScorer) ScoreMessage(msg *entity.CanonicalMessage) float64 {
	score := 0.0

	for _, label := range msg.Labels {
		if w, ok := s.rules.Labels[strings.ToUpper(label)]; ok {
			score += w
		}
	}

	text := strings.ToLower(msg.Subject + " " + msg.Body)
	for keyword, w := range s.rules.Keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			score += w
		}
	}

	if w, ok := s.rules.SenderDomains[msg.SenderDomain]; ok {
		score += w
	}

	return math.Min(score, MaxScore)
}

// ScoreThread scores a thread as the mean of its message scores plus a
// capped per-message length bonus.
func (s *ImportanceScorer) ScoreThread(ctx *entity.ConversationContext) float64 {
	if len(ctx.MessagesOrdered) == 0 {
		return 0
	}

	sum := 0.0
	for _, msg := range ctx.MessagesOrdered {
		sum += s.ScoreMessage(msg)
	}
	mean := sum / float64(len(ctx.MessagesOrdered))

	bonus := math.Min(float64(len(ctx.MessagesOrdered)-1)*s.rules.ThreadBonus, s.rules.ThreadBonusCap)

	return math.Min(mean+bonus, MaxScore)
}

// PriorityLabel buckets a score into high, medium, or low.
func (s *ImportanceScorer) PriorityLabel(score float64) string {
	switch {
	case score >= s.highThreshold:
		return entity.PriorityHigh
	case score >= s.mediumThreshold:
		return entity.PriorityMedium
	default:
		return entity.PriorityLow
	}
}

// Prioritize scores all contexts and returns them sorted by score descending,
// ties broken by most recent message timestamp descending, then thread id
// ascending. The ordering is total, so identical input always ranks
// identically.
func (s *ImportanceScorer) Prioritize(contexts []*entity.ConversationContext) []*entity.ScoredConversation {
	scored := make([]*entity.ScoredConversation, 0, len(contexts))
	for _, ctx := range contexts {
		score := s.ScoreThread(ctx)
		scored = append(scored, &entity.ScoredConversation{
			Context:  ctx,
			Score:    score,
			Priority: s.PriorityLabel(score),
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Context.LatestAt.Equal(scored[j].Context.LatestAt) {
			return scored[i].Context.LatestAt.After(scored[j].Context.LatestAt)
		}
		return scored[i].Context.ThreadID < scored[j].Context.ThreadID
	})

	return scored
}
