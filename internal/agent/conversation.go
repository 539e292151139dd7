package agent

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mementolabs/memento/pkg/models"
)

// Compaction defaults.
const (
	// DefaultMaxMessages is the size of the context window handed to
	// the model after prioritization.
	DefaultMaxMessages = 10

	// CompactionThreshold is the history length above which stored
	// history is truncated before prioritization.
	CompactionThreshold = 50
)

// DefaultEventKeywords mark turns that talk about events or saved
// memories. The bot's users write mostly Spanish with some English.
var DefaultEventKeywords = []string{
	"evento", "event", "álbum", "album", "guardé", "guardada", "creé",
}

// Priority weights for older-turn scoring.
const (
	photoWeight        = 3
	eventKeywordWeight = 2
	userTurnWeight     = 1
	assistantWeight    = 1
	assistantToolBonus = 1
)

// Compactor selects which conversation turns survive into the model's
// context window. Recent turns always survive; older turns compete on
// a relevance score.
type Compactor struct {
	// MaxMessages bounds the prioritized window.
	MaxMessages int

	// EventKeywords boost turns that mention event activity.
	EventKeywords []string
}

// NewCompactor returns a compactor with defaults applied.
func NewCompactor(maxMessages int, keywords []string) *Compactor {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if len(keywords) == 0 {
		keywords = DefaultEventKeywords
	}
	return &Compactor{
		MaxMessages:   maxMessages,
		EventKeywords: keywords,
	}
}

// RecentWindow is the count of trailing turns that always survive
// prioritization regardless of score.
func (c *Compactor) RecentWindow() int {
	w := c.MaxMessages / 2
	if w < 5 {
		w = 5
	}
	return w
}

// Compact truncates fetched history when the conversation has grown
// past the compaction threshold, keeping the most recent MaxMessages
// turns. totalCount is the conversation's full stored length; fetched
// history is capped, so len(turns) alone cannot see past the cap.
// Below the threshold the history is returned unchanged.
//
// This is plain truncation. Summarizing the dropped turns would cost a
// model round-trip on every message, so the older context is let go.
func (c *Compactor) Compact(turns []models.Turn, totalCount int) []models.Turn {
	if totalCount < len(turns) {
		totalCount = len(turns)
	}
	if totalCount <= CompactionThreshold || len(turns) <= c.MaxMessages {
		return turns
	}
	return turns[len(turns)-c.MaxMessages:]
}

// Prioritize reduces history to at most MaxMessages turns. The last
// RecentWindow turns are always kept; older turns are scored and the
// best fill the remaining slots, restored to chronological order.
// Ties go to the earlier turn.
func (c *Compactor) Prioritize(turns []models.Turn) []models.Turn {
	if len(turns) <= c.MaxMessages {
		return turns
	}

	recentWindow := c.RecentWindow()
	if recentWindow >= len(turns) {
		return turns
	}
	recent := turns[len(turns)-recentWindow:]

	slots := c.MaxMessages - recentWindow
	if slots <= 0 {
		return recent
	}

	older := turns[:len(turns)-recentWindow]
	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, len(older))
	for i, turn := range older {
		ranked[i] = scored{index: i, score: c.score(turn)}
	}
	// Stable sort keeps earlier turns ahead of equally scored later ones.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if slots > len(ranked) {
		slots = len(ranked)
	}
	kept := ranked[:slots]
	sort.Slice(kept, func(a, b int) bool {
		return kept[a].index < kept[b].index
	})

	result := make([]models.Turn, 0, slots+len(recent))
	for _, s := range kept {
		result = append(result, older[s.index])
	}
	result = append(result, recent...)
	return result
}

// score rates an older turn's worth of a context slot.
func (c *Compactor) score(turn models.Turn) int {
	score := 0
	if turn.HasPhoto {
		score += photoWeight
	}
	if c.mentionsEvent(turn) {
		score += eventKeywordWeight
	}
	switch turn.Role {
	case models.RoleUser:
		score += userTurnWeight
	case models.RoleAssistant:
		score += assistantWeight
		if turn.UsedTools {
			score += assistantToolBonus
		}
	}
	return score
}

func (c *Compactor) mentionsEvent(turn models.Turn) bool {
	text := strings.ToLower(turn.Text)
	for _, kw := range c.EventKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ActiveEvent scans history newest-first for the event the conversation
// is currently about: a confirmation ("creé", "listo") with a quoted
// name, or a reference of the form "en '<name>'". All roles are
// scanned, so a user saying "guardada en 'X'" counts too. Returns the
// empty string when no event surfaces.
func (c *Compactor) ActiveEvent(turns []models.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		lower := strings.ToLower(turn.Text)
		if strings.Contains(lower, "creé") || strings.Contains(lower, "listo") {
			if name := firstQuoted(turn.Text); name != "" {
				return name
			}
		}
		if idx := strings.Index(lower, "en '"); idx >= 0 {
			rest := turn.Text[idx+len("en '"):]
			if end := strings.Index(rest, "'"); end > 0 {
				return rest[:end]
			}
		}
	}
	return ""
}

// firstQuoted returns the first single-quoted segment of s.
func firstQuoted(s string) string {
	start := strings.Index(s, "'")
	if start < 0 {
		return ""
	}
	rest := s[start+1:]
	end := strings.Index(rest, "'")
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

// EstimateTokens approximates the context cost of a window: a
// rune-based text estimate plus the image policy's photo costs.
func (c *Compactor) EstimateTokens(turns []models.Turn, policy ImagePolicy) int {
	total := 0
	photos := 0
	for _, turn := range turns {
		if turn.HasPhoto {
			photos++
		}
		runes := utf8.RuneCountInString(turn.Text)
		tokens := runes / 4
		if runes > 0 && tokens < 1 {
			tokens = 1
		}
		total += tokens
	}
	return total + policy.EstimateImageTokens(photos)
}
