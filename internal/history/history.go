// Package history provides keyword search over a conversation's message
// log with noise filtering and role attribution.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ryanhideo/tablescout/internal/database"
)

// Roles attributed to search results.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// defaultNoisePrefixes marks status and progress chatter that should never
// surface as recalled history.
var defaultNoisePrefixes = []string{
	"🔍",
	"⏳",
	"✅",
	"📍",
	"Available commands",
	"Sorry, something went wrong",
}

// Result is one ranked history snippet.
type Result struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Searcher ranks stored messages against keyword terms.
type Searcher struct {
	store         database.Store
	noisePrefixes []string
	logger        *slog.Logger
}

// NewSearcher creates a history searcher with the default noise filter.
func NewSearcher(store database.Store, logger *slog.Logger) *Searcher {
	return &Searcher{
		store:         store,
		noisePrefixes: defaultNoisePrefixes,
		logger:        logger.With("component", "history"),
	}
}

// Search returns up to limit messages matching at least one keyword,
// ranked by how many keywords each matches, ties broken newest first.
// Noise lines are dropped before ranking.
func (s *Searcher) Search(ctx context.Context, conversationID string, keywords []string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	// Over-fetch so the noise filter does not starve the result set.
	msgs, err := s.store.SearchMessages(ctx, conversationID, keywords, limit*4)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}

	type scored struct {
		result Result
		score  int
	}
	var candidates []scored
	for _, msg := range msgs {
		if s.isNoise(msg.Content) {
			continue
		}
		role := RoleUser
		if msg.UserID == database.BotUserID {
			role = RoleAssistant
		}
		candidates = append(candidates, scored{
			result: Result{Role: role, Content: msg.Content, Timestamp: msg.Timestamp},
			score:  matchCount(msg.Content, keywords),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].result.Timestamp.After(candidates[j].result.Timestamp)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.result)
	}

	s.logger.DebugContext(ctx, "History search finished",
		"conversation_id", conversationID,
		"keywords", len(keywords),
		"results", len(results))
	return results, nil
}

// recallPrefix marks past recommendation cards persisted in the log.
const recallPrefix = "📍 "

// maxRecentLineLen truncates long assistant lines in the recent window so
// one verbose answer does not crowd out the rest of the context.
const maxRecentLineLen = 200

// Recent returns up to limit non-noise messages in chronological order,
// with long assistant lines truncated.
func (s *Searcher) Recent(ctx context.Context, conversationID string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	msgs, err := s.store.RecentMessages(ctx, conversationID, limit*3)
	if err != nil {
		return nil, fmt.Errorf("recent history lookup failed: %w", err)
	}

	var results []Result
	for _, msg := range msgs {
		if s.isNoise(msg.Content) {
			continue
		}
		role := RoleUser
		content := msg.Content
		if msg.UserID == database.BotUserID {
			role = RoleAssistant
			if len(content) > maxRecentLineLen {
				cut := maxRecentLineLen
				for cut > 0 && !utf8.RuneStart(content[cut]) {
					cut--
				}
				content = content[:cut] + "..."
			}
		}
		results = append(results, Result{Role: role, Content: content, Timestamp: msg.Timestamp})
		if len(results) == limit {
			break
		}
	}

	// Store order is newest first; context windows read oldest first.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// RecallEntries returns past recommendation card lines matching the
// keywords, newest first. These lines are noise for ordinary history
// search but are exactly what a recall query asks for.
func (s *Searcher) RecallEntries(ctx context.Context, conversationID string, keywords []string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	msgs, err := s.store.SearchMessages(ctx, conversationID, keywords, limit*4)
	if err != nil {
		return nil, fmt.Errorf("recall lookup failed: %w", err)
	}

	seen := map[string]bool{}
	var entries []string
	for _, msg := range msgs {
		trimmed := strings.TrimSpace(msg.Content)
		if !strings.HasPrefix(trimmed, recallPrefix) || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		entries = append(entries, trimmed)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (s *Searcher) isNoise(content string) bool {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range s.noisePrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func matchCount(content string, keywords []string) int {
	lower := strings.ToLower(content)
	count := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}
