// Package prefs manages explicit per-user dining preferences and their
// merge across a conversation's members.
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ryanhideo/tablescout/internal/database"
)

// Service reads and writes declared preferences.
type Service struct {
	store  database.Store
	logger *slog.Logger
}

// NewService creates a preference service backed by the store.
func NewService(store database.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "prefs"),
	}
}

// Get returns one user's declared preferences.
func (s *Service) Get(ctx context.Context, userID string) (*database.Preferences, error) {
	return s.store.Preferences(ctx, userID)
}

// SetTags updates one tag-set field with REPLACE, APPEND, or CLEAR
// semantics. APPEND deduplicates against the existing set.
func (s *Service) SetTags(ctx context.Context, userID string, field database.PrefField, values []string, mode database.PrefMode) error {
	return s.store.SetPreferenceTags(ctx, userID, field, values, mode)
}

// SetPrice sets the preferred price level, or clears it when level is nil.
func (s *Service) SetPrice(ctx context.Context, userID string, level *int) error {
	if level != nil && (*level < 1 || *level > 4) {
		return fmt.Errorf("price level must be between 1 and 4, got %d", *level)
	}
	return s.store.SetPriceLevel(ctx, userID, level)
}

// ClearAll resets every declared preference for a user.
func (s *Service) ClearAll(ctx context.Context, userID string) error {
	return s.store.ClearAllPreferences(ctx, userID)
}

// Merged combines the declared preferences of every member of a
// conversation. Tag sets are unioned; the price level is the minimum
// declared across members, favoring the most budget-conscious one.
func (s *Service) Merged(ctx context.Context, conversationID string) (*database.Preferences, error) {
	members, err := s.store.ConversationMembers(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation members: %w", err)
	}

	merged := &database.Preferences{}
	for _, userID := range members {
		p, err := s.store.Preferences(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
		}
		merged.Diet = unionTags(merged.Diet, p.Diet)
		merged.Allergies = unionTags(merged.Allergies, p.Allergies)
		merged.FavoriteCategories = unionTags(merged.FavoriteCategories, p.FavoriteCategories)
		if p.PriceLevel != nil && (merged.PriceLevel == nil || *p.PriceLevel < *merged.PriceLevel) {
			level := *p.PriceLevel
			merged.PriceLevel = &level
		}
	}

	s.logger.DebugContext(ctx, "Preferences merged",
		"conversation_id", conversationID, "members", len(members))
	return merged, nil
}

// Summary renders preferences as a short context block for search queries.
// Empty preferences render as an empty string.
func Summary(p *database.Preferences) string {
	if p == nil {
		return ""
	}

	var lines []string
	if len(p.Diet) > 0 {
		lines = append(lines, "- Dietary restrictions: "+strings.Join(p.Diet, ", "))
	}
	if len(p.Allergies) > 0 {
		lines = append(lines, "- Allergies: "+strings.Join(p.Allergies, ", "))
	}
	if len(p.FavoriteCategories) > 0 {
		lines = append(lines, "- Favorite cuisines: "+strings.Join(p.FavoriteCategories, ", "))
	}
	if p.PriceLevel != nil {
		lines = append(lines, "- Preferred price range: "+strings.Repeat("$", *p.PriceLevel))
	}
	if len(lines) == 0 {
		return ""
	}
	return "User Preferences:\n" + strings.Join(lines, "\n")
}

// Display renders one user's preferences for a chat reply.
func Display(p *database.Preferences) string {
	var b strings.Builder
	b.WriteString("🍽️ Your preferences:\n")
	b.WriteString("Diet: " + joinOrNone(p.Diet) + "\n")
	b.WriteString("Allergies: " + joinOrNone(p.Allergies) + "\n")
	b.WriteString("Favorites: " + joinOrNone(p.FavoriteCategories) + "\n")
	if p.PriceLevel != nil {
		b.WriteString("Price: " + strings.Repeat("$", *p.PriceLevel))
	} else {
		b.WriteString("Price: not set")
	}
	return b.String()
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

func unionTags(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := append([]string{}, base...)
	for _, t := range base {
		seen[strings.ToLower(t)] = true
	}
	for _, t := range extra {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(t))
	}
	return out
}
