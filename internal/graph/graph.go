// Package graph maintains the like/dislike preference graph and the
// learned aggregate each conversation derives from it.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ryanhideo/tablescout/internal/database"
)

// topN caps the liked/avoided category lists in an aggregate.
const topN = 5

// Ratio is the like/dislike split for one restaurant among one
// conversation's members.
type Ratio struct {
	Likes    int
	Dislikes int
}

// Aggregator records interactions and derives learned aggregates.
type Aggregator struct {
	store  database.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewAggregator creates an aggregator backed by the store.
func NewAggregator(store database.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		now:    time.Now,
		logger: logger.With("component", "graph"),
	}
}

// RecordInteraction persists one like or dislike, replacing any
// opposite-polarity edge for the same user and restaurant, then refreshes
// the conversation's aggregate before returning. The caller can rely on
// the next read seeing the updated snapshot.
func (a *Aggregator) RecordInteraction(ctx context.Context, conversationID, userID string, meta *database.RestaurantMeta, polarity string) error {
	if err := a.store.UpsertRestaurant(ctx, meta); err != nil {
		return err
	}
	if err := a.store.UpsertEdge(ctx, userID, meta.RestaurantID, polarity, a.now()); err != nil {
		return err
	}
	if err := a.store.EnsureConversation(ctx, conversationID); err != nil {
		return err
	}
	if err := a.store.EnsureMember(ctx, conversationID, userID); err != nil {
		return err
	}

	if err := a.Refresh(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to refresh aggregate: %w", err)
	}

	a.logger.InfoContext(ctx, "Interaction recorded",
		"conversation_id", conversationID,
		"restaurant_id", meta.RestaurantID,
		"polarity", polarity)
	return nil
}

// Refresh recomputes the conversation's aggregate from the full edge set
// of its members and overwrites the cached snapshot.
func (a *Aggregator) Refresh(ctx context.Context, conversationID string) error {
	members, err := a.store.ConversationMembers(ctx, conversationID)
	if err != nil {
		return err
	}
	edges, err := a.store.EdgesForUsers(ctx, members)
	if err != nil {
		return err
	}
	return a.store.SaveAggregate(ctx, conversationID, Compute(edges))
}

// Aggregate returns the cached learned aggregate for a conversation,
// computing and caching it when absent.
func (a *Aggregator) Aggregate(ctx context.Context, conversationID string) (*database.Aggregate, error) {
	cached, err := a.store.CachedAggregate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	if err := a.Refresh(ctx, conversationID); err != nil {
		return nil, err
	}
	cached, err = a.store.CachedAggregate(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		cached = &database.Aggregate{TopLiked: []string{}, TopAvoided: []string{}}
	}
	return cached, nil
}

// RestaurantRatio returns the like/dislike counts for a restaurant scoped
// to the conversation's members. Other conversations' opinions never leak
// into the ratio.
func (a *Aggregator) RestaurantRatio(ctx context.Context, conversationID, restaurantID string) (*Ratio, error) {
	members, err := a.store.ConversationMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	edges, err := a.store.EdgesForRestaurant(ctx, members, restaurantID)
	if err != nil {
		return nil, err
	}

	ratio := &Ratio{}
	for _, e := range edges {
		switch e.Polarity {
		case database.PolarityLike:
			ratio.Likes++
		case database.PolarityDislike:
			ratio.Dislikes++
		}
	}
	return ratio, nil
}

// Compute derives an aggregate from an edge set. The computation is pure
// and deterministic: category ties are broken alphabetically, and the
// average price covers only liked restaurants with a known price.
func Compute(edges []database.PreferenceEdge) *database.Aggregate {
	likeCounts := map[string]int{}
	dislikeCounts := map[string]int{}
	priceSum, priceCount := 0, 0

	for _, e := range edges {
		category := strings.TrimSpace(e.Category)
		switch e.Polarity {
		case database.PolarityLike:
			if category != "" {
				likeCounts[category]++
			}
			if level := len(e.Price); level > 0 {
				priceSum += level
				priceCount++
			}
		case database.PolarityDislike:
			if category != "" {
				dislikeCounts[category]++
			}
		}
	}

	agg := &database.Aggregate{
		TopLiked:   topCategories(likeCounts),
		TopAvoided: topCategories(dislikeCounts),
	}
	if priceCount > 0 {
		avg := int(math.Round(float64(priceSum) / float64(priceCount)))
		agg.AvgPrice = &avg
	}
	return agg
}

func topCategories(counts map[string]int) []string {
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if counts[categories[i]] != counts[categories[j]] {
			return counts[categories[i]] > counts[categories[j]]
		}
		return categories[i] < categories[j]
	})
	if len(categories) > topN {
		categories = categories[:topN]
	}
	return categories
}

// ContextString renders an aggregate as a context block for search
// queries. An empty aggregate renders as an empty string.
func ContextString(agg *database.Aggregate) string {
	if agg == nil {
		return ""
	}

	var lines []string
	if len(agg.TopLiked) > 0 {
		lines = append(lines, "- Popular cuisines: "+strings.Join(agg.TopLiked, ", "))
	}
	if len(agg.TopAvoided) > 0 {
		lines = append(lines, "- Avoid: "+strings.Join(agg.TopAvoided, ", "))
	}
	if agg.AvgPrice != nil {
		lines = append(lines, "- Typical price range: "+strings.Repeat("$", *agg.AvgPrice))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Group Preferences:\n" + strings.Join(lines, "\n")
}
