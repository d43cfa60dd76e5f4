package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/search"
)

func intPtr(v int) *int { return &v }

func TestAnnotateExplicitFavoriteBeatsLearnedLike(t *testing.T) {
	entity := &search.Entity{Category: "Japanese Fusion", Price: "$$"}
	p := &database.Preferences{FavoriteCategories: []string{"japanese"}}
	agg := &database.Aggregate{TopLiked: []string{"Italian", "Japanese Fusion"}}

	note := annotate(entity, p, agg)
	assert.Contains(t, note, "favorite cuisine: japanese")
	assert.NotContains(t, note, "group often enjoys")
}

func TestAnnotateLearnedPriceUsesTypicalPhrase(t *testing.T) {
	entity := &search.Entity{Category: "Thai", Price: "$$"}
	p := &database.Preferences{} // no explicit price
	agg := &database.Aggregate{AvgPrice: intPtr(2)}

	note := annotate(entity, p, agg)
	assert.Contains(t, note, "typical price range")
	assert.NotContains(t, note, "preferred price range")
}

func TestAnnotateExplicitPriceBeatsLearnedPrice(t *testing.T) {
	entity := &search.Entity{Category: "Thai", Price: "$$"}
	p := &database.Preferences{PriceLevel: intPtr(2)}
	agg := &database.Aggregate{AvgPrice: intPtr(2)}

	note := annotate(entity, p, agg)
	assert.Contains(t, note, "preferred price range")
	assert.NotContains(t, note, "typical price range")
}

func TestAnnotateSinglePhrasePerKind(t *testing.T) {
	entity := &search.Entity{Category: "Japanese", Price: "$$"}
	p := &database.Preferences{
		FavoriteCategories: []string{"japanese"},
		PriceLevel:         intPtr(2),
		Diet:               []string{"vegetarian"},
	}
	agg := &database.Aggregate{TopLiked: []string{"Japanese"}, AvgPrice: intPtr(2)}

	note := annotate(entity, p, agg)
	assert.Equal(t, 1, strings.Count(note, "cuisine"))
	assert.Equal(t, 1, strings.Count(note, "price range"))
	assert.Contains(t, note, "diet: vegetarian")
}

func TestAnnotateFallbackPraise(t *testing.T) {
	entity := &search.Entity{Category: "Diner", Price: "$"}
	note := annotate(entity, &database.Preferences{}, &database.Aggregate{})
	assert.Equal(t, genericPraise, note)
}

func TestRewriteForVenues(t *testing.T) {
	rewritten := rewriteForVenues("any date idea for saturday?")
	assert.Contains(t, rewritten, "restaurants, dessert cafes, or cocktail bars for a date")
	assert.NotContains(t, rewritten, "date idea for")

	fallback := rewriteForVenues("somewhere to take visitors")
	assert.Contains(t, fallback, venueHint)
}
