package recommend

import (
	"fmt"
	"strings"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/search"
)

// annotationKind groups rules that are mutually exclusive: at most one
// cuisine phrase and one price phrase is appended per entity.
type annotationKind int

const (
	kindCuisine annotationKind = iota
	kindPrice
	kindNote
)

type annotationRule struct {
	name  string
	kind  annotationKind
	apply func(e *search.Entity, p *database.Preferences, agg *database.Aggregate) (string, bool)
}

// annotationRules is the single ranked table deciding which preference
// source wins. Order is priority: explicit declarations beat learned ones,
// cuisine beats price, disclosures always trail.
var annotationRules = []annotationRule{
	{
		name: "explicit favorite category",
		kind: kindCuisine,
		apply: func(e *search.Entity, p *database.Preferences, _ *database.Aggregate) (string, bool) {
			if p == nil {
				return "", false
			}
			for _, fav := range p.FavoriteCategories {
				if categoryMatches(e.Category, fav) {
					return fmt.Sprintf("✨ Matches your favorite cuisine: %s!", fav), true
				}
			}
			return "", false
		},
	},
	{
		name: "learned liked category",
		kind: kindCuisine,
		apply: func(e *search.Entity, _ *database.Preferences, agg *database.Aggregate) (string, bool) {
			if agg == nil {
				return "", false
			}
			for _, liked := range agg.TopLiked {
				if categoryMatches(e.Category, liked) {
					return fmt.Sprintf("👍 Your group often enjoys %s.", liked), true
				}
			}
			return "", false
		},
	},
	{
		name: "explicit price level",
		kind: kindPrice,
		apply: func(e *search.Entity, p *database.Preferences, _ *database.Aggregate) (string, bool) {
			if p == nil || p.PriceLevel == nil || e.PriceLevel() != *p.PriceLevel {
				return "", false
			}
			return fmt.Sprintf("💰 Matches your preferred price range (%s).", e.Price), true
		},
	},
	{
		name: "learned average price",
		kind: kindPrice,
		apply: func(e *search.Entity, _ *database.Preferences, agg *database.Aggregate) (string, bool) {
			if agg == nil || agg.AvgPrice == nil || e.PriceLevel() != *agg.AvgPrice {
				return "", false
			}
			return fmt.Sprintf("💰 Fits your group's typical price range (%s).", e.Price), true
		},
	},
	{
		name: "dietary disclosure",
		kind: kindNote,
		apply: func(_ *search.Entity, p *database.Preferences, _ *database.Aggregate) (string, bool) {
			if p == nil {
				return "", false
			}
			var parts []string
			if len(p.Diet) > 0 {
				parts = append(parts, "diet: "+strings.Join(p.Diet, ", "))
			}
			if len(p.Allergies) > 0 {
				parts = append(parts, "allergies: "+strings.Join(p.Allergies, ", "))
			}
			if len(parts) == 0 {
				return "", false
			}
			return "⚠️ Please check the menu for " + strings.Join(parts, "; ") + ".", true
		},
	},
}

const genericPraise = "⭐ A well-rated spot worth trying."

// annotate builds the preference annotation for one entity by walking the
// ranked rule table, keeping the first match of each kind.
func annotate(e *search.Entity, p *database.Preferences, agg *database.Aggregate) string {
	matched := map[annotationKind]string{}
	for _, rule := range annotationRules {
		if _, done := matched[rule.kind]; done {
			continue
		}
		if phrase, ok := rule.apply(e, p, agg); ok {
			matched[rule.kind] = phrase
		}
	}

	var lines []string
	for _, kind := range []annotationKind{kindCuisine, kindPrice, kindNote} {
		if phrase, ok := matched[kind]; ok {
			lines = append(lines, phrase)
		}
	}
	if len(lines) == 0 {
		return genericPraise
	}
	return strings.Join(lines, "\n")
}

// categoryMatches reports whether an entity category and a preference tag
// refer to the same cuisine, in either containment direction, so that
// "japanese" matches "Japanese Fusion".
func categoryMatches(entityCategory, tag string) bool {
	c := strings.ToLower(strings.TrimSpace(entityCategory))
	t := strings.ToLower(strings.TrimSpace(tag))
	if c == "" || t == "" {
		return false
	}
	return strings.Contains(c, t) || strings.Contains(t, c)
}
