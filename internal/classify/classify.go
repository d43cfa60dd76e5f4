// Package classify labels incoming queries along two axes: recall of a
// past recommendation vs a new search, and recommendation vs an
// informational follow-up. It also decides whether a query is
// restaurant-focused.
package classify

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ryanhideo/tablescout/internal/ai"
)

// Intent is the primary query label.
type Intent int

const (
	// IntentRecommendation requests new restaurant options.
	IntentRecommendation Intent = iota
	// IntentInformational is a follow-up question about a prior answer.
	IntentInformational
	// IntentRecall asks about a past recommendation.
	IntentRecall
)

func (i Intent) String() string {
	switch i {
	case IntentInformational:
		return "informational"
	case IntentRecall:
		return "recall"
	default:
		return "recommendation"
	}
}

// recallPhrases trigger the recall label on their own. Checked before any
// model call so recall queries cost no network round trip.
var recallPhrases = []string{
	"last time",
	"last week",
	"gave me",
	"told me",
	"showed me",
	"recommended me",
	"what were",
	"what was",
}

// recallWords trigger the recall label on their own, matched as whole
// tokens.
var recallWords = map[string]bool{
	"yesterday":  true,
	"previously": true,
	"remember":   true,
	"recall":     true,
}

// weakRecallWords also appear in ordinary new-search queries ("dinner
// before the movie"), so one alone never triggers recall; two must
// co-occur.
var weakRecallWords = map[string]bool{
	"again":    true,
	"before":   true,
	"earlier":  true,
	"previous": true,
}

// activityKeywords suggest the query is about things to do rather than
// places to eat.
var activityKeywords = []string{
	"activity", "activities", "museum", "arcade", "bowling", "hike",
	"hiking", "park", "movie", "cinema", "concert", "karaoke", "shopping",
	"gallery", "things to do", "date idea", "fun",
}

// diningKeywords pull an activity-flavored query back into restaurant
// territory.
var diningKeywords = []string{
	"eat", "food", "restaurant", "dinner", "lunch", "brunch", "breakfast",
	"dine", "dining", "hungry", "meal", "snack", "dessert", "cafe",
	"coffee", "drink", "bar", "sushi", "ramen", "pizza", "burger", "thai",
	"italian", "mexican", "korean", "chinese", "japanese", "bite",
}

const classifierSystem = `You label restaurant-chat queries. Reply with exactly one word:
INFORMATIONAL if the user asks a follow-up question about restaurants already discussed (hours, address, details, comparisons).
RECOMMENDATION if the user wants restaurant suggestions.`

// Classifier labels queries, using the model only for the
// informational/recommendation distinction.
type Classifier struct {
	ai     ai.Client
	logger *slog.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(client ai.Client, logger *slog.Logger) *Classifier {
	return &Classifier{
		ai:     client,
		logger: logger.With("component", "classify"),
	}
}

// Classify labels a query. Recall detection is lexical and short-circuits
// the model call; classification failures default to recommendation since
// showing options beats silently refusing.
func (c *Classifier) Classify(ctx context.Context, query, recentHistory string) Intent {
	if IsRecall(query) {
		c.logger.DebugContext(ctx, "Query classified", "intent", "recall", "lexical", true)
		return IntentRecall
	}

	prompt := query
	if recentHistory != "" {
		prompt = "Recent chat:\n" + recentHistory + "\n\nQuery: " + query
	}
	completion, err := c.ai.Complete(ctx, &ai.Request{
		System:   classifierSystem,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: prompt}},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Classifier call failed, defaulting to recommendation", "error", err)
		return IntentRecommendation
	}

	intent := IntentRecommendation
	if strings.Contains(strings.ToUpper(completion.Content), "INFORMATIONAL") {
		intent = IntentInformational
	}
	c.logger.DebugContext(ctx, "Query classified", "intent", intent.String(), "lexical", false)
	return intent
}

// IsRecall reports whether the text lexically references a past
// recommendation. Single cue words match whole tokens only, so "again"
// never fires on "against".
func IsRecall(query string) bool {
	lower := strings.ToLower(query)
	for _, p := range recallPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}

	weak := 0
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if recallWords[token] {
			return true
		}
		if weakRecallWords[token] {
			weak++
		}
	}
	return weak >= 2
}

// IsRestaurantFocused reports whether the query is about places to eat.
// Activity language flips it off unless dining language also appears;
// ambiguous text defaults to true.
func IsRestaurantFocused(query string) bool {
	lower := strings.ToLower(query)

	dining := false
	for _, kw := range diningKeywords {
		if strings.Contains(lower, kw) {
			dining = true
			break
		}
	}
	if dining {
		return true
	}
	for _, kw := range activityKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}
