package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/line"
	"github.com/ryanhideo/tablescout/internal/prefs"
)

const helpText = `Available commands:
/diet <tags> - add dietary restrictions (e.g. /diet vegetarian, halal)
/allergies <tags> - add allergies (e.g. /allergies peanuts)
/favorites <tags> - add favorite cuisines (e.g. /favorites sushi, thai)
/price <1-4> - set your preferred price range ($ to $$$$)
/prefs - show your preferences (/prefs clear resets everything)
/yelp <request> - search for restaurants
Use "<command> clear" to reset a single preference.`

func handleTagCommand(ctx context.Context, deps *HandlerDeps, event line.Event, field database.PrefField, label, arg string) {
	userID := event.Source.UserID

	if arg == "" {
		replyText(ctx, deps, event, fmt.Sprintf(
			"Usage: /%s <tags separated by commas> or /%s clear",
			string(field), string(field)))
		return
	}

	if strings.EqualFold(arg, "clear") {
		if err := deps.Prefs.SetTags(ctx, userID, field, nil, database.PrefClear); err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to clear preference tags", "field", string(field), "error", err)
			replyText(ctx, deps, event, "Sorry, something went wrong updating your preferences.")
			return
		}
		replyText(ctx, deps, event, fmt.Sprintf("✅ %s cleared.", label))
		return
	}

	values := splitTags(arg)
	if err := deps.Prefs.SetTags(ctx, userID, field, values, database.PrefAppend); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to update preference tags", "field", string(field), "error", err)
		replyText(ctx, deps, event, "Sorry, something went wrong updating your preferences.")
		return
	}

	updated, err := deps.Prefs.Get(ctx, userID)
	if err != nil {
		replyText(ctx, deps, event, fmt.Sprintf("✅ %s updated.", label))
		return
	}
	replyText(ctx, deps, event, fmt.Sprintf("✅ %s updated: %s", label, strings.Join(tagsFor(updated, field), ", ")))
}

func handlePriceCommand(ctx context.Context, deps *HandlerDeps, event line.Event, arg string) {
	userID := event.Source.UserID

	if arg == "" {
		replyText(ctx, deps, event, "Usage: /price <1-4> (1 = $ cheapest, 4 = $$$$ most expensive) or /price clear")
		return
	}
	if strings.EqualFold(arg, "clear") {
		if err := deps.Prefs.SetPrice(ctx, userID, nil); err != nil {
			replyText(ctx, deps, event, "Sorry, something went wrong updating your preferences.")
			return
		}
		replyText(ctx, deps, event, "✅ Price preference cleared.")
		return
	}

	level, err := parsePriceLevel(arg)
	if err != nil || level < 1 || level > 4 {
		replyText(ctx, deps, event, "Please use a number from 1 to 4, or $ symbols (e.g. /price 2 or /price $$).")
		return
	}
	if err := deps.Prefs.SetPrice(ctx, userID, &level); err != nil {
		replyText(ctx, deps, event, "Sorry, something went wrong updating your preferences.")
		return
	}
	replyText(ctx, deps, event, fmt.Sprintf("✅ Price preference set to %s.", strings.Repeat("$", level)))
}

func handlePrefsCommand(ctx context.Context, deps *HandlerDeps, event line.Event, arg string) {
	userID := event.Source.UserID

	if strings.EqualFold(arg, "clear") {
		if err := deps.Prefs.ClearAll(ctx, userID); err != nil {
			replyText(ctx, deps, event, "Sorry, something went wrong clearing your preferences.")
			return
		}
		replyText(ctx, deps, event, "✅ All preferences cleared.")
		return
	}

	p, err := deps.Prefs.Get(ctx, userID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to load preferences", "error", err)
		replyText(ctx, deps, event, "Sorry, something went wrong loading your preferences.")
		return
	}
	replyText(ctx, deps, event, prefs.Display(p))
}

func handleHelpCommand(ctx context.Context, deps *HandlerDeps, event line.Event) {
	replyText(ctx, deps, event, helpText)
}

func splitTags(arg string) []string {
	var tags []string
	for _, part := range strings.Split(arg, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func parsePriceLevel(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg != "" && strings.Trim(arg, "$") == "" {
		return len(arg), nil
	}
	level, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid price level: %s", arg)
	}
	return level, nil
}

func tagsFor(p *database.Preferences, field database.PrefField) []string {
	switch field {
	case database.PrefDiet:
		return p.Diet
	case database.PrefAllergies:
		return p.Allergies
	case database.PrefFavorites:
		return p.FavoriteCategories
	default:
		return nil
	}
}
