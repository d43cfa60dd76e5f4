package line

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ryanhideo/tablescout/internal/format"
	"github.com/ryanhideo/tablescout/internal/search"
)

// Postback actions carried by card buttons.
const (
	ActionLike    = "like"
	ActionDislike = "dislike"
)

// PostbackData encodes a like/dislike button payload.
func PostbackData(action string, e *search.Entity) string {
	values := url.Values{}
	values.Set("action", action)
	values.Set("restaurantId", e.ID)
	values.Set("name", e.Name)
	values.Set("cuisine", e.Category)
	values.Set("price", e.Price)
	return values.Encode()
}

// BuildCard renders one restaurant as a flex bubble with like/dislike
// postback buttons.
func BuildCard(e *search.Entity) map[string]any {
	var bodyContents []map[string]any
	bodyContents = append(bodyContents, map[string]any{
		"type":   "text",
		"text":   e.Name,
		"weight": "bold",
		"size":   "xl",
		"wrap":   true,
	})

	if line := detailLine(e); line != "" {
		bodyContents = append(bodyContents, map[string]any{
			"type":  "text",
			"text":  line,
			"size":  "sm",
			"color": "#888888",
			"wrap":  true,
		})
	}
	if e.Address != "" {
		bodyContents = append(bodyContents, map[string]any{
			"type":  "text",
			"text":  e.Address,
			"size":  "sm",
			"color": "#888888",
			"wrap":  true,
		})
	}
	if e.Reasoning != "" {
		bodyContents = append(bodyContents, map[string]any{
			"type":   "text",
			"text":   e.Reasoning,
			"size":   "sm",
			"wrap":   true,
			"margin": "md",
		})
	}

	footer := map[string]any{
		"type":    "box",
		"layout":  "horizontal",
		"spacing": "sm",
		"contents": []map[string]any{
			{
				"type":  "button",
				"style": "primary",
				"action": map[string]any{
					"type":  "postback",
					"label": "👍 Like",
					"data":  PostbackData(ActionLike, e),
				},
			},
			{
				"type":  "button",
				"style": "secondary",
				"action": map[string]any{
					"type":  "postback",
					"label": "👎 Dislike",
					"data":  PostbackData(ActionDislike, e),
				},
			},
		},
	}

	bubble := map[string]any{
		"type": "bubble",
		"body": map[string]any{
			"type":     "box",
			"layout":   "vertical",
			"contents": bodyContents,
		},
		"footer": footer,
	}
	if e.ImageURL != "" {
		bubble["hero"] = map[string]any{
			"type":        "image",
			"url":         e.ImageURL,
			"size":        "full",
			"aspectRatio": "20:13",
			"aspectMode":  "cover",
		}
	}
	if e.URL != "" {
		bubble["action"] = map[string]any{
			"type": "uri",
			"uri":  format.CleanURL(e.URL),
		}
	}

	return map[string]any{
		"type":     "flex",
		"altText":  cardAltText(e),
		"contents": bubble,
	}
}

// CardSummaryLine is the plain-text trace of a card persisted to the
// message log. Recall queries are answered from these lines.
func CardSummaryLine(e *search.Entity) string {
	parts := []string{e.Name}
	if e.Price != "" {
		parts = append(parts, e.Price)
	}
	if e.Category != "" {
		parts = append(parts, e.Category)
	}
	return "📍 " + strings.Join(parts, " - ")
}

func detailLine(e *search.Entity) string {
	var parts []string
	if e.Rating > 0 {
		parts = append(parts, fmt.Sprintf("⭐ %.1f (%d reviews)", e.Rating, e.ReviewCount))
	}
	if e.Price != "" {
		parts = append(parts, e.Price)
	}
	if e.Category != "" {
		parts = append(parts, e.Category)
	}
	return strings.Join(parts, " · ")
}

func cardAltText(e *search.Entity) string {
	alt := e.Name
	if e.Category != "" {
		alt += " (" + e.Category + ")"
	}
	return alt
}
