package handlers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/line"
)

// handlePostback records a like/dislike interaction and replies with the
// conversation-scoped ratio. The aggregate refresh completes before the
// reply so the next search in this conversation sees the updated snapshot.
func handlePostback(ctx context.Context, deps *HandlerDeps, event line.Event) {
	if event.Postback == nil {
		return
	}

	conversationID := event.Source.ConversationID()
	userID := event.Source.UserID
	if conversationID == "" || userID == "" {
		return
	}

	values, err := url.ParseQuery(event.Postback.Data)
	if err != nil {
		deps.Logger.WarnContext(ctx, "Malformed postback data", "error", err)
		return
	}

	var polarity string
	switch values.Get("action") {
	case line.ActionLike:
		polarity = database.PolarityLike
	case line.ActionDislike:
		polarity = database.PolarityDislike
	default:
		deps.Logger.DebugContext(ctx, "Ignoring postback action", "action", values.Get("action"))
		return
	}

	meta := &database.RestaurantMeta{
		RestaurantID: values.Get("restaurantId"),
		Name:         values.Get("name"),
		Category:     values.Get("cuisine"),
		Price:        values.Get("price"),
	}
	if meta.RestaurantID == "" || meta.Name == "" {
		deps.Logger.WarnContext(ctx, "Postback missing restaurant identity")
		return
	}

	if err := deps.Graph.RecordInteraction(ctx, conversationID, userID, meta, polarity); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to record interaction", "error", err)
		replyText(ctx, deps, event, "Sorry, something went wrong recording your vote.")
		return
	}

	ratio, err := deps.Graph.RestaurantRatio(ctx, conversationID, meta.RestaurantID)
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to load restaurant ratio", "error", err)
		return
	}
	replyText(ctx, deps, event, fmt.Sprintf("%s\n👍 %d | 👎 %d", meta.Name, ratio.Likes, ratio.Dislikes))
}
