package handlers

import (
	"context"

	"github.com/ryanhideo/tablescout/internal/format"
	"github.com/ryanhideo/tablescout/internal/line"
)

const searchAck = "🔍 Processing your Yelp request..."

const emptySearchReply = "🤔 I couldn't find anything for that request. Try rephrasing it?"

// handleSearchCommand runs the recommendation pipeline. The reply window
// only covers the immediate acknowledgement; results go out as pushes once
// the search finishes.
func handleSearchCommand(ctx context.Context, deps *HandlerDeps, event line.Event, query string) {
	if query == "" {
		replyText(ctx, deps, event, "Usage: /yelp <what you're looking for> (e.g. /yelp cheap ramen near Shibuya)")
		return
	}

	conversationID := event.Source.ConversationID()
	replyText(ctx, deps, event, searchAck)

	outcome := deps.Orchestrator.Recommend(ctx, conversationID, query)

	units := format.Units(outcome.Fragments, outcome.Entities)
	if len(units) == 0 {
		units = []format.MessageUnit{{Text: emptySearchReply}}
	}

	if err := deps.Messenger.Push(ctx, conversationID, units); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to push search results",
			"conversation_id", conversationID, "error", err)
		return
	}
	recordOutbound(ctx, deps, conversationID, units, true, inboundMessageID(event))
}
