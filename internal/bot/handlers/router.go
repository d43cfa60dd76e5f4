// Package handlers dispatches webhook events to command, search, and
// postback handlers.
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/format"
	"github.com/ryanhideo/tablescout/internal/line"
)

// HandleEvent routes one webhook event. Unhandled event types and
// non-command chat produce no reply on purpose.
func HandleEvent(ctx context.Context, deps *HandlerDeps, event line.Event) {
	switch event.Type {
	case line.EventTypeMessage:
		handleMessage(ctx, deps, event)
	case line.EventTypePostback:
		handlePostback(ctx, deps, event)
	default:
		deps.Logger.DebugContext(ctx, "Ignoring event type", "type", event.Type)
	}
}

func handleMessage(ctx context.Context, deps *HandlerDeps, event line.Event) {
	if event.Message == nil || event.Message.Type != "text" {
		return
	}

	conversationID := event.Source.ConversationID()
	userID := event.Source.UserID
	if conversationID == "" || userID == "" {
		return
	}

	text := strings.TrimSpace(event.Message.Text)
	recordInbound(ctx, deps, conversationID, userID, event, text)

	command, arg := splitCommand(text)
	switch command {
	case "/diet":
		handleTagCommand(ctx, deps, event, database.PrefDiet, "Diet", arg)
	case "/allergies":
		handleTagCommand(ctx, deps, event, database.PrefAllergies, "Allergies", arg)
	case "/favorites":
		handleTagCommand(ctx, deps, event, database.PrefFavorites, "Favorites", arg)
	case "/price":
		handlePriceCommand(ctx, deps, event, arg)
	case "/prefs", "/preferences":
		handlePrefsCommand(ctx, deps, event, arg)
	case "/help":
		handleHelpCommand(ctx, deps, event)
	case "/yelp":
		handleSearchCommand(ctx, deps, event, arg)
	default:
		// Plain chat with no matched handler intentionally gets no reply.
	}
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return command, arg
}

func recordInbound(ctx context.Context, deps *HandlerDeps, conversationID, userID string, event line.Event, text string) {
	msg := &database.Message{
		MessageID:      event.Message.ID,
		ConversationID: conversationID,
		UserID:         userID,
		Content:        text,
		Type:           event.Message.Type,
		Timestamp:      time.UnixMilli(event.Timestamp).UTC(),
	}
	if state, err := deps.Store.Session(ctx, conversationID); err == nil && state != nil {
		msg.SessionToken = sql.NullString{String: state.Token, Valid: true}
	}
	if err := deps.Store.SaveMessage(ctx, msg); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to record inbound message", "error", err)
	}
}

// recordOutbound persists what the bot sent so history search and recall
// can see it later.
func recordOutbound(ctx context.Context, deps *HandlerDeps, conversationID string, units []format.MessageUnit, searchCall bool, repliedTo string) {
	now := time.Now().UTC()
	for i, unit := range units {
		content := unit.Text
		msgType := "text"
		if unit.IsCard() {
			content = line.CardSummaryLine(unit.Card)
			msgType = "card"
		}
		if content == "" {
			continue
		}

		msg := &database.Message{
			MessageID:      fmt.Sprintf("out-%d-%d", now.UnixNano(), i),
			ConversationID: conversationID,
			UserID:         database.BotUserID,
			Content:        content,
			Type:           msgType,
			Timestamp:      now,
			SearchCall:     searchCall,
		}
		if repliedTo != "" {
			msg.RepliedMessageID = sql.NullString{String: repliedTo, Valid: true}
		}
		if state, err := deps.Store.Session(ctx, conversationID); err == nil && state != nil {
			msg.SessionToken = sql.NullString{String: state.Token, Valid: true}
		}
		if err := deps.Store.SaveMessage(ctx, msg); err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to record outbound message", "error", err)
		}
	}
}

func replyText(ctx context.Context, deps *HandlerDeps, event line.Event, text string) {
	units := []format.MessageUnit{{Text: text}}
	if err := deps.Messenger.Reply(ctx, event.ReplyToken, units); err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send reply", "error", err)
		return
	}
	recordOutbound(ctx, deps, event.Source.ConversationID(), units, false, inboundMessageID(event))
}

func inboundMessageID(event line.Event) string {
	if event.Message != nil {
		return event.Message.ID
	}
	return ""
}
