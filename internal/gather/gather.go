// Package gather assembles the per-query context bundle: merged explicit
// preferences, the learned group aggregate, and optionally relevant chat
// history selected through a bounded model tool loop.
package gather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ryanhideo/tablescout/internal/ai"
	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/history"
	"github.com/ryanhideo/tablescout/internal/prefs"
)

// maxToolRounds bounds the model tool loop. On exhaustion the partial
// bundle is returned rather than failing the request.
const maxToolRounds = 5

// historyLimit caps snippets per history search.
const historyLimit = 10

// ContextBundle is the transient per-query context. It is built fresh for
// each query and discarded after the orchestrator consumes it.
type ContextBundle struct {
	Prefs        *database.Preferences
	PrefsSummary string
	Aggregate    *database.Aggregate
	GroupSummary string
	History      []history.Result
	HistoryUsed  bool
	Summary      string
}

const gatherSystem = `You prepare context for a restaurant search. Decide whether past chat history would improve the answer to the user's query.
If it would, call search_history with 2 to 4 short keyword terms (single words or two-word phrases, never full sentences).
When you have enough context, reply with a one-paragraph summary of what matters for the search. If history is irrelevant, reply with NONE.`

var searchHistoryTool = ai.Tool{
	Name:        "search_history",
	Description: "Search this conversation's past messages by keywords.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keywords": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 2,
				"maxItems": 4,
			},
		},
		"required": []string{"keywords"},
	},
}

// Gatherer builds context bundles.
type Gatherer struct {
	ai      ai.Client
	prefs   *prefs.Service
	graph   *graph.Aggregator
	history *history.Searcher
	logger  *slog.Logger
}

// NewGatherer creates a gatherer over its collaborators.
func NewGatherer(client ai.Client, prefSvc *prefs.Service, aggregator *graph.Aggregator, searcher *history.Searcher, logger *slog.Logger) *Gatherer {
	return &Gatherer{
		ai:      client,
		prefs:   prefSvc,
		graph:   aggregator,
		history: searcher,
		logger:  logger.With("component", "gather"),
	}
}

// Gather builds the context bundle for one query. Preference and aggregate
// lookups are local and always attempted; failures there degrade to an
// emptier bundle instead of failing the request.
func (g *Gatherer) Gather(ctx context.Context, conversationID, query string) *ContextBundle {
	bundle := &ContextBundle{}

	merged, err := g.prefs.Merged(ctx, conversationID)
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to merge preferences", "error", err)
	} else {
		bundle.Prefs = merged
		bundle.PrefsSummary = prefs.Summary(merged)
	}

	agg, err := g.graph.Aggregate(ctx, conversationID)
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to load learned aggregate", "error", err)
	} else {
		bundle.Aggregate = agg
		bundle.GroupSummary = graph.ContextString(agg)
	}

	g.runToolLoop(ctx, conversationID, query, bundle)
	return bundle
}

func (g *Gatherer) runToolLoop(ctx context.Context, conversationID, query string, bundle *ContextBundle) {
	messages := []ai.Message{{Role: ai.RoleUser, Content: "Query: " + query}}

	for round := 0; round < maxToolRounds; round++ {
		completion, err := g.ai.Complete(ctx, &ai.Request{
			System:   gatherSystem,
			Messages: messages,
			Tools:    []ai.Tool{searchHistoryTool},
		})
		if err != nil {
			g.logger.WarnContext(ctx, "Context model call failed, continuing with partial context",
				"round", round, "error", err)
			return
		}

		if len(completion.ToolCalls) == 0 {
			if summary := strings.TrimSpace(completion.Content); summary != "" && summary != "NONE" {
				bundle.Summary = summary
			}
			return
		}

		messages = append(messages, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			output := g.executeTool(ctx, conversationID, call, bundle)
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
	}

	g.logger.WarnContext(ctx, "Context tool loop exhausted, returning partial context",
		"conversation_id", conversationID, "rounds", maxToolRounds)
}

func (g *Gatherer) executeTool(ctx context.Context, conversationID string, call ai.ToolCall, bundle *ContextBundle) string {
	if call.Name != searchHistoryTool.Name {
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}

	var args struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || len(args.Keywords) == 0 {
		return "invalid keywords argument"
	}
	if len(args.Keywords) > 4 {
		args.Keywords = args.Keywords[:4]
	}

	results, err := g.history.Search(ctx, conversationID, args.Keywords, historyLimit)
	if err != nil {
		g.logger.WarnContext(ctx, "History search failed inside tool loop", "error", err)
		return "history search unavailable"
	}

	bundle.HistoryUsed = true
	bundle.History = append(bundle.History, results...)
	if len(results) == 0 {
		return "no matching messages"
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s\n", r.Role, r.Content)
	}
	return b.String()
}
