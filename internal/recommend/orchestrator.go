// Package recommend is the search orchestrator: it classifies a query,
// gathers context, drives the external search session, and reconciles the
// results with declared and learned preferences.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ryanhideo/tablescout/internal/classify"
	"github.com/ryanhideo/tablescout/internal/gather"
	"github.com/ryanhideo/tablescout/internal/history"
	"github.com/ryanhideo/tablescout/internal/search"
	"github.com/ryanhideo/tablescout/internal/session"
)

// recentWindow is how many prior chat lines feed the classifier and, when
// history search was not used, the enhanced query.
const recentWindow = 6

// recallLimit caps how many past recommendation cards a recall query
// returns.
const recallLimit = 5

// Outcome is one recommendation turn: free-text fragments plus structured
// entities, each rendered separately downstream.
type Outcome struct {
	Fragments []string
	Entities  []search.Entity
}

// Orchestrator coordinates classification, context gathering, the search
// session, and result annotation.
type Orchestrator struct {
	classifier *classify.Classifier
	gatherer   *gather.Gatherer
	sessions   *session.Manager
	searchAPI  search.Client
	history    *history.Searcher
	logger     *slog.Logger
}

// NewOrchestrator wires the orchestrator over its collaborators.
func NewOrchestrator(
	classifier *classify.Classifier,
	gatherer *gather.Gatherer,
	sessions *session.Manager,
	searchAPI search.Client,
	searcher *history.Searcher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		gatherer:   gatherer,
		sessions:   sessions,
		searchAPI:  searchAPI,
		history:    searcher,
		logger:     logger.With("component", "recommend"),
	}
}

// Recommend answers one user query. External-call failures surface as a
// single apologetic fragment; they are never retried, since the search
// provider's sessions are stateful and a blind retry can corrupt them.
func (o *Orchestrator) Recommend(ctx context.Context, conversationID, query string) *Outcome {
	recent, err := o.history.Recent(ctx, conversationID, recentWindow)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to load recent history", "error", err)
	}

	intent := o.classifier.Classify(ctx, query, renderHistory(recent))

	if intent == classify.IntentRecall {
		if outcome := o.recallOutcome(ctx, conversationID, query); outcome != nil {
			return outcome
		}
		// Nothing recorded to recall; treat as a new search.
		intent = classify.IntentRecommendation
	}

	restaurantFocused := classify.IsRestaurantFocused(query)

	if intent == classify.IntentInformational {
		token, live, err := o.sessions.LiveToken(ctx, conversationID)
		if err != nil {
			o.logger.WarnContext(ctx, "Failed to check session liveness", "error", err)
		}
		if live {
			return o.followUp(ctx, conversationID, query, token)
		}
		// No live session to follow up on; fall through to a new search.
		o.logger.DebugContext(ctx, "Informational query without live session, running new search",
			"conversation_id", conversationID)
	}

	return o.newSearch(ctx, conversationID, query, recent, restaurantFocused)
}

// recallOutcome serves a recall query from the message log. Returning the
// previously shown cards avoids contradicting an earlier recommendation
// with a fresh search.
func (o *Orchestrator) recallOutcome(ctx context.Context, conversationID, query string) *Outcome {
	entries, err := o.history.RecallEntries(ctx, conversationID, recallKeywords(query), recallLimit)
	if err != nil {
		o.logger.WarnContext(ctx, "Recall lookup failed", "error", err)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	o.logger.InfoContext(ctx, "Recall served from history",
		"conversation_id", conversationID, "entries", len(entries))
	return &Outcome{Fragments: entries}
}

// followUpFallback answers a follow-up whose response carried no prose
// outside the business listings.
const followUpFallback = "Please check the restaurant cards above for details."

// followUp continues the live search session. The reply keeps only the
// prose answer: a follow-up must not re-surface a card list, even when
// the answer is nothing but one.
func (o *Orchestrator) followUp(ctx context.Context, conversationID, query, token string) *Outcome {
	result, err := o.searchAPI.Query(ctx, &search.QueryRequest{
		Text:          query,
		SessionToken:  token,
		WantReasoning: false,
	})
	if err != nil {
		return o.failureOutcome(ctx, err)
	}

	o.recordToken(ctx, conversationID, result.ContinuationToken)
	prose := stripBusinessSections(result.AnswerText)
	if prose == "" {
		prose = followUpFallback
	}
	return &Outcome{Fragments: []string{prose}}
}

func (o *Orchestrator) newSearch(ctx context.Context, conversationID, query string, recent []history.Result, restaurantFocused bool) *Outcome {
	if !restaurantFocused {
		query = rewriteForVenues(query)
	}

	bundle := o.gatherer.Gather(ctx, conversationID, query)
	enhanced := buildEnhancedQuery(query, bundle, recent)

	token, live, err := o.sessions.LiveToken(ctx, conversationID)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to check session liveness", "error", err)
	}
	if !live {
		token = ""
	}

	result, err := o.searchAPI.Query(ctx, &search.QueryRequest{
		Text:          enhanced,
		SessionToken:  token,
		WantReasoning: restaurantFocused,
	})
	if err != nil {
		return o.failureOutcome(ctx, err)
	}

	entities := result.Entities
	if restaurantFocused {
		for i := range entities {
			note := annotate(&entities[i], bundle.Prefs, bundle.Aggregate)
			entities[i].Reasoning = strings.TrimSpace(strings.TrimSpace(entities[i].Reasoning) + "\n" + note)
		}
	}

	o.recordToken(ctx, conversationID, result.ContinuationToken)

	outcome := &Outcome{Entities: entities}
	prose := result.AnswerText
	if len(entities) > 0 {
		prose = stripBusinessSections(prose)
	}
	if prose != "" {
		outcome.Fragments = []string{prose}
	}

	o.logger.InfoContext(ctx, "Search completed",
		"conversation_id", conversationID,
		"entities", len(entities),
		"continued_session", token != "")
	return outcome
}

func (o *Orchestrator) recordToken(ctx context.Context, conversationID, token string) {
	if token == "" {
		return
	}
	if err := o.sessions.Record(ctx, conversationID, token); err != nil {
		o.logger.ErrorContext(ctx, "Failed to record session token", "error", err)
	}
}

func (o *Orchestrator) failureOutcome(ctx context.Context, err error) *Outcome {
	o.logger.ErrorContext(ctx, "Search call failed", "error", err)
	return &Outcome{Fragments: []string{
		fmt.Sprintf("Sorry, something went wrong while searching (%T). Please try again later.", err),
	}}
}

// buildEnhancedQuery assembles the search query in fixed section order:
// preference context, restaurant names recalled from history, sanitized
// recent chat (only when history search was not used), then the request
// itself. Sections are labeled only when more than one is present so a
// bare query stays untouched.
func buildEnhancedQuery(query string, bundle *gather.ContextBundle, recent []history.Result) string {
	type section struct {
		label string
		body  string
	}
	var sections []section

	prefContext := joinNonEmpty(bundle.PrefsSummary, bundle.GroupSummary)
	if prefContext != "" {
		sections = append(sections, section{"Preferences:", prefContext})
	}

	if names := recalledNames(bundle.History); len(names) > 0 {
		sections = append(sections, section{"Previously recommended:", strings.Join(names, ", ")})
	}

	if !bundle.HistoryUsed && len(recent) > 0 {
		sections = append(sections, section{"Recent conversation:", renderHistory(recent)})
	}

	if bundle.Summary != "" {
		sections = append(sections, section{"Context summary:", bundle.Summary})
	}

	if len(sections) == 0 {
		return query
	}

	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.label + "\n" + s.body + "\n\n")
	}
	b.WriteString("Request:\n" + query)
	return b.String()
}

// recalledNames extracts distinct restaurant names from past
// recommendation card lines gathered into the history set.
func recalledNames(results []history.Result) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range results {
		trimmed := strings.TrimSpace(r.Content)
		if !strings.HasPrefix(trimmed, "📍 ") {
			continue
		}
		name := strings.TrimPrefix(trimmed, "📍 ")
		if idx := strings.Index(name, " - "); idx > 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func renderHistory(results []history.Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s\n", r.Role, r.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// stripBusinessSections cuts structured business listing sections out of
// prose, keeping only the leading answer text.
func stripBusinessSections(text string) string {
	markers := []string{"\n## ", "\n📍"}
	cut := len(text)
	for _, m := range markers {
		if idx := strings.Index(text, m); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	if strings.HasPrefix(text, "## ") {
		return ""
	}
	return strings.TrimSpace(text[:cut])
}

// recallStopwords are filler and recall-trigger words that make poor
// search keywords.
var recallStopwords = map[string]bool{
	"the": true, "and": true, "you": true, "did": true, "what": true,
	"were": true, "was": true, "that": true, "this": true, "place": true,
	"places": true, "yesterday": true, "last": true, "time": true,
	"week": true, "previous": true, "previously": true, "earlier": true,
	"before": true, "remember": true, "recall": true, "gave": true,
	"told": true, "showed": true, "recommend": true, "recommended": true,
	"again": true, "about": true, "have": true, "for": true, "with": true,
	"restaurant": true, "restaurants": true, "options": true,
}

// recallKeywords extracts content words from a recall query for matching
// against the message log.
func recallKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})

	var keywords []string
	for _, f := range fields {
		if len(f) < 3 || recallStopwords[f] {
			continue
		}
		keywords = append(keywords, f)
		if len(keywords) == 4 {
			break
		}
	}
	if len(keywords) == 0 {
		keywords = []string{"📍"}
	}
	return keywords
}
