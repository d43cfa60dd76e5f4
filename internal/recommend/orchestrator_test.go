package recommend

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanhideo/tablescout/internal/ai"
	"github.com/ryanhideo/tablescout/internal/classify"
	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/gather"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/history"
	"github.com/ryanhideo/tablescout/internal/prefs"
	"github.com/ryanhideo/tablescout/internal/search"
	"github.com/ryanhideo/tablescout/internal/session"
)

type fakeStore struct {
	database.Store

	members  []string
	users    map[string]*database.Preferences
	messages []database.Message
	session  *database.SessionState
	recorded []string
}

func (f *fakeStore) ConversationMembers(_ context.Context, _ string) ([]string, error) {
	return f.members, nil
}

func (f *fakeStore) Preferences(_ context.Context, userID string) (*database.Preferences, error) {
	if p, ok := f.users[userID]; ok {
		return p, nil
	}
	return &database.Preferences{}, nil
}

func (f *fakeStore) RecentMessages(_ context.Context, _ string, _ int) ([]database.Message, error) {
	return f.messages, nil
}

func (f *fakeStore) SearchMessages(_ context.Context, _ string, _ []string, _ int) ([]database.Message, error) {
	return f.messages, nil
}

func (f *fakeStore) Session(_ context.Context, _ string) (*database.SessionState, error) {
	return f.session, nil
}

func (f *fakeStore) RecordSession(_ context.Context, _, token string, _ time.Time) error {
	f.recorded = append(f.recorded, token)
	return nil
}

func (f *fakeStore) CachedAggregate(_ context.Context, _ string) (*database.Aggregate, error) {
	return &database.Aggregate{TopLiked: []string{}, TopAvoided: []string{}}, nil
}

type fakeAI struct {
	labels []string
	calls  int
}

func (f *fakeAI) Complete(_ context.Context, _ *ai.Request) (*ai.Completion, error) {
	label := "NONE"
	if f.calls < len(f.labels) {
		label = f.labels[f.calls]
	}
	f.calls++
	return &ai.Completion{Content: label}, nil
}

type fakeSearch struct {
	result  *search.QueryResult
	err     error
	lastReq *search.QueryRequest
	calls   int
}

func (f *fakeSearch) Query(_ context.Context, req *search.QueryRequest) (*search.QueryResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newOrchestrator(store *fakeStore, client ai.Client, searchAPI search.Client) *Orchestrator {
	logger := slog.Default()
	prefSvc := prefs.NewService(store, logger)
	aggregator := graph.NewAggregator(store, logger)
	searcher := history.NewSearcher(store, logger)
	return NewOrchestrator(
		classify.NewClassifier(client, logger),
		gather.NewGatherer(client, prefSvc, aggregator, searcher, logger),
		session.NewManager(store, 6*time.Hour, logger),
		searchAPI,
		searcher,
		logger,
	)
}

func TestRecallShortCircuitsExternalSearch(t *testing.T) {
	store := &fakeStore{
		members: []string{"u1"},
		messages: []database.Message{{
			UserID:    database.BotUserID,
			Content:   "📍 Sakura Sushi - $$ - Japanese",
			Timestamp: time.Now(),
		}},
	}
	searchAPI := &fakeSearch{}

	o := newOrchestrator(store, &fakeAI{}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "what sushi place did you show me yesterday?")

	require.Len(t, outcome.Fragments, 1)
	assert.Equal(t, "📍 Sakura Sushi - $$ - Japanese", outcome.Fragments[0])
	assert.Empty(t, outcome.Entities)
	assert.Zero(t, searchAPI.calls)
}

func TestRecallWithNothingRecordedFallsThroughToSearch(t *testing.T) {
	store := &fakeStore{members: []string{"u1"}}
	searchAPI := &fakeSearch{result: &search.QueryResult{AnswerText: "Here are some spots."}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"NONE"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "any sushi like last time?")

	assert.Equal(t, 1, searchAPI.calls)
	require.Len(t, outcome.Fragments, 1)
}

func TestInformationalWithLiveSessionReturnsProseOnly(t *testing.T) {
	store := &fakeStore{
		members: []string{"u1"},
		session: &database.SessionState{Token: "chat-live", RefreshedAt: time.Now()},
	}
	searchAPI := &fakeSearch{result: &search.QueryResult{
		AnswerText:        "They open at 11am.\n## Business Listings\n📍 Sakura Sushi",
		ContinuationToken: "chat-live-2",
	}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"INFORMATIONAL"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "what are the opening hours?")

	require.Len(t, outcome.Fragments, 1)
	assert.Equal(t, "They open at 11am.", outcome.Fragments[0])
	assert.Empty(t, outcome.Entities)
	assert.Equal(t, "chat-live", searchAPI.lastReq.SessionToken)
	assert.False(t, searchAPI.lastReq.WantReasoning)
	assert.Equal(t, []string{"chat-live-2"}, store.recorded)
}

func TestFollowUpNeverEchoesBareListings(t *testing.T) {
	store := &fakeStore{
		members: []string{"u1"},
		session: &database.SessionState{Token: "chat-live", RefreshedAt: time.Now()},
	}
	// The whole answer is a listing section; stripping leaves no prose.
	searchAPI := &fakeSearch{result: &search.QueryResult{
		AnswerText: "## Business Listings\n📍 Sakura Sushi\n📍 Trattoria Roma",
	}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"INFORMATIONAL"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "which one is closer?")

	require.Len(t, outcome.Fragments, 1)
	assert.Equal(t, followUpFallback, outcome.Fragments[0])
	assert.NotContains(t, outcome.Fragments[0], "📍")
}

func TestInformationalWithoutSessionFallsThroughToNewSearch(t *testing.T) {
	store := &fakeStore{members: []string{"u1"}}
	searchAPI := &fakeSearch{result: &search.QueryResult{
		AnswerText:        "Try these.",
		ContinuationToken: "chat-new",
	}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"INFORMATIONAL", "NONE"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "is it open for dinner?")

	require.NotNil(t, outcome)
	assert.Equal(t, 1, searchAPI.calls)
	assert.Empty(t, searchAPI.lastReq.SessionToken)
	assert.Equal(t, []string{"chat-new"}, store.recorded)
}

func TestStaleSessionStartsFresh(t *testing.T) {
	store := &fakeStore{
		members: []string{"u1"},
		session: &database.SessionState{Token: "chat-old", RefreshedAt: time.Now().Add(-7 * time.Hour)},
	}
	searchAPI := &fakeSearch{result: &search.QueryResult{AnswerText: "Fresh picks."}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"RECOMMENDATION", "NONE"}}, searchAPI)
	o.Recommend(context.Background(), "conv-1", "dinner for tonight?")

	assert.Empty(t, searchAPI.lastReq.SessionToken)
}

func TestNewSearchAnnotatesEntities(t *testing.T) {
	level := 2
	store := &fakeStore{
		members: []string{"u1"},
		users: map[string]*database.Preferences{
			"u1": {FavoriteCategories: []string{"japanese"}, PriceLevel: &level},
		},
	}
	searchAPI := &fakeSearch{result: &search.QueryResult{
		AnswerText: "Here is a great option.",
		Entities: []search.Entity{
			{ID: "r1", Name: "Sakura", Category: "Japanese Fusion", Price: "$$", Reasoning: "Fresh fish."},
		},
		ContinuationToken: "chat-1",
	}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"RECOMMENDATION", "NONE"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "good sushi nearby?")

	require.Len(t, outcome.Entities, 1)
	assert.Contains(t, outcome.Entities[0].Reasoning, "Fresh fish.")
	assert.Contains(t, outcome.Entities[0].Reasoning, "favorite cuisine: japanese")
	assert.True(t, searchAPI.lastReq.WantReasoning)
	assert.Contains(t, searchAPI.lastReq.Text, "Request:\ngood sushi nearby?")
	assert.Contains(t, searchAPI.lastReq.Text, "Preferences:")
}

func TestSearchFailureYieldsApologyWithErrorClass(t *testing.T) {
	store := &fakeStore{members: []string{"u1"}}
	searchAPI := &fakeSearch{err: search.ErrTimeout}

	o := newOrchestrator(store, &fakeAI{labels: []string{"RECOMMENDATION", "NONE"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "pizza tonight?")

	require.Len(t, outcome.Fragments, 1)
	assert.Contains(t, outcome.Fragments[0], "Sorry, something went wrong")
	assert.Contains(t, outcome.Fragments[0], "errorString")
	assert.Empty(t, outcome.Entities)
	assert.Equal(t, 1, searchAPI.calls)
}

func TestBareQueryStaysUntouched(t *testing.T) {
	bundle := &gather.ContextBundle{}
	assert.Equal(t, "sushi", buildEnhancedQuery("sushi", bundle, nil))
}

func TestEnhancedQuerySkipsRecentWhenHistoryUsed(t *testing.T) {
	bundle := &gather.ContextBundle{
		PrefsSummary: "User Preferences:\n- Favorite cuisines: thai",
		HistoryUsed:  true,
		History: []history.Result{
			{Role: history.RoleAssistant, Content: "📍 Thai Basil - $$ - Thai"},
		},
	}
	recent := []history.Result{{Role: history.RoleUser, Content: "hello"}}

	enhanced := buildEnhancedQuery("more thai?", bundle, recent)
	assert.Contains(t, enhanced, "Previously recommended:\nThai Basil")
	assert.NotContains(t, enhanced, "Recent conversation:")
}

func TestRecallKeywords(t *testing.T) {
	kws := recallKeywords("what sushi place did you recommend yesterday?")
	assert.Equal(t, []string{"sushi"}, kws)

	assert.NotEmpty(t, recallKeywords("what was that again?"))
}

func TestFailureErrorClassNameForTypedErrors(t *testing.T) {
	type searchDownError struct{ error }
	store := &fakeStore{members: []string{"u1"}}
	searchAPI := &fakeSearch{err: &searchDownError{errors.New("boom")}}

	o := newOrchestrator(store, &fakeAI{labels: []string{"RECOMMENDATION", "NONE"}}, searchAPI)
	outcome := o.Recommend(context.Background(), "conv-1", "pizza tonight?")

	require.Len(t, outcome.Fragments, 1)
	assert.Contains(t, outcome.Fragments[0], "searchDownError")
}
