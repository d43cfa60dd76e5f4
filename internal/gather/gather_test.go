package gather

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanhideo/tablescout/internal/ai"
	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/history"
	"github.com/ryanhideo/tablescout/internal/prefs"
)

type fakeStore struct {
	database.Store

	members  []string
	users    map[string]*database.Preferences
	messages []database.Message
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

func (f *fakeStore) CachedAggregate(_ context.Context, _ string) (*database.Aggregate, error) {
	return &database.Aggregate{TopLiked: []string{"Japanese"}}, nil
}

func (f *fakeStore) SearchMessages(_ context.Context, _ string, _ []string, _ int) ([]database.Message, error) {
	return f.messages, nil
}

type fakeAI struct {
	completions []*ai.Completion
	errs        []error
	calls       int
}

func (f *fakeAI) Complete(_ context.Context, _ *ai.Request) (*ai.Completion, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.completions) {
		return f.completions[i], nil
	}
	return &ai.Completion{Content: "NONE"}, nil
}

func newGatherer(store *fakeStore, client ai.Client) *Gatherer {
	logger := slog.Default()
	return NewGatherer(
		client,
		prefs.NewService(store, logger),
		graph.NewAggregator(store, logger),
		history.NewSearcher(store, logger),
		logger,
	)
}

func TestGatherAlwaysCollectsLocalContext(t *testing.T) {
	level := 2
	store := &fakeStore{
		members: []string{"u1"},
		users: map[string]*database.Preferences{
			"u1": {Diet: []string{"vegetarian"}, PriceLevel: &level},
		},
	}

	g := newGatherer(store, &fakeAI{completions: []*ai.Completion{{Content: "NONE"}}})
	bundle := g.Gather(context.Background(), "conv-1", "sushi tonight")

	require.NotNil(t, bundle.Prefs)
	assert.Contains(t, bundle.PrefsSummary, "vegetarian")
	assert.Contains(t, bundle.GroupSummary, "Japanese")
	assert.False(t, bundle.HistoryUsed)
	assert.Empty(t, bundle.Summary)
}

func TestGatherRunsHistoryToolCall(t *testing.T) {
	store := &fakeStore{
		members: []string{"u1"},
		messages: []database.Message{{
			UserID:    "u1",
			Content:   "that ramen place on 5th was amazing",
			Timestamp: time.Now(),
		}},
	}
	client := &fakeAI{completions: []*ai.Completion{
		{ToolCalls: []ai.ToolCall{{
			ID:        "tc-1",
			Name:      "search_history",
			Arguments: `{"keywords":["ramen","5th"]}`,
		}}},
		{Content: "The group previously enjoyed a ramen place on 5th."},
	}}

	g := newGatherer(store, client)
	bundle := g.Gather(context.Background(), "conv-1", "ramen again?")

	assert.True(t, bundle.HistoryUsed)
	require.Len(t, bundle.History, 1)
	assert.Contains(t, bundle.History[0].Content, "ramen place on 5th")
	assert.Contains(t, bundle.Summary, "previously enjoyed")
	assert.Equal(t, 2, client.calls)
}

func TestGatherToolLoopBounded(t *testing.T) {
	store := &fakeStore{members: []string{"u1"}}

	// A model that keeps asking for history never terminates on its own.
	looping := make([]*ai.Completion, maxToolRounds+3)
	for i := range looping {
		looping[i] = &ai.Completion{ToolCalls: []ai.ToolCall{{
			ID:        "tc",
			Name:      "search_history",
			Arguments: `{"keywords":["a","b"]}`,
		}}}
	}
	client := &fakeAI{completions: looping}

	g := newGatherer(store, client)
	bundle := g.Gather(context.Background(), "conv-1", "anything")

	assert.Equal(t, maxToolRounds, client.calls)
	assert.NotNil(t, bundle)
	assert.Empty(t, bundle.Summary)
}

func TestGatherModelFailureReturnsPartialBundle(t *testing.T) {
	level := 3
	store := &fakeStore{
		members: []string{"u1"},
		users:   map[string]*database.Preferences{"u1": {PriceLevel: &level}},
	}
	client := &fakeAI{errs: []error{errors.New("model down")}}

	g := newGatherer(store, client)
	bundle := g.Gather(context.Background(), "conv-1", "dinner?")

	require.NotNil(t, bundle)
	assert.Contains(t, bundle.PrefsSummary, "$$$")
	assert.Empty(t, bundle.Summary)
}
