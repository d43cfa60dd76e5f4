package handlers

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanhideo/tablescout/internal/database"
	"github.com/ryanhideo/tablescout/internal/format"
	"github.com/ryanhideo/tablescout/internal/graph"
	"github.com/ryanhideo/tablescout/internal/line"
	"github.com/ryanhideo/tablescout/internal/prefs"
	"github.com/ryanhideo/tablescout/internal/recommend"
	"github.com/ryanhideo/tablescout/internal/search"
)

type fakeStore struct {
	database.Store

	mu          sync.Mutex
	saved       []database.Message
	tags        map[database.PrefField][]string
	members     []string
	restaurants map[string]*database.RestaurantMeta
	edges       map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tags:        map[database.PrefField][]string{},
		restaurants: map[string]*database.RestaurantMeta{},
		edges:       map[string]string{},
	}
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *database.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeStore) Session(_ context.Context, _ string) (*database.SessionState, error) {
	return nil, nil
}

func (f *fakeStore) SetPreferenceTags(_ context.Context, _ string, field database.PrefField, values []string, mode database.PrefMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mode == database.PrefClear {
		f.tags[field] = nil
		return nil
	}
	f.tags[field] = append(f.tags[field], values...)
	return nil
}

func (f *fakeStore) Preferences(_ context.Context, _ string) (*database.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &database.Preferences{
		Diet:               f.tags[database.PrefDiet],
		Allergies:          f.tags[database.PrefAllergies],
		FavoriteCategories: f.tags[database.PrefFavorites],
	}, nil
}

func (f *fakeStore) ConversationMembers(_ context.Context, _ string) ([]string, error) {
	return f.members, nil
}

func (f *fakeStore) EnsureConversation(_ context.Context, _ string) error { return nil }
func (f *fakeStore) EnsureUser(_ context.Context, _ string) error         { return nil }

func (f *fakeStore) EnsureMember(_ context.Context, _, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m == userID {
			return nil
		}
	}
	f.members = append(f.members, userID)
	return nil
}

func (f *fakeStore) UpsertRestaurant(_ context.Context, meta *database.RestaurantMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restaurants[meta.RestaurantID] = meta
	return nil
}

func (f *fakeStore) UpsertEdge(_ context.Context, userID, restaurantID, polarity string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[userID+"|"+restaurantID] = polarity
	return nil
}

func (f *fakeStore) EdgesForUsers(_ context.Context, userIDs []string) ([]database.PreferenceEdge, error) {
	return f.edgeList(userIDs, ""), nil
}

func (f *fakeStore) EdgesForRestaurant(_ context.Context, userIDs []string, restaurantID string) ([]database.PreferenceEdge, error) {
	return f.edgeList(userIDs, restaurantID), nil
}

func (f *fakeStore) edgeList(userIDs []string, restaurantID string) []database.PreferenceEdge {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.PreferenceEdge
	for key, polarity := range f.edges {
		for i := 0; i < len(key); i++ {
			if key[i] != '|' {
				continue
			}
			uid, rid := key[:i], key[i+1:]
			if restaurantID != "" && rid != restaurantID {
				break
			}
			for _, want := range userIDs {
				if want == uid {
					meta := f.restaurants[rid]
					out = append(out, database.PreferenceEdge{
						UserID: uid, RestaurantID: rid, Polarity: polarity,
						Name: meta.Name, Category: meta.Category, Price: meta.Price,
					})
				}
			}
			break
		}
	}
	return out
}

func (f *fakeStore) SaveAggregate(_ context.Context, _ string, _ *database.Aggregate) error {
	return nil
}

type fakeMessenger struct {
	replies [][]format.MessageUnit
	pushes  [][]format.MessageUnit
}

func (f *fakeMessenger) Reply(_ context.Context, _ string, units []format.MessageUnit) error {
	f.replies = append(f.replies, units)
	return nil
}

func (f *fakeMessenger) Push(_ context.Context, _ string, units []format.MessageUnit) error {
	f.pushes = append(f.pushes, units)
	return nil
}

type fakeRecommender struct {
	outcome *recommend.Outcome
	queries []string
}

func (f *fakeRecommender) Recommend(_ context.Context, _, query string) *recommend.Outcome {
	f.queries = append(f.queries, query)
	return f.outcome
}

func newDeps(store *fakeStore, messenger *fakeMessenger, recommender Recommender) *HandlerDeps {
	logger := slog.Default()
	return &HandlerDeps{
		Store:        store,
		Prefs:        prefs.NewService(store, logger),
		Graph:        graph.NewAggregator(store, logger),
		Orchestrator: recommender,
		Messenger:    messenger,
		Logger:       logger,
	}
}

func textEvent(text string) line.Event {
	return line.Event{
		Type:       line.EventTypeMessage,
		ReplyToken: "reply-token",
		Timestamp:  time.Now().UnixMilli(),
		Source:     line.Source{Type: "group", UserID: "u1", GroupID: "g1"},
		Message:    &line.EventMessage{ID: "m1", Type: "text", Text: text},
	}
}

func TestDietCommandAppendsAndEchoes(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	deps := newDeps(store, messenger, &fakeRecommender{})

	HandleEvent(context.Background(), deps, textEvent("/diet vegetarian, halal"))

	require.Len(t, messenger.replies, 1)
	reply := messenger.replies[0][0].Text
	assert.Contains(t, reply, "✅ Diet updated")
	assert.Contains(t, reply, "vegetarian")
	assert.Contains(t, reply, "halal")
	assert.Equal(t, []string{"vegetarian", "halal"}, store.tags[database.PrefDiet])
}

func TestPriceCommandAcceptsDollarSigns(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}

	var gotLevel *int
	storeWithPrice := &priceStore{fakeStore: store, level: &gotLevel}
	deps := newDeps(store, messenger, &fakeRecommender{})
	deps.Prefs = prefs.NewService(storeWithPrice, slog.Default())

	HandleEvent(context.Background(), deps, textEvent("/price $$"))

	require.Len(t, messenger.replies, 1)
	assert.Contains(t, messenger.replies[0][0].Text, "set to $$")
	require.NotNil(t, gotLevel)
	assert.Equal(t, 2, *gotLevel)
}

func TestPriceCommandRejectsOutOfRange(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}

	var gotLevel *int
	storeWithPrice := &priceStore{fakeStore: store, level: &gotLevel}
	deps := newDeps(store, messenger, &fakeRecommender{})
	deps.Prefs = prefs.NewService(storeWithPrice, slog.Default())

	for _, arg := range []string{"/price 9", "/price 0", "/price $$$$$"} {
		HandleEvent(context.Background(), deps, textEvent(arg))
	}

	require.Len(t, messenger.replies, 3)
	for _, reply := range messenger.replies {
		assert.Contains(t, reply[0].Text, "1 to 4")
	}
	assert.Nil(t, gotLevel)
}

type priceStore struct {
	*fakeStore
	level **int
}

func (p *priceStore) SetPriceLevel(_ context.Context, _ string, level *int) error {
	*p.level = level
	return nil
}

func TestNonCommandChatGetsNoReply(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	deps := newDeps(store, messenger, &fakeRecommender{})

	HandleEvent(context.Background(), deps, textEvent("just chatting about the weather"))

	assert.Empty(t, messenger.replies)
	assert.Empty(t, messenger.pushes)
	// The inbound message is still recorded for history.
	require.Len(t, store.saved, 1)
	assert.Equal(t, "u1", store.saved[0].UserID)
}

func TestSearchCommandAcksThenPushesResults(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	recommender := &fakeRecommender{outcome: &recommend.Outcome{
		Fragments: []string{"Two solid picks."},
		Entities:  []search.Entity{{ID: "r1", Name: "Sakura", Category: "Japanese", Price: "$$"}},
	}}
	deps := newDeps(store, messenger, recommender)

	HandleEvent(context.Background(), deps, textEvent("/yelp sushi near shibuya"))

	require.Len(t, messenger.replies, 1)
	assert.Equal(t, searchAck, messenger.replies[0][0].Text)
	assert.Equal(t, []string{"sushi near shibuya"}, recommender.queries)

	require.Len(t, messenger.pushes, 1)
	pushed := messenger.pushes[0]
	require.Len(t, pushed, 2)
	assert.Equal(t, "Two solid picks.", pushed[0].Text)
	assert.True(t, pushed[1].IsCard())

	// Card trace is persisted so recall can find it later.
	var cardLine string
	for _, msg := range store.saved {
		if msg.Type == "card" {
			cardLine = msg.Content
		}
	}
	assert.Equal(t, "📍 Sakura - $$ - Japanese", cardLine)
}

func TestPostbackLikeRepliesWithRatio(t *testing.T) {
	store := newFakeStore()
	store.members = []string{"u1", "u2"}
	messenger := &fakeMessenger{}
	deps := newDeps(store, messenger, &fakeRecommender{})

	data := url.Values{}
	data.Set("action", "like")
	data.Set("restaurantId", "r1")
	data.Set("name", "Sakura Sushi")
	data.Set("cuisine", "Japanese")
	data.Set("price", "$$")

	event := line.Event{
		Type:       line.EventTypePostback,
		ReplyToken: "reply-token",
		Source:     line.Source{Type: "group", UserID: "u1", GroupID: "g1"},
		Postback:   &line.Postback{Data: data.Encode()},
	}
	HandleEvent(context.Background(), deps, event)

	require.Len(t, messenger.replies, 1)
	assert.Equal(t, "Sakura Sushi\n👍 1 | 👎 0", messenger.replies[0][0].Text)
	assert.Equal(t, database.PolarityLike, store.edges["u1|r1"])
}

func TestPostbackUnknownActionIgnored(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	deps := newDeps(store, messenger, &fakeRecommender{})

	event := line.Event{
		Type:     line.EventTypePostback,
		Source:   line.Source{UserID: "u1"},
		Postback: &line.Postback{Data: "action=snooze&restaurantId=r1&name=X"},
	}
	HandleEvent(context.Background(), deps, event)

	assert.Empty(t, messenger.replies)
}
