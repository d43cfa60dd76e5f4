package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the data access layer for conversations, messages,
// declared preferences, the like/dislike graph, and the aggregate cache.
type Store interface {
	// EnsureUser inserts the user row if it does not exist yet.
	EnsureUser(ctx context.Context, userID string) error
	// EnsureConversation inserts the conversation row if it does not exist yet.
	EnsureConversation(ctx context.Context, conversationID string) error
	// EnsureMember records that a user participates in a conversation.
	EnsureMember(ctx context.Context, conversationID, userID string) error

	// SaveMessage persists one chat message, creating the author, the
	// conversation, and the membership row as needed.
	SaveMessage(ctx context.Context, msg *Message) error
	// RecentMessages returns up to limit messages for a conversation,
	// newest first.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// SearchMessages returns messages in a conversation whose content
	// matches at least one keyword (case-insensitive), newest first.
	SearchMessages(ctx context.Context, conversationID string, keywords []string, limit int) ([]Message, error)
	// ConversationMembers returns the user ids that have posted in a conversation.
	ConversationMembers(ctx context.Context, conversationID string) ([]string, error)

	// Preferences returns the declared preferences for a user. A user with
	// no row yields empty preferences, not an error.
	Preferences(ctx context.Context, userID string) (*Preferences, error)
	// SetPreferenceTags updates one tag-set preference field. Append mode
	// unions with the existing set; duplicates are dropped.
	SetPreferenceTags(ctx context.Context, userID string, field PrefField, values []string, mode PrefMode) error
	// SetPriceLevel sets or clears (nil) the preferred price level.
	SetPriceLevel(ctx context.Context, userID string, level *int) error
	// ClearAllPreferences resets every declared preference for a user.
	ClearAllPreferences(ctx context.Context, userID string) error

	// Session returns the conversation's search session state, or nil when
	// no session has ever been recorded.
	Session(ctx context.Context, conversationID string) (*SessionState, error)
	// RecordSession overwrites the conversation's session token and
	// refresh timestamp.
	RecordSession(ctx context.Context, conversationID, token string, refreshedAt time.Time) error

	// UpsertRestaurant inserts or refreshes a restaurant graph node.
	UpsertRestaurant(ctx context.Context, meta *RestaurantMeta) error
	// UpsertEdge records a like or dislike edge, removing any edge of the
	// opposite polarity for the same user and restaurant.
	UpsertEdge(ctx context.Context, userID, restaurantID, polarity string, at time.Time) error
	// EdgesForUsers returns all preference edges for the given users,
	// joined with restaurant metadata.
	EdgesForUsers(ctx context.Context, userIDs []string) ([]PreferenceEdge, error)
	// EdgesForRestaurant returns the edges a set of users holds toward one
	// restaurant.
	EdgesForRestaurant(ctx context.Context, userIDs []string, restaurantID string) ([]PreferenceEdge, error)

	// SaveAggregate caches the learned-preference snapshot for a conversation.
	SaveAggregate(ctx context.Context, conversationID string, agg *Aggregate) error
	// CachedAggregate returns the cached snapshot, or nil when none exists.
	CachedAggregate(ctx context.Context, conversationID string) (*Aggregate, error)

	// RunSQLMaintenance performs routine database maintenance (ANALYZE,
	// WAL checkpoint, VACUUM).
	RunSQLMaintenance(ctx context.Context) (string, error)
	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by the given database connection.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to ensure user %s: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) EnsureConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("conversation id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, created_at)
		VALUES (?, ?)
		ON CONFLICT (conversation_id) DO NOTHING`,
		conversationID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *sqlxStore) EnsureMember(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return errors.New("conversation id and user id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_members (conversation_id, user_id)
		VALUES (?, ?)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure chat member: %w", err)
	}
	return nil
}

func (s *sqlxStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	if msg.MessageID == "" || msg.ConversationID == "" || msg.UserID == "" {
		return errors.New("message id, conversation id, and user id are required")
	}

	if err := s.EnsureUser(ctx, msg.UserID); err != nil {
		return err
	}
	if err := s.EnsureConversation(ctx, msg.ConversationID); err != nil {
		return err
	}
	if err := s.EnsureMember(ctx, msg.ConversationID, msg.UserID); err != nil {
		return err
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO messages (
			message_id, conversation_id, user_id, content, message_type,
			timestamp, search_call, replied_message_id, session_token
		) VALUES (
			:message_id, :conversation_id, :user_id, :content, :message_type,
			:timestamp, :search_call, :replied_message_id, :session_token
		)
		ON CONFLICT (message_id) DO NOTHING`, msg)
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", msg.MessageID, err)
	}

	s.logger.DebugContext(ctx, "Message saved",
		"message_id", msg.MessageID,
		"conversation_id", msg.ConversationID)
	return nil
}

func (s *sqlxStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}
	if limit <= 0 {
		return nil, nil
	}

	var msgs []Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return msgs, nil
}

func (s *sqlxStore) SearchMessages(ctx context.Context, conversationID string, keywords []string, limit int) ([]Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}

	var clauses []string
	args := []any{conversationID}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		clauses = append(clauses, "LOWER(content) LIKE ?")
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT * FROM messages
		WHERE conversation_id = ? AND (%s)
		ORDER BY timestamp DESC
		LIMIT ?`, strings.Join(clauses, " OR "))

	var msgs []Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return msgs, nil
}

func (s *sqlxStore) ConversationMembers(ctx context.Context, conversationID string) ([]string, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}

	var members []string
	err := s.db.SelectContext(ctx, &members, `
		SELECT user_id FROM chat_members
		WHERE conversation_id = ? AND user_id != ?
		ORDER BY user_id`,
		conversationID, BotUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation members: %w", err)
	}
	return members, nil
}

type userRow struct {
	UserID     string        `db:"user_id"`
	Diet       string        `db:"diet"`
	Allergies  string        `db:"allergies"`
	Favorites  string        `db:"favorites"`
	PriceLevel sql.NullInt64 `db:"price_level"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

func (s *sqlxStore) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, errors.New("user id cannot be empty")
	}

	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Preferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences for %s: %w", userID, err)
	}

	prefs := &Preferences{
		Diet:               decodeTags(row.Diet),
		Allergies:          decodeTags(row.Allergies),
		FavoriteCategories: decodeTags(row.Favorites),
	}
	if row.PriceLevel.Valid {
		level := int(row.PriceLevel.Int64)
		prefs.PriceLevel = &level
	}
	return prefs, nil
}

func (s *sqlxStore) SetPreferenceTags(ctx context.Context, userID string, field PrefField, values []string, mode PrefMode) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}
	switch field {
	case PrefDiet, PrefAllergies, PrefFavorites:
	default:
		return fmt.Errorf("unknown preference field: %s", field)
	}

	if err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}

	final := values
	switch mode {
	case PrefClear:
		final = nil
	case PrefAppend:
		var current string
		query := fmt.Sprintf(`SELECT %s FROM users WHERE user_id = ?`, field)
		if err := s.db.GetContext(ctx, &current, query, userID); err != nil {
			return fmt.Errorf("failed to read current %s: %w", field, err)
		}
		final = unionTags(decodeTags(current), values)
	case PrefReplace:
		final = unionTags(nil, values)
	}

	encoded, err := encodeTags(final)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = ?, updated_at = ? WHERE user_id = ?`, field)
	if _, err := s.db.ExecContext(ctx, query, encoded, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to update %s for %s: %w", field, userID, err)
	}

	s.logger.DebugContext(ctx, "Preference tags updated",
		"user_id", userID, "field", string(field), "count", len(final))
	return nil
}

func (s *sqlxStore) SetPriceLevel(ctx context.Context, userID string, level *int) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}
	if err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}

	var value any
	if level != nil {
		value = *level
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET price_level = ?, updated_at = ? WHERE user_id = ?`,
		value, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update price level for %s: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) ClearAllPreferences(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET diet = '[]', allergies = '[]', favorites = '[]',
		    price_level = NULL, updated_at = ?
		WHERE user_id = ?`,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to clear preferences for %s: %w", userID, err)
	}
	return nil
}

func (s *sqlxStore) Session(ctx context.Context, conversationID string) (*SessionState, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}

	var conv Conversation
	err := s.db.GetContext(ctx, &conv,
		`SELECT * FROM conversations WHERE conversation_id = ?`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session for %s: %w", conversationID, err)
	}

	if !conv.SessionToken.Valid || !conv.SessionRefreshedAt.Valid {
		return nil, nil
	}
	return &SessionState{
		Token:       conv.SessionToken.String,
		RefreshedAt: conv.SessionRefreshedAt.Time,
	}, nil
}

func (s *sqlxStore) RecordSession(ctx context.Context, conversationID, token string, refreshedAt time.Time) error {
	if conversationID == "" || token == "" {
		return errors.New("conversation id and token cannot be empty")
	}
	if err := s.EnsureConversation(ctx, conversationID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET session_token = ?, session_refreshed_at = ?
		WHERE conversation_id = ?`,
		token, refreshedAt.UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to record session for %s: %w", conversationID, err)
	}

	s.logger.DebugContext(ctx, "Session recorded", "conversation_id", conversationID)
	return nil
}

func (s *sqlxStore) UpsertRestaurant(ctx context.Context, meta *RestaurantMeta) error {
	if meta == nil {
		return errors.New("restaurant meta cannot be nil")
	}
	if meta.RestaurantID == "" || meta.Name == "" {
		return errors.New("restaurant id and name are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO restaurants (restaurant_id, name, category, price, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (restaurant_id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price = excluded.price`,
		meta.RestaurantID, meta.Name, meta.Category, meta.Price, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert restaurant %s: %w", meta.RestaurantID, err)
	}
	return nil
}

func (s *sqlxStore) UpsertEdge(ctx context.Context, userID, restaurantID, polarity string, at time.Time) error {
	if userID == "" || restaurantID == "" {
		return errors.New("user id and restaurant id cannot be empty")
	}
	if polarity != PolarityLike && polarity != PolarityDislike {
		return fmt.Errorf("invalid polarity: %s", polarity)
	}
	if err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Failed to rollback edge upsert", "error", rbErr)
			}
		}
	}()

	// The primary key on (user_id, restaurant_id) means recording one
	// polarity replaces the other.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO preference_edges (user_id, restaurant_id, polarity, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, restaurant_id) DO UPDATE SET
			polarity = excluded.polarity,
			created_at = excluded.created_at`,
		userID, restaurantID, polarity, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert preference edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edge upsert: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Preference edge recorded",
		"user_id", userID, "restaurant_id", restaurantID, "polarity", polarity)
	return nil
}

func (s *sqlxStore) EdgesForUsers(ctx context.Context, userIDs []string) ([]PreferenceEdge, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT e.user_id, e.restaurant_id, e.polarity, e.created_at,
		       r.name, r.category, r.price
		FROM preference_edges e
		JOIN restaurants r ON r.restaurant_id = e.restaurant_id
		WHERE e.user_id IN (?)
		ORDER BY e.created_at`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build edges query: %w", err)
	}

	var edges []PreferenceEdge
	if err := s.db.SelectContext(ctx, &edges, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get preference edges: %w", err)
	}
	return edges, nil
}

func (s *sqlxStore) EdgesForRestaurant(ctx context.Context, userIDs []string, restaurantID string) ([]PreferenceEdge, error) {
	if restaurantID == "" {
		return nil, errors.New("restaurant id cannot be empty")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT e.user_id, e.restaurant_id, e.polarity, e.created_at,
		       r.name, r.category, r.price
		FROM preference_edges e
		JOIN restaurants r ON r.restaurant_id = e.restaurant_id
		WHERE e.user_id IN (?) AND e.restaurant_id = ?`, userIDs, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to build restaurant edges query: %w", err)
	}

	var edges []PreferenceEdge
	if err := s.db.SelectContext(ctx, &edges, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get restaurant edges: %w", err)
	}
	return edges, nil
}

func (s *sqlxStore) SaveAggregate(ctx context.Context, conversationID string, agg *Aggregate) error {
	if conversationID == "" {
		return errors.New("conversation id cannot be empty")
	}
	if agg == nil {
		return errors.New("aggregate cannot be nil")
	}

	liked, err := encodeTags(agg.TopLiked)
	if err != nil {
		return fmt.Errorf("failed to encode top liked: %w", err)
	}
	avoided, err := encodeTags(agg.TopAvoided)
	if err != nil {
		return fmt.Errorf("failed to encode top avoided: %w", err)
	}
	var avgPrice any
	if agg.AvgPrice != nil {
		avgPrice = *agg.AvgPrice
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_aggregates (conversation_id, top_liked, top_avoided, avg_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id) DO UPDATE SET
			top_liked = excluded.top_liked,
			top_avoided = excluded.top_avoided,
			avg_price = excluded.avg_price,
			updated_at = excluded.updated_at`,
		conversationID, liked, avoided, avgPrice, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save aggregate for %s: %w", conversationID, err)
	}
	return nil
}

func (s *sqlxStore) CachedAggregate(ctx context.Context, conversationID string) (*Aggregate, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id cannot be empty")
	}

	var row struct {
		TopLiked   string        `db:"top_liked"`
		TopAvoided string        `db:"top_avoided"`
		AvgPrice   sql.NullInt64 `db:"avg_price"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT top_liked, top_avoided, avg_price
		FROM conversation_aggregates
		WHERE conversation_id = ?`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate for %s: %w", conversationID, err)
	}

	agg := &Aggregate{
		TopLiked:   decodeTags(row.TopLiked),
		TopAvoided: decodeTags(row.TopAvoided),
	}
	if row.AvgPrice.Valid {
		price := int(row.AvgPrice.Int64)
		agg.AvgPrice = &price
	}
	return agg, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) (string, error) {
	start := time.Now()

	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return "", fmt.Errorf("ANALYZE failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("WAL checkpoint failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return "", fmt.Errorf("VACUUM failed: %w", err)
	}

	result := fmt.Sprintf("SQL maintenance completed in %s", time.Since(start).Round(time.Millisecond))
	s.logger.InfoContext(ctx, result)
	return result, nil
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// decodeTags parses a JSON string array column. Malformed or empty values
// decode to an empty set rather than failing reads.
func decodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{}
	}
	return tags
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// unionTags appends values to base, trimming whitespace and dropping
// case-insensitive duplicates while preserving first-seen order.
func unionTags(base, values []string) []string {
	seen := make(map[string]bool, len(base)+len(values))
	var out []string
	for _, v := range append(append([]string{}, base...), values...) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
