package database

import (
	"database/sql"
	"time"
)

// BotUserID is the sentinel author id used for messages sent by the bot itself.
const BotUserID = "-1"

// Edge polarity values.
const (
	PolarityLike    = "like"
	PolarityDislike = "dislike"
)

// PrefField identifies one of the tag-set preference columns.
type PrefField string

const (
	PrefDiet      PrefField = "diet"
	PrefAllergies PrefField = "allergies"
	PrefFavorites PrefField = "favorites"
)

// PrefMode selects the write semantics for tag-set preference updates.
// Append deduplicates against the existing set.
type PrefMode int

const (
	PrefReplace PrefMode = iota
	PrefAppend
	PrefClear
)

// Message represents one inbound or outbound chat line. Messages are
// immutable once written; they feed history search and the audit trail.
type Message struct {
	MessageID        string         `db:"message_id"`
	ConversationID   string         `db:"conversation_id"`
	UserID           string         `db:"user_id"`
	Content          string         `db:"content"`
	Type             string         `db:"message_type"`
	Timestamp        time.Time      `db:"timestamp"`
	SearchCall       bool           `db:"search_call"`
	RepliedMessageID sql.NullString `db:"replied_message_id"`
	SessionToken     sql.NullString `db:"session_token"`
}

// Conversation represents one messaging-platform thread (direct or group).
// SessionToken and SessionRefreshedAt are always set or cleared together.
type Conversation struct {
	ConversationID     string         `db:"conversation_id"`
	SessionToken       sql.NullString `db:"session_token"`
	SessionRefreshedAt sql.NullTime   `db:"session_refreshed_at"`
	CreatedAt          time.Time      `db:"created_at"`
}

// SessionState is the external search session handle for a conversation.
type SessionState struct {
	Token       string
	RefreshedAt time.Time
}

// Preferences holds a user's explicit declared preferences.
type Preferences struct {
	Diet               []string
	Allergies          []string
	FavoriteCategories []string
	PriceLevel         *int
}

// RestaurantMeta is the denormalized preference-graph node for a restaurant.
// The external search index remains the system of record for restaurant facts.
type RestaurantMeta struct {
	RestaurantID string `db:"restaurant_id"`
	Name         string `db:"name"`
	Category     string `db:"category"`
	Price        string `db:"price"` // repeated currency symbols, length = level
}

// PreferenceEdge is a like/dislike edge joined with its restaurant metadata.
type PreferenceEdge struct {
	UserID       string    `db:"user_id"`
	RestaurantID string    `db:"restaurant_id"`
	Polarity     string    `db:"polarity"`
	Name         string    `db:"name"`
	Category     string    `db:"category"`
	Price        string    `db:"price"`
	CreatedAt    time.Time `db:"created_at"`
}

// Aggregate is the cached learned-preference snapshot for a conversation.
type Aggregate struct {
	TopLiked   []string
	TopAvoided []string
	AvgPrice   *int
}
