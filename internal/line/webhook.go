package line

// Webhook event types handled by the bot.
const (
	EventTypeMessage  = "message"
	EventTypePostback = "postback"
)

// WebhookPayload is the body of one webhook delivery.
type WebhookPayload struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event.
type Event struct {
	Type       string        `json:"type"`
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"`
	Source     Source        `json:"source"`
	Message    *EventMessage `json:"message,omitempty"`
	Postback   *Postback     `json:"postback,omitempty"`
}

// Source identifies where an event came from.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}

// ConversationID resolves the stable thread id: the group or room id for
// multi-user threads, otherwise the user id for direct chats.
func (s Source) ConversationID() string {
	if s.GroupID != "" {
		return s.GroupID
	}
	if s.RoomID != "" {
		return s.RoomID
	}
	return s.UserID
}

// EventMessage is the message attached to a message event.
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Postback is the payload of a postback event.
type Postback struct {
	Data string `json:"data"`
}
