package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseCapsEntities(t *testing.T) {
	raw := []byte(`{
		"response": {"text": "Here are five options."},
		"chat_id": "chat-1",
		"entities": [{"businesses": [
			{"id": "r1", "name": "A", "price": "$", "categories": [{"title": "Thai"}]},
			{"id": "r2", "name": "B"},
			{"id": "r3", "name": "C"},
			{"id": "r4", "name": "D"},
			{"id": "r5", "name": "E"}
		]}]
	}`)

	result, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Len(t, result.Entities, MaxEntities)
	assert.Equal(t, "chat-1", result.ContinuationToken)
	assert.Equal(t, "Thai", result.Entities[0].Category)
	assert.Equal(t, 1, result.Entities[0].PriceLevel())
}

func TestParseResponseMalformedEntitiesDegradesToProse(t *testing.T) {
	raw := []byte(`{"response": {"text": "Just prose."}, "chat_id": "chat-2", "entities": []}`)

	result, err := parseResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Just prose.", result.AnswerText)
	assert.Empty(t, result.Entities)
}

func TestParseResponseMissingTextFails(t *testing.T) {
	_, err := parseResponse([]byte(`{"chat_id": "chat-3"}`))
	assert.Error(t, err)
}

func TestParseResponseHeroImageAndPhotos(t *testing.T) {
	raw := []byte(`{
		"response": {"text": "One spot."},
		"entities": [{"businesses": [{
			"id": "r1", "name": "Sakura",
			"contextual_info": {"summary": "Loved for omakase.", "photos": [
				{"original_url": "https://img/1.jpg"},
				{"original_url": "https://img/2.jpg"},
				{"original_url": "https://img/3.jpg"},
				{"original_url": "https://img/4.jpg"}
			]}
		}]}]
	}`)

	result, err := parseResponse(raw)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	e := result.Entities[0]
	assert.Equal(t, "https://img/1.jpg", e.ImageURL)
	assert.Equal(t, []string{"https://img/2.jpg", "https://img/3.jpg"}, e.Photos)
	assert.Equal(t, "Loved for omakase.", e.Reasoning)
}

func TestBuildUserContext(t *testing.T) {
	uc := buildUserContext("35.68, 139.76")
	assert.InDelta(t, 35.68, uc.Latitude, 0.001)
	assert.InDelta(t, 139.76, uc.Longitude, 0.001)

	uc = buildUserContext("downtown tokyo")
	assert.Zero(t, uc.Latitude)
	assert.Equal(t, "en_US", uc.Locale)
}
