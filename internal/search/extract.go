package search

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxEntities caps how many restaurants one result carries.
const MaxEntities = 3

// maxPhotos caps the extra photos kept per entity beyond the hero image.
const maxPhotos = 2

type chatResponse struct {
	Response struct {
		Text string `json:"text"`
	} `json:"response"`
	Entities []struct {
		Businesses []business `json:"businesses"`
	} `json:"entities"`
	ChatID string `json:"chat_id"`
}

type business struct {
	ID          string  `json:"id"`
	Alias       string  `json:"alias"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Price       string  `json:"price"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Phone       string  `json:"phone"`
	Categories  []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Location struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	ContextualInfo struct {
		Summary string `json:"summary"`
		Photos  []struct {
			OriginalURL string `json:"original_url"`
		} `json:"photos"`
	} `json:"contextual_info"`
}

// parseResponse decodes the search API payload. A payload with prose but a
// malformed or missing entity block degrades to a prose-only result; a
// payload with no prose at all is an error.
func parseResponse(raw []byte) (*QueryResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if resp.Response.Text == "" {
		return nil, errors.New("search response has no answer text")
	}

	result := &QueryResult{
		AnswerText:        resp.Response.Text,
		ContinuationToken: resp.ChatID,
	}
	if len(resp.Entities) == 0 {
		return result, nil
	}

	for _, b := range resp.Entities[0].Businesses {
		if len(result.Entities) >= MaxEntities {
			break
		}
		if b.Name == "" {
			continue
		}
		result.Entities = append(result.Entities, toEntity(b))
	}
	return result, nil
}

func toEntity(b business) Entity {
	e := Entity{
		ID:          b.ID,
		Name:        b.Name,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Price:       b.Price,
		Address:     b.Location.FormattedAddress,
		Phone:       b.Phone,
		URL:         b.URL,
		Reasoning:   b.ContextualInfo.Summary,
	}
	if e.ID == "" {
		e.ID = b.Alias
	}
	if len(b.Categories) > 0 {
		e.Category = b.Categories[0].Title
	}
	for i, p := range b.ContextualInfo.Photos {
		if p.OriginalURL == "" {
			continue
		}
		if i == 0 && e.ImageURL == "" {
			e.ImageURL = p.OriginalURL
			continue
		}
		if len(e.Photos) < maxPhotos {
			e.Photos = append(e.Photos, p.OriginalURL)
		}
	}
	return e
}
