// Package search provides the client for the conversational restaurant
// search API, including entity extraction from its responses.
package search

import "errors"

// ErrTimeout indicates the search API did not answer within the configured
// deadline. Callers degrade rather than retry.
var ErrTimeout = errors.New("search request timed out")

// Entity is one restaurant returned by the search API.
type Entity struct {
	ID          string
	Name        string
	Rating      float64
	ReviewCount int
	Price       string // repeated currency symbols, length = level
	Category    string
	Address     string
	Phone       string
	URL         string
	ImageURL    string
	Photos      []string
	Reasoning   string
}

// PriceLevel returns the numeric price tier, 0 when unknown.
func (e *Entity) PriceLevel() int {
	return len(e.Price)
}

// QueryRequest is one conversational search turn. SessionToken continues a
// prior exchange; empty starts a new one.
type QueryRequest struct {
	Text          string
	SessionToken  string
	LocationHint  string
	WantReasoning bool
}

// QueryResult is the search API's answer. ContinuationToken is the session
// token to persist for follow-up turns. Entities holds at most MaxEntities.
type QueryResult struct {
	AnswerText        string
	Entities          []Entity
	ContinuationToken string
}
