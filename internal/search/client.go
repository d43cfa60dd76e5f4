package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ryanhideo/tablescout/internal/config"
)

// Client is the conversational search backend.
type Client interface {
	// Query sends one search turn and returns the parsed result.
	Query(ctx context.Context, req *QueryRequest) (*QueryResult, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a search client from the configured endpoint and key.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.Search.BaseURL, "/"),
		apiKey:  cfg.Search.APIKey,
		http:    &http.Client{Timeout: cfg.Search.Timeout},
		logger:  logger.With("component", "search"),
	}
}

type chatRequest struct {
	Query         string       `json:"query"`
	ChatID        string       `json:"chat_id,omitempty"`
	WithReasoning bool         `json:"with_reasoning"`
	UserContext   *userContext `json:"user_context,omitempty"`
}

type userContext struct {
	Locale    string  `json:"locale"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

func (c *httpClient) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("query text cannot be empty")
	}

	body := chatRequest{
		Query:         req.Text,
		ChatID:        req.SessionToken,
		WithReasoning: req.WantReasoning,
		UserContext:   buildUserContext(req.LocationHint),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "Failed to close search response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	result, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Search query finished",
		"duration", time.Since(start),
		"entities", len(result.Entities),
		"continued", req.SessionToken != "")
	return result, nil
}

// buildUserContext parses an optional "lat,lon" hint. Anything else yields
// a locale-only context.
func buildUserContext(hint string) *userContext {
	uc := &userContext{Locale: "en_US"}
	parts := strings.SplitN(hint, ",", 2)
	if len(parts) != 2 {
		return uc
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lonErr != nil {
		return uc
	}
	uc.Latitude = lat
	uc.Longitude = lon
	return uc
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
