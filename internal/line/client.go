package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ryanhideo/tablescout/internal/format"
)

const defaultAPIBase = "https://api.line.me/v2/bot"

// maxMessagesPerCall is the platform limit on message objects per
// reply/push call.
const maxMessagesPerCall = 5

// maxImagesPerBatch caps standalone image messages sent after a text unit.
const maxImagesPerBatch = 4

// pushPacing spaces consecutive push calls so chunked deliveries arrive
// in order.
const pushPacing = 300 * time.Millisecond

// Client sends replies and pushes through the LINE messaging API.
type Client struct {
	apiBase     string
	accessToken string
	http        *http.Client
	logger      *slog.Logger
}

// NewClient creates a messaging client for the given channel access token.
func NewClient(accessToken string, logger *slog.Logger) *Client {
	return &Client{
		apiBase:     defaultAPIBase,
		accessToken: accessToken,
		http:        &http.Client{Timeout: 10 * time.Second},
		logger:      logger.With("component", "line"),
	}
}

// Reply answers one webhook event. Units beyond the platform per-call
// limit are dropped with a log line; reply tokens are single-use so there
// is no second call to spread them over.
func (c *Client) Reply(ctx context.Context, replyToken string, units []format.MessageUnit) error {
	messages := buildMessages(units)
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > maxMessagesPerCall {
		c.logger.WarnContext(ctx, "Dropping messages beyond reply limit",
			"total", len(messages), "limit", maxMessagesPerCall)
		messages = messages[:maxMessagesPerCall]
	}

	return c.send(ctx, "/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	}, false)
}

// Push delivers messages outside a reply window, chunked to the per-call
// limit.
func (c *Client) Push(ctx context.Context, to string, units []format.MessageUnit) error {
	messages := buildMessages(units)
	for start := 0; start < len(messages); start += maxMessagesPerCall {
		end := start + maxMessagesPerCall
		if end > len(messages) {
			end = len(messages)
		}
		if start > 0 {
			select {
			case <-time.After(pushPacing):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := c.send(ctx, "/message/push", map[string]any{
			"to":       to,
			"messages": messages[start:end],
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, path string, body map[string]any, retryKey bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build messaging request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if retryKey {
		req.Header.Set("X-Line-Retry-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("messaging request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WarnContext(ctx, "Failed to close messaging response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("messaging API returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// buildMessages converts message units to LINE message objects: text units
// become a text message plus up to four image messages, card units become
// flex messages.
func buildMessages(units []format.MessageUnit) []map[string]any {
	var messages []map[string]any
	for _, unit := range units {
		if unit.IsCard() {
			messages = append(messages, BuildCard(unit.Card))
			continue
		}
		if unit.Text != "" {
			messages = append(messages, map[string]any{
				"type": "text",
				"text": unit.Text,
			})
		}
		images := unit.Photos
		if len(images) > maxImagesPerBatch {
			images = images[:maxImagesPerBatch]
		}
		for _, img := range images {
			messages = append(messages, map[string]any{
				"type":               "image",
				"originalContentUrl": img,
				"previewImageUrl":    img,
			})
		}
	}
	return messages
}
