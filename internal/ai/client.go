// Package ai provides chat completion clients for the supported model
// backends behind a single interface.
package ai

import "context"

// Client is a chat completion backend.
type Client interface {
	// Complete sends one chat completion request and returns the model's
	// reply. The call respects ctx cancellation and the configured timeout.
	Complete(ctx context.Context, req *Request) (*Completion, error)
}
