package ai

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// SessionStore manages per-user conversational state.
//
// Sessions are created implicitly on first append and live for the process
// lifetime (or on disk, depending on the implementation). Implementations
// must serialize concurrent mutations of the same user's history.
type SessionStore interface {
	// GetHistory retrieves the chat history for a given user.
	GetHistory(ctx context.Context, userID string) ([]llms.ChatMessage, error)

	// AddUserMessage appends a user message to the history.
	AddUserMessage(ctx context.Context, userID, text string) error

	// AddAIMessage appends an assistant response to the history.
	AddAIMessage(ctx context.Context, userID, text string) error

	// ClearHistory empties the user's history. Other session state is
	// not affected. Clearing an unknown user is a no-op.
	ClearHistory(ctx context.Context, userID string) error

	// TrimHistory keeps only the most recent maxTurns user+assistant
	// pairs (2*maxTurns messages), dropping the oldest first.
	TrimHistory(ctx context.Context, userID string, maxTurns int) error
}
