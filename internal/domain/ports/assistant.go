package ports

import (
	"context"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// Assistant is the generative-AI collaborator: it reads status listings and
// free-form user messages and proposes summaries and command scripts.
type Assistant interface {
	// Suggest summarizes a change listing and proposes a script to act on it.
	Suggest(ctx context.Context, status string) (*entities.ChangeAnalysis, error)

	// Chat answers a user message given current status and recent log context.
	Chat(ctx context.Context, message, status, log string) (*entities.ChatReply, error)
}

// SummaryRenderer turns assistant markdown into HTML safe to embed in a UI.
type SummaryRenderer interface {
	RenderMarkdown(markdown string) (string, error)
}
