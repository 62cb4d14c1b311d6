// Package ports defines the core interfaces of the moderation service.
package ports

import (
	"context"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// Oracle produces natural-language text from a prompt.
// Implementations may be nondeterministic and must be safe for concurrent use.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Stage is one step of the moderation pipeline.
type Stage interface {
	// Name returns the agent name recorded in the reasoning history.
	Name() string
	// Phase returns the phase the stage's update moves the state into.
	Phase() domain.Phase
	// Run reads the state and returns a partial update. It must not mutate state.
	Run(ctx context.Context, state *domain.PipelineState) (*domain.StateUpdate, error)
}

// CommentSource fetches raw comment texts for a post URL.
type CommentSource interface {
	Name() string
	FetchComments(ctx context.Context, postURL string, limit int) ([]string, error)
}
