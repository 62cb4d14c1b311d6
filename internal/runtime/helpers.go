package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/harassment-moderator/internal/config"
	"github.com/tjfontaine/harassment-moderator/internal/core/ports"
	"github.com/tjfontaine/harassment-moderator/internal/pipeline"
	"github.com/tjfontaine/harassment-moderator/internal/policy"
	"github.com/tjfontaine/harassment-moderator/internal/tokens"
)

// pipelineOptions translates the pipeline section of cfg.
func pipelineOptions(cfg *config.Config, store ports.VerdictStore, logger *slog.Logger) ([]pipeline.Option, error) {
	strategy, err := policy.ParseStrategy(cfg.Pipeline.Strategy)
	if err != nil {
		return nil, fmt.Errorf("pipeline strategy: %w", err)
	}
	counter := tokens.NewTiktokenCounter("")
	return []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithStore(store),
		pipeline.WithPersistTimeout(cfg.Pipeline.PersistTimeout),
		pipeline.WithStrategy(strategy),
		pipeline.WithCounter(counter),
		pipeline.WithTokenGuard(tokens.NewGuard(counter, cfg.Pipeline.MaxInputTokens)),
	}, nil
}
