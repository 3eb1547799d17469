package generation

import (
	"context"

	"textgend/internal/engine"
)

// preparePrompt tokenizes the prompt (with optional truncation), enforces
// context-window bounds and resolves cfg.MaxNewTokens to a concrete value.
// The returned flag records whether the bound was imposed by context-window
// arithmetic rather than requested by the caller; stop-reason classification
// depends on it and it cannot be re-derived from the final config alone.
func (s *Service) preparePrompt(ctx context.Context, cfg *engine.SamplingConfig, truncateTo int, text string) ([]int, bool, error) {
	ids, err := s.tokenizer.Encode(ctx, text, truncateTo)
	if err != nil {
		return nil, false, err
	}

	window := s.engine.ModelConfig().MaxSequenceLength
	tokenCount := len(ids)
	if tokenCount >= window {
		return nil, false, ErrInvalidArgument(
			"input tokens (%d) must be < %d", tokenCount, window)
	}
	if tokenCount+cfg.MinNewTokens > window {
		return nil, false, ErrInvalidArgument(
			"input tokens (%d) plus min_new_tokens (%d) must be <= %d",
			tokenCount, cfg.MinNewTokens, window)
	}

	implicitLimit := false
	switch {
	case cfg.MaxNewTokens == 0:
		// No explicit cap requested: the remaining window (bounded by the
		// server ceiling) becomes the effective max.
		cfg.MaxNewTokens = min(s.maxNewTokens, window-tokenCount)
		implicitLimit = true
	case tokenCount+cfg.MaxNewTokens > window:
		cfg.MaxNewTokens = window - tokenCount
		implicitLimit = true
	}
	return ids, implicitLimit, nil
}
