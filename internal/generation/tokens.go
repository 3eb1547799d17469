package generation

import (
	"sort"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

// convertTokens maps token ids plus per-position candidate logprobs into
// protocol TokenInfo entries. offset skips positions already emitted to the
// client (streaming deltas); it applies to both the id sequence and the
// logprob sequence.
func (s *Service) convertTokens(ids []int, logprobs []engine.StepLogprobs, opts types.ResponseOptions, offset int) []types.TokenInfo {
	if offset > 0 {
		ids = ids[offset:]
		if logprobs != nil {
			logprobs = logprobs[offset:]
		}
	}

	texts := s.tokenizer.TokenTexts(ids)
	infos := make([]types.TokenInfo, 0, len(ids))
	for i, text := range texts {
		info := types.TokenInfo{Text: text}
		// The candidate set is nil for the first prompt position (nothing
		// to condition on); that position keeps a bare detail entry.
		if logprobs != nil && logprobs[i] != nil {
			step := logprobs[i]
			if opts.TokenLogprobs || opts.TokenRanks {
				if entry, ok := step.Get(ids[i]); ok {
					if opts.TokenLogprobs {
						lp := entry.Logprob
						info.Logprob = &lp
					}
					if opts.TokenRanks {
						info.Rank = entry.Rank
					}
				}
			}
			if opts.TopNTokens > 0 {
				info.TopTokens = s.topTokens(step, opts)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// topTokens returns the step's top-N candidates ordered by descending
// logprob. The sort must be stable: logprob ties keep the engine's emission
// order.
func (s *Service) topTokens(step engine.StepLogprobs, opts types.ResponseOptions) []types.TopToken {
	ranked := append(engine.StepLogprobs(nil), step...)
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Logprob > ranked[b].Logprob
	})
	if len(ranked) > opts.TopNTokens {
		ranked = ranked[:opts.TopNTokens]
	}

	ids := make([]int, len(ranked))
	for i, e := range ranked {
		ids[i] = e.TokenID
	}
	texts := s.tokenizer.TokenTexts(ids)

	top := make([]types.TopToken, 0, len(ranked))
	for i, e := range ranked {
		tt := types.TopToken{Text: texts[i]}
		if opts.TokenLogprobs {
			lp := e.Logprob
			tt.Logprob = &lp
		}
		top = append(top, tt)
	}
	return top
}
