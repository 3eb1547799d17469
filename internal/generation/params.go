package generation

import (
	"time"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

const (
	// MaxTopNTokens caps how many alternative tokens may be requested per
	// position.
	MaxTopNTokens = 10

	// MaxStopSeqs and MaxStopSeqLength bound the stop-sequence list.
	MaxStopSeqs      = 6
	MaxStopSeqLength = 240
)

// convertParams validates wire parameters and converts them into the engine
// sampling configuration plus an optional absolute deadline (zero time means
// unbounded). Any violation aborts the whole request before engine
// invocation.
func (s *Service) convertParams(p types.Parameters, now time.Time) (engine.SamplingConfig, time.Time, error) {
	greedy, err := isGreedy(p.Method)
	if err != nil {
		return engine.SamplingConfig{}, time.Time{}, err
	}

	if p.Decoding.LengthPenalty != nil {
		return engine.SamplingConfig{}, time.Time{},
			ErrInvalidArgument("decoding.length_penalty parameter not yet supported")
	}

	// Unset (0) may be limited further during prompt preparation.
	maxNewTokens := 0
	if p.Stopping.MaxNewTokens > 0 {
		maxNewTokens = p.Stopping.MaxNewTokens
		if maxNewTokens > s.maxNewTokens {
			return engine.SamplingConfig{}, time.Time{}, ErrInvalidArgument(
				"max_new_tokens (%d) must be <= %d", maxNewTokens, s.maxNewTokens)
		}
	}

	minNewTokens := p.Stopping.MinNewTokens
	if minNewTokens < 0 {
		minNewTokens = 0
	}
	if minNewTokens > 0 {
		if maxNewTokens > 0 {
			if minNewTokens > maxNewTokens {
				return engine.SamplingConfig{}, time.Time{}, ErrInvalidArgument(
					"min_new_tokens (%d) must be <= max_new_tokens (%d)", minNewTokens, maxNewTokens)
			}
		} else if minNewTokens > s.maxNewTokens {
			return engine.SamplingConfig{}, time.Time{}, ErrInvalidArgument(
				"min_new_tokens (%d) must be <= %d", minNewTokens, s.maxNewTokens)
		}
	}

	if len(p.Stopping.StopSequences) > MaxStopSeqs {
		return engine.SamplingConfig{}, time.Time{}, stopSeqError()
	}
	for _, seq := range p.Stopping.StopSequences {
		if len(seq) == 0 || len(seq) > MaxStopSeqLength {
			return engine.SamplingConfig{}, time.Time{}, stopSeqError()
		}
	}

	resp := p.Response
	logprobs := 0
	if resp.TokenLogprobs || resp.TokenRanks {
		logprobs = 1
	}
	if resp.TopNTokens > 0 {
		if resp.TopNTokens > MaxTopNTokens {
			return engine.SamplingConfig{}, time.Time{}, ErrInvalidArgument(
				"top_n_tokens (%d) must be <= %d", resp.TopNTokens, MaxTopNTokens)
		}
		// The engine returns logprobs for n+1 tokens (the selected token
		// plus top_n excluding it); under greedy decoding the selected
		// token is already in the top-n set, so requesting its logprob
		// would double-count one slot.
		logprobs += resp.TopNTokens
		if greedy && resp.TokenLogprobs {
			logprobs--
		}
	}
	promptLogprobs := 0
	if resp.InputTokens {
		promptLogprobs = logprobs
	}

	// typical_p warping applies only when sampling.
	var strategies []engine.LogitsStrategy
	if !greedy && p.Sampling.TypicalP > 0 && p.Sampling.TypicalP < 1 {
		strategies = []engine.LogitsStrategy{
			{Kind: engine.LogitsTypicalMass, Mass: p.Sampling.TypicalP},
		}
	}

	deadline := time.Time{}
	if p.Stopping.TimeLimitMillis > 0 {
		deadline = now.Add(time.Duration(p.Stopping.TimeLimitMillis) * time.Millisecond)
	}

	temperature := float32(0)
	if !greedy {
		temperature = withDefaultF(p.Sampling.Temperature, 1.0)
	}

	includeStop := s.defaultIncludeStopSeqs
	if p.Stopping.IncludeStopSequence != nil {
		includeStop = *p.Stopping.IncludeStopSequence
	}

	cfg := engine.SamplingConfig{
		Temperature:         temperature,
		TopK:                withDefault(p.Sampling.TopK, -1),
		TopP:                withDefaultF(p.Sampling.TopP, 1.0),
		RepetitionPenalty:   withDefaultF(p.Decoding.RepetitionPenalty, 1.0),
		Seed:                p.Sampling.Seed,
		MaxNewTokens:        maxNewTokens,
		MinNewTokens:        minNewTokens,
		Logprobs:            logprobs,
		PromptLogprobs:      promptLogprobs,
		StopSequences:       p.Stopping.StopSequences,
		IncludeStopSequence: includeStop,
		SkipSpecialTokens:   s.skipSpecialTokens,
		LogitsStrategies:    strategies,
	}
	return cfg, deadline, nil
}

func isGreedy(m types.DecodingMethod) (bool, error) {
	switch m {
	case "", types.MethodGreedy:
		return true, nil
	case types.MethodSample:
		return false, nil
	default:
		return false, ErrInvalidArgument("unknown decoding method %q", m)
	}
}

func stopSeqError() error {
	return ErrInvalidArgument(
		"can specify at most %d non-empty stop sequences, each not more than %d UTF8 bytes",
		MaxStopSeqs, MaxStopSeqLength)
}

func withDefault(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func withDefaultF(v, def float32) float32 {
	if v != 0 {
		return v
	}
	return def
}
