// Package engine defines the contract between the translation core and the
// underlying text-generation runtime: the Engine drives incremental token
// generation for a prepared prompt, the Tokenizer maps text to and from
// token ids. Both are read-only/shared-safe across concurrent requests.
package engine

import (
	"context"
	"errors"
)

// FinishReason is the engine-reported condition that ended a generation, or
// empty while generation is still in progress.
type FinishReason string

const (
	FinishNone   FinishReason = ""
	FinishLength FinishReason = "length"
	FinishStop   FinishReason = "stop"
	FinishAbort  FinishReason = "abort"
)

// ErrResourceExhausted marks engine-side memory exhaustion. Callers map it to
// a resource-exhausted status; it is never retried.
var ErrResourceExhausted = errors.New("engine resources exhausted")

// ErrUnavailable is returned when no generation runtime is compiled in or
// configured.
var ErrUnavailable = errors.New("generation engine unavailable")

// LogprobEntry is one candidate token's log-probability at a position.
type LogprobEntry struct {
	TokenID int
	Logprob float32
	Rank    int
}

// StepLogprobs is the candidate set the engine reported for one token
// position. The slice order is the engine's emission order and must be
// preserved: top-N selection breaks logprob ties by it.
type StepLogprobs []LogprobEntry

// Get returns the entry for the given token id.
func (s StepLogprobs) Get(tokenID int) (LogprobEntry, bool) {
	for _, e := range s {
		if e.TokenID == tokenID {
			return e, true
		}
	}
	return LogprobEntry{}, false
}

// GenerationSnapshot is one incremental progress update from the engine:
// cumulative generated text and token ids so far, plus an optional finish
// signal. Within one stream, snapshots are strictly ordered (cumulative
// lengths never shrink).
type GenerationSnapshot struct {
	// Text is the cumulative generated text.
	Text string
	// TokenIDs are the cumulative generated token ids.
	TokenIDs []int
	// Logprobs has one candidate set per generated position when logprobs
	// were requested; nil otherwise.
	Logprobs []StepLogprobs

	// PromptTokenIDs echo the prompt the engine was invoked with.
	PromptTokenIDs []int
	// PromptLogprobs has one candidate set per prompt position when prompt
	// logprobs were requested. The first position has no preceding context
	// and is always nil.
	PromptLogprobs []StepLogprobs

	FinishReason FinishReason
	// StopSequence is the matched stop string when FinishReason is
	// FinishStop and a configured sequence matched.
	StopSequence string
	// StoppedAtEOS is set instead of StopSequence when the model emitted
	// its natural end-of-sequence token.
	StoppedAtEOS bool
}

// LogitsStrategyKind tags a logits-modifying strategy.
type LogitsStrategyKind string

// LogitsTypicalMass warps logits toward locally typical tokens.
const LogitsTypicalMass LogitsStrategyKind = "typical_mass"

// LogitsStrategy is a tagged logits-modifying strategy attached to a
// sampling configuration. The branch on kind is resolved once during
// parameter conversion, not re-inspected downstream.
type LogitsStrategy struct {
	Kind LogitsStrategyKind
	Mass float32
}

// SamplingConfig is the engine-level sampling configuration. It is built
// once per request by the parameter converter, tightened exactly once by the
// prompt preparer (MaxNewTokens), and never shared across requests.
type SamplingConfig struct {
	Temperature       float32
	TopK              int
	TopP              float32
	RepetitionPenalty float32
	Seed              *int64

	// MaxNewTokens is 0 until the prompt preparer resolves it; it is always
	// a concrete bound by the time the engine is invoked.
	MaxNewTokens int
	MinNewTokens int

	// Logprobs is how many candidate logprobs to request per generated
	// position; PromptLogprobs the same for prompt positions (0 = none).
	Logprobs       int
	PromptLogprobs int

	StopSequences       []string
	IncludeStopSequence bool
	SkipSpecialTokens   bool

	LogitsStrategies []LogitsStrategy
}

// Prompt is the prepared input handed to the engine.
type Prompt struct {
	Text     string
	TokenIDs []int
}

// ModelConfig describes the loaded model's limits.
type ModelConfig struct {
	// MaxSequenceLength is the context window: prompt plus generated tokens.
	MaxSequenceLength int
}

// Engine produces an asynchronous, cancelable sequence of generation
// snapshots for a prepared prompt.
type Engine interface {
	// Generate starts generation and returns the snapshot stream. The
	// channel is closed when generation ends for any reason.
	Generate(ctx context.Context, requestID string, prompt Prompt, cfg SamplingConfig) (<-chan GenerationSnapshot, error)
	// Abort requests cancellation of an in-flight generation. It is
	// fire-and-forget, safe to issue redundantly, and never blocks.
	Abort(requestID string)
	// ModelConfig is read-only and shared across requests.
	ModelConfig() ModelConfig
}

// Tokenizer maps text to and from token-id sequences.
type Tokenizer interface {
	// Encode tokenizes text, truncating to truncateTo tokens when
	// truncateTo > 0.
	Encode(ctx context.Context, text string, truncateTo int) ([]int, error)
	// TokenTexts maps token ids to their token strings one-to-one.
	TokenTexts(ids []int) []string
}
