package types

// DecodingMethod selects how the engine picks tokens.
type DecodingMethod string

const (
	// MethodGreedy is deterministic argmax decoding. It is the default when
	// the request omits the method.
	MethodGreedy DecodingMethod = "greedy"
	// MethodSample enables stochastic sampling using the sampling parameters.
	MethodSample DecodingMethod = "sample"
)

// StopReason classifies why generation for a request ended.
type StopReason string

const (
	// StopNotFinished is only observed mid-stream.
	StopNotFinished StopReason = "NOT_FINISHED"
	// StopMaxTokens means the caller's explicit max_new_tokens was reached.
	StopMaxTokens StopReason = "MAX_TOKENS"
	// StopTokenLimit means a bound imposed by context-window arithmetic was
	// reached, as opposed to a caller-requested cap.
	StopTokenLimit StopReason = "TOKEN_LIMIT"
	// StopEOSToken means the model emitted its end-of-sequence token.
	StopEOSToken StopReason = "EOS_TOKEN"
	// StopStopSequence means one of the requested stop sequences matched.
	StopStopSequence StopReason = "STOP_SEQUENCE"
	// StopTimeLimit means the request's time limit expired mid-generation.
	StopTimeLimit StopReason = "TIME_LIMIT"
	// StopCancelled means generation was aborted.
	StopCancelled StopReason = "CANCELLED"
)

// ModelKindDecoderOnly is currently the only supported model kind.
const ModelKindDecoderOnly = "DECODER_ONLY"

// GenerationRequest is one prompt within a generation call.
type GenerationRequest struct {
	// Prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
}

// BatchedGenerationRequest is the payload for POST /generate.
// All requests in the batch share the same parameters.
type BatchedGenerationRequest struct {
	Requests []GenerationRequest `json:"requests"`
	Params   Parameters          `json:"params,omitempty"`
}

// SingleGenerationRequest is the payload for POST /generate_stream.
type SingleGenerationRequest struct {
	Request GenerationRequest `json:"request"`
	Params  Parameters        `json:"params,omitempty"`
}

// Parameters carries everything that shapes one generation call.
type Parameters struct {
	// Decoding method: "greedy" (default) or "sample".
	Method DecodingMethod `json:"method,omitempty" example:"greedy"`
	// Sampling knobs, only meaningful with method "sample".
	Sampling SamplingParameters `json:"sampling,omitempty"`
	Stopping StoppingCriteria   `json:"stopping,omitempty"`
	// Response controls which optional fields are populated; absent fields
	// are not computed.
	Response ResponseOptions    `json:"response,omitempty"`
	Decoding DecodingParameters `json:"decoding,omitempty"`
	// Truncate the tokenized prompt to at most this many tokens (0 = off).
	TruncateInputTokens int `json:"truncate_input_tokens,omitempty" example:"512"`
}

// SamplingParameters are the stochastic-decoding knobs.
type SamplingParameters struct {
	// Sampling temperature; defaults to 1.0. Ignored (forced to 0) for greedy.
	Temperature float32 `json:"temperature,omitempty" example:"0.7"`
	// Limit candidates to the top K tokens (0 = disabled).
	TopK int `json:"top_k,omitempty" example:"40"`
	// Nucleus sampling probability mass; defaults to 1.0.
	TopP float32 `json:"top_p,omitempty" example:"0.9"`
	// Typical sampling mass; applied only when strictly between 0 and 1.
	TypicalP float32 `json:"typical_p,omitempty" example:"0.2"`
	// Random seed for reproducibility; omitted lets the engine choose.
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// StoppingCriteria bound how long generation runs.
type StoppingCriteria struct {
	// Maximum number of new tokens to generate (0 = server decides).
	MaxNewTokens int `json:"max_new_tokens,omitempty" example:"128"`
	// Minimum number of new tokens to generate before stopping is allowed.
	MinNewTokens int `json:"min_new_tokens,omitempty" example:"8"`
	// Wall-clock limit for the whole call in milliseconds (0 = unbounded).
	TimeLimitMillis int `json:"time_limit_millis,omitempty" example:"10000"`
	// Stop sequences; at most 6, each between 1 and 240 UTF-8 bytes.
	StopSequences []string `json:"stop_sequences,omitempty" example:"[\"\\n\\n\"]"`
	// Whether matched stop sequences are included in the output text.
	// Unset falls back to the server default.
	IncludeStopSequence *bool `json:"include_stop_sequence,omitempty"`
}

// ResponseOptions is a read-only view of which optional response fields the
// client wants populated.
type ResponseOptions struct {
	// Echo the input text ahead of the generated text.
	InputText bool `json:"input_text,omitempty"`
	// Include per-token detail for generated tokens.
	GeneratedTokens bool `json:"generated_tokens,omitempty"`
	// Include per-token detail for input (prompt) tokens.
	InputTokens bool `json:"input_tokens,omitempty"`
	// Include each token's log-probability.
	TokenLogprobs bool `json:"token_logprobs,omitempty"`
	// Include each token's rank among the candidates at its position.
	TokenRanks bool `json:"token_ranks,omitempty"`
	// Include the top N alternative tokens per position (max 10).
	TopNTokens int `json:"top_n_tokens,omitempty" example:"5"`
}

// DecodingParameters are post-processing knobs applied to the logits.
type DecodingParameters struct {
	// Repetition penalty; defaults to 1.0 (off).
	RepetitionPenalty float32 `json:"repetition_penalty,omitempty" example:"1.1"`
	// Length penalty is not supported and is rejected when present.
	LengthPenalty *LengthPenalty `json:"length_penalty,omitempty"`
}

// LengthPenalty exists on the wire for compatibility but is unsupported.
type LengthPenalty struct {
	StartIndex  int     `json:"start_index,omitempty"`
	DecayFactor float32 `json:"decay_factor,omitempty"`
}

// TopToken is one ranked alternative token at a position.
type TopToken struct {
	Text    string   `json:"text"`
	Logprob *float32 `json:"logprob,omitempty"`
}

// TokenInfo is per-token diagnostic detail. It is produced fresh per response
// and never mutated after construction.
type TokenInfo struct {
	Text    string   `json:"text"`
	Logprob *float32 `json:"logprob,omitempty"`
	Rank    int      `json:"rank,omitempty"`
	// TopTokens is ordered by descending logprob.
	TopTokens []TopToken `json:"top_tokens,omitempty"`
}

// GenerationResponse is one generation result, or one streamed increment.
type GenerationResponse struct {
	// Generated text: the full text for unary calls, the new suffix for
	// streamed deltas. Prefixed with the input text when input_text is set.
	Text string `json:"text,omitempty"`
	// Cumulative count of generated tokens so far.
	GeneratedTokenCount int `json:"generated_token_count"`
	// Why generation ended (NOT_FINISHED while mid-stream).
	StopReason StopReason `json:"stop_reason,omitempty"`
	// The matched stop sequence, when StopReason is STOP_SEQUENCE.
	StopSequence string `json:"stop_sequence,omitempty"`
	// Number of tokens in the input prompt.
	InputTokenCount int `json:"input_token_count,omitempty"`
	// Generated-token detail, when generated_tokens was requested.
	Tokens []TokenInfo `json:"tokens,omitempty"`
	// Input-token detail, when input_tokens was requested.
	InputTokens []TokenInfo `json:"input_tokens,omitempty"`
	// Seed actually used, echoed when the request supplied one.
	Seed *int64 `json:"seed,omitempty"`
}

// BatchedGenerationResponse wraps the per-input responses, in request order.
type BatchedGenerationResponse struct {
	Responses []GenerationResponse `json:"responses"`
}

// TokenizeRequest is one text within a tokenize call.
type TokenizeRequest struct {
	Text string `json:"text" example:"Hello world"`
}

// BatchedTokenizeRequest is the payload for POST /tokenize.
type BatchedTokenizeRequest struct {
	Requests []TokenizeRequest `json:"requests"`
	// Also return the token texts, not just the count.
	ReturnTokens bool `json:"return_tokens,omitempty"`
}

// TokenizeResponse is the per-text tokenization result.
type TokenizeResponse struct {
	TokenCount int      `json:"token_count" example:"3"`
	Tokens     []string `json:"tokens,omitempty"`
}

// BatchedTokenizeResponse wraps per-text results, in request order.
type BatchedTokenizeResponse struct {
	Responses []TokenizeResponse `json:"responses"`
}

// ModelInfoResponse is returned by GET /model_info.
type ModelInfoResponse struct {
	// Kind of model served; currently always DECODER_ONLY.
	ModelKind string `json:"model_kind" example:"DECODER_ONLY"`
	// Maximum total sequence length (prompt plus generation).
	MaxSequenceLength int `json:"max_sequence_length" example:"4096"`
	// Server-wide ceiling for max_new_tokens.
	MaxNewTokens int `json:"max_new_tokens" example:"1024"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
