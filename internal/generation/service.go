// Package generation translates wire-level generation requests into engine
// sampling calls and converts the engine's incremental snapshot streams back
// into protocol responses: parameter validation, prompt preparation against
// the context window, stop-reason classification, token-level detail, and
// the batch/stream orchestration around them.
package generation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

// Options are server-level generation defaults.
type Options struct {
	// MaxNewTokens is the ceiling for per-request max_new_tokens and the
	// default bound when a request leaves it unset.
	MaxNewTokens int
	// OutputSpecialTokens disables skipping of special tokens when
	// detokenizing output.
	OutputSpecialTokens bool
	// DefaultIncludeStopSeqs is used when a request leaves
	// include_stop_sequence unset.
	DefaultIncludeStopSeqs bool
}

// Service implements the four RPC operations on top of an Engine and a
// Tokenizer. Both collaborators are read-only and shared across requests;
// all per-request state is owned by a single call.
type Service struct {
	engine    engine.Engine
	tokenizer engine.Tokenizer
	log       zerolog.Logger
	now       func() time.Time

	maxNewTokens           int
	skipSpecialTokens      bool
	defaultIncludeStopSeqs bool
}

// New builds a Service.
func New(eng engine.Engine, tok engine.Tokenizer, log zerolog.Logger, opts Options) *Service {
	return &Service{
		engine:                 eng,
		tokenizer:              tok,
		log:                    log,
		now:                    time.Now,
		maxNewTokens:           opts.MaxNewTokens,
		skipSpecialTokens:      !opts.OutputSpecialTokens,
		defaultIncludeStopSeqs: opts.DefaultIncludeStopSeqs,
	}
}

// Ready reports whether the service can accept generation requests.
func (s *Service) Ready() bool {
	return s.engine != nil && s.tokenizer != nil
}

// Tokenize handles one batched tokenization call.
func (s *Service) Tokenize(ctx context.Context, req types.BatchedTokenizeRequest) (types.BatchedTokenizeResponse, error) {
	responses := make([]types.TokenizeResponse, 0, len(req.Requests))
	for _, r := range req.Requests {
		ids, err := s.tokenizer.Encode(ctx, r.Text, 0)
		if err != nil {
			return types.BatchedTokenizeResponse{}, err
		}
		resp := types.TokenizeResponse{TokenCount: len(ids)}
		if req.ReturnTokens {
			resp.Tokens = s.tokenizer.TokenTexts(ids)
		}
		responses = append(responses, resp)
	}
	return types.BatchedTokenizeResponse{Responses: responses}, nil
}

// ModelInfo reports the served model's limits.
func (s *Service) ModelInfo() types.ModelInfoResponse {
	return types.ModelInfoResponse{
		ModelKind:         types.ModelKindDecoderOnly,
		MaxSequenceLength: s.engine.ModelConfig().MaxSequenceLength,
		MaxNewTokens:      s.maxNewTokens,
	}
}

// convertOutput builds the generated-content part of a response from a
// snapshot. The offsets skip text/tokens already emitted to the client.
func (s *Service) convertOutput(snap engine.GenerationSnapshot, opts types.ResponseOptions, implicitLimit, timeLimit bool, textOffset, tokenOffset int) types.GenerationResponse {
	reason, stopSeq := s.classifyStop(snap, implicitLimit, timeLimit)
	resp := types.GenerationResponse{
		Text:                snap.Text[textOffset:],
		GeneratedTokenCount: len(snap.TokenIDs),
		StopReason:          reason,
		StopSequence:        stopSeq,
	}
	if opts.GeneratedTokens {
		resp.Tokens = s.convertTokens(snap.TokenIDs, snap.Logprobs, opts, tokenOffset)
	}
	return resp
}

// convertInputDetails attaches the prompt-side fields: input token count
// (always), optional input-token detail, optional echoed prompt text and the
// seed actually used.
func (s *Service) convertInputDetails(snap engine.GenerationSnapshot, promptText string, opts types.ResponseOptions, cfg engine.SamplingConfig, resp types.GenerationResponse) types.GenerationResponse {
	resp.InputTokenCount = len(snap.PromptTokenIDs)
	if opts.InputTokens {
		resp.InputTokens = s.convertTokens(snap.PromptTokenIDs, snap.PromptLogprobs, opts, 0)
	}
	if opts.InputText {
		resp.Text = promptText + resp.Text
	}
	if cfg.Seed != nil {
		resp.Seed = cfg.Seed
	}
	return resp
}

// newRequestID returns a random hex id; batch members append "-{i}".
func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
