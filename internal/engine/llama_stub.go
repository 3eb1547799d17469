//go:build !llama

package engine

import "context"

// This file provides a no-CGO stub for the llama runtime. It is compiled
// when the 'llama' build tag is NOT set, keeping default builds and CI
// CGO-free. The real adapter lives in llama.go (tagged 'llama').

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

// Llama is a stub that satisfies Engine and Tokenizer but refuses to run
// without the 'llama' build tag. This avoids any mocked behavior in
// production binaries built without CGO support.
type Llama struct {
	ctxSize int
}

// LlamaOptions configure the in-process runtime.
type LlamaOptions struct {
	ModelPath   string
	ContextSize int
	Threads     int
}

// NewLlama never loads a model in the stub; the configured context size is
// still reported so /model_info stays meaningful.
func NewLlama(opts LlamaOptions) (*Llama, error) {
	return &Llama{ctxSize: opts.ContextSize}, nil
}

func (l *Llama) ModelConfig() ModelConfig {
	return ModelConfig{MaxSequenceLength: l.ctxSize}
}

func (l *Llama) Encode(ctx context.Context, text string, truncateTo int) ([]int, error) {
	return nil, ErrUnavailable
}

func (l *Llama) TokenTexts(ids []int) []string {
	return make([]string, len(ids))
}

func (l *Llama) Abort(requestID string) {}

func (l *Llama) Generate(ctx context.Context, requestID string, prompt Prompt, cfg SamplingConfig) (<-chan GenerationSnapshot, error) {
	return nil, ErrUnavailable
}
