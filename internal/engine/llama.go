//go:build llama

package engine

import (
	"context"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// Llama adapts an in-process llama.cpp model to the Engine and Tokenizer
// interfaces. The binding exposes neither candidate logprobs nor an id->text
// lookup, so snapshots carry no logprob detail and TokenTexts serves pieces
// observed during generation.
//
// Two locks with strict roles: modelMu serializes calls into the
// non-reentrant llama context (Encode, Predict), stateMu guards the small
// request/piece maps. Abort and TokenTexts only ever take stateMu, so they
// stay non-blocking while a generation holds modelMu.
type Llama struct {
	model   *llama.LLama
	ctxSize int
	threads int

	modelMu sync.Mutex

	stateMu  sync.Mutex
	cancels  map[string]context.CancelFunc
	pieces   map[int]string
	pieceIDs map[string]int
}

// LlamaOptions configure the in-process runtime.
type LlamaOptions struct {
	ModelPath   string
	ContextSize int
	Threads     int
}

// NewLlama loads the model at opts.ModelPath.
func NewLlama(opts LlamaOptions) (*Llama, error) {
	m, err := llama.New(opts.ModelPath, llama.SetContext(opts.ContextSize))
	if err != nil {
		return nil, err
	}
	return &Llama{
		model:    m,
		ctxSize:  opts.ContextSize,
		threads:  opts.Threads,
		cancels:  make(map[string]context.CancelFunc),
		pieces:   make(map[int]string),
		pieceIDs: make(map[string]int),
	}, nil
}

func (l *Llama) ModelConfig() ModelConfig {
	return ModelConfig{MaxSequenceLength: l.ctxSize}
}

func (l *Llama) Encode(ctx context.Context, text string, truncateTo int) ([]int, error) {
	l.modelMu.Lock()
	_, toks, err := l.model.TokenizeString(text, llama.SetTokens(l.ctxSize))
	l.modelMu.Unlock()
	if err != nil {
		return nil, err
	}
	if truncateTo > 0 && len(toks) > truncateTo {
		toks = toks[:truncateTo]
	}
	ids := make([]int, len(toks))
	for i, t := range toks {
		ids[i] = int(t)
	}
	return ids, nil
}

func (l *Llama) TokenTexts(ids []int) []string {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	texts := make([]string, len(ids))
	for i, id := range ids {
		texts[i] = l.pieces[id]
	}
	return texts
}

func (l *Llama) Abort(requestID string) {
	l.stateMu.Lock()
	cancel := l.cancels[requestID]
	l.stateMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Llama) Generate(ctx context.Context, requestID string, prompt Prompt, cfg SamplingConfig) (<-chan GenerationSnapshot, error) {
	genCtx, cancel := context.WithCancel(ctx)
	l.stateMu.Lock()
	l.cancels[requestID] = cancel
	l.stateMu.Unlock()

	out := make(chan GenerationSnapshot, 1)
	go func() {
		defer close(out)
		defer func() {
			l.stateMu.Lock()
			delete(l.cancels, requestID)
			l.stateMu.Unlock()
			cancel()
		}()

		var text strings.Builder
		var tokenIDs []int
		aborted := false

		l.modelMu.Lock()
		l.model.SetTokenCallback(func(piece string) bool {
			select {
			case <-genCtx.Done():
				aborted = true
				return false
			default:
			}
			text.WriteString(piece)
			tokenIDs = append(tokenIDs, l.recordPiece(piece))
			snap := GenerationSnapshot{
				Text:           text.String(),
				TokenIDs:       append([]int(nil), tokenIDs...),
				PromptTokenIDs: prompt.TokenIDs,
			}
			// Never block a send while modelMu is held; snapshots are
			// cumulative, so a slow consumer only needs the newest one.
			pushLatest(out, snap)
			return true
		})
		_, err := l.model.Predict(prompt.Text, predictOptions(cfg, l.threads)...)
		l.modelMu.Unlock()

		final := GenerationSnapshot{
			Text:           text.String(),
			TokenIDs:       tokenIDs,
			PromptTokenIDs: prompt.TokenIDs,
		}
		switch {
		case aborted || err != nil:
			final.FinishReason = FinishAbort
		case cfg.MaxNewTokens > 0 && len(tokenIDs) >= cfg.MaxNewTokens:
			final.FinishReason = FinishLength
		default:
			final.FinishReason = FinishStop
			if seq := matchedStop(text.String(), cfg.StopSequences); seq != "" {
				final.StopSequence = seq
			} else {
				final.StoppedAtEOS = true
			}
		}
		select {
		case out <- final:
		case <-genCtx.Done():
		}
	}()
	return out, nil
}

// recordPiece assigns a stable negative id to a generated piece, so ids can
// never collide with the model's vocabulary ids, and remembers the text for
// TokenTexts. The model context is never re-entered during generation.
func (l *Llama) recordPiece(piece string) int {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if id, ok := l.pieceIDs[piece]; ok {
		return id
	}
	id := -(len(l.pieceIDs) + 1)
	l.pieceIDs[piece] = id
	l.pieces[id] = piece
	return id
}

func matchedStop(text string, stops []string) string {
	for _, s := range stops {
		if strings.HasSuffix(text, s) {
			return s
		}
	}
	return ""
}

func predictOptions(cfg SamplingConfig, threads int) []llama.PredictOption {
	if threads < 1 {
		threads = 1
	}
	po := []llama.PredictOption{
		llama.SetTokens(cfg.MaxNewTokens),
		llama.SetThreads(threads),
		llama.SetTemperature(cfg.Temperature),
	}
	if cfg.TopK > 0 {
		po = append(po, llama.SetTopK(cfg.TopK))
	}
	if cfg.TopP > 0 {
		po = append(po, llama.SetTopP(cfg.TopP))
	}
	if cfg.RepetitionPenalty > 0 {
		po = append(po, llama.SetPenalty(cfg.RepetitionPenalty))
	}
	if cfg.Seed != nil {
		po = append(po, llama.SetSeed(int(*cfg.Seed)))
	}
	if len(cfg.StopSequences) > 0 {
		po = append(po, llama.SetStopWords(cfg.StopSequences...))
	}
	return po
}
