package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"textgend/internal/engine"
)

// fakeTokenizer assigns ids to whitespace-separated words in order of first
// appearance, so tests get stable, reversible token sequences.
type fakeTokenizer struct {
	mu        sync.Mutex
	vocab     []string
	index     map[string]int
	encodeErr error
}

func newFakeTokenizer() *fakeTokenizer {
	return &fakeTokenizer{index: make(map[string]int)}
}

func (t *fakeTokenizer) id(word string) int {
	if id, ok := t.index[word]; ok {
		return id
	}
	id := len(t.vocab)
	t.vocab = append(t.vocab, word)
	t.index[word] = id
	return id
}

func (t *fakeTokenizer) Encode(ctx context.Context, text string, truncateTo int) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.encodeErr != nil {
		return nil, t.encodeErr
	}
	words := strings.Fields(text)
	ids := make([]int, 0, len(words))
	for _, w := range words {
		ids = append(ids, t.id(w))
	}
	if truncateTo > 0 && len(ids) > truncateTo {
		ids = ids[:truncateTo]
	}
	return ids, nil
}

func (t *fakeTokenizer) TokenTexts(ids []int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	texts := make([]string, len(ids))
	for i, id := range ids {
		if id >= 0 && id < len(t.vocab) {
			texts[i] = t.vocab[id]
		}
	}
	return texts
}

// fakeEngine replays scripted snapshot sequences, one script per Generate
// call in call order. With holdOpen set, each stream stays open after its
// script until Abort is issued for its request id.
type fakeEngine struct {
	mu       sync.Mutex
	window   int
	scripts  [][]engine.GenerationSnapshot
	holdOpen bool

	calls    int
	configs  []engine.SamplingConfig
	aborts   []string
	releases map[string]chan struct{}
}

func newFakeEngine(window int, scripts ...[]engine.GenerationSnapshot) *fakeEngine {
	return &fakeEngine{
		window:   window,
		scripts:  scripts,
		releases: make(map[string]chan struct{}),
	}
}

func (e *fakeEngine) ModelConfig() engine.ModelConfig {
	return engine.ModelConfig{MaxSequenceLength: e.window}
}

func (e *fakeEngine) Generate(ctx context.Context, requestID string, prompt engine.Prompt, cfg engine.SamplingConfig) (<-chan engine.GenerationSnapshot, error) {
	e.mu.Lock()
	var script []engine.GenerationSnapshot
	if e.calls < len(e.scripts) {
		script = e.scripts[e.calls]
	}
	e.calls++
	e.configs = append(e.configs, cfg)
	var release chan struct{}
	if e.holdOpen {
		release = make(chan struct{})
		e.releases[requestID] = release
	}
	e.mu.Unlock()

	// Snapshots echo the prepared prompt the way a real engine would.
	out := make(chan engine.GenerationSnapshot)
	go func() {
		defer close(out)
		for _, snap := range script {
			snap.PromptTokenIDs = prompt.TokenIDs
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (e *fakeEngine) Abort(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborts = append(e.aborts, requestID)
	if release, ok := e.releases[requestID]; ok {
		close(release)
		delete(e.releases, requestID)
	}
}

func (e *fakeEngine) abortCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.aborts)
}

func (e *fakeEngine) lastConfig() engine.SamplingConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configs[len(e.configs)-1]
}

// fakeClock returns the queued times in order, then keeps returning the last
// one.
type fakeClock struct {
	mu    sync.Mutex
	times []time.Time
	last  time.Time
}

func newFakeClock(times ...time.Time) *fakeClock {
	c := &fakeClock{times: times}
	if len(times) > 0 {
		c.last = times[len(times)-1]
	}
	return c
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.times) > 0 {
		c.last = c.times[0]
		c.times = c.times[1:]
	}
	return c.last
}

func newTestService(eng engine.Engine, tok engine.Tokenizer, opts Options) *Service {
	if opts.MaxNewTokens == 0 {
		opts.MaxNewTokens = 1024
	}
	return New(eng, tok, zerolog.Nop(), opts)
}
