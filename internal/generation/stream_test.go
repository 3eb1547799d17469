package generation

import (
	"context"
	"strings"
	"testing"
	"time"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

func collectStream(t *testing.T, s *Service, req types.SingleGenerationRequest) []types.GenerationResponse {
	t.Helper()
	var got []types.GenerationResponse
	err := s.GenerateStream(context.Background(), req, func(r types.GenerationResponse) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	return got
}

func TestGenerateStreamFirstResponseCarriesInputDetails(t *testing.T) {
	eng := newFakeEngine(2048, []engine.GenerationSnapshot{
		{Text: "hi", TokenIDs: []int{9}, FinishReason: engine.FinishStop, StoppedAtEOS: true},
	})
	s := newTestService(eng, newFakeTokenizer(), Options{MaxNewTokens: 100})

	seed := int64(7)
	req := types.SingleGenerationRequest{
		Request: types.GenerationRequest{Text: "one two three"},
		Params: types.Parameters{
			Method:   types.MethodSample,
			Sampling: types.SamplingParameters{Seed: &seed},
			Response: types.ResponseOptions{InputText: true},
		},
	}
	got := collectStream(t, s, req)
	if len(got) != 2 {
		t.Fatalf("responses=%d, want 2", len(got))
	}
	first := got[0]
	if first.InputTokenCount != 3 {
		t.Fatalf("input token count=%d", first.InputTokenCount)
	}
	if first.Text != "one two three" {
		t.Fatalf("first text=%q, want echoed prompt", first.Text)
	}
	if first.Seed == nil || *first.Seed != 7 {
		t.Fatalf("seed=%v", first.Seed)
	}
	if first.GeneratedTokenCount != 0 {
		t.Fatalf("first response must carry no generated content: %+v", first)
	}
}

func TestGenerateStreamDeltaCompleteness(t *testing.T) {
	// Concatenating all emitted text deltas must reproduce the final
	// cumulative text with no gaps and no overlaps; same for token details.
	tok := newFakeTokenizer()
	ids, err := tok.Encode(context.Background(), "p aa bb cc", 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	gen := ids[1:]
	eng := newFakeEngine(2048, []engine.GenerationSnapshot{
		{Text: "aa", TokenIDs: gen[:1]},
		{Text: "aa bb", TokenIDs: gen[:2]},
		{Text: "aa bb cc", TokenIDs: gen[:3], FinishReason: engine.FinishStop, StoppedAtEOS: true},
	})
	s := newTestService(eng, tok, Options{MaxNewTokens: 100})

	req := types.SingleGenerationRequest{
		Request: types.GenerationRequest{Text: "p"},
		Params:  types.Parameters{Response: types.ResponseOptions{GeneratedTokens: true}},
	}
	got := collectStream(t, s, req)
	if len(got) != 4 { // input details + one delta per snapshot
		t.Fatalf("responses=%d, want 4", len(got))
	}

	var text strings.Builder
	var tokens []string
	for _, r := range got[1:] {
		text.WriteString(r.Text)
		for _, ti := range r.Tokens {
			tokens = append(tokens, ti.Text)
		}
	}
	if text.String() != "aa bb cc" {
		t.Fatalf("concatenated deltas=%q", text.String())
	}
	if len(tokens) != 3 || tokens[0] != "aa" || tokens[2] != "cc" {
		t.Fatalf("concatenated token details=%v", tokens)
	}
	if last := got[len(got)-1]; last.StopReason != types.StopEOSToken {
		t.Fatalf("final stop reason=%s", last.StopReason)
	}
	for _, r := range got[1 : len(got)-1] {
		if r.StopReason != types.StopNotFinished {
			t.Fatalf("mid-stream stop reason=%s", r.StopReason)
		}
	}
}

func TestGenerateStreamTimeLimit(t *testing.T) {
	eng := newFakeEngine(2048, []engine.GenerationSnapshot{
		{Text: "Hel", TokenIDs: []int{1}},
		{Text: "Hello", TokenIDs: []int{1, 2}},
	})
	eng.holdOpen = true
	s := newTestService(eng, newFakeTokenizer(), Options{MaxNewTokens: 100})

	t0 := time.Unix(1000, 0)
	// Clock reads: convertParams, then one deadline check per snapshot.
	clock := newFakeClock(t0, t0, t0.Add(5*time.Millisecond))
	s.now = clock.Now

	req := types.SingleGenerationRequest{
		Request: types.GenerationRequest{Text: "long prompt"},
		Params:  types.Parameters{Stopping: types.StoppingCriteria{TimeLimitMillis: 1}},
	}
	got := collectStream(t, s, req)
	if len(got) != 3 { // input details + first delta + final time-limited delta
		t.Fatalf("responses=%d, want 3", len(got))
	}
	final := got[len(got)-1]
	if final.StopReason != types.StopTimeLimit {
		t.Fatalf("final stop reason=%s, want TIME_LIMIT", final.StopReason)
	}
	if got[1].Text+final.Text != "Hello" {
		t.Fatalf("deltas=%q + %q", got[1].Text, final.Text)
	}
	if eng.abortCount() != 1 {
		t.Fatalf("aborts=%d, want exactly 1", eng.abortCount())
	}
}

func TestGenerateStreamValidationError(t *testing.T) {
	eng := newFakeEngine(2048)
	s := newTestService(eng, newFakeTokenizer(), Options{MaxNewTokens: 10})

	req := types.SingleGenerationRequest{
		Request: types.GenerationRequest{Text: "hello"},
		Params:  types.Parameters{Stopping: types.StoppingCriteria{MaxNewTokens: 11}},
	}
	err := s.GenerateStream(context.Background(), req, func(types.GenerationResponse) error {
		t.Fatal("nothing should be emitted")
		return nil
	})
	if !IsInvalidArgument(err) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if eng.calls != 0 {
		t.Fatalf("engine invoked despite validation failure")
	}
}
