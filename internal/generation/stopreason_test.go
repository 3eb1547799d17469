package generation

import (
	"testing"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

func TestClassifyStop(t *testing.T) {
	s := newTestService(newFakeEngine(2048), newFakeTokenizer(), Options{})
	cases := []struct {
		name          string
		snap          engine.GenerationSnapshot
		implicitLimit bool
		timeLimit     bool
		wantReason    types.StopReason
		wantSeq       string
	}{
		{"mid-stream", engine.GenerationSnapshot{}, false, false, types.StopNotFinished, ""},
		{"deadline hit mid-stream", engine.GenerationSnapshot{}, false, true, types.StopTimeLimit, ""},
		{"explicit max reached", engine.GenerationSnapshot{FinishReason: engine.FinishLength}, false, false, types.StopMaxTokens, ""},
		{"implicit limit reached", engine.GenerationSnapshot{FinishReason: engine.FinishLength}, true, false, types.StopTokenLimit, ""},
		{"stop sequence matched", engine.GenerationSnapshot{FinishReason: engine.FinishStop, StopSequence: "\n\n"}, false, false, types.StopStopSequence, "\n\n"},
		{"natural eos", engine.GenerationSnapshot{FinishReason: engine.FinishStop, StoppedAtEOS: true}, false, false, types.StopEOSToken, ""},
		{"aborted", engine.GenerationSnapshot{FinishReason: engine.FinishAbort}, false, false, types.StopCancelled, ""},
		{"unrecognized condition", engine.GenerationSnapshot{FinishReason: "flarp"}, false, false, types.StopCancelled, ""},
	}
	for _, tc := range cases {
		reason, seq := s.classifyStop(tc.snap, tc.implicitLimit, tc.timeLimit)
		if reason != tc.wantReason || seq != tc.wantSeq {
			t.Fatalf("%s: got (%s, %q), want (%s, %q)", tc.name, reason, seq, tc.wantReason, tc.wantSeq)
		}
	}
}
