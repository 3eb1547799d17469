package generation

import (
	"textgend/internal/engine"
	"textgend/pkg/types"
)

// classifyStop maps the engine-reported finish condition plus the
// implicit-limit and time-limit flags onto a protocol stop reason, with the
// matched stop sequence when one applies. Evaluated once per completed
// generation, or per terminal streaming step.
func (s *Service) classifyStop(snap engine.GenerationSnapshot, implicitLimit, timeLimit bool) (types.StopReason, string) {
	switch snap.FinishReason {
	case engine.FinishNone:
		if timeLimit {
			return types.StopTimeLimit, ""
		}
		return types.StopNotFinished, ""
	case engine.FinishLength:
		if implicitLimit {
			return types.StopTokenLimit, ""
		}
		return types.StopMaxTokens, ""
	case engine.FinishStop:
		if snap.StoppedAtEOS {
			return types.StopEOSToken, ""
		}
		return types.StopStopSequence, snap.StopSequence
	case engine.FinishAbort:
		return types.StopCancelled, ""
	default:
		s.log.Warn().Str("finish_reason", string(snap.FinishReason)).
			Msg("unrecognized finish reason")
		return types.StopCancelled, ""
	}
}
