package generation

import (
	"context"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

// GenerateStream handles one streaming generation call. The first emitted
// response carries the input-detail fields; every snapshot (including the
// first) then yields a delta response with the not-yet-emitted text and
// token suffix. A deadline breach aborts the engine once, emits that step's
// delta as the final response, and ends the stream.
func (s *Service) GenerateStream(ctx context.Context, req types.SingleGenerationRequest, send func(types.GenerationResponse) error) error {
	requestID := newRequestID()
	cfg, deadline, err := s.convertParams(req.Params, s.now())
	if err != nil {
		return err
	}
	inputIDs, implicitLimit, err := s.preparePrompt(ctx, &cfg, req.Params.TruncateInputTokens, req.Request.Text)
	if err != nil {
		return err
	}
	stream, err := s.engine.Generate(ctx, requestID, engine.Prompt{Text: req.Request.Text, TokenIDs: inputIDs}, cfg)
	if err != nil {
		return err
	}

	opts := req.Params.Response
	first := true
	// Last emitted cumulative lengths; owned exclusively by this call.
	lastTextLen := 0
	lastTokenCount := 0
	timeLimit := false
	for snap := range stream {
		if first {
			if err := send(s.convertInputDetails(snap, req.Request.Text, opts, cfg, types.GenerationResponse{})); err != nil {
				return err
			}
			first = false
		}

		if !deadline.IsZero() && !s.now().Before(deadline) {
			s.engine.Abort(requestID)
			timeLimit = true
		}

		if err := send(s.convertOutput(snap, opts, implicitLimit, timeLimit, lastTextLen, lastTokenCount)); err != nil {
			return err
		}
		if timeLimit {
			// Release the engine's sender; no further snapshots are
			// consumed.
			go func() {
				for range stream {
				}
			}()
			break
		}

		lastTextLen = len(snap.Text)
		lastTokenCount = len(snap.TokenIDs)
	}
	return nil
}
