package generation

import (
	"context"
	"fmt"
	"sync"

	"textgend/internal/engine"
	"textgend/pkg/types"
)

// abortStarted cancels engine work already running for earlier batch members
// when a later member fails setup, and drains their streams so the engine's
// senders are released.
func (s *Service) abortStarted(ids []string, streams []<-chan engine.GenerationSnapshot) {
	for _, id := range ids {
		s.engine.Abort(id)
	}
	for _, stream := range streams {
		go func(stream <-chan engine.GenerationSnapshot) {
			for range stream {
			}
		}(stream)
	}
}

// indexedSnapshot tags a snapshot with the batch index of the stream that
// produced it.
type indexedSnapshot struct {
	index int
	snap  engine.GenerationSnapshot
}

// Generate handles one batched generation call: it fans out one engine
// stream per request, merges them in arrival order, applies the shared
// deadline, and assembles the responses back into original request order.
func (s *Service) Generate(ctx context.Context, req types.BatchedGenerationRequest) (types.BatchedGenerationResponse, error) {
	requestID := newRequestID()
	cfg, deadline, err := s.convertParams(req.Params, s.now())
	if err != nil {
		return types.BatchedGenerationResponse{}, err
	}

	count := len(req.Requests)
	configs := make([]engine.SamplingConfig, count)
	implicitLimit := make([]bool, count)
	streams := make([]<-chan engine.GenerationSnapshot, count)
	memberIDs := make([]string, count)
	for i, r := range req.Requests {
		// Each member owns its own config copy: the preparer tightens
		// MaxNewTokens per prompt length.
		memberCfg := cfg
		inputIDs, implicit, err := s.preparePrompt(ctx, &memberCfg, req.Params.TruncateInputTokens, r.Text)
		if err != nil {
			s.abortStarted(memberIDs[:i], streams[:i])
			return types.BatchedGenerationResponse{}, err
		}
		configs[i] = memberCfg
		implicitLimit[i] = implicit
		memberIDs[i] = fmt.Sprintf("%s-%d", requestID, i)
		stream, err := s.engine.Generate(ctx, memberIDs[i], engine.Prompt{Text: r.Text, TokenIDs: inputIDs}, memberCfg)
		if err != nil {
			s.abortStarted(memberIDs[:i], streams[:i])
			return types.BatchedGenerationResponse{}, err
		}
		streams[i] = stream
	}

	// Fan-in: one forwarder per stream feeding a single merged channel.
	merged := make(chan indexedSnapshot)
	var wg sync.WaitGroup
	for i, stream := range streams {
		wg.Add(1)
		go func(i int, stream <-chan engine.GenerationSnapshot) {
			defer wg.Done()
			for snap := range stream {
				merged <- indexedSnapshot{index: i, snap: snap}
			}
		}(i, stream)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	latest := make([]*engine.GenerationSnapshot, count)
	started := 0
	timeLimit := false
	for is := range merged {
		if latest[is.index] == nil {
			started++
		}
		snap := is.snap
		latest[is.index] = &snap

		// The shared deadline only fires once every member has produced at
		// least one snapshot; members that already finished keep their
		// terminal snapshots as-is.
		if !deadline.IsZero() && !s.now().Before(deadline) && started == count {
			for _, id := range memberIDs {
				s.engine.Abort(id)
			}
			timeLimit = true
			go func() {
				for range merged {
				}
			}()
			break
		}
	}

	responses := make([]types.GenerationResponse, count)
	for i := range responses {
		var snap engine.GenerationSnapshot
		if latest[i] != nil {
			snap = *latest[i]
		}
		resp := s.convertOutput(snap, req.Params.Response, implicitLimit[i], timeLimit, 0, 0)
		responses[i] = s.convertInputDetails(snap, req.Requests[i].Text, req.Params.Response, configs[i], resp)
	}
	return types.BatchedGenerationResponse{Responses: responses}, nil
}
