package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"textgend/internal/generation"
	"textgend/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Generate(ctx context.Context, req types.BatchedGenerationRequest) (types.BatchedGenerationResponse, error)
	GenerateStream(ctx context.Context, req types.SingleGenerationRequest, send func(types.GenerationResponse) error) error
	Tokenize(ctx context.Context, req types.BatchedTokenizeRequest) (types.BatchedTokenizeResponse, error)
	ModelInfo() types.ModelInfoResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Generate godoc
	// @Summary      Batched generation
	// @Accept       json
	// @Produce      json
	// @Param        request body types.BatchedGenerationRequest true "prompts plus shared parameters"
	// @Success      200 {object} types.BatchedGenerationResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Router       /generate [post]
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchedGenerationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		start := time.Now()
		resp, err := svc.Generate(ctx, req)
		if err != nil {
			writeServiceError(w, r, "generate", err)
			return
		}
		for _, gr := range resp.Responses {
			RecordGeneration(string(gr.StopReason), gr.GeneratedTokenCount)
		}
		logEnd(r, "generate", http.StatusOK, time.Since(start))
		writeJSON(w, resp)
	})

	// GenerateStream godoc
	// @Summary      Streaming generation (NDJSON)
	// @Accept       json
	// @Produce      application/x-ndjson
	// @Param        request body types.SingleGenerationRequest true "single prompt plus parameters"
	// @Success      200 {object} types.GenerationResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Router       /generate_stream [post]
	r.Post("/generate_stream", func(w http.ResponseWriter, r *http.Request) {
		var req types.SingleGenerationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()

		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		start := time.Now()
		enc := json.NewEncoder(w)
		streamStarted := false
		var last types.GenerationResponse
		err := svc.GenerateStream(ctx, req, func(resp types.GenerationResponse) error {
			if !streamStarted {
				w.Header().Set("Content-Type", "application/x-ndjson")
				streamStarted = true
			}
			last = resp
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if flush != nil {
				flush()
			}
			return nil
		})
		if err != nil {
			// Once bytes are on the wire the status line is gone; log and
			// cut the stream instead of writing a late error payload.
			if !streamStarted {
				writeServiceError(w, r, "generate_stream", err)
				return
			}
			if r.Context().Err() == nil && serverBaseCtx.Err() == nil {
				logError(r, "generate_stream", err)
			}
			return
		}
		RecordGeneration(string(last.StopReason), last.GeneratedTokenCount)
		logEnd(r, "generate_stream", http.StatusOK, time.Since(start))
	})

	// Tokenize godoc
	// @Summary      Batched tokenization
	// @Accept       json
	// @Produce      json
	// @Param        request body types.BatchedTokenizeRequest true "texts to tokenize"
	// @Success      200 {object} types.BatchedTokenizeResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Router       /tokenize [post]
	r.Post("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchedTokenizeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()
		resp, err := svc.Tokenize(ctx, req)
		if err != nil {
			writeServiceError(w, r, "tokenize", err)
			return
		}
		writeJSON(w, resp)
	})

	// ModelInfo godoc
	// @Summary      Served model limits
	// @Produce      json
	// @Success      200 {object} types.ModelInfoResponse
	// @Router       /model_info [get]
	r.Get("/model_info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.ModelInfo())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the content type and body-size limit, then decodes
// into dst. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// MaxBytesReader errors land here too; return 400 without leaking
		// size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeServiceError maps service errors onto wire statuses: validation
// failures are invalid arguments (400), engine memory exhaustion is 429,
// a missing runtime is 503, everything else is an unclassified failure
// (500) and the only case logged as an error.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		// Client went away or the server is shutting down.
		return
	}
	switch {
	case generation.IsInvalidArgument(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		logEnd(r, op, http.StatusBadRequest, 0)
	case generation.IsResourceExhausted(err):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		logError(r, op, err)
	case generation.IsUnavailable(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		logEnd(r, op, http.StatusServiceUnavailable, 0)
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		logError(r, op, err)
	}
}
