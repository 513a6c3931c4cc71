package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatgate/internal/apperr"
	"chatgate/internal/cache"
	"chatgate/internal/config"
	"chatgate/internal/metrics"
	"chatgate/internal/openai"
	"chatgate/internal/provider"
	"chatgate/internal/streamsim"
	"chatgate/pkg/logging"
)

// Advertised creation timestamp for the static model listing.
const modelCreated int64 = 1234567890

// ChatHandler holds the dependencies for the /v1 endpoints. Everything is
// constructed at startup and shared read-only across requests.
type ChatHandler struct {
	Provider    provider.Provider
	Backend     provider.Caller
	Cache       cache.Cache // nil disables caching
	CacheTTL    time.Duration
	Model       config.ModelConfig
	StreamDelay time.Duration
}

func NewChatHandler(p provider.Provider, client provider.Caller, c cache.Cache, ttl time.Duration, model config.ModelConfig) *ChatHandler {
	return &ChatHandler{
		Provider:    p,
		Backend:     client,
		Cache:       c,
		CacheTTL:    ttl,
		Model:       model,
		StreamDelay: streamsim.DefaultDelay,
	}
}

// ChatCompletion handles POST /v1/chat/completions, dispatching on the
// request's stream flag.
func (h *ChatHandler) ChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req openai.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, logger, apperr.InvalidRequest(err))
		return
	}

	logger.Info("chat completion request",
		zap.String("model", req.Model),
		zap.String("provider", h.Provider.Name()),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("stream", req.Stream),
	)

	if req.Stream {
		h.streamCompletion(w, r, &req)
		return
	}
	h.completion(w, r, &req)
}

func (h *ChatHandler) completion(w http.ResponseWriter, r *http.Request, req *openai.ChatRequest) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	cacheKey := ""
	if h.Cache != nil {
		key, err := cache.BuildKey(req, h.Provider.Name())
		if err != nil {
			logger.Warn("cache key build failed", zap.Error(err))
		} else {
			cacheKey = key.String()
			if resp, ok := h.cacheLookup(ctx, cacheKey); ok {
				logger.Info("chat completion served from cache",
					zap.String("model", req.Model),
					zap.Duration("total_latency", time.Since(start)),
				)
				h.writeJSON(w, logger, resp)
				return
			}
		}
	}

	resp, err := provider.HandleRequest(ctx, h.Backend, h.Provider, req)
	if err != nil {
		h.fail(w, logger, err)
		return
	}

	if cacheKey != "" {
		if body, err := json.Marshal(resp); err == nil {
			if err := h.Cache.Set(ctx, cacheKey, body, h.CacheTTL); err != nil {
				logger.Warn("cache set failed", zap.Error(err))
			}
		}
	}

	logger.Info("chat completion completed",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("total_latency", time.Since(start)),
	)

	h.writeJSON(w, logger, resp)
}

// cacheLookup returns a cached response with a freshly stamped identifier
// and timestamp, so served responses never share an id even when the body
// came from cache. Cache errors count as misses.
func (h *ChatHandler) cacheLookup(ctx context.Context, key string) (*openai.ChatResponse, bool) {
	logger := logging.L(ctx)

	body, hit, err := h.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}

	var resp openai.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Warn("cached response unmarshal failed", zap.Error(err))
		return nil, false
	}

	resp.ID = openai.NewCompletionID()
	resp.Created = time.Now().Unix()
	return &resp, true
}

func (h *ChatHandler) streamCompletion(w http.ResponseWriter, r *http.Request, req *openai.ChatRequest) {
	ctx := r.Context()
	logger := logging.L(ctx)

	text, err := provider.FetchStreamingText(ctx, h.Backend, h.Provider, req)
	if err != nil {
		h.fail(w, logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, logger, &apperr.Error{
			Kind:    apperr.KindTransform,
			Message: "streaming unsupported by transport",
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sim := streamsim.New(h.StreamDelay)
	chunks := 0
	for chunk := range sim.Run(ctx, req.Model, text) {
		data, err := json.Marshal(chunk)
		if err != nil {
			// Degrade to a placeholder event; the sequence continues.
			logger.Error("chunk serialization failed", zap.Error(err))
			data = []byte(`{"error":{"message":"failed to encode chunk","type":"transform_error"}}`)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			logger.Info("stream write failed, caller likely disconnected", zap.Error(err))
			return
		}
		flusher.Flush()
		chunks++
	}

	logger.Info("stream completed",
		zap.String("model", req.Model),
		zap.Int("chunks", chunks),
		zap.NamedError("cause", ctx.Err()),
	)
}

// Models handles GET /v1/models with the static single-entry listing.
func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, logging.L(r.Context()), openai.ModelsResponse{
		Object: openai.ObjectList,
		Data: []openai.Model{
			{
				ID:      h.Model.ID,
				Object:  openai.ObjectModel,
				Created: modelCreated,
				OwnedBy: h.Model.OwnedBy,
			},
		},
	})
}

// Health handles GET /health; constant-time, no backend call.
func (h *ChatHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *ChatHandler) fail(w http.ResponseWriter, logger *zap.Logger, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		metrics.RequestFailuresTotal.WithLabelValues(string(e.Kind)).Inc()
	} else {
		metrics.RequestFailuresTotal.WithLabelValues("internal").Inc()
	}
	apperr.Write(w, logger, err)
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", zap.Error(err))
	}
}
