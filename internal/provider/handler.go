package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"DebateArena/internal/backend"
	"DebateArena/internal/cache"
	"DebateArena/internal/debate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 64 << 10

// Local answers persona requests in-process with an LLM backend. It
// implements debate.Provider and backs the HTTP Handler.
type Local struct {
	backend backend.Backend
	cache   *cache.Cache
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewLocal creates a Local. cache may be nil to disable caching.
func NewLocal(b backend.Backend, c *cache.Cache, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		backend: b,
		cache:   c,
		logger:  logger,
		tracer:  otel.Tracer("debatearena/provider"),
	}
}

// Reply generates the persona reply, serving repeated prompts from the cache
func (l *Local) Reply(ctx context.Context, req debate.Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("prompt is required")
	}
	intensity := ClampIntensity(NormalizeIntensity(req.Intensity))

	ctx, span := l.tracer.Start(ctx, "provider_generate",
		trace.WithAttributes(
			attribute.String("debate.persona", string(req.Persona)),
			attribute.String("llm.backend", l.backend.Name()),
		),
	)
	defer span.End()

	key := cache.GenerateCacheKey(string(req.Persona), intensity, req.Prompt)
	if l.cache != nil {
		if reply, ok := l.cache.Get(key); ok {
			l.logger.Info("cache hit", "key", key[:16], "persona", req.Persona)
			return reply, nil
		}
	}

	reply, err := l.backend.Generate(ctx, backend.Prompt{
		System:      SystemPrompt(req.Persona, intensity),
		User:        req.Prompt,
		Temperature: Temperature(intensity),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("backend generation failed", "backend", l.backend.Name(), "persona", req.Persona, "error", err)
		return "", err
	}

	if l.cache != nil {
		l.cache.Put(key, reply)
	}

	l.logger.Info("persona reply generated", "backend", l.backend.Name(), "persona", req.Persona, "intensity", intensity)
	return reply, nil
}

// Handler serves the Response Provider endpoint: it validates the persona
// request and answers with {reply} or {error}.
type Handler struct {
	local *Local
}

// NewHandler creates a Handler. cache may be nil to disable caching.
func NewHandler(b backend.Backend, c *cache.Cache, logger *slog.Logger) *Handler {
	return &Handler{local: NewLocal(b, c, logger)}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ReplyResponse{Error: "method not allowed"})
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ReplyResponse{Error: "invalid JSON body"})
		return
	}

	persona, err := debate.ParsePersona(req.BotType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ReplyResponse{Error: "botType must be devil or optimist"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, ReplyResponse{Error: "prompt is required"})
		return
	}

	reply, err := h.local.Reply(r.Context(), debate.Request{
		Prompt:    req.Prompt,
		Persona:   persona,
		Intensity: req.Intensity,
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, ReplyResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ReplyResponse{Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
