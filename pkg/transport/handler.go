package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	stentor "github.com/kadirpekel/stentor"
	"github.com/kadirpekel/stentor/pkg/agent"
	"github.com/kadirpekel/stentor/pkg/config"
	"github.com/kadirpekel/stentor/pkg/intent"
	"github.com/kadirpekel/stentor/pkg/llms"
	"github.com/kadirpekel/stentor/pkg/observability"
	"github.com/kadirpekel/stentor/pkg/session"
	"github.com/kadirpekel/stentor/pkg/tools"
	"github.com/kadirpekel/stentor/pkg/validation"
)

// apologyMessage replaces the reply when the pipeline itself fails. The
// session survives; the next request starts clean.
const apologyMessage = "I apologize, but I encountered an error processing your request. Please try again."

// pipeline is the request-scoped, immutable slice of the router: analyzer,
// validator, executor and registry seeder compiled from one config
// snapshot. Hot reload swaps the whole pipeline atomically; in-flight
// requests keep the snapshot they started with.
type pipeline struct {
	analyzer  intent.Analyzer
	validator *validation.Validator
	executor  *tools.Executor
	seeder    tools.Seeder
}

// Handler orchestrates chat completion requests: session resolution, the
// agent pass, response validation, manual tool execution, and the reply
// encoding (whole or streamed).
type Handler struct {
	model    string
	registry *tools.Registry
	sessions *session.Manager
	started  time.Time

	pipe atomic.Pointer[pipeline]

	// providerMu guards the provider handles below across Reload and Close.
	providerMu sync.Mutex

	// analyzerProvider is the dedicated structured-output client behind
	// the LLM intent strategy, retained for shutdown.
	analyzerProvider llms.Provider

	// retiredProviders are analyzer providers displaced by a reload.
	// In-flight requests may still hold a pipeline snapshot built on
	// them, so they are released on Close, not at swap time.
	retiredProviders []llms.Provider
}

// NewHandler assembles the full pipeline from configuration.
func NewHandler(cfg *config.Config) (*Handler, error) {
	registry := tools.NewRegistry()

	h := &Handler{
		model:    cfg.LLM.Model,
		registry: registry,
		started:  time.Now(),
	}

	h.sessions = session.NewManager(func() (*agent.Agent, error) {
		return agent.New(&cfg.LLM, registry)
	})

	if err := h.rebuild(cfg); err != nil {
		return nil, err
	}
	return h, nil
}

// Reload swaps in a pipeline built from a new config snapshot. Sessions and
// the tool registry are preserved across reloads.
func (h *Handler) Reload(cfg *config.Config) error {
	if err := h.rebuild(cfg); err != nil {
		return err
	}
	slog.Info("Pipeline reloaded",
		"strategy", cfg.Router.Strategy,
		"default_namespace", cfg.Router.DefaultNamespace,
	)
	return nil
}

func (h *Handler) rebuild(cfg *config.Config) error {
	provider, err := llms.NewProvider(&cfg.LLM)
	if err != nil {
		return err
	}

	structured, _ := provider.(llms.StructuredOutputProvider)
	analyzer, err := intent.New(&cfg.Router, structured)
	if err != nil {
		_ = provider.Close()
		return err
	}

	p := &pipeline{
		analyzer:  analyzer,
		validator: validation.New(&cfg.Validation),
		executor:  tools.NewExecutor(h.registry, analyzer, "projects"),
		seeder:    tools.NewSeeder(&cfg.Tools),
	}
	h.pipe.Store(p)

	h.providerMu.Lock()
	if old := h.analyzerProvider; old != nil {
		h.retiredProviders = append(h.retiredProviders, old)
	}
	h.analyzerProvider = provider
	h.providerMu.Unlock()
	return nil
}

// Sessions exposes the session manager for lifecycle wiring.
func (h *Handler) Sessions() *session.Manager {
	return h.sessions
}

// Close releases the sessions, the analyzer's provider, and any providers
// retired by earlier reloads.
func (h *Handler) Close() {
	h.sessions.Close()

	h.providerMu.Lock()
	defer h.providerMu.Unlock()
	if h.analyzerProvider != nil {
		_ = h.analyzerProvider.Close()
		h.analyzerProvider = nil
	}
	for _, provider := range h.retiredProviders {
		_ = provider.Close()
	}
	h.retiredProviders = nil
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tracer := observability.GetTracer("stentor.transport")
	ctx, span := tracer.Start(ctx, observability.SpanChatRequest)
	defer span.End()

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	message, ok := req.LastUserMessage()
	if !ok {
		http.Error(w, "Request must contain at least one user message", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(attribute.String(observability.AttrSessionID, sessionID))

	p := h.pipe.Load()

	// The single per-request registry readiness attempt. A failure is
	// logged and the request proceeds: the executor reports tool
	// unavailability in-band when the work actually needs a tool.
	if err := h.registry.Initialize(ctx, p.seeder); err != nil {
		slog.Warn("Tool registry initialization failed", "error", err)
	}

	text, toolInfo := h.runPipeline(ctx, span, p, sessionID, message, &req)

	if ctx.Err() != nil {
		// Client went away; nothing to encode.
		return
	}

	w.Header().Set(SessionIDHeader, sessionID)

	model := req.Model
	if model == "" {
		model = h.model
	}
	id := newCompletionID()

	if req.Stream {
		if err := streamCompletion(ctx, w, id, model, text); err != nil && ctx.Err() == nil {
			slog.Error("Streaming reply failed", "session_id", sessionID, "error", err)
		}
		return
	}

	resp := ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: unixNow(),
		Model:   model,
		Choices: []ChatCompletionChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		ToolInfo: toolInfo,
	}
	respondJSON(w, http.StatusOK, resp)
}

// runPipeline performs the agent pass, the validation verdict, and the
// optional manual execution. Logical failures come back as reply text; the
// caller never sees an error.
func (h *Handler) runPipeline(ctx context.Context, span trace.Span, p *pipeline, sessionID, message string, req *ChatCompletionRequest) (string, *ToolInfo) {
	sess, err := h.sessions.GetOrCreate(sessionID)
	if err != nil {
		slog.Error("Failed to create session", "session_id", sessionID, "error", err)
		return apologyMessage, nil
	}

	reply, err := sess.Agent.Run(ctx, message)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		slog.Error("Agent run failed", "session_id", sessionID, "error", err)
		return apologyMessage, nil
	}

	overrides := intent.Overrides{
		Namespace: req.Namespace,
		ProjectID: req.ProjectID,
	}

	if p.validator.NeedsManualExecution(ctx, reply.Text, message) {
		result := p.executor.RunManual(ctx, message, overrides)
		span.SetAttributes(attribute.String(observability.AttrIntegrationMode, result.IntegrationMode))
		return result.UserMessage(), &ToolInfo{
			Name:            result.ToolName,
			Action:          result.Action,
			Namespace:       result.Namespace,
			IntegrationMode: result.IntegrationMode,
			Success:         result.Success,
		}
	}

	if p.validator.IsToolRelated(message) {
		// Best-effort annotation: the reply passed validation, so the
		// model is assumed to have handled the tool work natively.
		span.SetAttributes(attribute.String(observability.AttrIntegrationMode, tools.ModeNative))
		return reply.Text, &ToolInfo{
			Name:            p.executor.ToolName(),
			IntegrationMode: tools.ModeNative,
			Success:         true,
		}
	}

	return reply.Text, nil
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       stentor.Version,
		Model:         h.model,
		Sessions:      h.sessions.Count(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Tools:         h.registry.HealthCheckAll(r.Context()),
	})
}

// Models handles GET /v1/models.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModelList{
		Object: "list",
		Data: []ModelInfo{{
			ID:      h.model,
			Object:  "model",
			Created: h.started.Unix(),
			OwnedBy: "stentor",
		}},
	})
}

// ListSessions handles GET /v1/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids := h.sessions.IDs()
	respondJSON(w, http.StatusOK, SessionList{Sessions: ids, Total: len(ids)})
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.Delete(id) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
