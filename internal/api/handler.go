// Package api serves synthesis over HTTP for synthd.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/af-corp/mlapi/internal/config"
	"github.com/af-corp/mlapi/internal/graph"
	"github.com/af-corp/mlapi/internal/httputil"
	"github.com/af-corp/mlapi/internal/schema"
	"github.com/af-corp/mlapi/internal/store"
	"github.com/af-corp/mlapi/internal/synth"
	"github.com/af-corp/mlapi/internal/telemetry"
)

// Handler holds dependencies for the synthd HTTP handlers. It serves the
// manifest of the configured document and compiles ad-hoc documents.
type Handler struct {
	compiler *synth.Compiler
	store    store.Store
	metrics  *telemetry.Metrics
	maxBody  int64
	version  string

	mu        sync.RWMutex
	latest    *synth.Manifest
	latestErr error
}

// NewHandler creates the handler. st and metrics may be nil.
func NewHandler(compiler *synth.Compiler, st store.Store, metrics *telemetry.Metrics, maxBody int64, version string) *Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		compiler: compiler,
		store:    st,
		metrics:  metrics,
		maxBody:  maxBody,
		version:  version,
	}
}

// Router builds the chi router with all synthd routes. compile middleware
// wraps only the endpoints that run a synthesis.
func (h *Handler) Router(compile ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(Metrics(h.metrics))

	r.Get("/mlapi/v1/health", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/manifest", h.Manifest)
		r.Get("/routes", h.Routes)
		r.With(compile...).Post("/validate", h.Validate)
		r.With(compile...).Post("/synth", h.Synth)
	})
	return r
}

// Refresh recompiles the configured document. On failure the previous
// manifest keeps being served and the error is reported by /v1/manifest.
func (h *Handler) Refresh(ctx context.Context, doc any) error {
	m, err := h.compiler.Compile(ctx, doc)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latestErr = err
	if err == nil {
		h.latest = m
	}
	return err
}

func (h *Handler) current() (*synth.Manifest, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.latestErr
}

// Health handles GET /mlapi/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	m, err := h.current()
	status := "healthy"
	if m == nil {
		status = "degraded"
	}
	body := map[string]any{"status": status, "version": h.version}
	if m != nil {
		body["digest"] = m.Digest
	}
	if err != nil {
		body["last_error"] = err.Error()
	}
	httputil.WriteJSON(w, RequestIDFromContext(r.Context()), http.StatusOK, body)
}

// Manifest handles GET /v1/manifest
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	m, err := h.current()
	if m == nil {
		if err != nil {
			h.writeCompileError(w, reqID, err)
			return
		}
		httputil.WriteServiceUnavailableError(w, reqID, "no manifest synthesized yet")
		return
	}
	h.writeManifest(w, r, reqID, m)
}

// Routes handles GET /v1/routes
func (h *Handler) Routes(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	m, _ := h.current()
	if m == nil {
		httputil.WriteServiceUnavailableError(w, reqID, "no manifest synthesized yet")
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, m.Routes)
}

// Validate handles POST /v1/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	doc, ok := h.readDocument(w, r, reqID)
	if !ok {
		return
	}

	m, err := h.compiler.Compile(r.Context(), doc)
	if err != nil {
		h.writeCompileError(w, reqID, err)
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, map[string]any{
		"valid":  true,
		"routes": m.Routes.Names(),
		"digest": m.Digest,
	})
}

// Synth handles POST /v1/synth
func (h *Handler) Synth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	doc, ok := h.readDocument(w, r, reqID)
	if !ok {
		return
	}

	inputDigest, err := synth.InputDigest(doc)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}

	if h.store != nil && wantsJSON(r) {
		rec, err := h.store.Get(r.Context(), inputDigest)
		if err != nil {
			slog.Warn("synthesis history lookup failed", "request_id", reqID, "error", err)
		}
		if rec != nil {
			w.Header().Set("X-Synth-Cache", "hit")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Request-ID", reqID)
			w.WriteHeader(http.StatusOK)
			w.Write(rec.Manifest)
			return
		}
	}

	m, err := h.compiler.Compile(r.Context(), doc)
	if err != nil {
		h.writeCompileError(w, reqID, err)
		return
	}

	if h.store != nil {
		rec, err := store.NewRecord("http", inputDigest, m)
		if err == nil {
			err = h.store.Save(r.Context(), rec)
		}
		if err != nil {
			slog.Warn("failed to record synthesis", "request_id", reqID, "error", err)
		}
	}

	w.Header().Set("X-Synth-Cache", "miss")
	h.writeManifest(w, r, reqID, m)
}

func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request, reqID string) (any, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body: "+err.Error())
		return nil, false
	}
	defer r.Body.Close()

	doc, err := config.DecodeDocument(documentExt(r), body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid document: "+err.Error())
		return nil, false
	}
	return doc, true
}

func documentExt(r *http.Request) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return ".yaml"
	default:
		return ".json"
	}
}

func wantsJSON(r *http.Request) bool {
	f := r.URL.Query().Get("format")
	return f == "" || f == string(synth.FormatJSON)
}

func (h *Handler) writeManifest(w http.ResponseWriter, r *http.Request, reqID string, m *synth.Manifest) {
	format := synth.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		parsed, err := synth.ParseFormat(f)
		if err != nil {
			httputil.WriteBadRequestError(w, reqID, err.Error())
			return
		}
		format = parsed
	}

	contentType := "application/json"
	if format == synth.FormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Request-ID", reqID)
	w.Header().Set("X-Manifest-Digest", m.Digest)
	w.WriteHeader(http.StatusOK)
	if err := m.Encode(w, format); err != nil {
		slog.Error("failed to encode manifest", "request_id", reqID, "error", err)
	}
}

func (h *Handler) writeCompileError(w http.ResponseWriter, reqID string, err error) {
	var ve *schema.ViolationError
	switch {
	case errors.As(err, &ve):
		httputil.WriteViolations(w, reqID, ve.Violations)
	case errors.Is(err, graph.ErrIntegrity):
		slog.Error("graph integrity violation", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "internal synthesis error")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteServiceUnavailableError(w, reqID, "synthesis cancelled")
	default:
		httputil.WriteInternalError(w, reqID, fmt.Sprintf("synthesis failed: %v", err))
	}
}
