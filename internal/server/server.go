// Package server exposes the operation registry over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/envctl/envctl/internal/command"
	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/orchestrator"
	"github.com/envctl/envctl/internal/output"
	"github.com/envctl/envctl/internal/task"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8080"

// maxBodyBytes bounds the JSON argument body of an operation request.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

// StatusResponse is the body of replies without a result.
type StatusResponse struct {
	Status string `json:"status"`
}

// Handler serves the HTTP API.
type Handler struct {
	o *orchestrator.Orchestrator
}

// NewHandler creates a Handler backed by o.
func NewHandler(o *orchestrator.Orchestrator) *Handler {
	return &Handler{o: o}
}

// Routes returns the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(jsonContentType)

	r.Get("/health", h.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/operations", h.handleListOperations)
		r.Post("/operations/{name}", h.handleInvoke)

		r.Get("/environments", h.handleListEnvironments)
		r.Get("/environments/{env}", h.handleGetEnvironment)
		r.Get("/environments/{env}/components/{component}/image", h.handleComponentImage)

		r.Get("/tasks", h.handleListTasks)
		r.Get("/tasks/{id}", h.handleGetTask)
	})

	// Kept for deploy hooks that predate the operations API.
	r.Get("/update/{env}/{component}/{tag}", h.handleLegacyUpdate)

	return r
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		output.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "healthy"})
}

func (h *Handler) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, command.List())
}

// handleInvoke runs an operation. Arguments come from the JSON object body
// and from query parameters; the body wins.
func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := command.Args{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			args[key] = values[0]
		}
	}

	var body map[string]string
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		writeError(w, oerrors.NewValidationError("invalid JSON body: "+err.Error(), "", "", `send a JSON object of string arguments, e.g. {"env": "staging"}`))
		return
	}
	for k, v := range body {
		args[k] = v
	}

	result, err := command.Invoke(r.Context(), h.o, name, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, result)
}

func (h *Handler) handleListEnvironments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.o.ListEnvironments())
}

func (h *Handler) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.o.GetEnvironment(chi.URLParam(r, "env"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) handleComponentImage(w http.ResponseWriter, r *http.Request) {
	image, err := h.o.ComponentImage(chi.URLParam(r, "env"), chi.URLParam(r, "component"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, image)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.o.ListTasks())
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	info, err := h.o.Task(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleLegacyUpdate(w http.ResponseWriter, r *http.Request) {
	handle, err := h.o.UpdateComponent(r.Context(),
		chi.URLParam(r, "env"), chi.URLParam(r, "component"), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, handle)
}

// writeResult replies 202 with the task snapshot for background work and
// 200 with the result otherwise.
func writeResult(w http.ResponseWriter, result any) {
	switch v := result.(type) {
	case nil:
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	case *task.Handle:
		w.Header().Set("Location", "/api/v1/tasks/"+v.ID())
		writeJSON(w, http.StatusAccepted, v.Info())
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		output.Error("failed to encode JSON", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var detail *oerrors.DetailError
	if errors.As(err, &detail) {
		resp.Error = detail.Message
		resp.Hint = detail.Hint
	}
	if status >= http.StatusInternalServerError {
		output.Warn("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, resp)
}

// StatusFor maps an error to an HTTP status and a machine-readable code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, oerrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, oerrors.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, oerrors.ErrValidation),
		errors.Is(err, oerrors.ErrInvalidTag),
		errors.Is(err, oerrors.ErrMalformedImageReference),
		errors.Is(err, oerrors.ErrMalformedSpecification),
		errors.Is(err, oerrors.ErrNotWorkload):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, oerrors.ErrExternalCommand),
		errors.Is(err, oerrors.ErrConnectivity):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		output.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	output.Info("server stopped")
	return nil
}
