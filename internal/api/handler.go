package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"suture/internal/config"
	"suture/internal/dispatcher"
	"suture/internal/logging"
	"suture/internal/preflight"
	"suture/internal/queue"
	"suture/internal/services"
	"suture/internal/storage"
)

const (
	timeLayout        = time.RFC3339
	maxUploadBytes    = 2 << 30
	multipartMemLimit = 32 << 20
)

// Version is reported on the health endpoint.
const Version = "0.1.0"

// Handler serves the daemon's HTTP endpoints.
type Handler struct {
	cfg     *config.Config
	mgr     *dispatcher.Manager
	status  *StatusService
	backend storage.Backend
	logger  *slog.Logger
}

// NewHandler wires the HTTP surface.
func NewHandler(
	cfg *config.Config,
	mgr *dispatcher.Manager,
	status *StatusService,
	backend storage.Backend,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		mgr:     mgr,
		status:  status,
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
}

// Router builds the chi router with middleware and all routes registered.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDContext)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Post("/submit", h.Submit)
		r.Get("/status/{id}", h.Status)
		r.Delete("/submission/{id}", h.Cancel)
		r.Get("/queue-status", h.QueueStatus)
	})

	return r
}

// requestIDContext carries chi's request id under the shared context key so
// log lines downstream of the handler correlate with the request.
func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware enforces the bearer token when one is configured.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(h.cfg.Server.APIToken)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Submit accepts a multipart upload, stores the video, and enqueues the
// submission.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemLimit); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	iteration := 0
	if raw := strings.TrimSpace(r.FormValue("iteration_number")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "iteration_number must be a non-negative integer")
			return
		}
		iteration = parsed
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	handle, err := h.backend.Save(r.Context(), header.Filename, file, header.Size, contentType)
	if err != nil {
		logging.WithContext(r.Context(), h.logger).Error("video save failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store video")
		return
	}

	sub, err := h.mgr.Submit(r.Context(), queue.NewSubmission{
		Name:           strings.TrimSpace(r.FormValue("name")),
		Email:          email,
		Program:        strings.TrimSpace(r.FormValue("program")),
		Iteration:      iteration,
		AdditionalInfo: strings.TrimSpace(r.FormValue("additional_info")),
		VideoHandle:    handle,
	})
	if err != nil {
		// The video is already stored; don't leak it.
		if removeErr := h.backend.Remove(context.WithoutCancel(r.Context()), handle); removeErr != nil {
			h.logger.Warn("orphaned video cleanup failed", logging.Error(removeErr))
		}
		h.writeServiceError(w, r, err)
		return
	}

	position := h.mgr.Position(sub.ID)
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		SubmissionID:            sub.ID,
		Status:                  "accepted",
		QueuePosition:           position,
		EstimatedProcessingTime: h.mgr.Estimate(position).Seconds(),
	})
}

// Status answers a single-submission query.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := h.status.Status(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cancel stops a pending or in-flight submission.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.mgr.Cancel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	message := "submission cancelled"
	if sub.Status == queue.StatusProcessing {
		message = "cancellation requested; submission will stop at the next checkpoint"
	}
	writeJSON(w, http.StatusOK, CancelResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		Message:      message,
	})
}

// Health reports liveness plus preflight results.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	results := preflight.RunAll(r.Context(), h.cfg)
	checks := make([]HealthCheck, len(results))
	for i, res := range results {
		checks[i] = HealthCheck(res)
	}

	status := "ok"
	code := http.StatusOK
	if !preflight.Passed(results) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Version: Version, Checks: checks})
}

// QueueStatus reports aggregate queue and worker state.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.status.QueueStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "submission not found")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.WithContext(r.Context(), h.logger).Error("request failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
