// Package httphandler is the HTTP driving adapter serving the webhook API.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/application"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter for the delivery and flush pipelines
// plus the operational endpoints.
type Handler struct {
	delivery     *application.DeliveryService
	health       *application.HealthService
	vaults       driven.VaultStore
	queue        driven.NoteQueue
	maxNoteBytes int64
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. maxNoteBytes
// caps accepted note payloads; values <= 0 fall back to 1 MiB.
func NewHandler(
	delivery *application.DeliveryService,
	health *application.HealthService,
	vaults driven.VaultStore,
	queue driven.NoteQueue,
	maxNoteBytes int64,
	logger *slog.Logger,
) *Handler {
	if maxNoteBytes <= 0 {
		maxNoteBytes = 1 << 20
	}
	return &Handler{
		delivery:     delivery,
		health:       health,
		vaults:       vaults,
		queue:        queue,
		maxNoteBytes: maxNoteBytes,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with the bearer gate, logging, and recovery middleware. An empty authToken
// disables the gate.
func NewServeMux(h *Handler, authToken string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// The literal "flush" segment takes precedence over the {period} wildcard.
	mux.HandleFunc("POST /periodic/{vault}/flush", h.FlushVault)
	mux.HandleFunc("POST /periodic/{vault}/{period}", h.DeliverNote)

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /db-test", h.Health)

	mux.HandleFunc("GET /api/v1/vaults", h.ListVaults)
	mux.HandleFunc("PUT /api/v1/vaults/{vault}", h.PutVault)
	mux.HandleFunc("DELETE /api/v1/vaults/{vault}", h.DeleteVault)
	mux.HandleFunc("GET /api/v1/vaults/{vault}/queue", h.ListQueue)
	mux.HandleFunc("GET /api/v1/vaults/{vault}/queue/{id}/preview", h.PreviewNote)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = authMiddleware(authToken, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// DeliverNote accepts one markdown note and runs the single-note pipeline.
func (h *Handler) DeliverNote(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	period, err := model.ParsePeriod(r.PathValue("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxNoteBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "note exceeds maximum size")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	report, err := h.delivery.Deliver(r.Context(), vault, period, string(body))
	if err != nil {
		h.writeDeliverError(w, vault, period, err)
		return
	}

	writeJSON(w, http.StatusOK, deliverResponse{
		Success:    true,
		Message:    "note delivered to " + period.String() + " note",
		Vault:      report.Vault,
		Period:     report.Period.String(),
		StatusCode: report.StatusCode,
	})
}

// writeDeliverError maps pipeline failures onto the response taxonomy:
// 400 validation, 404 unknown vault, 502 downstream failure, 500 storage.
func (h *Handler) writeDeliverError(w http.ResponseWriter, vault string, period model.Period, err error) {
	switch {
	case errors.Is(err, driven.ErrVaultNotFound):
		writeError(w, http.StatusNotFound, "vault not found: "+vault)
	case errors.Is(err, application.ErrEmptyNote):
		writeError(w, http.StatusBadRequest, "note content is empty")
	default:
		var dfe *application.DeliveryFailedError
		if errors.As(err, &dfe) {
			writeJSON(w, http.StatusBadGateway, deliverResponse{
				Success:    false,
				Message:    "note queued but not delivered: " + dfe.Outcome.Detail(),
				Vault:      vault,
				Period:     period.String(),
				StatusCode: dfe.Outcome.StatusCode,
			})
			return
		}
		h.logger.Error("note delivery failed", "vault", vault, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// FlushVault retries all queued notes for a vault and reports the breakdown.
// Partial failure is still a 200; callers must inspect the body.
func (h *Handler) FlushVault(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	report, err := h.delivery.Flush(r.Context(), vault)
	if err != nil {
		if errors.Is(err, driven.ErrVaultNotFound) {
			writeError(w, http.StatusNotFound, "vault not found: "+vault)
			return
		}
		h.logger.Error("flush failed", "vault", vault, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toFlushResponse(report))
}

// Health reports connectivity to the credential/queue store. Registered for
// both /health and /db-test; bypasses the bearer gate.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.CheckStore(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "unavailable",
			Time:   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListVaults returns the configured vault names. API keys are never exposed.
func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	names, err := h.vaults.ListNames(r.Context())
	if err != nil {
		h.logger.Error("failed to list vaults", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, vaultListResponse{Vaults: names})
}

// PutVault creates or replaces the credential for a vault.
func (h *Handler) PutVault(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	var req putVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	if err := h.vaults.Set(r.Context(), vault, req.APIKey); err != nil {
		h.logger.Error("failed to set vault credential", "vault", vault, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Success: true, Message: "vault credential stored", Vault: vault})
}

// DeleteVault removes the credential for a vault.
func (h *Handler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	if err := h.vaults.Delete(r.Context(), vault); err != nil {
		if errors.Is(err, driven.ErrVaultNotFound) {
			writeError(w, http.StatusNotFound, "vault not found: "+vault)
			return
		}
		h.logger.Error("failed to delete vault credential", "vault", vault, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListQueue returns metadata for the vault's pending notes, oldest first.
// This is the operational escape hatch for inspecting incomplete deliveries.
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	notes, err := h.queue.ListPending(r.Context(), vault)
	if err != nil {
		h.logger.Error("failed to list queue", "vault", vault, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]queueItemResponse, 0, len(notes))
	for _, n := range notes {
		items = append(items, queueItemResponse{
			ID:        n.ID,
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
			SizeBytes: len(n.Note),
		})
	}

	writeJSON(w, http.StatusOK, queueListResponse{Vault: vault, Pending: items})
}

// PreviewNote renders one queued note's markdown as sanitized HTML for
// operator inspection.
func (h *Handler) PreviewNote(w http.ResponseWriter, r *http.Request) {
	vault := r.PathValue("vault")

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := h.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, "queued note not found")
			return
		}
		h.logger.Error("failed to load queued note", "note_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if note.Vault != vault {
		writeError(w, http.StatusNotFound, "queued note not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RenderMarkdown(note.Note)))
}
