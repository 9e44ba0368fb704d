package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cornjacket/pdv-terminal/internal/shared/domain/outbox"
	"github.com/cornjacket/pdv-terminal/internal/shared/domain/sale"
)

const maxRequestBytes = 1 << 20

// Handler handles HTTP requests for the checkout service.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new checkout HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With("handler", "checkout"),
	}
}

// HandleFinalize handles POST /api/v1/sales
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, &FinalizeResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	resp, err := h.service.Finalize(r.Context(), &req)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, resp)
	case errors.Is(err, sale.ErrInvalidDraft):
		h.writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// HandleSyncStatus handles GET /api/v1/sales/{id}/sync
func (h *Handler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	saleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || saleID <= 0 {
		h.writeError(w, http.StatusBadRequest, "sale id must be a positive integer")
		return
	}

	resp, err := h.service.SyncStatus(r.Context(), saleID)
	if err != nil {
		if errors.Is(err, outbox.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "no sync entry for sale")
			return
		}
		h.logger.Error("failed to read sync status", "sale_id", saleID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read sync status")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleNudge handles POST /api/v1/sync/nudge
func (h *Handler) HandleNudge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Nudge(); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "nudged"})
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
