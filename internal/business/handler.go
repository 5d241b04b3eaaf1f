package business

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agfood/agfood/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the business profile.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers business profile routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleGet)
	r.Put("/", h.handleUpsert)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Get(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var info Info
	if err := httpx.DecodeJSON(r, &info); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.Upsert(r.Context(), info); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
