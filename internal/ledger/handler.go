package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agfood/agfood/internal/platform/httpx"
	"github.com/agfood/agfood/internal/shared"
)

// Handler wires HTTP endpoints for stock operations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments", h.handleAdjust)
	r.Post("/transfers", h.handleTransfer)
	r.Get("/products/{productID}/stock", h.handleGetStock)
	r.Post("/products/{productID}/recalculate", h.handleRecalculate)
	r.Get("/products/{productID}/movements", h.handleMovements)
	r.Get("/products/{productID}/expiry", h.handleExpiry)
	r.Get("/products/{productID}/batches", h.handleListBatches)
	r.Post("/products/{productID}/batches", h.handleAddBatch)
	r.Post("/batches/{batchID}/blocked", h.handleSetBatchBlocked)
}

type adjustRequest struct {
	ProductID   int64   `json:"product_id" validate:"required"`
	Delta       int64   `json:"delta"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason"`
	ReferenceID *int64  `json:"reference_id"`
	LocationID  *int64  `json:"location_id"`
	BatchID     *int64  `json:"batch_id"`
	Unit        string  `json:"unit"`
	UnitQty     int64   `json:"unit_qty"`
	CostPerUnit float64 `json:"cost_per_unit"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}

	movement, err := h.service.AdjustStock(r.Context(), AdjustmentInput{
		ProductID:   req.ProductID,
		Delta:       req.Delta,
		Type:        MovementType(req.Type),
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
		LocationID:  req.LocationID,
		BatchID:     req.BatchID,
		Unit:        req.Unit,
		UnitQty:     req.UnitQty,
		CostPerUnit: req.CostPerUnit,
		ActingUser:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if movement == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

type transferRequest struct {
	ProductID      int64 `json:"product_id" validate:"required"`
	FromLocationID int64 `json:"from_location_id" validate:"required"`
	ToLocationID   int64 `json:"to_location_id" validate:"required"`
	Quantity       int64 `json:"quantity" validate:"required"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id, from_location_id, to_location_id and quantity are required")
		return
	}

	err := h.service.TransferStock(r.Context(), TransferInput{
		ProductID:      req.ProductID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		ActingUser:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var locationID *int64
	if raw := r.URL.Query().Get("location_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid location_id")
			return
		}
		locationID = &id
	}

	qty, err := h.service.GetStock(r.Context(), productID, locationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"quantity": qty})
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	qty, err := h.service.RecalculateCurrentStock(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"quantity": qty})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.GetMovementHistory(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleExpiry(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	info, err := h.service.GetEarliestExpiry(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if info == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	batches, err := h.service.ListBatches(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

type addBatchRequest struct {
	BatchNo    string     `json:"batch_no" validate:"required"`
	ExpiryDate *time.Time `json:"expiry_date"`
}

func (h *Handler) handleAddBatch(w http.ResponseWriter, r *http.Request) {
	productID, err := paramID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var req addBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "batch_no is required")
		return
	}

	id, err := h.service.AddBatch(r.Context(), Batch{
		ProductID:  productID,
		BatchNo:    req.BatchNo,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type setBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

func (h *Handler) handleSetBatchBlocked(w http.ResponseWriter, r *http.Request) {
	batchID, err := paramID(r, "batchID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid batch id")
		return
	}
	var req setBlockedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetBatchBlocked(r.Context(), batchID, req.Blocked); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func paramID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
