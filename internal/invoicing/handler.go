package invoicing

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

// Handler wires HTTP endpoints for invoices and client money.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoicing routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.handleCreate)
	r.Get("/invoices", h.handleList)
	r.Get("/invoices/{invoiceID}", h.handleGet)
	r.Get("/clients/{clientID}/invoices", h.handleClientInvoices)
	r.Get("/clients/{clientID}/payments", h.handleClientPayments)
	r.Post("/clients/{clientID}/payments", h.handleRecordPayment)
	r.Get("/clients/{clientID}/balance", h.handleClientBalance)
	r.Get("/clients/{clientID}/recommendations", h.handleRecommendations)
}

type lineRequest struct {
	ProductID int64   `json:"product_id" validate:"required"`
	Qty       int64   `json:"qty" validate:"required"`
	UnitPrice float64 `json:"unit_price"`
}

type createInvoiceRequest struct {
	Items      []lineRequest `json:"items" validate:"required,min=1,dive"`
	ClientID   *int64        `json:"client_id"`
	ClientName string        `json:"client_name"`
	LocationID *int64        `json:"location_id"`
	Date       *time.Time    `json:"date"`
	Number     string        `json:"number"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "items with product_id and qty are required")
		return
	}

	input := CreateInvoiceInput{
		ClientID:   req.ClientID,
		ClientName: req.ClientName,
		LocationID: req.LocationID,
		Number:     req.Number,
		ActingUser: shared.ActorFromContext(r.Context()),
	}
	if req.Date != nil {
		input.Date = *req.Date
	}
	for _, line := range req.Items {
		input.Items = append(input.Items, LineInput{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	id, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.logger.Warn("read back created invoice", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	invoices, err := h.service.ListInvoices(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r, "invoiceID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) handleClientInvoices(w http.ResponseWriter, r *http.Request) {
	clientID, err := paramID(r, "clientID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}
	invoices, err := h.service.ListClientInvoices(r.Context(), clientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleClientPayments(w http.ResponseWriter, r *http.Request) {
	clientID, err := paramID(r, "clientID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}
	payments, err := h.service.ListClientPayments(r.Context(), clientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

type paymentRequest struct {
	Amount    float64 `json:"amount" validate:"required"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
	InvoiceID *int64  `json:"invoice_id"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	clientID, err := paramID(r, "clientID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is required")
		return
	}

	id, err := h.service.RecordPayment(r.Context(), Payment{
		ClientID:  clientID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		InvoiceID: req.InvoiceID,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleClientBalance(w http.ResponseWriter, r *http.Request) {
	clientID, err := paramID(r, "clientID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}
	balance, err := h.service.GetClientBalance(r.Context(), clientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	clientID, err := paramID(r, "clientID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := h.service.GetRecommendations(r.Context(), clientID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recs)
}

func paramID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
