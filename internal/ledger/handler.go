package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for stock operations and ledger queries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock-levels", h.handleStockLevels)
	r.Get("/movements", h.handleMovements)
	r.Post("/stock/receive", h.handleReceive)
	r.Post("/stock/deliver", h.handleDeliver)
	r.Post("/stock/transfer", h.handleTransfer)
	r.Post("/stock/adjust", h.handleAdjust)
}

type changeRequest struct {
	ProductID  int64  `json:"product_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Reference  string `json:"reference" validate:"max=64"`
	Notes      string `json:"notes" validate:"max=500"`
}

type transferRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	FromLocationID int64  `json:"from_location_id" validate:"required,gt=0"`
	ToLocationID   int64  `json:"to_location_id" validate:"required,gt=0"`
	Quantity       int64  `json:"quantity" validate:"required,gt=0"`
	Reference      string `json:"reference" validate:"max=64"`
	Notes          string `json:"notes" validate:"max=500"`
}

type adjustRequest struct {
	ProductID      int64  `json:"product_id" validate:"required,gt=0"`
	LocationID     int64  `json:"location_id" validate:"required,gt=0"`
	TargetQuantity int64  `json:"target_quantity" validate:"gte=0"`
	Reason         string `json:"reason" validate:"max=64"`
	Notes          string `json:"notes" validate:"max=500"`
}

type changeResponse struct {
	StockLevel StockLevel `json:"stock_level"`
	Movement   Movement   `json:"movement"`
}

func (h *Handler) handleStockLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	filter := StockLevelFilter{WarehouseID: warehouseID}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.LocationID, _ = strconv.ParseInt(q.Get("location_id"), 10, 64)

	levels, err := h.service.StockLevels(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list stock levels", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_levels": levels})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{Type: MovementType(q.Get("type"))}
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.LocationID, _ = strconv.ParseInt(q.Get("location_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	movements, total, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"movements":  movements,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeChange(w, r)
	if !ok {
		return
	}
	level, movement, err := h.service.Receive(r.Context(), input)
	if err != nil {
		h.respondError(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, changeResponse{StockLevel: level, Movement: movement})
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeChange(w, r)
	if !ok {
		return
	}
	level, movement, err := h.service.Deliver(r.Context(), input)
	if err != nil {
		h.respondError(w, "deliver stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, changeResponse{StockLevel: level, Movement: movement})
}

func (h *Handler) decodeChange(w http.ResponseWriter, r *http.Request) (ChangeInput, bool) {
	var req changeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return ChangeInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return ChangeInput{}, false
	}
	warehouseID, ok := h.warehouseParam(w, r)
	if !ok {
		return ChangeInput{}, false
	}
	return ChangeInput{
		ProductID:   req.ProductID,
		WarehouseID: warehouseID,
		LocationID:  req.LocationID,
		Quantity:    req.Quantity,
		ActorID:     shared.ActorFromContext(r.Context()),
		Reference:   req.Reference,
		Notes:       req.Notes,
	}, true
}

func (h *Handler) warehouseParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id query parameter is required")
		return 0, false
	}
	return warehouseID, true
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Transfer(r.Context(), TransferInput{
		ProductID:      req.ProductID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		ActorID:        shared.ActorFromContext(r.Context()),
		Reference:      req.Reference,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondError(w, "transfer stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	level, movement, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID:      req.ProductID,
		LocationID:     req.LocationID,
		TargetQuantity: req.TargetQuantity,
		ActorID:        shared.ActorFromContext(r.Context()),
		Reason:         req.Reason,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondError(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, changeResponse{StockLevel: level, Movement: movement})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrLocationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrProductInactive), errors.Is(err, ErrLocationInactive),
		errors.Is(err, ErrWarehouseMismatch), errors.Is(err, ErrNoOpAdjustment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.Is(err, ErrZeroQuantity), errors.Is(err, ErrNonPositiveQuantity), errors.Is(err, ErrSameLocation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
