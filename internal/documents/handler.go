package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-wms/meridian-wms/internal/ledger"
	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for the document workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the documents handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/lines", h.handleReplaceLines)
		r.Put("/{id}/notes", h.handleUpdateNotes)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/transition", h.handleTransition)
	})
}

type lineRequest struct {
	ProductID       int64 `json:"product_id" validate:"required,gt=0"`
	LocationID      int64 `json:"location_id" validate:"gte=0"`
	QuantityOrdered int64 `json:"quantity_ordered" validate:"required,gt=0"`
}

type createRequest struct {
	Kind           Kind          `json:"kind" validate:"required,oneof=RECEIPT DELIVERY"`
	CounterpartyID int64         `json:"counterparty_id" validate:"required,gt=0"`
	WarehouseID    int64         `json:"warehouse_id" validate:"required,gt=0"`
	Notes          string        `json:"notes" validate:"max=500"`
	Lines          []lineRequest `json:"lines" validate:"dive"`
}

type linesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type transitionRequest struct {
	Status Status `json:"status" validate:"required,oneof=DRAFT READY DONE"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Kind:           req.Kind,
		CounterpartyID: req.CounterpartyID,
		WarehouseID:    req.WarehouseID,
		Notes:          req.Notes,
		ActorID:        shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, LocationID: line.LocationID, QuantityOrdered: line.QuantityOrdered})
	}
	doc, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Kind:   Kind(q.Get("kind")),
		Status: Status(q.Get("status")),
	}
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	docs, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list documents", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"documents":  docs,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleReplaceLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req linesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ProductID: line.ProductID, LocationID: line.LocationID, QuantityOrdered: line.QuantityOrdered})
	}
	doc, err := h.service.ReplaceLines(r.Context(), id, lines, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "replace lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req notesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	doc, err := h.service.UpdateNotes(r.Context(), id, req.Notes, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "update notes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.respondError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	doc, err := h.service.Transition(r.Context(), id, req.Status, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "transition document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var (
		transition   *InvalidTransitionError
		insufficient *ledger.InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrProductNotFound), errors.Is(err, ledger.ErrLocationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &transition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrNotEditable), errors.Is(err, ErrReferenceConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrLineLocationMissing),
		errors.Is(err, ledger.ErrProductInactive), errors.Is(err, ledger.ErrLocationInactive),
		errors.Is(err, ledger.ErrWarehouseMismatch):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrInvalidKind):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
