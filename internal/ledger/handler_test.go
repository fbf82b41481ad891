package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	handler := NewHandler(nil, NewService(repo, nil, nil, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), 7)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestHandlerReceive(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	body := `{"product_id":1,"location_id":10,"quantity":10,"reference":"GRN-1"}`
	req := httptest.NewRequest(http.MethodPost, "/stock/receive?warehouse_id=1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp changeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 10, resp.StockLevel.Quantity)
	require.Equal(t, MovementReceipt, resp.Movement.Type)
	require.EqualValues(t, 7, resp.Movement.ActorID)
}

func TestHandlerReceiveRequiresWarehouse(t *testing.T) {
	router := newTestRouter(seededRepo())

	body := `{"product_id":1,"location_id":10,"quantity":10}`
	req := httptest.NewRequest(http.MethodPost, "/stock/receive", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDeliverConflict(t *testing.T) {
	repo := seededRepo()
	router := newTestRouter(repo)

	receive := httptest.NewRequest(http.MethodPost, "/stock/receive?warehouse_id=1",
		strings.NewReader(`{"product_id":1,"location_id":10,"quantity":4}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, receive)
	require.Equal(t, http.StatusOK, rec.Code)

	deliver := httptest.NewRequest(http.MethodPost, "/stock/deliver?warehouse_id=1",
		strings.NewReader(`{"product_id":1,"location_id":10,"quantity":9}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, deliver)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Insufficient Stock", problem.Title)
	require.Contains(t, problem.Detail, "current 4")
}

func TestHandlerUnknownProduct(t *testing.T) {
	router := newTestRouter(seededRepo())

	req := httptest.NewRequest(http.MethodPost, "/stock/receive?warehouse_id=1",
		strings.NewReader(`{"product_id":999,"location_id":10,"quantity":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerStockLevels(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	_, _, err := svc.Receive(context.Background(), ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 12})
	require.NoError(t, err)

	router := newTestRouter(repo)
	req := httptest.NewRequest(http.MethodGet, "/stock-levels?warehouse_id=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		StockLevels []StockLevel `json:"stock_levels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.StockLevels, 1)
	require.EqualValues(t, 12, resp.StockLevels[0].Quantity)
}
