package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/erp/stocksync/tests/testutil"
)

func setupStockUnitTestRouter() (*gin.Engine, *MockStockLedger, *MockReservationManager) {
	ledger := new(MockStockLedger)
	reservations := new(MockReservationManager)
	h := NewStockUnitHandler(ledger, reservations)

	router := newTestRouter()
	router.POST("/stock-units", h.Create)
	router.GET("/stock-units", h.List)
	router.GET("/stock-units/low-stock", h.ListLowStock)
	router.GET("/stock-units/:id", h.GetByID)
	router.POST("/stock-units/:id/retire", h.Retire)
	router.GET("/stock-units/:id/availability", h.Availability)
	router.POST("/stock-units/:id/ledger", h.AppendEntry)
	router.GET("/stock-units/:id/ledger", h.History)
	router.GET("/stock-units/:id/on-hand-at", h.OnHandAt)
	router.POST("/stock-units/:id/verify", h.Verify)
	return router, ledger, reservations
}

func testStockUnit(id uuid.UUID) *inventoryapp.StockUnitResponse {
	return &inventoryapp.StockUnitResponse{
		ID:        id,
		OwnerID:   testOwnerID,
		SKU:       "SKU-001",
		OnHand:    10,
		Available: 10,
		Version:   1,
	}
}

func TestStockUnitHandler_Create(t *testing.T) {
	t.Run("creates with the header actor", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()

		ledger.On("CreateStockUnit", mock.Anything, inventoryapp.CreateStockUnitRequest{
			OwnerID:         testOwnerID,
			SKU:             "SKU-001",
			InitialQuantity: 10,
			Actor:           "ops-bot",
		}).Return(testStockUnit(id), nil)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units", map[string]any{
			"owner_id":         testOwnerID.String(),
			"sku":              "SKU-001",
			"initial_quantity": 10,
		}, middleware.HeaderActor, "ops-bot")

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := testutil.DecodeResponse(t, w)
		assert.True(t, resp.Success)
		assert.Equal(t, id.String(), resp.Data.(map[string]any)["id"])
		ledger.AssertExpectations(t)
	})

	t.Run("rejects a missing sku", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units", map[string]any{
			"owner_id": testOwnerID.String(),
		})

		testutil.AssertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
		ledger.AssertNotCalled(t, "CreateStockUnit", mock.Anything, mock.Anything)
	})

	t.Run("rejects a negative initial quantity", func(t *testing.T) {
		router, _, _ := setupStockUnitTestRouter()

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units", map[string]any{
			"owner_id":         testOwnerID.String(),
			"sku":              "SKU-001",
			"initial_quantity": -1,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps duplicate sku to conflict", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		ledger.On("CreateStockUnit", mock.Anything, mock.Anything).Return(nil, shared.ErrAlreadyExists)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units", map[string]any{
			"owner_id": testOwnerID.String(),
			"sku":      "SKU-001",
		})

		testutil.AssertErrorCode(t, w, http.StatusConflict, dto.ErrCodeAlreadyExists)
	})
}

func TestStockUnitHandler_GetByID(t *testing.T) {
	t.Run("returns the unit", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("GetStockUnit", mock.Anything, id).Return(testStockUnit(id), nil)

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("404 for unknown unit", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("GetStockUnit", mock.Anything, id).Return(nil, shared.ErrNotFound)

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("400 for malformed id", func(t *testing.T) {
		router, _, _ := setupStockUnitTestRouter()

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/not-a-uuid", nil)

		testutil.AssertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeInvalidInput)
	})
}

func TestStockUnitHandler_List(t *testing.T) {
	t.Run("owner from query with default paging", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		ledger.On("ListStockUnits", mock.Anything, inventoryapp.StockUnitListFilter{
			OwnerID: testOwnerID, Page: 1, PageSize: 20,
		}).Return([]inventoryapp.StockUnitResponse{*testStockUnit(uuid.New())}, nil)

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units?owner_id="+testOwnerID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("owner from header", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		ledger.On("ListStockUnits", mock.Anything, inventoryapp.StockUnitListFilter{
			OwnerID: testOwnerID, Page: 2, PageSize: 5,
		}).Return([]inventoryapp.StockUnitResponse{}, nil)

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units?page=2&page_size=5", nil,
			middleware.HeaderOwnerID, testOwnerID.String())

		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("missing owner", func(t *testing.T) {
		router, _, _ := setupStockUnitTestRouter()

		w := testutil.PerformRequest(router, http.MethodGet, "/stock-units", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStockUnitHandler_ListLowStock(t *testing.T) {
	router, ledger, _ := setupStockUnitTestRouter()
	ledger.On("ListLowStock", mock.Anything, testOwnerID).Return([]inventoryapp.StockUnitResponse{}, nil)

	w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/low-stock?owner_id="+testOwnerID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutil.PerformRequest(router, http.MethodGet, "/stock-units/low-stock?owner_id=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ledger.AssertNumberOfCalls(t, "ListLowStock", 1)
}

func TestStockUnitHandler_Retire(t *testing.T) {
	t.Run("without body uses default actor", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("RetireStockUnit", mock.Anything, id, "api").Return(testStockUnit(id), nil)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+id.String()+"/retire", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		ledger.AssertExpectations(t)
	})

	t.Run("already retired", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("RetireStockUnit", mock.Anything, id, "alice").Return(nil, shared.ErrInvalidState)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+id.String()+"/retire",
			map[string]string{"actor": "alice"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestStockUnitHandler_Availability(t *testing.T) {
	router, _, reservations := setupStockUnitTestRouter()
	id := uuid.New()
	reservations.On("AvailableStock", mock.Anything, id).Return(&inventory.Availability{
		StockUnitID: id, OnHand: 12, Reserved: 5, Available: 7,
	}, nil)

	w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String()+"/availability", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := testutil.DecodeResponse(t, w).Data.(map[string]any)
	assert.EqualValues(t, 12, data["on_hand"])
	assert.EqualValues(t, 5, data["reserved"])
	assert.EqualValues(t, 7, data["available"])
}

func TestStockUnitHandler_AppendEntry(t *testing.T) {
	t.Run("appends with path id", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("Append", mock.Anything, inventoryapp.AppendRequest{
			StockUnitID: id,
			Delta:       -3,
			ReasonCode:  "sale",
			Actor:       "checkout",
		}).Return(&inventoryapp.LedgerEntryResponse{
			StockUnitID: id, Sequence: 4, Delta: -3, ReasonCode: "sale", BalanceBefore: 10, BalanceAfter: 7,
		}, nil)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+id.String()+"/ledger", map[string]any{
			"delta":       -3,
			"reason_code": "sale",
			"actor":       "checkout",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		data := testutil.DecodeResponse(t, w).Data.(map[string]any)
		assert.EqualValues(t, 7, data["balance_after"])
		ledger.AssertExpectations(t)
	})

	t.Run("zero delta fails validation", func(t *testing.T) {
		router, _, _ := setupStockUnitTestRouter()

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+uuid.NewString()+"/ledger", map[string]any{
			"delta":       0,
			"reason_code": "sale",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		ledger.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrInsufficientStock)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+uuid.NewString()+"/ledger", map[string]any{
			"delta":       -100,
			"reason_code": "sale",
		})

		testutil.AssertErrorCode(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock)
	})

	t.Run("lock timeout", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		ledger.On("Append", mock.Anything, mock.Anything).Return(nil, shared.ErrConcurrencyTimeout)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+uuid.NewString()+"/ledger", map[string]any{
			"delta":       5,
			"reason_code": "restock",
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestStockUnitHandler_History(t *testing.T) {
	router, ledger, _ := setupStockUnitTestRouter()
	id := uuid.New()
	ledger.On("HistoryPage", mock.Anything, id, mock.MatchedBy(func(q inventoryapp.HistoryQuery) bool {
		return q.After == 5 && q.Limit == 10 &&
			assert.ObjectsAreEqual([]string{"sale", "return"}, q.ReasonCodes) &&
			q.From != nil && q.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	})).Return(&inventoryapp.HistoryPageResponse{NextAfter: 15}, nil)

	w := testutil.PerformRequest(router, http.MethodGet,
		"/stock-units/"+id.String()+"/ledger?after=5&limit=10&reason_code=sale&reason_code=return&from=2026-01-01T00:00:00Z", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 15, testutil.DecodeResponse(t, w).Data.(map[string]any)["next_after"])
	ledger.AssertExpectations(t)

	w = testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String()+"/ledger?limit=9999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockUnitHandler_OnHandAt(t *testing.T) {
	router, ledger, _ := setupStockUnitTestRouter()
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.On("OnHandAt", mock.Anything, id, at).Return(&inventoryapp.OnHandAtResponse{
		StockUnitID: id, At: at, OnHand: 42,
	}, nil)

	w := testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String()+"/on-hand-at?at=2026-03-01T12:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 42, testutil.DecodeResponse(t, w).Data.(map[string]any)["on_hand"])

	w = testutil.PerformRequest(router, http.MethodGet, "/stock-units/"+id.String()+"/on-hand-at?at=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStockUnitHandler_Verify(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("VerifyStockUnit", mock.Anything, id).Return(&inventoryapp.VerifyResult{
			StockUnitID: id, StoredOnHand: 3, LedgerOnHand: 3, EntryCount: 2, Consistent: true,
		}, nil)

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+id.String()+"/verify", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, testutil.DecodeResponse(t, w).Data.(map[string]any)["consistent"])
	})

	t.Run("integrity violation", func(t *testing.T) {
		router, ledger, _ := setupStockUnitTestRouter()
		id := uuid.New()
		ledger.On("VerifyStockUnit", mock.Anything, id).Return(&inventoryapp.VerifyResult{StockUnitID: id},
			shared.NewDomainError(shared.CodeIntegrity, "Ledger and counter disagree"))

		w := testutil.PerformRequest(router, http.MethodPost, "/stock-units/"+id.String()+"/verify", nil)

		testutil.AssertErrorCode(t, w, http.StatusInternalServerError, dto.ErrCodeIntegrityViolation)
	})
}
