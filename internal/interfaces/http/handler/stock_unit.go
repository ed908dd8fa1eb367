package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
	"github.com/erp/stocksync/internal/domain/inventory"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
)

// StockLedger is the ledger surface the stock unit endpoints need
type StockLedger interface {
	CreateStockUnit(ctx context.Context, req inventoryapp.CreateStockUnitRequest) (*inventoryapp.StockUnitResponse, error)
	GetStockUnit(ctx context.Context, id uuid.UUID) (*inventoryapp.StockUnitResponse, error)
	ListStockUnits(ctx context.Context, filter inventoryapp.StockUnitListFilter) ([]inventoryapp.StockUnitResponse, error)
	ListLowStock(ctx context.Context, ownerID uuid.UUID) ([]inventoryapp.StockUnitResponse, error)
	RetireStockUnit(ctx context.Context, id uuid.UUID, actor string) (*inventoryapp.StockUnitResponse, error)
	Append(ctx context.Context, req inventoryapp.AppendRequest) (*inventoryapp.LedgerEntryResponse, error)
	HistoryPage(ctx context.Context, id uuid.UUID, query inventoryapp.HistoryQuery) (*inventoryapp.HistoryPageResponse, error)
	OnHandAt(ctx context.Context, id uuid.UUID, at time.Time) (*inventoryapp.OnHandAtResponse, error)
	VerifyStockUnit(ctx context.Context, id uuid.UUID) (*inventoryapp.VerifyResult, error)
}

// AvailabilityReader reports on-hand, reserved and available stock of a unit
type AvailabilityReader interface {
	AvailableStock(ctx context.Context, id uuid.UUID) (*inventory.Availability, error)
}

// parseDateTime parses a datetime string in various formats
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ownerFromRequest returns the owner_id query parameter, falling back to the X-Owner-ID header
func ownerFromRequest(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Query("owner_id")
	if raw == "" {
		raw = middleware.GetOwnerID(c)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// StockUnitHandler handles stock unit and ledger API endpoints
type StockUnitHandler struct {
	BaseHandler
	ledger       StockLedger
	availability AvailabilityReader
}

// NewStockUnitHandler creates a new StockUnitHandler
func NewStockUnitHandler(ledger StockLedger, availability AvailabilityReader) *StockUnitHandler {
	return &StockUnitHandler{
		ledger:       ledger,
		availability: availability,
	}
}

// RetireRequest optionally names who retires the unit
// @Description Request body for retiring a stock unit
type RetireRequest struct {
	Actor string `json:"actor" binding:"max=100" example:"ops@example.com"`
}

// Create godoc
// @ID           createStockUnit
// @Summary      Register a stock unit
// @Description  Registers a sellable item of a seller account. A positive initial quantity is recorded as the first ledger entry.
// @Tags         stock-units
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.CreateStockUnitRequest true "Stock unit"
// @Success      201 {object} APIResponse[inventoryapp.StockUnitResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /stock-units [post]
func (h *StockUnitHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateStockUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c, req.Actor)

	unit, err := h.ledger.CreateStockUnit(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, unit)
}

// GetByID godoc
// @ID           getStockUnit
// @Summary      Get a stock unit
// @Description  Returns a stock unit with its reserved and available quantities
// @Tags         stock-units
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.StockUnitResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /stock-units/{id} [get]
func (h *StockUnitHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}

	unit, err := h.ledger.GetStockUnit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, unit)
}

// List godoc
// @ID           listStockUnits
// @Summary      List stock units
// @Description  Lists the stock units of a seller account. owner_id defaults to the X-Owner-ID header.
// @Tags         stock-units
// @Produce      json
// @Param        owner_id query string false "Owner ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]inventoryapp.StockUnitResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /stock-units [get]
func (h *StockUnitHandler) List(c *gin.Context) {
	var filter inventoryapp.StockUnitListFilter
	if owner, ok := ownerFromRequest(c); ok {
		filter.OwnerID = owner
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	units, err := h.ledger.ListStockUnits(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, units)
}

// ListLowStock godoc
// @ID           listLowStockUnits
// @Summary      List stock units at or below their minimum level
// @Tags         stock-units
// @Produce      json
// @Param        owner_id query string false "Owner ID" format(uuid)
// @Success      200 {object} APIResponse[[]inventoryapp.StockUnitResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /stock-units/low-stock [get]
func (h *StockUnitHandler) ListLowStock(c *gin.Context) {
	owner, ok := ownerFromRequest(c)
	if !ok {
		h.InvalidID(c, "owner")
		return
	}

	units, err := h.ledger.ListLowStock(c.Request.Context(), owner)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, units)
}

// Retire godoc
// @ID           retireStockUnit
// @Summary      Retire a stock unit
// @Description  Retires a unit. Retired units accept no further ledger entries or reservations.
// @Tags         stock-units
// @Accept       json
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Param        request body RetireRequest false "Retire options"
// @Success      200 {object} APIResponse[inventoryapp.StockUnitResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock-units/{id}/retire [post]
func (h *StockUnitHandler) Retire(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}
	var req RetireRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	unit, err := h.ledger.RetireStockUnit(c.Request.Context(), id, getActor(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, unit)
}

// Availability godoc
// @ID           getStockUnitAvailability
// @Summary      Get available stock
// @Description  Returns on-hand minus the quantities held by active reservations
// @Tags         stock-units
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Success      200 {object} APIResponse[inventory.Availability]
// @Failure      404 {object} ErrorResponse
// @Router       /stock-units/{id}/availability [get]
func (h *StockUnitHandler) Availability(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}

	a, err := h.availability.AvailableStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, a)
}

// AppendEntry godoc
// @ID           appendLedgerEntry
// @Summary      Record a quantity change
// @Description  Appends a signed delta to the unit's ledger. The delta sign must agree with the reason code.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Param        request body inventoryapp.AppendRequest true "Ledger entry"
// @Success      201 {object} APIResponse[inventoryapp.LedgerEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /stock-units/{id}/ledger [post]
func (h *StockUnitHandler) AppendEntry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}
	var req inventoryapp.AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.StockUnitID = id
	req.Actor = getActor(c, req.Actor)

	entry, err := h.ledger.Append(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// History godoc
// @ID           listLedgerHistory
// @Summary      Read ledger history
// @Description  Returns one page of ledger entries in sequence order. Pass next_after back as after for the next page.
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Param        from query string false "Earliest entry time (RFC3339)"
// @Param        to query string false "Latest entry time (RFC3339)"
// @Param        reason_code query []string false "Reason codes" collectionFormat(multi)
// @Param        after query int false "Sequence cursor"
// @Param        limit query int false "Page size" maximum(500)
// @Success      200 {object} APIResponse[inventoryapp.HistoryPageResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /stock-units/{id}/ledger [get]
func (h *StockUnitHandler) History(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}
	var query inventoryapp.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.ledger.HistoryPage(c.Request.Context(), id, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}

// OnHandAt godoc
// @ID           getOnHandAt
// @Summary      Reconstruct on-hand at an instant
// @Description  Replays the ledger up to the given time. Defaults to now.
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Param        at query string false "Instant (RFC3339 or YYYY-MM-DD)"
// @Success      200 {object} APIResponse[inventoryapp.OnHandAtResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /stock-units/{id}/on-hand-at [get]
func (h *StockUnitHandler) OnHandAt(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		t, err := parseDateTime(raw)
		if err != nil {
			h.BadRequest(c, "Invalid at parameter: "+err.Error())
			return
		}
		at = t
	}

	resp, err := h.ledger.OnHandAt(c.Request.Context(), id, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Verify godoc
// @ID           verifyStockUnit
// @Summary      Verify a stock unit against its ledger
// @Description  Replays the full ledger and compares the result with the stored on-hand counter
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Stock unit ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.VerifyResult]
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /stock-units/{id}/verify [post]
func (h *StockUnitHandler) Verify(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "stock unit")
		return
	}

	result, err := h.ledger.VerifyStockUnit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
