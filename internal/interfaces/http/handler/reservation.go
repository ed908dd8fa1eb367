package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/erp/stocksync/internal/application/inventory"
)

// ReservationManager is the reservation surface the checkout endpoints need
type ReservationManager interface {
	AvailabilityReader
	Reserve(ctx context.Context, req inventoryapp.ReserveRequest) (*inventoryapp.ReservationResponse, error)
	Confirm(ctx context.Context, id uuid.UUID, reason string) (*inventoryapp.ReservationResponse, error)
	Release(ctx context.Context, id uuid.UUID, reason string) (*inventoryapp.ReservationResponse, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*inventoryapp.ReservationResponse, error)
	ListReservations(ctx context.Context, filter inventoryapp.ReservationListFilter) ([]inventoryapp.ReservationResponse, error)
}

// ReservationHandler handles reservation API endpoints
type ReservationHandler struct {
	BaseHandler
	reservations ReservationManager
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations ReservationManager) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Reserve godoc
// @ID           createReservation
// @Summary      Hold stock for an order in checkout
// @Description  Holds quantity against available stock until confirmed, released or expired
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.ReserveRequest true "Reservation"
// @Success      201 {object} APIResponse[inventoryapp.ReservationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req inventoryapp.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	r, err := h.reservations.Reserve(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, r)
}

// GetByID godoc
// @ID           getReservation
// @Summary      Get a reservation
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.ReservationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "reservation")
		return
	}

	r, err := h.reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// List godoc
// @ID           listReservations
// @Summary      List reservations of a stock unit
// @Tags         reservations
// @Produce      json
// @Param        stock_unit_id query string true "Stock unit ID" format(uuid)
// @Param        status query string false "Status" Enums(active, confirmed, released, expired)
// @Success      200 {object} APIResponse[[]inventoryapp.ReservationResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	var filter inventoryapp.ReservationListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	rs, err := h.reservations.ListReservations(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rs)
}

// Confirm godoc
// @ID           confirmReservation
// @Summary      Confirm a reservation
// @Description  Converts the hold into a sale ledger entry. Confirming an already confirmed reservation is a no-op.
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Param        request body inventoryapp.ResolveReservationRequest false "Reason"
// @Success      200 {object} APIResponse[inventoryapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c *gin.Context) {
	h.resolve(c, h.reservations.Confirm)
}

// Release godoc
// @ID           releaseReservation
// @Summary      Release a reservation
// @Description  Returns the held quantity to available stock. Releasing an already released reservation is a no-op.
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Param        request body inventoryapp.ResolveReservationRequest false "Reason"
// @Success      200 {object} APIResponse[inventoryapp.ReservationResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /reservations/{id}/release [post]
func (h *ReservationHandler) Release(c *gin.Context) {
	h.resolve(c, h.reservations.Release)
}

func (h *ReservationHandler) resolve(c *gin.Context, op func(context.Context, uuid.UUID, string) (*inventoryapp.ReservationResponse, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "reservation")
		return
	}
	var req inventoryapp.ResolveReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	r, err := op(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}
