package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/erp/stocksync/internal/infrastructure/scheduler"
)

// SweeperStatusProvider reports the state of the reservation expiry sweeper
type SweeperStatusProvider interface {
	Status(ctx context.Context) (*scheduler.SweeperStatus, error)
}

// SweepRunner triggers an immediate sweep
type SweepRunner interface {
	RunNow(ctx context.Context) error
}

// SweeperHandler exposes the reservation expiry sweeper to operators
type SweeperHandler struct {
	BaseHandler
	status SweeperStatusProvider
	runner SweepRunner
}

// NewSweeperHandler creates a new SweeperHandler. runner may be nil when the sweeper is disabled.
func NewSweeperHandler(status SweeperStatusProvider, runner SweepRunner) *SweeperHandler {
	return &SweeperHandler{status: status, runner: runner}
}

// Status godoc
// @ID           getSweeperStatus
// @Summary      Get expiry sweeper status
// @Description  Returns the last sweep recorded by any instance and whether the next one is overdue
// @Tags         sweeper
// @Produce      json
// @Success      200 {object} APIResponse[scheduler.SweeperStatus]
// @Failure      500 {object} ErrorResponse
// @Router       /sweeper/status [get]
func (h *SweeperHandler) Status(c *gin.Context) {
	status, err := h.status.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// Run godoc
// @ID           runSweeper
// @Summary      Run the expiry sweeper now
// @Description  Expires overdue reservations immediately. Fails with 409 while a sweep is already running.
// @Tags         sweeper
// @Produce      json
// @Success      202 {object} SuccessResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /sweeper/run [post]
func (h *SweeperHandler) Run(c *gin.Context) {
	if h.runner == nil {
		h.ErrorWithCode(c, "INVALID_STATE", "Expiry sweeper is disabled")
		return
	}
	if err := h.runner.RunNow(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, nil)
}
