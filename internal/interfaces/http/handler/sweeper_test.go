package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
	"github.com/erp/stocksync/tests/testutil"
)

func setupSweeperTestRouter(withRunner bool) (*gin.Engine, *MockSweeper) {
	sweeper := new(MockSweeper)
	var runner SweepRunner
	if withRunner {
		runner = sweeper
	}
	h := NewSweeperHandler(sweeper, runner)

	router := newTestRouter()
	router.GET("/sweeper/status", h.Status)
	router.POST("/sweeper/run", h.Run)
	return router, sweeper
}

func TestSweeperHandler_Status(t *testing.T) {
	router, sweeper := setupSweeperTestRouter(true)
	sweeper.On("Status", mock.Anything).Return(&scheduler.SweeperStatus{
		Enabled:    true,
		Interval:   time.Minute,
		Overdue:    true,
		InstanceID: "host-1",
	}, nil)

	w := testutil.PerformRequest(router, http.MethodGet, "/sweeper/status", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := testutil.DecodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, true, data["overdue"])
	assert.Equal(t, "host-1", data["instance_id"])
}

func TestSweeperHandler_Run(t *testing.T) {
	t.Run("runs", func(t *testing.T) {
		router, sweeper := setupSweeperTestRouter(true)
		sweeper.On("RunNow", mock.Anything).Return(nil)

		w := testutil.PerformRequest(router, http.MethodPost, "/sweeper/run", nil)

		assert.Equal(t, http.StatusAccepted, w.Code)
		sweeper.AssertExpectations(t)
	})

	t.Run("already running", func(t *testing.T) {
		router, sweeper := setupSweeperTestRouter(true)
		sweeper.On("RunNow", mock.Anything).Return(scheduler.ErrJobInProgress)

		w := testutil.PerformRequest(router, http.MethodPost, "/sweeper/run", nil)

		testutil.AssertErrorCode(t, w, http.StatusConflict, dto.ErrCodeConflict)
	})

	t.Run("disabled", func(t *testing.T) {
		router, _ := setupSweeperTestRouter(false)

		w := testutil.PerformRequest(router, http.MethodPost, "/sweeper/run", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
