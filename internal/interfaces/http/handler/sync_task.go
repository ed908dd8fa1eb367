package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/erp/stocksync/internal/application/integration"
)

// SyncTaskManager is the outbound sync queue surface the operator endpoints need
type SyncTaskManager interface {
	GetSyncTask(ctx context.Context, id uuid.UUID) (*integrationapp.SyncTaskResponse, error)
	ListSyncTasks(ctx context.Context, filter integrationapp.SyncTaskListFilter) ([]integrationapp.SyncTaskResponse, error)
	RetrySyncTask(ctx context.Context, id uuid.UUID, actor string) (*integrationapp.SyncTaskResponse, error)
}

// SyncTaskHandler handles sync task API endpoints
type SyncTaskHandler struct {
	BaseHandler
	tasks SyncTaskManager
}

// NewSyncTaskHandler creates a new SyncTaskHandler
func NewSyncTaskHandler(tasks SyncTaskManager) *SyncTaskHandler {
	return &SyncTaskHandler{tasks: tasks}
}

// List godoc
// @ID           listSyncTasks
// @Summary      List sync tasks
// @Description  Lists outbound marketplace updates, newest first
// @Tags         sync-tasks
// @Produce      json
// @Param        status query string false "Status" Enums(pending, in-flight, done, failed)
// @Param        canonical_product_id query string false "Canonical product ID" format(uuid)
// @Param        platform query string false "Platform code"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(50) maximum(500)
// @Success      200 {object} APIResponse[[]integrationapp.SyncTaskResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync-tasks [get]
func (h *SyncTaskHandler) List(c *gin.Context) {
	var filter integrationapp.SyncTaskListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	tasks, err := h.tasks.ListSyncTasks(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tasks)
}

// GetByID godoc
// @ID           getSyncTask
// @Summary      Get a sync task
// @Tags         sync-tasks
// @Produce      json
// @Param        id path string true "Sync task ID" format(uuid)
// @Success      200 {object} APIResponse[integrationapp.SyncTaskResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /sync-tasks/{id} [get]
func (h *SyncTaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "sync task")
		return
	}

	task, err := h.tasks.GetSyncTask(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// Retry godoc
// @ID           retrySyncTask
// @Summary      Retry a failed sync task
// @Description  Re-queues a failed task with a fresh attempt budget. The response is the task that will carry the update.
// @Tags         sync-tasks
// @Produce      json
// @Param        id path string true "Sync task ID" format(uuid)
// @Success      202 {object} APIResponse[integrationapp.SyncTaskResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /sync-tasks/{id}/retry [post]
func (h *SyncTaskHandler) Retry(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "sync task")
		return
	}

	task, err := h.tasks.RetrySyncTask(c.Request.Context(), id, getActor(c, ""))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, task)
}
