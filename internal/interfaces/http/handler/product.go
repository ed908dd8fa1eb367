package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/domain/integration"
)

// ProductReconciler is the merge and reconcile surface the product endpoints need
type ProductReconciler interface {
	MergeIncoming(ctx context.Context, ownerID uuid.UUID, snapshots []integration.PlatformSnapshot) (*integrationapp.MergeResult, error)
	ReconcileStock(ctx context.Context, productID uuid.UUID) (*integrationapp.ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*integrationapp.ReconcileAllResult, error)
	PullAndMerge(ctx context.Context) (*integrationapp.PullResult, error)
	RelinkSourceRecord(ctx context.Context, req integrationapp.RelinkRequest) (*integrationapp.RelinkResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*integrationapp.CanonicalProductResponse, error)
	ListProducts(ctx context.Context, filter integrationapp.ProductListFilter) ([]integrationapp.CanonicalProductResponse, error)
	RequestPush(ctx context.Context, productID uuid.UUID, req integrationapp.RequestPushRequest) ([]integrationapp.SyncTaskResponse, error)
}

// ProductHandler handles canonical product, merge and reconcile endpoints
type ProductHandler struct {
	BaseHandler
	reconciler ProductReconciler
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(reconciler ProductReconciler) *ProductHandler {
	return &ProductHandler{reconciler: reconciler}
}

// Merge godoc
// @ID           mergeSnapshots
// @Summary      Merge marketplace records
// @Description  Groups incoming marketplace records into canonical products by link ID, barcode, SKU and name similarity.
// @Description  owner_id defaults to the X-Owner-ID header.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body integrationapp.MergeRequest true "Snapshots"
// @Success      200 {object} APIResponse[integrationapp.MergeResult]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /products/merge [post]
func (h *ProductHandler) Merge(c *gin.Context) {
	var req integrationapp.MergeRequest
	if owner, ok := ownerFromRequest(c); ok {
		req.OwnerID = owner
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	snapshots := make([]integration.PlatformSnapshot, 0, len(req.Snapshots))
	for _, s := range req.Snapshots {
		snap, err := s.ToSnapshot()
		if err != nil {
			h.HandleError(c, err)
			return
		}
		snapshots = append(snapshots, snap)
	}

	result, err := h.reconciler.MergeIncoming(c.Request.Context(), req.OwnerID, snapshots)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetByID godoc
// @ID           getCanonicalProduct
// @Summary      Get a canonical product
// @Description  Returns the merged product with every linked marketplace record
// @Tags         products
// @Produce      json
// @Param        id path string true "Canonical product ID" format(uuid)
// @Success      200 {object} APIResponse[integrationapp.CanonicalProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "product")
		return
	}

	p, err := h.reconciler.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// List godoc
// @ID           listCanonicalProducts
// @Summary      List canonical products
// @Tags         products
// @Produce      json
// @Param        owner_id query string false "Owner ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]integrationapp.CanonicalProductResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	var filter integrationapp.ProductListFilter
	if owner, ok := ownerFromRequest(c); ok {
		filter.OwnerID = owner
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	products, err := h.reconciler.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, products)
}

// Reconcile godoc
// @ID           reconcileCanonicalProduct
// @Summary      Reconcile stock of one product
// @Description  Compares the ledger with every marketplace's reported stock and queues a push for each drift
// @Tags         products
// @Produce      json
// @Param        id path string true "Canonical product ID" format(uuid)
// @Success      200 {object} APIResponse[integrationapp.ReconcileResult]
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id}/reconcile [post]
func (h *ProductHandler) Reconcile(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "product")
		return
	}

	result, err := h.reconciler.ReconcileStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Push godoc
// @ID           pushCanonicalProduct
// @Summary      Push product fields to marketplaces
// @Description  Queues sync tasks for the given fields on some or all live listings of the product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        id path string true "Canonical product ID" format(uuid)
// @Param        request body integrationapp.RequestPushRequest true "Push request"
// @Success      202 {object} APIResponse[[]integrationapp.SyncTaskResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /products/{id}/push [post]
func (h *ProductHandler) Push(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.InvalidID(c, "product")
		return
	}
	var req integrationapp.RequestPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c, req.Actor)

	tasks, err := h.reconciler.RequestPush(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, tasks)
}

// Relink godoc
// @ID           relinkSourceRecord
// @Summary      Move a marketplace record to another product
// @Description  Corrects a wrong merge by relinking one marketplace record to the target canonical product
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        request body integrationapp.RelinkRequest true "Relink request"
// @Success      200 {object} APIResponse[integrationapp.RelinkResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /products/relink [post]
func (h *ProductHandler) Relink(c *gin.Context) {
	var req integrationapp.RelinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c, req.Actor)

	result, err := h.reconciler.RelinkSourceRecord(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReconcileAll godoc
// @ID           reconcileAllProducts
// @Summary      Reconcile every product
// @Tags         reconcile
// @Produce      json
// @Success      200 {object} APIResponse[integrationapp.ReconcileAllResult]
// @Failure      500 {object} ErrorResponse
// @Router       /reconcile [post]
func (h *ProductHandler) ReconcileAll(c *gin.Context) {
	result, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Pull godoc
// @ID           pullPlatforms
// @Summary      Pull listings from every enabled marketplace
// @Description  Fetches listings from each adapter, merges them and reconciles the touched products.
// @Description  A failing adapter is reported per platform and does not abort the others.
// @Tags         reconcile
// @Produce      json
// @Success      200 {object} APIResponse[integrationapp.PullResult]
// @Failure      422 {object} ErrorResponse
// @Router       /platforms/pull [post]
func (h *ProductHandler) Pull(c *gin.Context) {
	result, err := h.reconciler.PullAndMerge(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
