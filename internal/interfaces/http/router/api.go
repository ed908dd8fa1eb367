package router

import (
	"github.com/erp/stocksync/internal/interfaces/http/handler"
)

// Handlers bundles the HTTP handlers mounted under the versioned API
type Handlers struct {
	StockUnit   *handler.StockUnitHandler
	Reservation *handler.ReservationHandler
	Product     *handler.ProductHandler
	SyncTask    *handler.SyncTaskHandler
	Sweeper     *handler.SweeperHandler
	System      *handler.SystemHandler
}

// APIGroups builds the domain groups for every non-nil handler
func APIGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.StockUnit != nil {
		units := NewDomainGroup("stock-units", "/stock-units")
		units.POST("", h.StockUnit.Create)
		units.GET("", h.StockUnit.List)
		units.GET("/low-stock", h.StockUnit.ListLowStock)
		units.GET("/:id", h.StockUnit.GetByID)
		units.POST("/:id/retire", h.StockUnit.Retire)
		units.GET("/:id/availability", h.StockUnit.Availability)

		ledger := units.Group("ledger", "/:id")
		ledger.POST("/ledger", h.StockUnit.AppendEntry)
		ledger.GET("/ledger", h.StockUnit.History)
		ledger.GET("/on-hand-at", h.StockUnit.OnHandAt)
		ledger.POST("/verify", h.StockUnit.Verify)

		groups = append(groups, units)
	}

	if h.Reservation != nil {
		reservations := NewDomainGroup("reservations", "/reservations")
		reservations.POST("", h.Reservation.Reserve)
		reservations.GET("", h.Reservation.List)
		reservations.GET("/:id", h.Reservation.GetByID)
		reservations.POST("/:id/confirm", h.Reservation.Confirm)
		reservations.POST("/:id/release", h.Reservation.Release)
		groups = append(groups, reservations)
	}

	if h.Product != nil {
		products := NewDomainGroup("products", "/products")
		products.POST("/merge", h.Product.Merge)
		products.POST("/relink", h.Product.Relink)
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.GetByID)
		products.POST("/:id/reconcile", h.Product.Reconcile)
		products.POST("/:id/push", h.Product.Push)

		reconcile := NewDomainGroup("reconcile", "")
		reconcile.POST("/reconcile", h.Product.ReconcileAll)
		reconcile.POST("/platforms/pull", h.Product.Pull)

		groups = append(groups, products, reconcile)
	}

	if h.SyncTask != nil {
		tasks := NewDomainGroup("sync-tasks", "/sync-tasks")
		tasks.GET("", h.SyncTask.List)
		tasks.GET("/:id", h.SyncTask.GetByID)
		tasks.POST("/:id/retry", h.SyncTask.Retry)
		groups = append(groups, tasks)
	}

	if h.Sweeper != nil {
		sweeper := NewDomainGroup("sweeper", "/sweeper")
		sweeper.GET("/status", h.Sweeper.Status)
		sweeper.POST("/run", h.Sweeper.Run)
		groups = append(groups, sweeper)
	}

	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo)
		system.GET("/ping", h.System.Ping)
		groups = append(groups, system)
	}

	return groups
}
