package routes

import (
	"time"

	"github.com/rmoraes/braseiro/app/controllers"
	"github.com/rmoraes/braseiro/internal/backup"
	"github.com/rmoraes/braseiro/internal/cart"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/middleware"
	"github.com/rmoraes/braseiro/pkg/router"
)

// Deps carries the wired engines the controllers work against.
type Deps struct {
	Storage *store.Manager
	Cart    *cart.Model
	Backup  *backup.Engine
}

func RegisterAPI(r *router.Router, deps Deps) {
	cartController := controllers.NewCartController(deps.Cart)
	orderController := controllers.NewOrderController(deps.Storage)
	productController := controllers.NewProductController(deps.Storage, deps.Cart)
	backupController := controllers.NewBackupController(deps.Backup, deps.Storage, deps.Cart)

	api := r.Group("/api")

	api.Get("/cart", "cart.show", cartController.Show)
	api.Post("/cart/items", "cart.add", cartController.Add)
	api.Put("/cart/items/{id}", "cart.quantity", cartController.SetQuantity)
	api.Delete("/cart", "cart.cancel", cartController.Cancel)
	api.Post("/checkout", "cart.checkout", cartController.Checkout)

	api.Get("/orders", "orders.index", orderController.Index)

	api.Get("/products", "products.index", productController.Index)
	api.Get("/products/low-stock", "products.low_stock", productController.LowStock)
	api.Post("/products", "products.create", productController.Create)
	api.Put("/products/{id}", "products.update", productController.Update)

	settingController := controllers.NewSettingController(deps.Storage)
	api.Get("/settings", "settings.index", settingController.Index)
	api.Get("/settings/{key}", "settings.show", settingController.Show)
	api.Put("/settings/{key}", "settings.update", settingController.Update)

	api.Get("/stats", "stats.show", backupController.Stats)

	// Destructive data operations are rate-limited per IP.
	guard := middleware.RateLimit(5, time.Minute)

	bkp := api.Group("/backup")
	bkp.Get("/export", "backup.export", backupController.Export)
	bkp.Post("/preview", "backup.preview", backupController.Preview)
	bkp.Post("/restore", "backup.restore", backupController.Restore, guard)
	bkp.Post("/recover", "backup.recover", backupController.Recover, guard)

	api.Delete("/data", "data.clear", backupController.ClearAll, guard)
}
