// Package server boots the full application: config, log sinks, archive
// disks, the storage manager (which runs the one-time migration), the
// cart model, and the HTTP API.
package server

import (
	"context"
	"net/http"

	"github.com/rmoraes/braseiro/app/routes"
	"github.com/rmoraes/braseiro/config"
	"github.com/rmoraes/braseiro/internal/backup"
	"github.com/rmoraes/braseiro/internal/cart"
	"github.com/rmoraes/braseiro/internal/store"
	"github.com/rmoraes/braseiro/pkg/archive"
	"github.com/rmoraes/braseiro/pkg/logger"
	"github.com/rmoraes/braseiro/pkg/metrics"
	"github.com/rmoraes/braseiro/pkg/middleware"
	"github.com/rmoraes/braseiro/pkg/reqid"
	"github.com/rmoraes/braseiro/pkg/router"
)

func Start() error {
	ctx := context.Background()

	if err := config.Load(); err != nil {
		return err
	}
	if err := logger.EnableMongoSink(); err != nil {
		logger.Warn("server: mongo log sink unavailable", "error", err)
	}
	defer logger.CloseSinks()

	archive.Connect()

	manager, err := store.Boot(ctx)
	if err != nil {
		return err
	}
	defer manager.Close()

	model := cart.NewModel(manager)
	if err := model.Hydrate(ctx); err != nil {
		// The server still starts; the cart begins empty.
		logger.Warn("server: cart hydration failed", "error", err)
	}

	engine := backup.NewEngine(manager)

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))

	routes.RegisterAPI(r, routes.Deps{Storage: manager, Cart: model, Backup: engine})
	r.Get("/metrics", "metrics", metrics.Handler())

	addr := ":" + config.AppPort()
	logger.Info("braseiro listening", "addr", addr, "mode", string(manager.Mode()))
	return http.ListenAndServe(addr, r.Handler())
}
