package app

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/d10r/sup-metrics-api/app/controller"
	"github.com/d10r/sup-metrics-api/app/types"
)

// NewServer creates the HTTP server and attaches it to the app.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router := ctler.NewRouter()

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := app.Config.Addr

	app.Server = &http.Server{Addr: addr, Handler: controller.WithCORS(router)}
	app.Logger.Info("Configured server", zap.String("addr", addr))

	return nil
}
