package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/adms/sessiond/api/handler"
)

type Handlers struct {
	Session     *apiHandler.SessionHandler
	Maintenance *apiHandler.MaintenanceHandler
	Health      *apiHandler.HealthHandler
}

func New(handlers Handlers, gate func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Session entry and polling stay open: login has no session yet and
	// the state view must be readable while logged out.
	r.POST("/api/v1/session/login", handlers.Session.Login)
	r.POST("/api/v1/session/logout", handlers.Session.Logout)
	r.GET("/api/v1/session", handlers.Session.State)

	// Protected routes
	r.POST("/api/v1/session/activity", gate(handlers.Session.Activity))
	r.POST("/api/v1/session/affirm", gate(handlers.Session.Affirm))
	r.GET("/api/v1/session/navtree", gate(handlers.Session.NavTree))
	r.GET("/api/v1/session/events", gate(handlers.Session.Events))

	// Maintenance stays reachable during a window so operators can end it.
	r.GET("/api/v1/maintenance", handlers.Maintenance.Get)
	r.PUT("/api/v1/maintenance", handlers.Maintenance.Put)

	return r
}
