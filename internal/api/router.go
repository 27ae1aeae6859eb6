package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/scribeq/scribeq/internal/api/controllers"
	"github.com/scribeq/scribeq/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	queueCtrl := &controllers.QueueController{App: app}
	systemCtrl := &controllers.SystemController{App: app}

	// Queue endpoints (shared by the web client and the CLI)
	e.GET("/api/queue", queueCtrl.List)
	e.POST("/api/queue", queueCtrl.Enqueue)
	e.DELETE("/api/queue", queueCtrl.Clear)
	e.GET("/api/queue/:id", queueCtrl.Get)
	e.DELETE("/api/queue/:id", queueCtrl.Delete)
	e.POST("/api/queue/retry", queueCtrl.RetryFailed)
	e.POST("/api/queue/cancel", queueCtrl.CancelAll)

	// Maintenance endpoints
	e.POST("/api/cache/purge", systemCtrl.PurgeCache)
	e.GET("/api/health", systemCtrl.Health)
}
