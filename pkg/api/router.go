package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/homepanel/pkg/api/handlers"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

// Dependencies are the services the router exposes. Events and Metrics are
// optional; nil leaves their routes unregistered.
type Dependencies struct {
	Store    *home.Store
	Commands handlers.CommandRunner
	Sink     device.Sink  // nil reports the bridge as disabled
	Events   http.Handler // websocket hub
	Metrics  http.Handler // Prometheus exposition
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine *gin.Engine
	deps   Dependencies
}

// NewRouter creates a new API router
func NewRouter(deps Dependencies) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine: engine,
		deps:   deps,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	if r.deps.Metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}

	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.deps.Store, r.deps.Sink)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		// Rooms and devices
		devicesHandler := handlers.NewDevicesHandler(r.deps.Store)
		v1.GET("/rooms", devicesHandler.ListRooms)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.PATCH("/:id/status", devicesHandler.UpdateStatus)
		}

		// Scenes
		scenesHandler := handlers.NewScenesHandler(r.deps.Store)
		scenes := v1.Group("/scenes")
		{
			scenes.GET("", scenesHandler.ListScenes)
			scenes.POST("", scenesHandler.CreateScene)
			scenes.POST("/snapshot", scenesHandler.SnapshotScene)
			scenes.DELETE("/:id", scenesHandler.DeleteScene)
			scenes.POST("/:id/favorite", scenesHandler.ToggleFavorite)
			scenes.POST("/:id/apply", scenesHandler.ApplyScene)
		}

		// Activity and stats
		activityHandler := handlers.NewActivityHandler(r.deps.Store)
		v1.GET("/activity", activityHandler.ListActivity)
		v1.GET("/stats/tokens", activityHandler.TokenStats)

		// Settings and security mode
		settingsHandler := handlers.NewSettingsHandler(r.deps.Store)
		settings := v1.Group("/settings")
		{
			settings.GET("", settingsHandler.ListSettings)
			settings.GET("/:key", settingsHandler.GetSetting)
			settings.PUT("/:key", settingsHandler.UpdateSetting)
		}
		v1.GET("/security", settingsHandler.GetSecurity)
		v1.PUT("/security", settingsHandler.SetSecurity)

		// Natural-language commands
		if r.deps.Commands != nil {
			commandsHandler := handlers.NewCommandsHandler(r.deps.Commands)
			v1.POST("/commands", commandsHandler.RunCommand)
			v1.GET("/commands/suggestions", commandsHandler.Suggestions)
		}

		// Realtime
		eventsHandler := handlers.NewEventsHandler(r.deps.Store)
		v1.GET("/events/stream", eventsHandler.Stream)
		if r.deps.Events != nil {
			v1.GET("/events", gin.WrapH(r.deps.Events))
		}
	}
}

// Handler returns the engine as an http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}
