package handlers

import (
	"smart_heating/internal/logger"
	"smart_heating/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	hub      *SnapshotHub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, hub *SnapshotHub, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// WebSocket snapshot stream (HTTP upgrade) on the same port.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerAreaRoutes(api)
		h.registerSettingsRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerAreaRoutes(api *gin.RouterGroup) {
	areas := api.Group("/areas")
	{
		areas.GET("", h.listAreas)
		areas.POST("", h.createArea)
		areas.GET("/:id", h.getArea)
		areas.PATCH("/:id", h.updateArea)
		areas.DELETE("/:id", h.deleteArea)
		areas.GET("/:id/config", h.getAreaConfig)
		areas.PUT("/:id/devices", h.setDevices)

		areas.POST("/:id/temperature", h.setTemperature)
		areas.POST("/:id/enable", h.enableArea)
		areas.POST("/:id/disable", h.disableArea)
		areas.POST("/:id/preset", h.setPreset)
		areas.PUT("/:id/preset-overrides/:mode", h.setPresetOverride)
		areas.POST("/:id/boost", h.startBoost)
		areas.DELETE("/:id/boost", h.cancelBoost)

		areas.POST("/:id/schedules", h.addSchedule)
		areas.DELETE("/:id/schedules/:entryId", h.deleteSchedule)
		areas.PATCH("/:id/schedules/:entryId", h.setScheduleEnabled)

		areas.PUT("/:id/night-boost", h.setNightBoost)
		areas.PUT("/:id/smart-night-boost", h.setSmartNightBoost)
		areas.POST("/:id/window-sensors", h.addWindowSensor)
		areas.DELETE("/:id/window-sensors/:entityId", h.removeWindowSensor)
		areas.POST("/:id/presence-sensors", h.addPresenceSensor)
		areas.DELETE("/:id/presence-sensors/:entityId", h.removePresenceSensor)

		areas.GET("/:id/history", h.getHistory)
		areas.GET("/:id/learning", h.getLearning)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("", h.getSettings)
		settings.PUT("/hysteresis", h.setHysteresis)
		settings.PUT("/frost-protection", h.setFrostProtection)
		settings.PUT("/presets/:mode", h.setGlobalPresetTemp)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
