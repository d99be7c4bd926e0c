package handlers

import (
	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	metrics  *metrics.Metrics
	hub      *Hub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. m and log may be nil.
func NewHandler(services *service.Service, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{services: services, metrics: m, hub: NewHub(m, log), log: log}
}

// Hub returns the browser view stream; it is the renderer for the services.
func (h *Handler) Hub() *Hub { return h.hub }

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Browser view stream, same port
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
	api := r.Group("/api/v1", h.requireOperator)
	{
		h.registerActionRoutes(api)
		h.registerMonitoringRoutes(api)
		h.registerCatalogRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerActionRoutes(api *gin.RouterGroup) {
	actions := api.Group("/actions")
	{
		actions.POST("/system-calibration", h.runSystemCalibration)
		// Body example: {"boardid":"320","boardtype":"TB2.1_3","reference":"ref-2024-02-01"}
		actions.POST("/standard-calibration", h.runStandardCalibration)
		actions.POST("/signoff/:session", h.signOff)
		actions.POST("/rerun", h.rerunSingle)
		actions.POST("/raw", h.rawCommand)
		actions.POST("/settings/:kind", h.updateSettings)
		actions.POST("/drs-calib", h.startDRSCalibration)
		actions.POST("/complete-user-action", h.completeUserAction)
	}
}

func (h *Handler) registerMonitoringRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.GET("/session", h.getSession)
	api.GET("/settings", h.getRigSettings)

	debug := api.Group("/debug")
	{
		debug.POST("/:process/watch", h.watchDebug)
		debug.GET("/:process", h.getHistogram)
	}
}

func (h *Handler) registerCatalogRoutes(api *gin.RouterGroup) {
	catalog := api.Group("/catalog")
	{
		catalog.GET("/boards/:kind", h.getBoards)
		catalog.GET("/references", h.getReferences)
		catalog.POST("/refresh", h.refreshCatalog)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
