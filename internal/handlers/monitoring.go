package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	errRigSettings    = "failed to load rig settings"
	errRefreshCatalog = "failed to refresh catalog"
	errNoHistogram    = "no histogram for process yet"
)

// @Summary      Latest status view
// @Description  Charts, uptime and gantry overlay from the rolling telemetry window.
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  view.StatusView
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.LatestStatus())
}

// @Summary      Session mirror
// @Description  Last synced session state, progress and the display board.
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  service.SessionSnapshot
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/session [get]
// @Security     BearerAuth
func (h *Handler) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Session())
}

// @Summary      Rig device settings
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getRigSettings(c *gin.Context) {
	settings, err := h.services.RigSettings(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRigSettings, "rig_settings_failed", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// @Summary      Watch a debug histogram
// @Description  Polls the process histogram until the session goes idle. One watcher runs per process.
// @Tags         monitoring
// @Produce      json
// @Param        process  path      string  true  "Debugging process"
// @Success      202      {object}  map[string]string
// @Success      200      {object}  map[string]string  "already watching"
// @Failure      401      {object}  map[string]string
// @Router       /api/v1/debug/{process}/watch [post]
// @Security     BearerAuth
func (h *Handler) watchDebug(c *gin.Context) {
	process := strings.TrimSpace(c.Param("process"))
	// the watcher outlives the request
	if !h.services.WatchDebug(context.WithoutCancel(c.Request.Context()), process) {
		c.JSON(http.StatusOK, gin.H{"status": "watching", "process": process})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "process": process})
}

// @Summary      Latest debug histogram
// @Tags         monitoring
// @Produce      json
// @Param        process  path      string  true  "Debugging process"
// @Success      200      {object}  view.HistogramView
// @Failure      401      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /api/v1/debug/{process} [get]
// @Security     BearerAuth
func (h *Handler) getHistogram(c *gin.Context) {
	v, ok := h.services.LatestHistogram(c.Param("process"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoHistogram})
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary      Board options
// @Tags         catalog
// @Produce      json
// @Param        kind  path      string  true  "Board kind"  Enums(system,standard)
// @Success      200   {object}  view.OptionList
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/catalog/boards/{kind} [get]
// @Security     BearerAuth
func (h *Handler) getBoards(c *gin.Context) {
	list, ok := h.services.Options(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown board kind"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Reference options
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  view.OptionList
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/catalog/references [get]
// @Security     BearerAuth
func (h *Handler) getReferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.References())
}

// @Summary      Refresh catalogs
// @Description  Reloads system boards, standard boards and references. Lists that fail to load keep their previous content.
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/catalog/refresh [post]
// @Security     BearerAuth
func (h *Handler) refreshCatalog(c *gin.Context) {
	if err := h.services.RefreshAll(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errRefreshCatalog, "catalog_refresh_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
