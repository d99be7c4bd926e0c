package handlers

import (
	"errors"
	"net/http"

	"calibration_console/internal/models"
	"calibration_console/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK   = "ok"
	statusSent = "sent"

	errSendCommand     = "failed to send command to rig"
	errReadBody        = "failed to read request body"
	errInvalidBodyPref = "invalid body: "
)

// CommandResponse is returned for every accepted action.
type CommandResponse struct {
	Status  string                 `json:"status" example:"sent"`
	Command models.CommandEnvelope `json:"command"`
}

// ValidationErrorResponse names the first invalid form field.
type ValidationErrorResponse struct {
	Field string `json:"field" example:"boardid"`
	Error string `json:"error" example:"Board ID not specified"`
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondCommand maps the dispatcher outcome: validation failures are 422,
// unknown actions 404 and anything else a failed send.
func (h *Handler) respondCommand(c *gin.Context, env models.CommandEnvelope, err error) {
	if err == nil {
		c.JSON(http.StatusOK, CommandResponse{Status: statusSent, Command: env})
		return
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{Field: ve.Field, Error: ve.Message})
		return
	}
	if errors.Is(err, models.ErrUnknownAction) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusBadGateway, errSendCommand, "action_request_failed", err, "path", c.FullPath())
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Run system calibration
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        body  body      service.SystemCalibrationForm  true  "Board type"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  ValidationErrorResponse
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/actions/system-calibration [post]
// @Security     BearerAuth
func (h *Handler) runSystemCalibration(c *gin.Context) {
	var form service.SystemCalibrationForm
	if !h.bindJSONOrBadRequest(c, &form) {
		return
	}
	env, err := h.services.RunSystemCalibration(c.Request.Context(), operatorID(c), form)
	h.respondCommand(c, env, err)
}

// @Summary      Run standard calibration
// @Description  Fields are checked in order boardid, boardtype, reference; only the first problem is reported.
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        body  body      service.StandardCalibrationForm  true  "Board, board type and reference"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  ValidationErrorResponse
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/actions/standard-calibration [post]
// @Security     BearerAuth
func (h *Handler) runStandardCalibration(c *gin.Context) {
	var form service.StandardCalibrationForm
	if !h.bindJSONOrBadRequest(c, &form) {
		return
	}
	env, err := h.services.RunStandardCalibration(c.Request.Context(), operatorID(c), form)
	h.respondCommand(c, env, err)
}

// @Summary      Sign off a calibration
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        session  path      string               true  "Session type"  Enums(system,standard)
// @Param        body     body      service.SignoffForm  true  "Comments and central server credentials"
// @Success      200      {object}  CommandResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Failure      502      {object}  map[string]string
// @Router       /api/v1/actions/signoff/{session} [post]
// @Security     BearerAuth
func (h *Handler) signOff(c *gin.Context) {
	var form service.SignoffForm
	if !h.bindJSONOrBadRequest(c, &form) {
		return
	}
	env, err := h.services.SignOff(c.Request.Context(), operatorID(c), c.Param("session"), form)
	h.respondCommand(c, env, err)
}

// @Summary      Rerun a single process
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        body  body      service.RerunForm  true  "Process, detector and extend flag"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  ValidationErrorResponse
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/actions/rerun [post]
// @Security     BearerAuth
func (h *Handler) rerunSingle(c *gin.Context) {
	var form service.RerunForm
	if !h.bindJSONOrBadRequest(c, &form) {
		return
	}
	env, err := h.services.RerunSingle(c.Request.Context(), operatorID(c), form)
	h.respondCommand(c, env, err)
}

// @Summary      Send a raw command
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        body  body      service.RawCommandForm  true  "Command line"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  ValidationErrorResponse
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/actions/raw [post]
// @Security     BearerAuth
func (h *Handler) rawCommand(c *gin.Context) {
	var form service.RawCommandForm
	if !h.bindJSONOrBadRequest(c, &form) {
		return
	}
	env, err := h.services.RawCommand(c.Request.Context(), operatorID(c), form)
	h.respondCommand(c, env, err)
}

// @Summary      Update device settings
// @Description  Values may be numbers or numeric strings; list values may be arrays or comma separated strings.
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        kind  path      string  true  "Settings kind"  Enums(image,zscan,lowlight,lumialign,picoscope,drs)
// @Param        body  body      object  true  "Settings values"
// @Success      200   {object}  CommandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  ValidationErrorResponse
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/actions/settings/{kind} [post]
// @Security     BearerAuth
func (h *Handler) updateSettings(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errReadBody, "settings_body_read_failed", err)
		return
	}
	env, err := h.services.UpdateSettings(c.Request.Context(), operatorID(c), c.Param("kind"), body)
	h.respondCommand(c, env, err)
}

// @Summary      Calibrate the DRS
// @Description  The last DRS settings are sent again once the calibration completes.
// @Tags         actions
// @Produce      json
// @Success      200  {object}  CommandResponse
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/actions/drs-calib [post]
// @Security     BearerAuth
func (h *Handler) startDRSCalibration(c *gin.Context) {
	env, err := h.services.StartDRSCalibration(c.Request.Context(), operatorID(c))
	h.respondCommand(c, env, err)
}

// @Summary      Complete the requested manual step
// @Tags         actions
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/actions/complete-user-action [post]
// @Security     BearerAuth
func (h *Handler) completeUserAction(c *gin.Context) {
	if err := h.services.CompleteUserAction(c.Request.Context(), operatorID(c)); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errSendCommand, "complete_user_action_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent})
}
