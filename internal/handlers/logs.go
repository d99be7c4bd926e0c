package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"calibration_console/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRange       = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var queryLayouts = []string{time.RFC3339, layoutDateTime, layoutDate}

// @Summary      List the action audit log
// @Description  Commands emitted to the rig, oldest first. Dates accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' covers the whole day.
// @Tags         logs
// @Produce      json
// @Param        from    query     string  false  "Start of range"  example(2025-08-01)
// @Param        to      query     string  false  "End of range"    example(2025-08-31)
// @Param        action  query     string  false  "Action id"       example(run-std-calibration)
// @Success      200     {object}  map[string]interface{}  "count, actions"
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, msg := parseLogFilter(c)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	records, err := h.services.ActionLog.List(c.Request.Context(), filter)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", filter.From, "to", filter.To, "action", filter.Action)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(records),
		"actions": records,
	})
}

// parseLogFilter reads from, to and action. It returns a client message on
// bad input.
func parseLogFilter(c *gin.Context) (service.LogFilter, string) {
	f := service.LogFilter{Action: strings.TrimSpace(c.Query("action"))}

	if qs := c.Query("from"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errFromInvalid
		}
		f.From = t
	}
	if qs := c.Query("to"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			return f, errToInvalid
		}
		if !strings.ContainsAny(qs, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRange
	}
	return f, ""
}

var errTimeFormat = errors.New("expected RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'")

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range queryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: %w", s, errTimeFormat)
}
