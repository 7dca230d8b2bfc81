package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	sh "smart_heating"
	"smart_heating/internal/service"
)

const statusOK = "ok"

// areaError maps service errors onto HTTP codes: unknown area is 404,
// anything else a command rejects is a validation problem.
func (h *Handler) areaError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAreaNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "area not found"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      List areas
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, areas"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/areas [get]
// @Security     BearerAuth
func (h *Handler) listAreas(c *gin.Context) {
	areas, err := h.services.ListAreas(c.Request.Context())
	if err != nil {
		if h.log != nil {
			h.log.Errorw("areas_list_failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load areas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(areas), "areas": areas})
}

type createAreaRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required"`
}

// @Summary      Create area
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  createAreaRequest  true  "Area payload"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas [post]
// @Security     BearerAuth
func (h *Handler) createArea(c *gin.Context) {
	var req createAreaRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	area, err := h.services.CreateArea(c.Request.Context(), req.ID, req.Name)
	if err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": area.ID})
}

// @Summary      Get area snapshot
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id} [get]
// @Security     BearerAuth
func (h *Handler) getArea(c *gin.Context) {
	snap, err := h.services.GetArea(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Get full area configuration
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id}/config [get]
// @Security     BearerAuth
func (h *Handler) getAreaConfig(c *gin.Context) {
	area, err := h.services.GetAreaConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, area)
}

type updateAreaRequest struct {
	Name                     *string `json:"name,omitempty"`
	Hidden                   *bool   `json:"hidden,omitempty"`
	ShutdownSwitchesWhenIdle *bool   `json:"shutdown_switches_when_idle,omitempty"`
}

// @Summary      Update area flags
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  updateAreaRequest  true  "Fields to change"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id} [patch]
// @Security     BearerAuth
func (h *Handler) updateArea(c *gin.Context) {
	var req updateAreaRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.UpdateArea(c.Request.Context(), c.Param("id"), req.Name, req.Hidden, req.ShutdownSwitchesWhenIdle); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Delete area
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteArea(c *gin.Context) {
	if err := h.services.DeleteArea(c.Request.Context(), c.Param("id")); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type setDevicesRequest struct {
	Devices []sh.Device `json:"devices" binding:"required"`
}

// @Summary      Replace area devices
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  setDevicesRequest  true  "Device list"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/devices [put]
// @Security     BearerAuth
func (h *Handler) setDevices(c *gin.Context) {
	var req setDevicesRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetDevices(c.Request.Context(), c.Param("id"), req.Devices); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type setTemperatureRequest struct {
	Temperature float64 `json:"temperature" binding:"required"`
}

// @Summary      Set base target temperature
// @Description  Clears manual override; the new target takes effect on the next refresh.
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  setTemperatureRequest  true  "Target payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id}/temperature [post]
// @Security     BearerAuth
func (h *Handler) setTemperature(c *gin.Context) {
	var req setTemperatureRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetTemperature(c.Request.Context(), c.Param("id"), req.Temperature); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Enable area
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id}/enable [post]
// @Security     BearerAuth
func (h *Handler) enableArea(c *gin.Context) {
	if err := h.services.SetEnabled(c.Request.Context(), c.Param("id"), true); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Disable area
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id}/disable [post]
// @Security     BearerAuth
func (h *Handler) disableArea(c *gin.Context) {
	if err := h.services.SetEnabled(c.Request.Context(), c.Param("id"), false); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type setPresetRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// @Summary      Set preset mode
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  setPresetRequest  true  "Preset payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/preset [post]
// @Security     BearerAuth
func (h *Handler) setPreset(c *gin.Context) {
	var req setPresetRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetPreset(c.Request.Context(), c.Param("id"), req.Mode); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type presetOverrideRequest struct {
	Temperature *float64 `json:"temperature"` // null removes the override
}

// @Summary      Set or remove an area preset override
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  presetOverrideRequest  true  "Override payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/preset-overrides/{mode} [put]
// @Security     BearerAuth
func (h *Handler) setPresetOverride(c *gin.Context) {
	var req presetOverrideRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetPresetOverride(c.Request.Context(), c.Param("id"), c.Param("mode"), req.Temperature); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type boostRequest struct {
	Temperature     float64 `json:"temperature" binding:"required"`
	DurationMinutes int     `json:"duration_minutes" binding:"required"`
}

// @Summary      Start boost
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  boostRequest  true  "Boost payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/boost [post]
// @Security     BearerAuth
func (h *Handler) startBoost(c *gin.Context) {
	var req boostRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.StartBoost(c.Request.Context(), c.Param("id"), req.Temperature, req.DurationMinutes); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Cancel boost
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/areas/{id}/boost [delete]
// @Security     BearerAuth
func (h *Handler) cancelBoost(c *gin.Context) {
	if err := h.services.CancelBoost(c.Request.Context(), c.Param("id")); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type scheduleRequest struct {
	Day         string   `json:"day" binding:"required"`
	StartTime   string   `json:"start_time" binding:"required"`
	EndTime     string   `json:"end_time" binding:"required"`
	Temperature *float64 `json:"temperature,omitempty"`
	PresetMode  string   `json:"preset_mode,omitempty"`
}

// @Summary      Add schedule entry
// @Description  Times are local wall-clock HH:MM; end before start wraps past midnight.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body  scheduleRequest  true  "Schedule payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/schedules [post]
// @Security     BearerAuth
func (h *Handler) addSchedule(c *gin.Context) {
	var req scheduleRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	entry := sh.ScheduleEntry{
		Day:         req.Day,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Temperature: req.Temperature,
		PresetMode:  req.PresetMode,
		Enabled:     true,
	}
	id, err := h.services.AddSchedule(c.Request.Context(), c.Param("id"), entry)
	if err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": id})
}

// @Summary      Delete schedule entry
// @Tags         schedules
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/schedules/{entryId} [delete]
// @Security     BearerAuth
func (h *Handler) deleteSchedule(c *gin.Context) {
	if err := h.services.DeleteSchedule(c.Request.Context(), c.Param("id"), c.Param("entryId")); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type scheduleEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// @Summary      Enable or disable a schedule entry
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body  scheduleEnabledRequest  true  "Enabled flag"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/schedules/{entryId} [patch]
// @Security     BearerAuth
func (h *Handler) setScheduleEnabled(c *gin.Context) {
	var req scheduleEnabledRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetScheduleEnabled(c.Request.Context(), c.Param("id"), c.Param("entryId"), *req.Enabled); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Configure night boost
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  smart_heating.NightBoostConfig  true  "Night boost config"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/night-boost [put]
// @Security     BearerAuth
func (h *Handler) setNightBoost(c *gin.Context) {
	var cfg sh.NightBoostConfig
	if !h.bindJSONOrBadRequest(c, &cfg) {
		return
	}
	if err := h.services.SetNightBoost(c.Request.Context(), c.Param("id"), cfg); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Configure smart night boost
// @Tags         areas
// @Accept       json
// @Produce      json
// @Param        body  body  smart_heating.SmartNightBoostConfig  true  "Smart night boost config"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/smart-night-boost [put]
// @Security     BearerAuth
func (h *Handler) setSmartNightBoost(c *gin.Context) {
	var cfg sh.SmartNightBoostConfig
	if !h.bindJSONOrBadRequest(c, &cfg) {
		return
	}
	if err := h.services.SetSmartNightBoost(c.Request.Context(), c.Param("id"), cfg); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Attach window sensor
// @Tags         sensors
// @Accept       json
// @Produce      json
// @Param        body  body  smart_heating.WindowSensor  true  "Window sensor config"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/window-sensors [post]
// @Security     BearerAuth
func (h *Handler) addWindowSensor(c *gin.Context) {
	var ws sh.WindowSensor
	if !h.bindJSONOrBadRequest(c, &ws) {
		return
	}
	if err := h.services.AddWindowSensor(c.Request.Context(), c.Param("id"), ws); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Detach window sensor
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/window-sensors/{entityId} [delete]
// @Security     BearerAuth
func (h *Handler) removeWindowSensor(c *gin.Context) {
	if err := h.services.RemoveWindowSensor(c.Request.Context(), c.Param("id"), c.Param("entityId")); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Attach presence sensor
// @Tags         sensors
// @Accept       json
// @Produce      json
// @Param        body  body  smart_heating.PresenceSensor  true  "Presence sensor config"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/presence-sensors [post]
// @Security     BearerAuth
func (h *Handler) addPresenceSensor(c *gin.Context) {
	var ps sh.PresenceSensor
	if !h.bindJSONOrBadRequest(c, &ps) {
		return
	}
	if err := h.services.AddPresenceSensor(c.Request.Context(), c.Param("id"), ps); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Detach presence sensor
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/presence-sensors/{entityId} [delete]
// @Security     BearerAuth
func (h *Handler) removePresenceSensor(c *gin.Context) {
	if err := h.services.RemovePresenceSensor(c.Request.Context(), c.Param("id"), c.Param("entityId")); err != nil {
		h.areaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Area temperature history
// @Tags         areas
// @Produce      json
// @Param        since  query  string  false  "Start of range (RFC3339 or YYYY-MM-DD); default last 24h"
// @Success      200  {object}  map[string]interface{}  "count, entries"
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/areas/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)
	if qs := c.Query("since"); qs != "" {
		t, err := parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'since' time; use RFC3339 or YYYY-MM-DD"})
			return
		}
		since = t
	}
	entries, err := h.services.Monitoring.History(c.Request.Context(), c.Param("id"), since)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("history_load_failed", "area", c.Param("id"), "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Learning diagnostics
// @Tags         areas
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/areas/{id}/learning [get]
// @Security     BearerAuth
func (h *Handler) getLearning(c *gin.Context) {
	stats, err := h.services.Learning(c.Request.Context(), c.Param("id"))
	if err != nil {
		if h.log != nil {
			h.log.Errorw("learning_load_failed", "area", c.Param("id"), "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load learning stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary      Global settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	gs, err := h.services.Settings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, gs)
}

type hysteresisRequest struct {
	Hysteresis float64 `json:"hysteresis" binding:"required"`
}

// @Summary      Set global hysteresis
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body  hysteresisRequest  true  "Hysteresis payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/settings/hysteresis [put]
// @Security     BearerAuth
func (h *Handler) setHysteresis(c *gin.Context) {
	var req hysteresisRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetHysteresis(c.Request.Context(), req.Hysteresis); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type frostProtectionRequest struct {
	Enabled     bool    `json:"enabled"`
	Temperature float64 `json:"temperature" binding:"required"`
}

// @Summary      Set frost protection
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body  frostProtectionRequest  true  "Frost protection payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/settings/frost-protection [put]
// @Security     BearerAuth
func (h *Handler) setFrostProtection(c *gin.Context) {
	var req frostProtectionRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetFrostProtection(c.Request.Context(), req.Enabled, req.Temperature); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

type presetTempRequest struct {
	Temperature float64 `json:"temperature" binding:"required"`
}

// @Summary      Set a global preset temperature
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body  presetTempRequest  true  "Preset temperature payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/settings/presets/{mode} [put]
// @Security     BearerAuth
func (h *Handler) setGlobalPresetTemp(c *gin.Context) {
	var req presetTempRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	if err := h.services.SetGlobalPresetTemp(c.Request.Context(), c.Param("mode"), req.Temperature); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
