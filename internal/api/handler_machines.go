package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/lifecycle"
	"laundry-jobs-backend/internal/parse"
	"laundry-jobs-backend/internal/store"
)

// ListMachines handles GET /machines?type=&status=.
func (h *Handler) ListMachines(c *gin.Context) {
	var filter store.MachineFilter
	if raw := c.Query("type"); raw != "" {
		t, err := parse.MachineType(raw)
		if err != nil {
			writeError(c, apperr.ValidationField("type", err.Error()))
			return
		}
		filter.Type = t
	}
	if raw := c.Query("status"); raw != "" {
		s, err := parse.MachineStatus(raw)
		if err != nil {
			writeError(c, apperr.ValidationField("status", err.Error()))
			return
		}
		filter.Status = s
	}

	machines, err := h.engine.ListMachines(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, machines)
}

// RegisterMachine handles POST /machines.
func (h *Handler) RegisterMachine(c *gin.Context) {
	var req lifecycle.MachineInput
	if !bindJSON(c, &req, false) {
		return
	}
	m, err := h.engine.RegisterMachine(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// GetMachine handles GET /machines/:id.
func (h *Handler) GetMachine(c *gin.Context) {
	m, err := h.engine.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type machineStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetMachineStatus handles PUT /machines/:id/status.
func (h *Handler) SetMachineStatus(c *gin.Context) {
	var req machineStatusRequest
	if !bindJSON(c, &req, false) {
		return
	}
	status, err := parse.MachineStatus(req.Status)
	if err != nil {
		writeError(c, apperr.ValidationField("status", err.Error()))
		return
	}
	m, err := h.engine.SetMachineStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
