package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"laundry-jobs-backend/internal/model"
)

type assignRequest struct {
	MachineID string `json:"machineId" binding:"required"`
}

type startRequest struct {
	DurationMinutes *int `json:"durationMinutes"`
}

type advanceRequest struct {
	Status string `json:"status" binding:"required"`
}

type durationRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handler) respondJob(c *gin.Context, job *model.Job, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// AssignMachine handles POST /jobs/:id/loads/:load/assign.
func (h *Handler) AssignMachine(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	var req assignRequest
	if !bindJSON(c, &req, false) {
		return
	}
	job, err := h.engine.AssignMachine(c.Request.Context(), c.Param("id"), load, req.MachineID)
	h.respondJob(c, job, err)
}

// StartLoad handles POST /jobs/:id/loads/:load/start. The body is optional.
func (h *Handler) StartLoad(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	var req startRequest
	if !bindJSON(c, &req, true) {
		return
	}
	job, err := h.engine.StartLoad(c.Request.Context(), c.Param("id"), load, req.DurationMinutes)
	h.respondJob(c, job, err)
}

// DryAgain handles POST /jobs/:id/loads/:load/dry-again.
func (h *Handler) DryAgain(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	job, err := h.engine.DryAgain(c.Request.Context(), c.Param("id"), load)
	h.respondJob(c, job, err)
}

// AdvanceLoad handles POST /jobs/:id/loads/:load/advance.
func (h *Handler) AdvanceLoad(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	var req advanceRequest
	if !bindJSON(c, &req, false) {
		return
	}
	job, err := h.engine.AdvanceLoad(c.Request.Context(), c.Param("id"), load, req.Status)
	h.respondJob(c, job, err)
}

// CompleteLoad handles POST /jobs/:id/loads/:load/complete.
func (h *Handler) CompleteLoad(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	job, err := h.engine.CompleteLoad(c.Request.Context(), c.Param("id"), load)
	h.respondJob(c, job, err)
}

// UpdateLoadDuration handles PUT /jobs/:id/loads/:load/duration.
func (h *Handler) UpdateLoadDuration(c *gin.Context) {
	load, ok := loadNumberParam(c)
	if !ok {
		return
	}
	var req durationRequest
	if !bindJSON(c, &req, false) {
		return
	}
	job, err := h.engine.UpdateLoadDuration(c.Request.Context(), c.Param("id"), load, req.Minutes)
	h.respondJob(c, job, err)
}
