package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/lifecycle"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/store"
)

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(c *gin.Context) {
	var req lifecycle.CreateJobInput
	if !bindJSON(c, &req, false) {
		return
	}
	job, err := h.engine.CreateJob(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /jobs?pickupStatus=&expired=&disposed=.
func (h *Handler) ListJobs(c *gin.Context) {
	var filter store.JobFilter
	if raw := c.Query("pickupStatus"); raw != "" {
		status := model.PickupStatus(strings.ToUpper(raw))
		if status != model.PickupClaimed && status != model.PickupUnclaimed {
			writeError(c, apperr.ValidationField("pickupStatus", "must be CLAIMED or UNCLAIMED"))
			return
		}
		filter.PickupStatus = &status
	}
	var ok bool
	if filter.Expired, ok = boolQuery(c, "expired"); !ok {
		return
	}
	if filter.Disposed, ok = boolQuery(c, "disposed"); !ok {
		return
	}

	jobs, err := h.engine.ListJobs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetJob handles GET /jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.engine.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJob handles PATCH /jobs/:id. It bypasses the lifecycle rules.
func (h *Handler) UpdateJob(c *gin.Context) {
	var patch lifecycle.JobPatch
	if !bindJSON(c, &patch, false) {
		return
	}
	job, err := h.engine.UpdateJob(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /jobs/:id.
func (h *Handler) DeleteJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.DeleteJob(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	if h.receipts != nil {
		h.receipts.Forget("/api/jobs/" + id + "/")
	}
	c.Status(http.StatusNoContent)
}
