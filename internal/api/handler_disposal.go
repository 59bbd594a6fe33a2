package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckJobDisposal handles POST /jobs/:id/disposal-check.
func (h *Handler) CheckJobDisposal(c *gin.Context) {
	res, err := h.sweeper.CheckJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListExpired handles GET /disposal/expired.
func (h *Handler) ListExpired(c *gin.Context) {
	jobs, err := h.sweeper.ListExpired(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// ListPendingWarnings handles GET /disposal/pending-warnings.
func (h *Handler) ListPendingWarnings(c *gin.Context) {
	jobs, err := h.sweeper.ListPendingWarnings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// TriggerDisposal handles POST /disposal/trigger.
func (h *Handler) TriggerDisposal(c *gin.Context) {
	summary, err := h.sweeper.ManualTrigger(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DisposeJob handles POST /jobs/:id/dispose.
func (h *Handler) DisposeJob(c *gin.Context) {
	var req staffRequest
	if !bindJSON(c, &req, false) {
		return
	}
	job, err := h.sweeper.DisposeExpiredJob(c.Request.Context(), c.Param("id"), req.StaffName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
