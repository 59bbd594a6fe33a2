package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type staffRequest struct {
	StaffName string `json:"staffName"`
}

// ClaimLaundry handles POST /jobs/:id/claim.
func (h *Handler) ClaimLaundry(c *gin.Context) {
	var req staffRequest
	if !bindJSON(c, &req, false) {
		return
	}
	receipt, err := h.engine.ClaimLaundry(c.Request.Context(), c.Param("id"), req.StaffName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// GetClaimReceipt handles GET /jobs/:id/claim-receipt. Receipts never change
// once issued, so the route is served through the response cache.
func (h *Handler) GetClaimReceipt(c *gin.Context) {
	receipt, err := h.engine.GetClaimReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
