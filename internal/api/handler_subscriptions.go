package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint  string `json:"endpoint" binding:"required"`
	P256DH    string `json:"p256dh" binding:"required"`
	Auth      string `json:"auth" binding:"required"`
	StaffName string `json:"staff_name"`
}

// PutSubscription registers a staff browser for job-completed pushes.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if !bindJSON(c, &req, false) {
		return
	}

	subscription := model.PushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		StaffName: strings.TrimSpace(req.StaffName),
	}
	if err := h.store.SavePushSubscription(c.Request.Context(), &subscription); err != nil {
		writeError(c, apperr.Internal(err, "failed to save subscription"))
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if !bindJSON(c, &req, false) {
		return
	}

	if err := h.store.DeletePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeError(c, apperr.Internal(err, "failed to delete subscription"))
		return
	}

	c.Status(http.StatusNoContent)
}

func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true // no URL decoding
		}
	}
	return "", false
}

// GetSubscription reports whether an endpoint is registered.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		writeError(c, apperr.ValidationField("endpoint", "endpoint is required"))
		return
	}

	subscription, err := h.store.GetPushSubscription(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.NotFoundf("subscription not found"))
		} else {
			writeError(c, apperr.Internal(err, "failed to fetch subscription"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": subscription.Endpoint, "staff_name": subscription.StaffName})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
