package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/disposal"
	"laundry-jobs-backend/internal/lifecycle"
	"laundry-jobs-backend/internal/mw"
	"laundry-jobs-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine   *lifecycle.Engine
	sweeper  *disposal.Sweeper
	store    store.Store
	webpush  *webpush.Options
	receipts *mw.ResponseCache
}

// NewHandler creates a new API handler.
func NewHandler(engine *lifecycle.Engine, sweeper *disposal.Sweeper, s store.Store, webpushOptions *webpush.Options, receipts *mw.ResponseCache) *Handler {
	return &Handler{
		engine:   engine,
		sweeper:  sweeper,
		store:    s,
		webpush:  webpushOptions,
		receipts: receipts,
	}
}

// writeError renders err with the status code of its category.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error", "code": apperr.CodeInternal})
		return
	}

	body := gin.H{"error": err.Error(), "code": apperr.CodeOf(err)}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.JSON(status, body)
}

// bindJSON decodes the request body. An empty body is accepted when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(c, apperr.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func loadNumberParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("load"))
	if err != nil || n <= 0 {
		writeError(c, apperr.ValidationField("load", "load number must be a positive integer"))
		return 0, false
	}
	return n, true
}

func boolQuery(c *gin.Context, key string) (*bool, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(c, apperr.ValidationField(key, "must be true or false"))
		return nil, false
	}
	return &v, true
}
