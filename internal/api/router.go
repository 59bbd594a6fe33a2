package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/disposal"
	"laundry-jobs-backend/internal/lifecycle"
	"laundry-jobs-backend/internal/mw"
	"laundry-jobs-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(engine *lifecycle.Engine, sweeper *disposal.Sweeper, s store.Store, webpushOptions *webpush.Options, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	receipts := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	handler := NewHandler(engine, sweeper, s, webpushOptions, receipts)

	// API group
	api := r.Group("/api")
	if cfg.RateLimitPerSec > 0 {
		api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader))
	}
	{
		api.GET("/machines", handler.ListMachines)
		api.POST("/machines", handler.RegisterMachine)
		api.GET("/machines/:id", handler.GetMachine)
		api.PUT("/machines/:id/status", handler.SetMachineStatus)

		api.POST("/jobs", handler.CreateJob)
		api.GET("/jobs", handler.ListJobs)
		api.GET("/jobs/:id", handler.GetJob)
		api.PATCH("/jobs/:id", handler.UpdateJob)
		api.DELETE("/jobs/:id", handler.DeleteJob)

		loads := api.Group("/jobs/:id/loads/:load")
		loads.POST("/assign", handler.AssignMachine)
		loads.POST("/start", handler.StartLoad)
		loads.POST("/dry-again", handler.DryAgain)
		loads.POST("/advance", handler.AdvanceLoad)
		loads.POST("/complete", handler.CompleteLoad)
		loads.PUT("/duration", handler.UpdateLoadDuration)

		api.POST("/jobs/:id/claim", handler.ClaimLaundry)
		api.GET("/jobs/:id/claim-receipt", receipts.Middleware(), handler.GetClaimReceipt)
		api.POST("/jobs/:id/dispose", handler.DisposeJob)
		api.POST("/jobs/:id/disposal-check", handler.CheckJobDisposal)

		api.GET("/disposal/expired", handler.ListExpired)
		api.GET("/disposal/pending-warnings", handler.ListPendingWarnings)
		api.POST("/disposal/trigger", handler.TriggerDisposal)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
