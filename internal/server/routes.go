package server

import (
	"github.com/gofiber/fiber/v2"

	"recfetch/internal/core/batch"
	"recfetch/internal/core/job"
	"recfetch/internal/core/provider"
	"recfetch/internal/health"
	"recfetch/internal/platform/redis"
	"recfetch/internal/workspace"
)

type Dependencies struct {
	Batch      *batch.Service
	Job        *job.Service
	Provider   *provider.Client
	Workspaces *workspace.Manager
	Redis      *redis.Service
	FFmpegPath string
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Redis, d.FFmpegPath)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	batchHandler := batch.NewHandler(d.Batch, d.Provider, d.Workspaces)
	api.Post("/recordings/search", batchHandler.HandleSearch)
	api.Post("/download-batch", batchHandler.HandleDownloadBatch)
	api.Post("/download-single", batchHandler.HandleDownloadSingle)

	jobHandler := job.NewHandler(d.Job)
	api.Post("/download-batch/async", jobHandler.HandleSubmit)
	api.Get("/status/:processId", jobHandler.HandleStatus)
	api.Get("/download/:processId", jobHandler.HandleDownload)
	api.Post("/cancel/:processId", jobHandler.HandleCancel)

	return healthHandler
}
