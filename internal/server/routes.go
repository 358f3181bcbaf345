package server

import (
	"github.com/gofiber/fiber/v2"

	"prodintel/internal/config"
	"prodintel/internal/core/analyze"
	"prodintel/internal/core/batch"
	"prodintel/internal/core/discover"
	"prodintel/internal/core/export"
	"prodintel/internal/core/extract"
	"prodintel/internal/core/fetch"
	"prodintel/internal/core/job"
	"prodintel/internal/health"
	"prodintel/internal/logger"
	"prodintel/internal/platform/llm"
	"prodintel/internal/platform/redis"
	"prodintel/internal/worker"
)

type Dependencies struct {
	Config   config.Config
	Schema   batch.ExtractionSchema
	Job      *job.JobService
	Batch    *worker.BatchHandler
	Fetch    *fetch.Service
	Extract  *extract.Service
	Discover *discover.Service
	Analyze  *analyze.Service
	Exports  *export.Store
	Redis    *redis.Service
	LLM      *llm.Service
}

// Server carries the handler dependencies. One instance serves all routes.
type Server struct {
	log           *logger.Logger
	cfg           config.Config
	defaultSchema batch.ExtractionSchema

	jobs     *job.JobService
	batch    *worker.BatchHandler
	fetch    *fetch.Service
	extract  *extract.Service
	discover *discover.Service
	analyze  *analyze.Service
	exports  *export.Store
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(
		health.Check{Name: "redis", Fn: d.Redis.HealthCheck},
		health.Check{Name: "llm", Fn: d.LLM.HealthCheck},
		health.Check{Name: "storage", Fn: d.Exports.HealthCheck},
	)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	s := &Server{
		log:           logger.New("Server"),
		cfg:           d.Config,
		defaultSchema: d.Schema,
		jobs:          d.Job,
		batch:         d.Batch,
		fetch:         d.Fetch,
		extract:       d.Extract,
		discover:      d.Discover,
		analyze:       d.Analyze,
		exports:       d.Exports,
	}

	api := app.Group("/v1")

	api.Post("/extract", s.HandleExtract)

	api.Post("/batches", s.HandleCreateBatch)
	api.Get("/batches/:jobId", s.HandleGetBatch)
	api.Delete("/batches/:jobId", s.HandleCancelBatch)
	api.Get("/batches/:jobId/export", s.HandleExportBatch)

	api.Get("/discover", s.HandleDiscover)
	api.Post("/analyze", s.HandleAnalyze)

	return healthHandler
}
