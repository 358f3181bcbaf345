package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"prodintel/internal/config"
	"prodintel/internal/core/analyze"
	"prodintel/internal/core/batch"
	"prodintel/internal/core/discover"
	"prodintel/internal/core/export"
	"prodintel/internal/core/extract"
	"prodintel/internal/core/fetch"
	"prodintel/internal/core/job"
	"prodintel/internal/logger"
	"prodintel/internal/platform/llm"
	rds "prodintel/internal/platform/redis"
	tasks "prodintel/internal/platform/tasks"
	"prodintel/internal/server"
	"prodintel/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the batch extraction worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireRedis(); err != nil {
		return err
	}
	if err := cfg.RequireLLM(); err != nil {
		return err
	}

	logr := logger.New("main")
	logr.LogInfof("starting at %s (env=%s)", cfg.HTTPAddr, cfg.AppEnv)

	schema, err := loadSchema(cfg)
	if err != nil {
		return err
	}

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	defer taskClient.Close()
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{tasks.QueueBatches: 1},
	})

	// Core services
	jobSvc := job.NewJobService(redisSvc)

	llmSvc, err := llm.NewService(llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.GeminiAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	fetchSvc := fetch.New(redisSvc, fetch.Options{
		MaxRetries:     cfg.FetchMaxRetries,
		CacheTTL:       cfg.CacheTTL,
		RenderFallback: cfg.RenderFallback,
	})
	extractSvc := extract.New(llmSvc)
	discoverSvc := discover.New()
	analyzeSvc := analyze.New(llmSvc)

	exportStore, err := export.NewStore(cfg)
	if err != nil {
		return err
	}

	batchHandler := worker.NewBatchHandler(jobSvc, taskClient, fetchSvc, extractSvc, cfg)

	// Worker mux
	mux := worker.NewMux()
	batchHandler.Register(mux)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			logr.LogError("worker stopped", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "prodintel",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	// Serve locally stored export artifacts from DATA_DIR under /files
	app.Static("/files", cfg.DataDir)

	deps := server.Dependencies{
		Config:   cfg,
		Schema:   schema,
		Job:      jobSvc,
		Batch:    batchHandler,
		Fetch:    fetchSvc,
		Extract:  extractSvc,
		Discover: discoverSvc,
		Analyze:  analyzeSvc,
		Exports:  exportStore,
		Redis:    redisSvc,
		LLM:      llmSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

// loadSchema resolves the extraction schema once at startup so every batch on
// this instance extracts the same field set.
func loadSchema(cfg config.Config) (batch.ExtractionSchema, error) {
	if cfg.SchemaFile != "" {
		return batch.LoadSchemaFile(cfg.SchemaFile)
	}
	return batch.DefaultSchema(), nil
}
