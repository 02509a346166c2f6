package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"recfetch/internal/config"
	"recfetch/internal/core/batch"
	"recfetch/internal/core/convert"
	"recfetch/internal/core/job"
	"recfetch/internal/core/provider"
	"recfetch/internal/logger"
	rds "recfetch/internal/platform/redis"
	tasks "recfetch/internal/platform/tasks"
	"recfetch/internal/server"
	"recfetch/internal/worker"
	"recfetch/internal/workspace"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Printf("[recfetch] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	workspaces := workspace.NewManager(cfg.DataDir)
	transcoder := convert.NewTranscoder(cfg.FFmpegPath)
	providerClient := provider.NewClient()
	batchSvc := batch.NewService(transcoder, cfg.BatchConcurrency,
		time.Duration(cfg.DownloadTimeoutSeconds)*time.Second)
	jobSvc := job.NewService(job.NewRedisRepository(redisSvc), taskClient, batchSvc, workspaces, cfg.TaskMaxRetries)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(job.TaskTypeBatch, jobSvc.HandleBatchTask)

	// Start worker
	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Recfetch",
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

	deps := server.Dependencies{
		Batch:      batchSvc,
		Job:        jobSvc,
		Provider:   providerClient,
		Workspaces: workspaces,
		Redis:      redisSvc,
		FFmpegPath: cfg.FFmpegPath,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(2 * time.Second)
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
		log.Fatalf("server listen: %v", err)
	}
}
