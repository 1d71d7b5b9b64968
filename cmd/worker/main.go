package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pa-tiq/synthia-api/internal/config"
	"github.com/pa-tiq/synthia-api/internal/ollama"
	"github.com/pa-tiq/synthia-api/internal/queue"
	"github.com/pa-tiq/synthia-api/internal/s3storage"
	"github.com/pa-tiq/synthia-api/internal/summarize"
	"github.com/pa-tiq/synthia-api/internal/tempfiles"
	"github.com/pa-tiq/synthia-api/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	temp, err := tempfiles.New(cfg.TempDir, cfg.TempMaxAge)
	if err != nil {
		log.Fatalf("init temp dir: %v", err)
	}
	if removed, err := temp.Sweep(); err != nil {
		log.Printf("startup temp sweep: %v", err)
	} else if removed > 0 {
		log.Printf("startup temp sweep removed %d stale files", removed)
	}
	go temp.SweepPeriodically(ctx, cfg.TempInterval)

	llm := ollama.New(cfg.OllamaURL)
	summarizer := summarize.New(llm, cfg.TextModel, cfg.VisionModel)
	transcriber := summarize.NewWhisperTranscriber(cfg.WhisperModel, temp)
	processor := worker.NewProcessor(store, summarizer, transcriber)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{queue.QueueName: 1},
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(processor.Handler()); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
