package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelforge/common"
	"reelforge/config"
	"reelforge/renderd"
	"reelforge/shared/kafka"
	"reelforge/store"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	settings := config.Load()

	port := flag.String("port", config.GetEnvOrDefault("RENDER_PORT", "8090"), "Render server port")
	uploadDir := flag.String("uploads", config.UploadDir, "Directory for uploaded sources")
	outputDir := flag.String("output", config.OutputDir, "Directory for rendered videos")
	workers := flag.Int("workers", config.RenderWorkers, "Concurrent renders")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := renderd.Config{
		Encoder:   renderd.NewFFmpegEncoder(settings.FFmpegPath),
		UploadDir: *uploadDir,
		OutputDir: *outputDir,
		Workers:   *workers,
	}

	if settings.RedisAddr != "" {
		jobs, err := store.NewRedisJobStore(ctx, store.RedisConfig{Addr: settings.RedisAddr, Password: settings.RedisPassword})
		if err != nil {
			log.Printf("⚠️  Job store unavailable: %v", err)
		} else {
			defer jobs.Close()
			cfg.Records = jobs
		}
	}

	if len(settings.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: settings.KafkaBrokers, Topic: settings.KafkaTopic})
		if err != nil {
			log.Printf("⚠️  Status feed unavailable: %v", err)
		} else {
			defer producer.Close()
			cfg.Events = producer
		}
	}

	if settings.S3Bucket != "" {
		s3, err := common.NewS3(ctx, common.S3Config{
			Bucket:       settings.S3Bucket,
			Prefix:       settings.S3Prefix,
			Region:       settings.S3Region,
			Profile:      settings.S3Profile,
			UsePathStyle: settings.S3UsePathStyle,
		})
		if err != nil {
			log.Fatalf("Failed to create S3 client: %v", err)
		}
		cfg.Outputs = s3
	}

	server, err := renderd.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create render server: %v", err)
	}
	server.Start(ctx)

	srv := &http.Server{Addr: ":" + *port, Handler: server.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Printf("🎞️  Render server on http://0.0.0.0:%s", *port)
	log.Println("API endpoints available:")
	log.Println("  GET  /health")
	log.Println("  POST /upload")
	log.Println("  POST /execute")
	log.Println("  GET  /job/:jobId")

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
