package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reelforge/api"
	"reelforge/briefs"
	"reelforge/config"
	"reelforge/engines"
	"reelforge/executor"
	"reelforge/planner"
	"reelforge/publish"
	"reelforge/shared/kafka"
	"reelforge/state"
	"reelforge/store"
	"reelforge/types"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	settings := config.Load()

	port := flag.String("port", settings.Port, "HTTP API port")
	renderServer := flag.String("render-server", settings.RenderServerURL, "Local render server URL (empty or \"disabled\" to disable)")
	catalogPath := flag.String("engines", settings.EngineCatalogPath, "Engine catalog TOML file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := engines.LoadOrDefault(*catalogPath)
	if err != nil {
		log.Fatalf("Failed to load engine catalog: %v", err)
	}
	selector := engines.NewSelector(catalog)

	var planOpts []planner.Option
	if optimizer := planner.NewCohereOptimizer(settings.CohereAPIKey, settings.CohereModel); optimizer != nil {
		planOpts = append(planOpts, planner.WithOptimizer(optimizer))
		log.Println("🧠 Narrative optimizer enabled (Cohere)")
	}

	// The orchestrator treats a nil LocalBackend as "no local server".
	var local executor.LocalBackend
	var health api.HealthChecker
	if *renderServer != "" && !strings.EqualFold(*renderServer, config.RenderServerDisabled) {
		adapter := executor.NewLocalServerAdapter(*renderServer)
		local = adapter
		health = adapter
	}

	cloud := executor.NewCloudAPIAdapter(map[types.ProviderID]executor.ProviderCredentials{
		types.ProviderRunway:    {APIKey: settings.RunwayAPIKey, BaseURL: settings.RunwayBaseURL},
		types.ProviderHeyGen:    {APIKey: settings.HeyGenAPIKey, BaseURL: settings.HeyGenBaseURL},
		types.ProviderShotstack: {APIKey: settings.ShotstackAPIKey, BaseURL: settings.ShotstackBaseURL},
	})

	orch := executor.New(executor.Config{
		Planner:  planner.New(planOpts...),
		Selector: selector,
		Local:    local,
		Cloud:    cloud,
	})

	var opts []state.Option
	var importOpts []briefs.Option

	if settings.RedisAddr != "" {
		bloom, err := briefs.NewRedisBloom(ctx, briefs.BloomConfig{Addr: settings.RedisAddr, Password: settings.RedisPassword})
		if err != nil {
			log.Printf("⚠️  Seen filter unavailable: %v", err)
		} else {
			defer bloom.Close()
			importOpts = append(importOpts, briefs.WithSeenFilter(bloom))
		}

		jobs, err := store.NewRedisJobStore(ctx, store.RedisConfig{Addr: settings.RedisAddr, Password: settings.RedisPassword})
		if err != nil {
			log.Printf("⚠️  Job store unavailable, poll fallback disabled: %v", err)
		} else {
			defer jobs.Close()
			opts = append(opts, state.WithJobSource(jobs))
		}
	}

	if settings.YouTubeCredentialsFile != "" {
		yt, err := publish.NewYouTube(ctx, settings.YouTubeCredentialsFile)
		if err != nil {
			log.Printf("⚠️  YouTube publishing disabled: %v", err)
		} else {
			opts = append(opts, state.WithPublisher(yt))
		}
	}

	// The consumer needs the manager's handler and the manager needs the
	// consumer as its feed, so the handler forwards to m once it exists.
	var m *state.Manager
	var consumer *kafka.Consumer
	if len(settings.KafkaBrokers) > 0 {
		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: settings.KafkaBrokers,
			Topic:   settings.KafkaTopic,
			GroupID: settings.KafkaGroupID,
			Handler: &forwardHandler{get: func() kafka.MessageHandler { return m.StatusHandler() }},
		})
		if err != nil {
			log.Printf("⚠️  Failed to create Kafka consumer, using poll fallback: %v", err)
			consumer = nil
		} else {
			opts = append(opts, state.WithFeed(consumer))
		}
	}

	m = state.NewManager(orch, opts...)
	orch.SetHooks(m.Hooks())
	if err := m.Start(ctx); err != nil {
		log.Fatalf("Failed to start state manager: %v", err)
	}
	if consumer != nil {
		consumer.Start(ctx)
	}

	router := api.NewRouter(api.Deps{
		State:    m,
		Selector: selector,
		Briefs:   briefs.NewImporter(importOpts...),
		Health:   health,
	})
	srv := &http.Server{Addr: ":" + *port, Handler: router}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Printf("🎬 Reelforge orchestrator")
	log.Printf("   API:            http://0.0.0.0:%s", *port)
	log.Printf("   Render server:  %s", orDisabled(*renderServer))
	log.Printf("   Engines:        %d", len(catalog.List()))
	log.Printf("   Cloud providers: %v", cloud.Providers())
	log.Println("Press Ctrl+C to shutdown")

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	m.Stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Kafka consumer close error: %v", err)
		}
	}
	log.Println("Server stopped")
}

// forwardHandler resolves the status handler lazily.
type forwardHandler struct {
	get func() kafka.MessageHandler
}

func (f *forwardHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	return f.get().HandleMessage(ctx, message)
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
