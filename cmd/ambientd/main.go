// ambientd is the personal-assistant daemon: conversation ingestion,
// context building, the curiosity/fact-check/summary loops, the ambient
// orchestrator, the work queue, presence, missions and the sandbox event
// bridge, all served behind one HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/omniwaifu/dere-sub005/pkg/api"
	"github.com/omniwaifu/dere-sub005/pkg/config"
	ctxpkg "github.com/omniwaifu/dere-sub005/pkg/context"
	"github.com/omniwaifu/dere-sub005/pkg/curiosity"
	"github.com/omniwaifu/dere-sub005/pkg/database"
	"github.com/omniwaifu/dere-sub005/pkg/emotion"
	"github.com/omniwaifu/dere-sub005/pkg/events"
	"github.com/omniwaifu/dere-sub005/pkg/factcheck"
	"github.com/omniwaifu/dere-sub005/pkg/graph"
	"github.com/omniwaifu/dere-sub005/pkg/ingest"
	"github.com/omniwaifu/dere-sub005/pkg/llm"
	"github.com/omniwaifu/dere-sub005/pkg/mission"
	"github.com/omniwaifu/dere-sub005/pkg/orchestrator"
	"github.com/omniwaifu/dere-sub005/pkg/presence"
	"github.com/omniwaifu/dere-sub005/pkg/store"
	"github.com/omniwaifu/dere-sub005/pkg/summary"
	"github.com/omniwaifu/dere-sub005/pkg/taskwarrior"
	"github.com/omniwaifu/dere-sub005/pkg/tasks"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8787")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "stats", cfg.Stats())

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	db := dbClient.DB()
	slog.Info("connected to postgres")

	// The knowledge graph backend is an external collaborator (spec §6's
	// graph.Adapter); no concrete network client ships in this module, so
	// wire the in-memory stand-in until a real backend is configured here.
	graphAdapter := graph.NewMemoryAdapter()

	// Same story for the LLM backend: wrap the stub in the retry adapter so
	// every caller already exercises the real retry/backoff path.
	llmAdapter := llm.NewRetrying(llm.NewStub())

	eventPublisher := events.NewEventPublisher(db)
	eventSink := events.NewFanOut(events.NewPublisherSink(eventPublisher))

	// The general timeline/session event stream (distinct from the ambient
	// notification hub below): ConnectionManager fans out NOTIFY payloads to
	// subscribed WebSocket clients, with catchup served from the events table.
	connManager := events.NewConnectionManager(events.NewSQLCatchupQuerier(db), 5*time.Second)
	notifyListener := events.NewNotifyListener(dbConfig.DSN(), connManager)
	connManager.SetListener(notifyListener)
	if err := notifyListener.Start(ctx); err != nil {
		slog.Error("failed to start notify listener", "error", err)
		os.Exit(1)
	}
	defer notifyListener.Stop(context.Background())

	curiosityPipeline := curiosity.New(db, graphAdapter, eventSink, curiosity.Config{
		MaxPendingPerUser: cfg.Curiosity.MaxPendingPerUser,
		MaxPendingPerType: cfg.Curiosity.MaxPendingPerType,
		MinPriority:       float64(cfg.Curiosity.PruneScorePercent) / 100,
	})

	emotionBuffer := emotion.New(db)
	ingestor := ingest.New(db, graphAdapter, emotionBuffer, curiosityPipeline, eventSink)
	contextBuilder := ctxpkg.New(store.NewConversationStore(db), store.NewContextCacheStore(db), graphAdapter)
	missionSvc := mission.New(store.NewMissionStore(db), nil)
	presenceSvc := presence.New(db)

	queueCfg := tasks.Config{
		MaxRetries:     cfg.Queue.MaxRetries,
		LeaseTimeout:   cfg.Queue.LeaseTimeout,
		ReaperInterval: cfg.Queue.PollInterval,
	}
	queue := tasks.New(db, queueCfg)
	queue.StartReaper(ctx)
	defer queue.StopReaper()

	// factChecker reviews contradictions surfaced by the graph; invoked from
	// the curiosity/orchestrator review path once that wiring lands.
	factChecker := factcheck.New(graphAdapter, store.NewContradictionReviewStore(db), eventSink)
	_ = factChecker

	summaryLoop := summary.New(db, llmAdapter, summary.Config{
		CheckInterval: cfg.Summary.RunInterval,
		IdleFor:       time.Duration(cfg.Summary.IdleMinutes) * time.Minute,
		MinMessages:   cfg.Summary.MinMessages,
		MaxInputChars: cfg.Summary.MaxInputChars,
		CoreCharLimit: cfg.Summary.CoreMemoryCharLimit,
		RollingWindow: cfg.Summary.RollingSummaryWindow,
	})
	summaryLoop.Start(ctx)
	defer summaryLoop.Stop()

	orchConfig := orchestrator.Config{
		CheckInterval:               time.Duration(cfg.Orchestrator.CheckIntervalMinutes) * time.Minute,
		JitterFraction:              cfg.Orchestrator.JitterFraction,
		StartupDelay:                time.Duration(cfg.Orchestrator.StartupDelaySeconds) * time.Second,
		ProactiveCooldown:           time.Duration(cfg.Orchestrator.CooldownMinutes) * time.Minute,
		ActivityLookbackHours:       cfg.Orchestrator.ActivityLookbackHours,
		ContextChangeThreshold:      cfg.Orchestrator.ContextChangeThreshold,
		LLMTimeout:                  time.Duration(cfg.Orchestrator.LLMTimeoutSeconds) * time.Second,
		ExplorationEnabled:          cfg.Orchestrator.ExplorationEnabled,
		DailyExplorationCap:         cfg.Orchestrator.DailyExplorationCap,
		MaxHoursBetweenExplorations: float64(cfg.Orchestrator.MaxHoursBetweenExplorations),
	}
	orch := orchestrator.New(db, orchConfig, store.NewDaemonStateStore(db), store.NewProjectTaskStore(db),
		store.NewNotificationStore(db), missionSvc, presenceSvc, graphAdapter, llmAdapter, orchestrator.NoopActivityProvider{})

	// taskwarrior integration is opt-in: an empty TASKWARRIOR_DATA leaves the
	// client pointed at the process's own TASKDATA/home configuration, which
	// is fine for a single-user deployment but a no-op endpoint otherwise
	// isn't — the client always reports what `task` actually sees. The same
	// client backs both the orchestrator's fingerprint/overdue checks and the
	// /taskwarrior/tasks route.
	taskwarriorClient := taskwarrior.New(getEnv("TASKWARRIOR_DATA", ""))
	orch.SetTaskwarrior(taskwarriorClient)

	sessions := store.NewSessionStore(db)
	loop := orchestrator.NewLoop(orch, orchConfig, func(ctx context.Context) ([]string, error) {
		return sessions.DistinctUserIDs(ctx)
	})
	loop.Start(ctx)
	defer loop.Stop()

	server := api.NewServer(db, ingestor, contextBuilder, missionSvc, queue, presenceSvc)
	server.SetGraphAdapter(graphAdapter)
	server.SetConnectionManager(connManager)
	server.SetEventPublisher(eventPublisher)
	server.SetOrchestrator(orch)
	server.SetTaskwarrior(taskwarriorClient)

	notifyHub := api.NewNotificationHub()
	go notifyHub.Run()
	server.SetNotificationHub(notifyHub)

	if err := server.ValidateWiring(); err != nil {
		slog.Error("server wiring incomplete", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{Addr: ":" + httpPort, Handler: server.Handler()}
	go func() {
		slog.Info("http server listening", "port", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down http server", "error", err)
	}
}
