package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duragraph/duragraph/cmd/server/config"
	"github.com/duragraph/duragraph/internal/application/command"
	"github.com/duragraph/duragraph/internal/application/query"
	"github.com/duragraph/duragraph/internal/infrastructure/cache"
	"github.com/duragraph/duragraph/internal/infrastructure/connector"
	"github.com/duragraph/duragraph/internal/infrastructure/http/handlers"
	"github.com/duragraph/duragraph/internal/infrastructure/http/middleware"
	"github.com/duragraph/duragraph/internal/infrastructure/messaging"
	"github.com/duragraph/duragraph/internal/infrastructure/messaging/nats"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/registry"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/infrastructure/tracing"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"

	"github.com/duragraph/duragraph/internal/domain/graph"
)

const serviceVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	fmt.Println("🚀 DuraGraph Server - BPMN Execution Engine")
	fmt.Printf("📍 Server: %s\n", cfg.ServerAddr())
	fmt.Printf("🗄️  Database: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Printf("📨 NATS: %s\n", cfg.NATS.URL)
	fmt.Printf("🔌 Datasources: %d configured\n", len(cfg.Datasources))

	ctx := context.Background()

	dbConfig := postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}

	if err := postgres.Migrate(dbConfig.DSN()); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	fmt.Println("✅ Migrations applied")

	pool, err := postgres.NewPool(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer postgres.Close(pool)

	fmt.Println("✅ Database connected")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "duragraph",
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	eventBus := eventbus.New()

	journalRepo := postgres.NewJournalRepository(pool)
	instanceQueries := postgres.NewInstanceQueries(pool)
	outbox := postgres.NewOutbox(pool)

	logger := watermill.NewStdLogger(false, false)
	publisher, err := nats.NewPublisher(cfg.NATS.URL, logger)
	if err != nil {
		log.Fatalf("failed to create NATS publisher: %v", err)
	}
	defer publisher.Close()
	fmt.Println("✅ NATS publisher connected")

	subscriber, err := nats.NewSubscriber(cfg.NATS.URL, "duragraph-server", logger)
	if err != nil {
		log.Fatalf("failed to create NATS subscriber: %v", err)
	}
	defer subscriber.Close()
	fmt.Println("✅ NATS subscriber connected")

	outboxRelay := messaging.NewOutboxRelay(outbox, publisher, 1*time.Second, 10)
	go func() {
		if err := outboxRelay.Start(ctx); err != nil {
			log.Printf("outbox relay error: %v", err)
		}
	}()
	fmt.Println("✅ Outbox relay worker started")

	cleanupWorker := messaging.NewCleanupWorkerWithSchedule(outbox, "@hourly", 7)
	go func() {
		if err := cleanupWorker.Start(ctx); err != nil {
			log.Printf("cleanup worker error: %v", err)
		}
	}()
	fmt.Println("✅ Cleanup worker started")

	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	instanceCache := cache.NewInstanceCache(redisCache, 2*time.Second)
	fmt.Println("✅ Redis cache connected")

	metrics := monitoring.NewMetrics("duragraph")

	datasources := make(map[string]connector.Datasource, len(cfg.Datasources))
	for id, ds := range cfg.Datasources {
		datasources[id] = ds
	}
	connRunner := connector.New(datasources)

	// scheduler.New needs registry's ResolveModel before registry.New can
	// build a scheduler, and registry.New needs a constructed scheduler:
	// resolveModel closes over reg, which is assigned right after, so the
	// closure is never invoked before reg is set.
	var reg *registry.Registry
	resolveModel := func(id string) (*graph.Model, bool) {
		return reg.ResolveModel(id)
	}
	sched := scheduler.New(connRunner, cfg.SystemVars, journalRepo, eventBus, resolveModel)
	reg = registry.New(journalRepo, sched)

	if err := registry.LoadModelsFromDir(reg, cfg.ModelsDir); err != nil {
		log.Fatalf("failed to load models from %q: %v", cfg.ModelsDir, err)
	}
	fmt.Printf("✅ %d model(s) loaded from %s\n", len(reg.ListModels()), cfg.ModelsDir)

	if err := reg.RecoverAll(ctx, 4); err != nil {
		log.Fatalf("failed to recover unfinished instances: %v", err)
	}
	fmt.Println("✅ Unfinished instances recovered")

	createInstanceHandler := command.NewCreateInstanceHandler(reg)
	submitFormHandler := command.NewSubmitFormHandler(reg, instanceCache)
	submitReceiveHandler := command.NewSubmitReceiveHandler(reg, instanceCache)
	createAndReceiveHandler := command.NewCreateAndReceiveHandler(reg)

	getInstanceHandler := query.NewGetInstanceHandler(reg, instanceQueries, instanceCache)
	listModelsHandler := query.NewListModelsHandler(reg)
	getModelHandler := query.NewGetModelHandler(reg)
	searchInstancesHandler := query.NewSearchInstancesHandler(reg)
	getTaskHandler := query.NewGetTaskHandler(reg)

	modelHandler := handlers.NewModelHandler(listModelsHandler, getModelHandler, createInstanceHandler, createAndReceiveHandler)
	instanceHandler := handlers.NewInstanceHandler(getInstanceHandler, searchInstancesHandler, getTaskHandler, submitFormHandler, submitReceiveHandler)
	systemHandler := handlers.NewSystemHandler(serviceVersion)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler()

	e.Use(middleware.Logger())
	e.Use(middleware.Metrics(metrics))
	e.Use(middleware.Tracing("duragraph"))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authEnabled := os.Getenv("AUTH_ENABLED") == "true"
	if authEnabled {
		jwtSecret := os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "default-secret-change-in-production"
		}
		e.Use(middleware.OptionalAuth(jwtSecret))
		fmt.Println("✅ Authentication enabled")
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// spec §6 route table
	e.GET("/test", systemHandler.Ok)
	e.GET("/info", systemHandler.Info)

	e.GET("/model", modelHandler.List)
	e.GET("/model/:name", modelHandler.Get)
	e.POST("/model/:name/instance", modelHandler.CreateInstance)
	e.POST("/model/:name/task/:tid/receive", modelHandler.Receive)

	e.GET("/instance", instanceHandler.Search)
	e.GET("/instance/:iid", instanceHandler.Get)
	e.GET("/instance/:iid/task/:tid", instanceHandler.GetTask)
	e.POST("/instance/:iid/task/:tid/form", instanceHandler.SubmitForm)
	e.POST("/instance/:iid/task/:tid/receive", instanceHandler.SubmitReceive)
	e.GET("/instance/:iid/state", instanceHandler.State)
	e.GET("/instance/:iid/statews", instanceHandler.StateWS)

	go func() {
		fmt.Printf("🌐 Server listening on %s\n", cfg.ServerAddr())
		if err := e.Start(cfg.ServerAddr()); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n🛑 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	outboxRelay.Stop()
	cleanupWorker.Stop()

	fmt.Println("👋 Shutdown complete")
}
