package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adaptivetest/internal/cache"
	"adaptivetest/internal/cleanup"
	"adaptivetest/internal/config"
	"adaptivetest/internal/discovery"
	"adaptivetest/internal/engine"
	"adaptivetest/internal/event"
	"adaptivetest/internal/handlers"
	"adaptivetest/internal/hotstore"
	"adaptivetest/internal/remote"
	"adaptivetest/internal/session"
	"adaptivetest/internal/warmstore"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// noopPublisher is used when RabbitMQ isn't configured, so the coordinator
// never has to nil-check its publisher dependency.
type noopPublisher struct{}

func (noopPublisher) Publish(eventType string, payload interface{}) error { return nil }

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	config.ServiceConfig = config.Load()
	cfg := config.ServiceConfig

	if err := warmstore.InitMongo(cfg.MongoDB); err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer warmstore.CloseMongo()

	hotStore := hotstore.NewStore()
	remoteClient := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Timeout)
	poolRepo := warmstore.NewPoolRepository(warmstore.Database)
	studentRepo := warmstore.NewStudentRepository(warmstore.Database)
	sessionRepo := warmstore.NewSessionRepository(warmstore.Database)
	responseRepo := warmstore.NewResponseRepository(warmstore.Database)

	cacheManager := cache.NewManager(hotStore, poolRepo, remoteClient, cfg.Cache)
	adaptiveEngine := engine.NewEngine(engine.Config{LearningRate: cfg.Adaptive.LearningRate})

	var publisher *event.EventPublisher
	if cfg.RabbitMQ.URI != "" && cfg.RabbitMQ.Exchange != "" {
		var err error
		publisher, err = event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("failed to connect to rabbitmq, events will not be published: %v", err)
		} else {
			defer publisher.Close()
		}
	} else {
		log.Println("RabbitMQ not configured, events will not be published")
	}
	var publisherPort session.Publisher = noopPublisher{}
	if publisher != nil {
		publisherPort = publisher
	}

	coordinator := session.NewCoordinator(hotStore, studentRepo, sessionRepo, responseRepo, cacheManager, adaptiveEngine, publisherPort, cfg.Cache)

	scheduler := cleanup.NewScheduler(hotStore, sessionRepo, cfg.Cache.CleanupInterval, cfg.Cache.InactivityWindow)
	scheduler.Start()
	defer scheduler.Stop()

	registry, err := discovery.NewServiceRegistry(cfg)
	if err != nil {
		log.Printf("consul registry unavailable, continuing without service discovery: %v", err)
	} else if err := registry.Register(); err != nil {
		log.Printf("failed to register with consul: %v", err)
	} else {
		defer registry.Deregister()
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	healthHandler := handlers.NewHealthHandler(hotStore, cacheManager)
	questionHandler := handlers.NewQuestionHandler(poolRepo)
	testHandler := handlers.NewTestHandler(coordinator)
	studentHandler := handlers.NewStudentHandler(studentRepo, responseRepo)
	cacheHandler := handlers.NewCacheHandler(cacheManager)
	sessionAdminHandler := handlers.NewSessionAdminHandler(scheduler)

	router.GET("/health", healthHandler.GetHealth)

	api := router.Group("/api")
	{
		api.POST("/questions/upload", questionHandler.UploadQuestions)

		api.POST("/test/start", testHandler.StartTest)
		api.POST("/test/submit", testHandler.SubmitAnswer)
		api.GET("/test/status/:session_id", testHandler.GetStatus)
		api.POST("/test/end/:session_id", testHandler.EndTest)

		api.GET("/student/:id/proficiency", studentHandler.GetProficiency)
		api.GET("/student/:id/history", studentHandler.GetHistory)
		api.GET("/student/:id/progress", studentHandler.GetProgress)

		api.GET("/cache/question-pool/:level/:level_id", cacheHandler.GetQuestionPool)
		api.POST("/cache/question-pool/:level/:level_id/invalidate", cacheHandler.InvalidatePool)
		api.POST("/cache/question-pool/:level/:level_id/refresh", cacheHandler.RefreshPool)
		api.GET("/cache/question-pool/:level/:level_id/coverage", cacheHandler.GetCoverage)
		api.GET("/cache/stats", cacheHandler.GetStats)
		api.POST("/cache/stats/reset", cacheHandler.ResetStats)
		api.POST("/cache/warmup", cacheHandler.Warmup)

		api.POST("/sessions/cleanup", sessionAdminHandler.CleanupSessions)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("adaptivetest service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("error shutting down http server: %v", err)
	}
}
