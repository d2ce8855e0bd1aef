package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/intervyu/config"
	"github.com/yoockh/intervyu/internal/api/handlers"
	"github.com/yoockh/intervyu/internal/api/middleware"
	"github.com/yoockh/intervyu/internal/api/routes"
	"github.com/yoockh/intervyu/internal/cache"
	"github.com/yoockh/intervyu/internal/covers"
	"github.com/yoockh/intervyu/internal/events"
	"github.com/yoockh/intervyu/internal/jobs"
	"github.com/yoockh/intervyu/internal/logger"
	"github.com/yoockh/intervyu/internal/metrics"
	"github.com/yoockh/intervyu/internal/prompts"
	"github.com/yoockh/intervyu/internal/providers/llm"
	"github.com/yoockh/intervyu/internal/providers/stt"
	mongorepo "github.com/yoockh/intervyu/internal/repositories/mongo"
	pgrepo "github.com/yoockh/intervyu/internal/repositories/postgres"
	"github.com/yoockh/intervyu/internal/services"
	"github.com/yoockh/intervyu/internal/storage"
	"github.com/yoockh/intervyu/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	log := logger.NewWithOutput(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Init MongoDB
	if err := config.InitMongo(cfg.MongoURI, cfg.MongoDB); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Warn("mongo index creation failed")
	}
	log.Info("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(cfg.PostgresURI); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.MigratePostgres(); err != nil {
		log.Fatalf("PostgreSQL migration error: %v", err)
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(cfg.RedisURL); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:       cfg.LLMProvider,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		GeminiModel:    cfg.GeminiModel,
		VertexProject:  cfg.VertexProject,
		VertexLocation: cfg.VertexLocation,
		VertexModel:    cfg.VertexModel,
		GroqAPIKey:     cfg.GroqAPIKey,
		GroqModel:      cfg.GroqModel,
		GroqBaseURL:    cfg.GroqBaseURL,
	})
	if err != nil {
		log.Fatalf("LLM provider init error: %v", err)
	}
	defer provider.Close()
	log.WithField("provider", provider.Name()).Info("LLM provider ready")

	pm, err := prompts.NewManager()
	if err != nil {
		log.Fatalf("prompt templates error: %v", err)
	}

	var uploader storage.Uploader
	if cfg.CoversBucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.CoversBucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		defer gcs.Close()
		uploader = gcs
	}
	picker := covers.NewPicker(cfg.CoversBucket, uploader)

	publisher := events.New(&events.Config{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		ClientID: "intervyu-api",
		Enabled:  cfg.KafkaEnabled,
	}, log, m)
	defer publisher.Close()

	// Repositories
	interviewRepo := mongorepo.NewInterviewRepo(config.MongoDB)
	feedbackRepo := mongorepo.NewFeedbackRepo(config.MongoDB)
	profileRepo := pgrepo.NewProfileRepo(config.PostgresDB)
	callLogRepo := pgrepo.NewCallLogRepo(config.PostgresDB)

	// Services
	interviewSvc := services.NewInterviewService(services.InterviewDeps{
		LLM:        provider,
		Prompts:    pm,
		Interviews: interviewRepo,
		Cache:      cache.NewRedisCache(config.RedisClient),
		Covers:     picker,
		Events:     publisher,
		Metrics:    m,
		Logger:     log,
	})
	feedbackSvc := services.NewFeedbackService(services.FeedbackDeps{
		LLM:      provider,
		Prompts:  pm,
		Feedback: feedbackRepo,
		Events:   publisher,
		Metrics:  m,
		Logger:   log,
	})
	profileSvc := services.NewProfileService(profileRepo)
	callLogSvc := services.NewCallLogService(callLogRepo)
	callSvc := services.NewCallService(services.CallDeps{
		Interviews:  interviewSvc,
		Feedback:    feedbackSvc,
		CallLogs:    callLogSvc,
		Profiles:    profileSvc,
		Prompts:     pm,
		WorkflowID:  cfg.WorkflowID,
		Events:      publisher,
		Metrics:     m,
		Logger:      log,
		BaseContext: ctx,
	})

	// Background jobs
	reaper := jobs.NewSessionReaper(ctx, callSvc, jobs.ReaperConfig{
		Schedule: cfg.ReapSchedule,
		MaxIdle:  cfg.MaxIdle,
	}, log)
	if err := reaper.Start(); err != nil {
		log.Fatalf("session reaper error: %v", err)
	}
	defer reaper.Stop()

	var audio handlers.AudioQueue
	if cfg.AudioWorkers > 0 {
		transcriber, err := stt.NewGoogleSpeech(ctx, stt.GoogleSpeechConfig{Encoding: cfg.AudioEncoding})
		if err != nil {
			log.Fatalf("speech-to-text init error: %v", err)
		}
		defer transcriber.Close()

		pool := &workers.TranscriptionPool{
			Redis:      config.RedisClient,
			STT:        transcriber,
			Metrics:    m,
			Logger:     log,
			NumWorkers: cfg.AudioWorkers,
		}
		if err := pool.Start(ctx); err != nil {
			log.Fatalf("transcription workers error: %v", err)
		}
		audio = pool
	}

	jwtCfg := middleware.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(m))

	routes.RegisterRoutes(r, routes.Deps{
		JWT:       jwtCfg,
		Generate:  handlers.NewGenerateHandler(interviewSvc),
		Feedback:  handlers.NewFeedbackHandler(feedbackSvc),
		Interview: handlers.NewInterviewHandler(interviewSvc, feedbackSvc),
		Call: handlers.NewCallHandler(handlers.CallHandlerDeps{
			Calls:  callSvc,
			Logs:   callLogSvc,
			Audio:  audio,
			Redis:  config.RedisClient,
			Logger: log,
		}),
		Profile:  handlers.NewProfileHandler(profileSvc),
		Covers:   handlers.NewCoversHandler(picker),
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := callSvc.Drain(shutdownCtx); err != nil {
		log.WithError(err).Warn("post-call pipelines did not finish before shutdown")
	}
	if config.MongoClient != nil {
		_ = config.MongoClient.Disconnect(shutdownCtx)
	}
	_ = config.RedisClient.Close()
}
