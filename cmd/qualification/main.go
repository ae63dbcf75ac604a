package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/redis"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/competencygate/internal/qualification/application"
	"github.com/wyfcoding/competencygate/internal/qualification/domain"
	"github.com/wyfcoding/competencygate/internal/qualification/infrastructure/messaging"
	"github.com/wyfcoding/competencygate/internal/qualification/infrastructure/persistence/mysql"
	persistence_redis "github.com/wyfcoding/competencygate/internal/qualification/infrastructure/persistence/redis"
	"github.com/wyfcoding/competencygate/internal/qualification/interfaces/events"
	httpserver "github.com/wyfcoding/competencygate/internal/qualification/interfaces/http"
)

var configPath = flag.String("config", "configs/qualification/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	logCfg := &logging.Config{
		Service:    cfg.Server.Name,
		Module:     "qualification",
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. Infrastructure
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	// Auto Migrate
	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&domain.CatalogVersionRecord{},
			&domain.QuestionDefinition{},
			&domain.PolicyRule{},
			&domain.StrategyDefinition{},
			&domain.UserQualification{},
			&domain.QualificationHistory{},
			&domain.AssessmentSubmission{},
			&domain.GatingDecision{},
			&domain.AuditRecord{},
			&messaging.OutboxMessage{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Redis
	redisClient, redisCleanup, err := redis.NewClient(&cfg.Data.Redis, logger)
	if err != nil {
		slog.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	defer redisCleanup()

	// 6. Repository & Application
	publisher := messaging.NewOutboxEventPublisher(db.RawDB(), slog.Default())
	catalogRepo := mysql.NewCatalogRepository(db.RawDB())
	qualRepo := mysql.NewQualificationRepository(db.RawDB(), publisher)
	decisionRepo := mysql.NewDecisionRepository(db.RawDB())
	auditRepo := mysql.NewAuditRepository(db.RawDB())
	submissionRepo := mysql.NewSubmissionRepository(db.RawDB())
	cache := persistence_redis.NewQualificationCache(redisClient)

	cmdService := application.NewCommandService(catalogRepo, qualRepo, decisionRepo, publisher, cache, slog.Default())
	queryService := application.NewQueryService(catalogRepo, qualRepo, auditRepo, decisionRepo, submissionRepo, cache, slog.Default())

	// 开发环境预置内置题库版本
	if cfg.Server.Environment == "dev" {
		seedDefaultCatalog(context.Background(), catalogRepo)
	}

	// Kafka Consumer
	kafkaCfg := cfg.MessageQueue.Kafka
	kafkaCfg.GroupID = "qualification-group"
	kafkaCfg.Topic = "portfolio.events"

	consumer := kafka.NewConsumer(&kafkaCfg, logger, metricsImpl)
	eventHandler := events.NewPortfolioEventHandler(cmdService)
	eventHandler.Subscribe(context.Background(), consumer)

	// Outbox Relay
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	relay := messaging.NewOutboxRelay(db.RawDB(), pusher, "qualification.audit", slog.Default())

	// 7. Interfaces
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(cfg.Server.Name, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })

	httpHandler := httpserver.NewQualificationHandler(cmdService, queryService)
	httpHandler.RegisterRoutes(r.Group(""))

	// 8. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return relay.Run(ctx)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		slog.Info("gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}

// seedDefaultCatalog 内置题库版本不存在时写入，已存在则跳过
func seedDefaultCatalog(ctx context.Context, repo domain.CatalogRepository) {
	if _, err := repo.GetByVersion(ctx, domain.DefaultCatalogVersion); err == nil {
		return
	}
	catalog := domain.DefaultCatalog(time.Now())
	if err := repo.Publish(ctx, catalog); err != nil && !errors.Is(err, domain.ErrCatalogVersionExists) {
		slog.Error("failed to seed default catalog", "error", err)
		return
	}
	slog.Info("default catalog seeded", "version", domain.DefaultCatalogVersion)
}
