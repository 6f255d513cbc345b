package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xturavaina/nacento-connector/consumer"
	"github.com/xturavaina/nacento-connector/controllers"
	"github.com/xturavaina/nacento-connector/database"
	awspkg "github.com/xturavaina/nacento-connector/pkg/aws"
	"github.com/xturavaina/nacento-connector/repository"
	"github.com/xturavaina/nacento-connector/routes"
	"github.com/xturavaina/nacento-connector/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := database.Connect(logger, cfg.PostgresDSN()); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck

	// One AWS config shared by the S3, SNS and SQS clients.
	var (
		awsCfg    sdkaws.Config
		awsCfgErr error
	)
	if cfg.MediaDriver == services.MediaDriverS3 || cfg.SNSTopicARN != "" || cfg.SQSQueueURL != "" {
		awsCfg, awsCfgErr = awspkg.LoadConfig(context.Background(), cfg.AWSOptions())
	}

	// Media existence checks and content fingerprints, per driver.
	var (
		storage      services.MediaStorage
		fingerprints services.FingerprintClient
	)
	switch cfg.MediaDriver {
	case services.MediaDriverS3:
		if awsCfgErr != nil {
			logger.Fatal("Failed to load AWS config", zap.Error(awsCfgErr))
		}
		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.S3UsePathStyle
		})
		storage = services.NewS3MediaStorage(s3Client, cfg.MediaBucket, logger)
		fingerprints = services.NewS3FingerprintClient(s3Client, cfg.MediaBucket, cfg.S3HeadTimeout, logger)
	default:
		storage = services.NewLocalMediaStorage(cfg.MediaRoot)
		fingerprints = services.NoopFingerprintClient{}
	}

	// SNS domain events, optional
	var snsClient awspkg.SNSPublisher
	if cfg.SNSTopicARN != "" {
		if awsCfgErr != nil {
			logger.Warn("AWS config unavailable, SNS disabled", zap.Error(awsCfgErr))
		} else {
			snsClient = awspkg.NewSNSClient(awsCfg)
		}
	}

	// Product id cache, optional
	var cache *services.ProductCache
	if cfg.RedisURL != "" {
		opts, rerr := redis.ParseURL(cfg.RedisURL)
		if rerr != nil {
			logger.Warn("Invalid REDIS_URL, cache disabled", zap.Error(rerr))
		} else {
			cache = services.NewProductCache(redis.NewClient(opts), 0)
		}
	}

	// DI chain
	galleryRepo := repository.NewGormGalleryRepository(database.DB)
	productRepo := repository.NewGormProductRepository(database.DB)
	galleryService := services.NewGalleryService(galleryRepo, productRepo, storage, fingerprints, logger)
	bulkService := services.NewBulkService(
		database.DB,
		galleryRepo,
		productRepo,
		galleryService,
		cache,
		snsClient,
		cfg.SNSTopicARN,
		logger,
	)

	// Task queue for async bulk, optional
	var queue *awspkg.SQSQueue
	if cfg.SQSQueueURL != "" {
		if awsCfgErr != nil {
			logger.Fatal("Failed to load AWS config for SQS", zap.Error(awsCfgErr))
		}
		queue = awspkg.NewSQSQueue(awsCfg, cfg.SQSQueueURL, logger)
	}

	asyncService := services.NewAsyncService(queueOrNil(queue), logger)
	healthService := services.NewHealthService(database.DB, queueOrNil(queue), fingerprints, services.HealthConfig{
		MediaDriver:   cfg.MediaDriver,
		Bucket:        cfg.MediaBucket,
		Endpoint:      cfg.AWSEndpoint,
		PingObjectKey: cfg.PingObjectKey,
	}, logger)

	galleryController := controllers.NewGalleryController(bulkService, asyncService)
	healthController := controllers.NewHealthController(healthService)

	// Queue consumer
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if queue != nil {
		galleryConsumer := consumer.NewGalleryConsumer(bulkService, queue, logger)
		go galleryConsumer.Start(consumerCtx)
	}

	r := gin.New()

	// Global request-logging middleware
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
		)
	})

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "nacento-connector"})
	})

	routes.RegisterGalleryRoutes(r, galleryController, healthController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Nacento connector started",
		zap.String("port", cfg.Port),
		zap.String("media_driver", cfg.MediaDriver),
	)
	<-quit
	logger.Info("Shutting down nacento connector...")
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited cleanly")
}

// queueOrNil keeps a nil *SQSQueue from becoming a non-nil interface value.
func queueOrNil(q *awspkg.SQSQueue) awspkg.QueuePublisher {
	if q == nil {
		return nil
	}
	return q
}
