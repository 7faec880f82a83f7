package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/controllers"
	"github.com/alvinkoh256/FoodBridge/logger"
	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/repository"
	"github.com/alvinkoh256/FoodBridge/routes"
	"github.com/alvinkoh256/FoodBridge/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	// --- AWS / DynamoDB setup ---
	awsCfg, err := awspkg.LoadAWSConfig(context.Background())
	if err != nil {
		logger.Log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	ddbEndpoint := os.Getenv("AWS_DDB_ENDPOINT")
	if ddbEndpoint == "" {
		ddbEndpoint = os.Getenv("AWS_ENDPOINT")
	}
	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != "" {
			o.BaseEndpoint = aws.String(ddbEndpoint)
		}
	})

	metricsClient, err := awspkg.NewMetricsClient(context.Background())
	if err != nil {
		logger.Log.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Service wiring ---
	hubRepo := repository.NewDynamoHubRepository(ddbClient, cfg.DDBTableHubs)
	catalogRepo := repository.NewDynamoCatalogRepository(ddbClient, cfg.DDBTableCatalog)
	invRepo := repository.NewDynamoInventoryRepository(ddbClient, cfg.DDBTableInv)
	resRepo := repository.NewDynamoReservationRepository(ddbClient, cfg.DDBTableRes, cfg.DDBTableSnaps)

	var publisher services.EventPublisher
	if cfg.HubEventsTopic != "" {
		publisher = services.NewSNSEventPublisher(awspkg.NewSNSClient(awsCfg), cfg.HubEventsTopic)
	} else {
		logger.Log.Warn("HUB_EVENTS_TOPIC_ARN not set, hub events will not be published")
	}

	accounts := services.NewAccountClient(cfg.AccountAPIURL)

	catalogService := services.NewCatalogService(catalogRepo, metricsClient)
	inventoryService := services.NewInventoryService(hubRepo, invRepo, catalogService, metricsClient, cfg.ReadyThresholdKg)
	reservationService := services.NewReservationService(hubRepo, invRepo, resRepo, accounts, publisher, metricsClient, cfg.ReadyThresholdKg)

	hubController := controllers.NewHubController(inventoryService, catalogService)
	reservationController := controllers.NewReservationController(reservationService)

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())

	// CloudWatch HTTP metrics middleware
	if metricsClient != nil && metricsClient.IsEnabled() {
		r.Use(func(c *gin.Context) {
			start := time.Now()
			c.Next()
			go func(path, method string, status int, dur time.Duration) {
				mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				dims := map[string]string{"Service": "hub-service", "Method": method, "Path": path}
				_ = metricsClient.RecordCount(mctx, awspkg.MetricHTTPRequests, dims)
				_ = metricsClient.RecordLatency(mctx, awspkg.MetricHTTPLatency, dur, dims)
				if status >= 400 {
					_ = metricsClient.RecordCount(mctx, awspkg.MetricHTTPErrors, dims)
				}
			}(c.Request.URL.Path, c.Request.Method, c.Writer.Status(), time.Since(start))
		})
	}

	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterRoutes(r, hubController, reservationController)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logger.Log.Info("Hub Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Hub Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Hub Service stopped gracefully")
}
