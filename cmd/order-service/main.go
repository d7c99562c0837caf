// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"oms/internal/order/application"
	"oms/internal/order/infrastructure"
	"oms/internal/order/infrastructure/adapter"
	"oms/internal/order/interfaces"
	"oms/internal/pkg/bootstrap"
	"oms/internal/pkg/config"
	"oms/internal/pkg/httpclient"
	"oms/internal/pkg/tracing"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)：
// 创建并组装所有依赖项，然后启动应用。
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.With().Str("service", serviceName).Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// 1. 初始化核心技术组件
	tp, err := tracing.InitTracerProvider(serviceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	tracer := otel.Tracer(serviceName)

	db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := infrastructure.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}

	var redisClient *redis.Client
	var priceCache adapter.PriceCache
	if cfg.PriceCacheEnable {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			// 缓存只是加速层，连不上就降级直连商品服务
			log.Warn().Err(err).Msg("redis unavailable, price cache disabled")
			redisClient = nil
		} else {
			priceCache = redisClient
		}
	}

	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.KafkaTopic,
		Balancer: &kafka.Hash{},
	}

	// 2. 组装出站适配器
	httpClient := httpclient.NewClient(tracer)
	products := adapter.NewProductHTTPAdapter(httpClient, cfg.ProductServiceURL, priceCache, cfg.PriceCacheTTL)
	billing := adapter.NewBillingHTTPAdapter(httpClient, cfg.BillingServiceURL)
	licenses := adapter.NewLicenseHTTPAdapter(httpClient, cfg.LicenseServiceURL)
	notifier := adapter.NewNotificationKafkaAdapter(kafkaWriter)

	// 3. 组装存储与业务服务
	orders := infrastructure.NewGormOrderStore(db)
	positions := infrastructure.NewGormPositionStore(db)
	changes := infrastructure.NewGormStatusChangeStore(db)
	txManager := infrastructure.NewGormTxManager(db)

	service := application.NewOrderService(
		orders, positions, changes, txManager,
		products, billing, licenses, notifier,
		tracer, log.Logger,
	)
	handler := interfaces.NewOrderHandler(service)

	// 4. 启动 HTTP 服务并注册关停钩子
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Addr:        cfg.HTTPAddr,
		RegisterHandlers: func(mux *http.ServeMux) {
			handler.RegisterRoutes(mux)
		},
		OnShutdown: []func(ctx context.Context) error{
			func(ctx context.Context) error { return tp.Shutdown(ctx) },
			func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
			func(ctx context.Context) error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Close()
			},
			func(ctx context.Context) error { return notifier.Close() },
		},
	})
}
